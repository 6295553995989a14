package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/Gopher0727/Nexus/internal/model"
)

// RedisGuildRepository stores each guild as a JSON document.
//
// Keys:
//
//	<prefix>:guild:<id>         JSON document
//	<prefix>:guild:name:<name>  id owning the name (claimed inside insertScript)
//	<prefix>:guilds             set of all ids
type RedisGuildRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisGuildRepository(client *redis.Client, prefix string) *RedisGuildRepository {
	if prefix == "" {
		prefix = "nexus"
	}
	return &RedisGuildRepository{client: client, prefix: prefix}
}

func (r *RedisGuildRepository) docKey(id string) string {
	return fmt.Sprintf("%s:guild:%s", r.prefix, id)
}

func (r *RedisGuildRepository) nameKey(name string) string {
	return fmt.Sprintf("%s:guild:name:%s", r.prefix, name)
}

func (r *RedisGuildRepository) setKey() string {
	return r.prefix + ":guilds"
}

func (r *RedisGuildRepository) FindAll(ctx context.Context) ([]*model.Guild, error) {
	ids, err := r.client.SMembers(ctx, r.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list guild ids: %w", err)
	}

	guilds := make([]*model.Guild, 0, len(ids))
	if len(ids) == 0 {
		return guilds, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load guilds: %w", err)
	}

	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// 已被并发删除
			continue
		}
		guild, err := decodeGuild(raw)
		if err != nil {
			return nil, err
		}
		guilds = append(guilds, guild)
	}
	return guilds, nil
}

func (r *RedisGuildRepository) FindByID(ctx context.Context, id string) (*model.Guild, error) {
	raw, err := r.client.Get(ctx, r.docKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find guild %s: %w", id, err)
	}
	return decodeGuild(raw)
}

func (r *RedisGuildRepository) FindByName(ctx context.Context, name string) ([]*model.Guild, error) {
	guilds := make([]*model.Guild, 0, 1)

	id, err := r.client.Get(ctx, r.nameKey(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return guilds, nil
		}
		return nil, fmt.Errorf("failed to query guilds by name: %w", err)
	}

	guild, err := r.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return guilds, nil
		}
		return nil, err
	}
	return append(guilds, guild), nil
}

// insertScript 占用名称并写入文档，整个过程在 Redis 内原子执行。
// 名称索引指向的文档已不存在时视为空闲。
//
//	KEYS: name, doc, set   ARGV: id, json, doc key prefix
var insertScript = redis.NewScript(`
local owner = redis.call('GET', KEYS[1])
if owner and redis.call('EXISTS', ARGV[3] .. owner) == 1 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
redis.call('SADD', KEYS[3], ARGV[1])
return 1
`)

// deleteScript 仅当文档仍是调用方读到的那一份时删除它和两个索引。
//
//	KEYS: doc, name, set   ARGV: id, json
var deleteScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[2] then
	return 0
end
redis.call('DEL', KEYS[1])
if redis.call('GET', KEYS[2]) == ARGV[1] then
	redis.call('DEL', KEYS[2])
end
redis.call('SREM', KEYS[3], ARGV[1])
return 1
`)

func (r *RedisGuildRepository) Insert(ctx context.Context, guild *model.Guild) error {
	if guild.Model == "" {
		guild.Model = model.ModelGuild
	}

	stored := *guild
	stored.ID = model.NewID()
	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to encode guild: %w", err)
	}

	keys := []string{r.nameKey(guild.GuildName), r.docKey(stored.ID), r.setKey()}
	ok, err := insertScript.Run(ctx, r.client, keys, stored.ID, data, r.docKey("")).Int()
	if err != nil {
		return fmt.Errorf("failed to insert guild: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, guild.GuildName)
	}

	guild.ID = stored.ID
	return nil
}

// DeleteByID reads the document, then removes it with its indexes in one script.
// If another caller removed it in between, the script is a no-op and ErrNotFound is returned.
func (r *RedisGuildRepository) DeleteByID(ctx context.Context, id string) (*model.Guild, error) {
	raw, err := r.client.Get(ctx, r.docKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete guild %s: %w", id, err)
	}

	guild, err := decodeGuild(raw)
	if err != nil {
		return nil, err
	}

	keys := []string{r.docKey(id), r.nameKey(guild.GuildName), r.setKey()}
	ok, err := deleteScript.Run(ctx, r.client, keys, id, raw).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to delete guild %s: %w", id, err)
	}
	if ok == 0 {
		return nil, ErrNotFound
	}
	return guild, nil
}

func (r *RedisGuildRepository) DeleteAll(ctx context.Context) (int64, error) {
	ids, err := r.client.SMembers(ctx, r.setKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list guild ids: %w", err)
	}

	var deleted int64
	for _, id := range ids {
		if _, err := r.DeleteByID(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				_ = r.client.SRem(ctx, r.setKey(), id).Err()
				continue
			}
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (r *RedisGuildRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decodeGuild(raw string) (*model.Guild, error) {
	var guild model.Guild
	if err := json.Unmarshal([]byte(raw), &guild); err != nil {
		return nil, fmt.Errorf("failed to decode guild: %w", err)
	}
	return &guild, nil
}
