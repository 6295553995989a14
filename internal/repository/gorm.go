package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Gopher0727/Nexus/internal/model"
)

// GormGuildRepository stores guilds in a SQL table through GORM.
// It backs both the postgres and the sqlite drivers.
type GormGuildRepository struct {
	db *gorm.DB
}

func NewGormGuildRepository(db *gorm.DB) *GormGuildRepository {
	return &GormGuildRepository{db: db}
}

func (r *GormGuildRepository) FindAll(ctx context.Context) ([]*model.Guild, error) {
	guilds := make([]*model.Guild, 0)
	if err := r.db.WithContext(ctx).Find(&guilds).Error; err != nil {
		return nil, fmt.Errorf("failed to query guilds: %w", err)
	}
	return guilds, nil
}

func (r *GormGuildRepository) FindByID(ctx context.Context, id string) (*model.Guild, error) {
	var guild model.Guild
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&guild).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find guild %s: %w", id, err)
	}
	return &guild, nil
}

func (r *GormGuildRepository) FindByName(ctx context.Context, name string) ([]*model.Guild, error) {
	guilds := make([]*model.Guild, 0)
	if err := r.db.WithContext(ctx).Where("guild_name = ?", name).Find(&guilds).Error; err != nil {
		return nil, fmt.Errorf("failed to query guilds by name: %w", err)
	}
	return guilds, nil
}

// Insert assigns a new ObjectID-style key so ids look the same on every driver.
func (r *GormGuildRepository) Insert(ctx context.Context, guild *model.Guild) error {
	guild.ID = model.NewID()
	if guild.Model == "" {
		guild.Model = model.ModelGuild
	}

	if err := r.db.WithContext(ctx).Create(guild).Error; err != nil {
		guild.ID = ""
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", ErrDuplicate, guild.GuildName)
		}
		return fmt.Errorf("failed to insert guild: %w", err)
	}
	return nil
}

// DeleteByID 在事务中先查询再删除，保证返回的记录就是被删除的那一条
func (r *GormGuildRepository) DeleteByID(ctx context.Context, id string) (*model.Guild, error) {
	var guild model.Guild
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&guild).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Guild{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete guild %s: %w", id, err)
	}
	return &guild, nil
}

func (r *GormGuildRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.Guild{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete guilds: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormGuildRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
