package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/Nexus/internal/apperr"
	"github.com/Gopher0727/Nexus/internal/model"
	"github.com/Gopher0727/Nexus/internal/repository"
	logger "github.com/Gopher0727/Nexus/middleware/log"
)

// EventPublisher receives lifecycle events after a mutation succeeds.
type EventPublisher interface {
	Publish(ctx context.Context, event model.GuildEvent) error
}

// IGuildService defines the guild operations exposed to the HTTP layer.
// Every method returns either a value or an error; classified errors are *apperr.Error,
// anything else is an internal fault.
type IGuildService interface {
	ListGuilds(ctx context.Context) ([]*model.Guild, error)
	GetGuild(ctx context.Context, id string) (*model.Guild, error)
	CreateGuild(ctx context.Context, req *model.CreateGuildRequest) (*model.Guild, error)
	DeleteGuild(ctx context.Context, id string) (*model.Guild, error)
	DeleteAllGuilds(ctx context.Context) (int64, error)
}

// GuildService implements the IGuildService interface
type GuildService struct {
	repo   repository.IGuildRepository
	events EventPublisher
	log    *logger.Logger
	now    func() time.Time
}

// NewGuildService creates a new IGuildService instance.
// events and log may be nil.
func NewGuildService(repo repository.IGuildRepository, events EventPublisher, log *logger.Logger) *GuildService {
	if log == nil {
		log = logger.NewNop()
	}
	return &GuildService{
		repo:   repo,
		events: events,
		log:    log.Named("guild"),
		now:    time.Now,
	}
}

// ListGuilds returns every guild in store order.
func (s *GuildService) ListGuilds(ctx context.Context) ([]*model.Guild, error) {
	s.log.InfoContext(ctx, "list guilds requested")

	guilds, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list guilds: %w", err)
	}
	if guilds == nil {
		guilds = []*model.Guild{}
	}
	return guilds, nil
}

// GetGuild looks a guild up by storage id.
func (s *GuildService) GetGuild(ctx context.Context, id string) (*model.Guild, error) {
	s.log.InfoContext(ctx, "get guild requested", zap.String("id", id))

	if !model.ValidID(id) {
		return nil, apperr.InvalidID(id)
	}
	id = model.NormalizeID(id)

	guild, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("There is no guild with the ID %s", id)
		}
		return nil, fmt.Errorf("failed to get guild: %w", err)
	}
	return guild, nil
}

// CreateGuild validates the payload, rejects a taken name, then inserts.
// The name check is advisory; the store's unique index settles races.
func (s *GuildService) CreateGuild(ctx context.Context, req *model.CreateGuildRequest) (*model.Guild, error) {
	s.log.InfoContext(ctx, "create guild requested")

	guild, err := model.ValidateCreate(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByName(ctx, guild.GuildName)
	if err != nil {
		return nil, fmt.Errorf("failed to check guild name: %w", err)
	}
	if len(existing) > 0 {
		return nil, apperr.AlreadyExists("%s guild already exists!", guild.GuildName)
	}

	if err := s.repo.Insert(ctx, guild); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Wrap(err, http.StatusBadRequest, apperr.CodeAlreadyExists,
				"%s guild already exists!", guild.GuildName)
		}
		return nil, fmt.Errorf("failed to create guild: %w", err)
	}

	s.log.InfoContext(ctx, "guild created",
		zap.String("id", guild.ID),
		zap.String("guild_name", guild.GuildName),
		zap.String("owner", guild.Owner),
	)
	s.publish(ctx, model.GuildEvent{
		Type:      model.EventGuildCreated,
		GuildID:   guild.ID,
		GuildName: guild.GuildName,
	})
	return guild, nil
}

// DeleteGuild removes one guild and returns the removed record.
func (s *GuildService) DeleteGuild(ctx context.Context, id string) (*model.Guild, error) {
	s.log.InfoContext(ctx, "delete guild requested", zap.String("id", id))

	if !model.ValidID(id) {
		return nil, apperr.InvalidID(id)
	}
	id = model.NormalizeID(id)

	guild, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("No guild with the id %s exists!", id)
		}
		return nil, fmt.Errorf("failed to delete guild: %w", err)
	}

	s.log.InfoContext(ctx, fmt.Sprintf("%s with the id %s was deleted!", guild.GuildName, id))
	s.publish(ctx, model.GuildEvent{
		Type:      model.EventGuildDeleted,
		GuildID:   guild.ID,
		GuildName: guild.GuildName,
	})
	return guild, nil
}

// DeleteAllGuilds wipes the collection and returns how many records were removed.
func (s *GuildService) DeleteAllGuilds(ctx context.Context) (int64, error) {
	s.log.InfoContext(ctx, "delete all guilds requested")

	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete guilds: %w", err)
	}

	s.log.WarnContext(ctx, "all guilds deleted", zap.Int64("count", n))
	s.publish(ctx, model.GuildEvent{
		Type:  model.EventGuildWiped,
		Count: n,
	})
	return n, nil
}

// publish 事件发送失败不影响已经提交的操作，只记录日志
func (s *GuildService) publish(ctx context.Context, event model.GuildEvent) {
	if s.events == nil {
		return
	}
	event.At = s.now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.WarnContext(ctx, "failed to publish guild event",
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}
