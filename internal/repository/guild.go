package repository

import (
	"context"
	"errors"

	"github.com/Gopher0727/Nexus/internal/model"
)

var (
	ErrNotFound  = errors.New("guild not found")
	ErrDuplicate = errors.New("guild name already exists")
	ErrInvalidID = errors.New("invalid guild id")
)

// IGuildRepository defines the persistence operations over guild records.
// Implementations assign the storage ID on Insert and report a violated
// name uniqueness constraint as ErrDuplicate.
type IGuildRepository interface {
	FindAll(ctx context.Context) ([]*model.Guild, error)
	FindByID(ctx context.Context, id string) (*model.Guild, error)
	FindByName(ctx context.Context, name string) ([]*model.Guild, error)
	Insert(ctx context.Context, guild *model.Guild) error
	DeleteByID(ctx context.Context, id string) (*model.Guild, error)
	DeleteAll(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
