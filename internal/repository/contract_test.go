package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/Nexus/internal/model"
)

type contractOptions struct {
	// 并发写入测试，SQLite 单连接下没有意义
	concurrent bool
}

func newGuild(name string) *model.Guild {
	return &model.Guild{
		Model:     model.ModelGuild,
		GuildName: name,
		GuildID:   name + "-ext",
		Owner:     "owner-" + name,
	}
}

// testGuildRepository runs the behaviour every IGuildRepository must share.
// newRepo must return an empty store.
func testGuildRepository(t *testing.T, newRepo func(t *testing.T) IGuildRepository, opts contractOptions) {
	ctx := context.Background()

	t.Run("empty store lists nothing", func(t *testing.T) {
		repo := newRepo(t)

		guilds, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.NotNil(t, guilds)
		assert.Empty(t, guilds)
	})

	t.Run("insert assigns a fresh id and round-trips", func(t *testing.T) {
		repo := newRepo(t)

		g := &model.Guild{GuildName: "Alpha", GuildID: "A1", Owner: "U1", AnnouncementID: "N1"}
		require.NoError(t, repo.Insert(ctx, g))
		assert.True(t, model.ValidID(g.ID))

		other := newGuild("Beta")
		require.NoError(t, repo.Insert(ctx, other))
		assert.NotEqual(t, g.ID, other.ID)

		got, err := repo.FindByID(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, g.ID, got.ID)
		assert.Equal(t, model.ModelGuild, got.Model)
		assert.Equal(t, "Alpha", got.GuildName)
		assert.Equal(t, "A1", got.GuildID)
		assert.Equal(t, "U1", got.Owner)
		assert.Equal(t, "N1", got.AnnouncementID)
	})

	t.Run("find by id of a missing record", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.FindByID(ctx, model.NewID())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("find by name", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Insert(ctx, newGuild("Alpha")))
		require.NoError(t, repo.Insert(ctx, newGuild("Beta")))

		found, err := repo.FindByName(ctx, "Alpha")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Alpha", found[0].GuildName)

		none, err := repo.FindByName(ctx, "Gamma")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})

	t.Run("duplicate name is rejected by the store", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Insert(ctx, newGuild("Alpha")))

		dup := newGuild("Alpha")
		err := repo.Insert(ctx, dup)
		assert.ErrorIs(t, err, ErrDuplicate)
		assert.Empty(t, dup.ID)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("delete by id removes exactly that record", func(t *testing.T) {
		repo := newRepo(t)
		keep := newGuild("Keep")
		drop := newGuild("Drop")
		require.NoError(t, repo.Insert(ctx, keep))
		require.NoError(t, repo.Insert(ctx, drop))

		removed, err := repo.DeleteByID(ctx, drop.ID)
		require.NoError(t, err)
		assert.Equal(t, drop.ID, removed.ID)
		assert.Equal(t, "Drop", removed.GuildName)

		_, err = repo.FindByID(ctx, drop.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, keep.ID, all[0].ID)

		// 名称被释放后可以重新创建
		require.NoError(t, repo.Insert(ctx, newGuild("Drop")))
	})

	t.Run("delete of a missing id leaves the store unchanged", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Insert(ctx, newGuild("Alpha")))

		_, err := repo.DeleteByID(ctx, model.NewID())
		assert.ErrorIs(t, err, ErrNotFound)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("delete all reports the removed count", func(t *testing.T) {
		repo := newRepo(t)
		for _, name := range []string{"A", "B", "C"} {
			require.NoError(t, repo.Insert(ctx, newGuild(name)))
		}

		n, err := repo.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		n, err = repo.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newRepo(t).Ping(ctx))
	})

	if !opts.concurrent {
		return
	}

	t.Run("concurrent inserts of one name persist exactly one", func(t *testing.T) {
		repo := newRepo(t)

		const workers = 16
		var wg sync.WaitGroup
		var ok, dup atomic.Int32
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.Insert(ctx, newGuild("Racy"))
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, ErrDuplicate):
					dup.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), ok.Load())
		assert.Equal(t, int32(workers-1), dup.Load())

		found, err := repo.FindByName(ctx, "Racy")
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})
}
