package service

import (
	"context"
	"sync"

	"github.com/Gopher0727/Nexus/internal/model"
	"github.com/Gopher0727/Nexus/internal/repository"
)

// spyRepository is an in-memory IGuildRepository that records every call.
type spyRepository struct {
	mu      sync.Mutex
	guilds  map[string]*model.Guild
	order   []string
	calls   []string
	failOn  map[string]error
	hideDup bool // FindByName 永远返回空，用来模拟并发竞争
}

func newSpyRepository() *spyRepository {
	return &spyRepository{
		guilds: make(map[string]*model.Guild),
		failOn: make(map[string]error),
	}
}

func (r *spyRepository) record(call string) error {
	r.calls = append(r.calls, call)
	return r.failOn[call]
}

func (r *spyRepository) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *spyRepository) called(call string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (r *spyRepository) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.guilds)
}

func (r *spyRepository) FindAll(ctx context.Context) ([]*model.Guild, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("FindAll"); err != nil {
		return nil, err
	}
	out := make([]*model.Guild, 0, len(r.order))
	for _, id := range r.order {
		if g, ok := r.guilds[id]; ok {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *spyRepository) FindByID(ctx context.Context, id string) (*model.Guild, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("FindByID"); err != nil {
		return nil, err
	}
	g, ok := r.guilds[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *spyRepository) FindByName(ctx context.Context, name string) ([]*model.Guild, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("FindByName"); err != nil {
		return nil, err
	}
	out := []*model.Guild{}
	if r.hideDup {
		return out, nil
	}
	for _, g := range r.guilds {
		if g.GuildName == name {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *spyRepository) Insert(ctx context.Context, guild *model.Guild) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("Insert"); err != nil {
		return err
	}
	for _, g := range r.guilds {
		if g.GuildName == guild.GuildName {
			return repository.ErrDuplicate
		}
	}
	guild.ID = model.NewID()
	cp := *guild
	r.guilds[guild.ID] = &cp
	r.order = append(r.order, guild.ID)
	return nil
}

func (r *spyRepository) DeleteByID(ctx context.Context, id string) (*model.Guild, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("DeleteByID"); err != nil {
		return nil, err
	}
	g, ok := r.guilds[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.guilds, id)
	return g, nil
}

func (r *spyRepository) DeleteAll(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("DeleteAll"); err != nil {
		return 0, err
	}
	n := int64(len(r.guilds))
	r.guilds = make(map[string]*model.Guild)
	r.order = nil
	return n, nil
}

func (r *spyRepository) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record("Ping")
}

// spyPublisher collects published events.
type spyPublisher struct {
	mu     sync.Mutex
	events []model.GuildEvent
	err    error
}

func (p *spyPublisher) Publish(ctx context.Context, event model.GuildEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}
