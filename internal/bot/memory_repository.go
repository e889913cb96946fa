package bot

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository. Intended
// for tests and single-host deployments without a database.
type InMemoryRepository struct {
	mu     sync.Mutex
	bots   map[int64]*Bot
	nextID int64
}

// NewInMemoryRepository creates a new in-memory bot repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		bots:   make(map[int64]*Bot),
		nextID: 1,
	}
}

// Get retrieves a bot by id.
func (r *InMemoryRepository) Get(_ context.Context, id int64) (*Bot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bots[id]
	if !ok {
		return nil, ErrBotNotFound
	}
	cpy := *b
	return &cpy, nil
}

// GetByName retrieves a bot by name.
func (r *InMemoryRepository) GetByName(_ context.Context, name string) (*Bot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.bots {
		if b.Name == name {
			cpy := *b
			return &cpy, nil
		}
	}
	return nil, ErrBotNotFound
}

// List retrieves every bot ordered by last update then id.
func (r *InMemoryRepository) List(_ context.Context) ([]*Bot, error) {
	return r.list(func(*Bot) bool { return true })
}

// ListByState retrieves bots in one state, oldest-updated first, ties broken
// by lowest id.
func (r *InMemoryRepository) ListByState(_ context.Context, state State) ([]*Bot, error) {
	return r.list(func(b *Bot) bool { return b.State == state })
}

func (r *InMemoryRepository) list(match func(*Bot) bool) ([]*Bot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var bots []*Bot
	for _, b := range r.bots {
		if match(b) {
			cpy := *b
			bots = append(bots, &cpy)
		}
	}
	sort.Slice(bots, func(i, j int) bool {
		if !bots[i].UpdatedAt.Equal(bots[j].UpdatedAt) {
			return bots[i].UpdatedAt.Before(bots[j].UpdatedAt)
		}
		return bots[i].ID < bots[j].ID
	})
	return bots, nil
}

// Create inserts a new bot record.
func (r *InMemoryRepository) Create(_ context.Context, b *Bot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	b.ID = r.nextID
	r.nextID++
	if b.State == "" {
		b.State = StateStandby
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	cpy := *b
	r.bots[b.ID] = &cpy
	return nil
}

// UpdateAtomic applies mutate while holding the store lock, so each update
// is a single atomic read-modify-write.
func (r *InMemoryRepository) UpdateAtomic(_ context.Context, id int64, mutate func(*Bot) error) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bots[id]
	if !ok {
		return false, ErrBotNotFound
	}

	cpy := *b
	if err := mutate(&cpy); err != nil {
		if errors.Is(err, ErrSkipUpdate) {
			return false, nil
		}
		return false, err
	}
	cpy.Version = b.Version + 1
	r.bots[id] = &cpy
	return true, nil
}

// Stats returns aggregate pool counts.
func (r *InMemoryRepository) Stats(_ context.Context) (*PoolStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &PoolStats{}
	for _, b := range r.bots {
		stats.Total++
		switch b.State {
		case StateActive:
			stats.Active++
		case StateStandby:
			stats.Standby++
		case StateRetired:
			stats.Retired++
		}
		stats.TotalFailures += b.Failures
		if stats.LastUpdated == nil || b.UpdatedAt.After(*stats.LastUpdated) {
			ts := b.UpdatedAt
			stats.LastUpdated = &ts
		}
	}
	return stats, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
