package bot

import (
	"context"
	"errors"
)

// ErrBotNotFound is returned when a bot does not exist.
var ErrBotNotFound = errors.New("bot not found")

// ErrSkipUpdate can be returned from an UpdateAtomic mutator to abandon the
// update without error; the call reports committed=false. Used by the
// failover engine when a concurrent worker already performed the transition.
var ErrSkipUpdate = errors.New("skip update")

// Repository defines storage for monitored bots. Every mutation goes through
// UpdateAtomic so concurrent sweep workers and manual swap requests cannot
// clobber each other's writes.
type Repository interface {
	// Get retrieves a bot by id.
	Get(ctx context.Context, id int64) (*Bot, error)

	// GetByName retrieves a bot by its unique name.
	GetByName(ctx context.Context, name string) (*Bot, error)

	// List retrieves every bot, ordered by last update then id.
	List(ctx context.Context) ([]*Bot, error)

	// ListByState retrieves bots in the given state, ordered by last update
	// ascending then id ascending. The ordering is what makes standby
	// selection FIFO and deterministic.
	ListByState(ctx context.Context, state State) ([]*Bot, error)

	// Create inserts a new bot record.
	Create(ctx context.Context, b *Bot) error

	// UpdateAtomic applies mutate to the bot inside a single atomic
	// read-modify-write. Returns committed=false without error when the
	// mutator declined with ErrSkipUpdate.
	UpdateAtomic(ctx context.Context, id int64, mutate func(*Bot) error) (bool, error)

	// Stats returns aggregate pool counts.
	Stats(ctx context.Context) (*PoolStats, error)
}
