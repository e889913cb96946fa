// Package lock provides cross-process exclusivity so at most one monitor
// instance sweeps a pool at a time.
package lock

import "context"

// Locker guards the sweep loop. TryAcquire never blocks waiting for the
// holder; a false return means another instance owns the lock.
type Locker interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Nop is a locker that always succeeds, for single-instance deployments.
type Nop struct{}

func (Nop) TryAcquire(context.Context) (bool, error) { return true, nil }
func (Nop) Release(context.Context) error            { return nil }
