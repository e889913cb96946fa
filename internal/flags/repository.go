package flags

import (
	"context"
	"errors"
)

// ErrFlagNotFound is returned when a flag has no stored value.
var ErrFlagNotFound = errors.New("flag not found")

// Repository defines storage for runtime flags.
type Repository interface {
	// GetFlag retrieves a single flag by key.
	GetFlag(ctx context.Context, key string) (*Flag, error)

	// GetAllFlags retrieves all stored flags.
	GetAllFlags(ctx context.Context) (map[string]*Flag, error)

	// SetFlag creates or updates a flag.
	SetFlag(ctx context.Context, flag *Flag) error
}
