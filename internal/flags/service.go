package flags

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the flag service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger
	// CacheTTL bounds how stale a cached flag read may be. Default: 1 minute.
	CacheTTL time.Duration
}

// Service provides cached access to runtime flags. A repository miss falls
// back to the built-in default, so an empty flag table behaves sensibly.
type Service struct {
	repo     Repository
	logger   zerolog.Logger
	cacheTTL time.Duration

	mu       sync.RWMutex
	cache    map[string]*Flag
	cachedAt time.Time
}

// NewService creates a flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}
	return &Service{
		repo:     cfg.Repository,
		logger:   cfg.Logger,
		cacheTTL: cacheTTL,
		cache:    make(map[string]*Flag),
	}
}

// GetFlag returns the flag for key, from cache when fresh.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	s.mu.RLock()
	fresh := time.Since(s.cachedAt) < s.cacheTTL
	cached, ok := s.cache[key]
	s.mu.RUnlock()

	if fresh && ok {
		return cached
	}
	s.refresh(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[key]
}

// GetAllFlags returns every well-known flag with its effective value.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	result := make(map[string]*Flag)
	for key, def := range Defaults() {
		if f := s.GetFlag(ctx, key); f != nil {
			result[key] = f
		} else {
			result[key] = &Flag{Key: key, Value: def}
		}
	}
	return result
}

// SetFlag persists a flag and invalidates the cache.
func (s *Service) SetFlag(ctx context.Context, flag *Flag) error {
	if err := s.repo.SetFlag(ctx, flag); err != nil {
		return err
	}
	s.InvalidateCache()
	return nil
}

// InvalidateCache drops the cached flag set.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Flag)
	s.cachedAt = time.Time{}
}

func (s *Service) refresh(ctx context.Context) {
	stored, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("flag refresh failed, serving defaults")
		stored = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Flag)
	for k, f := range stored {
		s.cache[k] = f
	}
	s.cachedAt = time.Now()
}

func (s *Service) boolFlag(ctx context.Context, key string, defaultValue bool) bool {
	if s == nil || s.repo == nil {
		return defaultValue
	}
	return s.GetFlag(ctx, key).BoolValue(defaultValue)
}

// IsProbeEnabled reports whether the active probe should run.
func (s *Service) IsProbeEnabled(ctx context.Context) bool {
	return s.boolFlag(ctx, FlagProbeEnabled, true)
}

// ShouldDeleteProbeMessage reports whether probe messages are cleaned up.
func (s *Service) ShouldDeleteProbeMessage(ctx context.Context) bool {
	return s.boolFlag(ctx, FlagProbeDeleteMessage, false)
}

// AlertsEnabled reports whether operator alerts may be sent.
func (s *Service) AlertsEnabled(ctx context.Context) bool {
	return s.boolFlag(ctx, FlagAlertsEnabled, true)
}

// WebhookRequireMatch reports whether the webhook checker enforces URL match.
func (s *Service) WebhookRequireMatch(ctx context.Context) bool {
	return s.boolFlag(ctx, FlagWebhookRequireMatch, false)
}
