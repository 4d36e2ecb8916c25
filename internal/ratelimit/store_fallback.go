package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"hearth/pkg/platform/circuit"
)

// FallbackStore routes limit checks to a primary store (Redis) and degrades
// to a secondary (in-memory) while the primary is unhealthy. Degrading keeps
// the claim endpoint throttled per node instead of unthrottled or down.
type FallbackStore struct {
	primary   Store
	secondary Store
	breaker   *circuit.Breaker
	logger    *slog.Logger
}

func NewFallbackStore(primary, secondary Store, logger *slog.Logger) *FallbackStore {
	return &FallbackStore{
		primary:   primary,
		secondary: secondary,
		breaker:   circuit.New("ratelimit", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(2)),
		logger:    logger,
	}
}

func (s *FallbackStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if s.breaker.IsOpen() {
		// Probe the primary so the circuit can close again, but serve the
		// request from the fallback either way.
		if _, err := s.primary.Allow(ctx, key, limit, window); err != nil {
			s.breaker.RecordFailure()
		} else if usePrimary, change := s.breaker.RecordSuccess(); usePrimary {
			if change.Closed {
				s.logger.Info("rate limiter primary recovered", "breaker", s.breaker.Name())
			}
		}
		return s.secondary.Allow(ctx, key, limit, window)
	}

	result, err := s.primary.Allow(ctx, key, limit, window)
	if err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.logger.Warn("rate limiter primary unhealthy, degrading to in-memory",
				"breaker", s.breaker.Name(), "error", err)
		}
		return s.secondary.Allow(ctx, key, limit, window)
	}
	s.breaker.RecordSuccess()
	return result, nil
}

func (s *FallbackStore) Reset(ctx context.Context, key string) error {
	_ = s.secondary.Reset(ctx, key)
	return s.primary.Reset(ctx, key)
}
