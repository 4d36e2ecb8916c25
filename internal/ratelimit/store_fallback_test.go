package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails on demand so tests can drive the breaker.
type flakyStore struct {
	inner   Store
	failing bool
	calls   int
}

func (s *flakyStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.calls++
	if s.failing {
		return nil, errors.New("connection refused")
	}
	return s.inner.Allow(ctx, key, limit, window)
}

func (s *flakyStore) Reset(ctx context.Context, key string) error {
	return s.inner.Reset(ctx, key)
}

func TestFallbackStoreDegradesAndRecovers(t *testing.T) {
	primary := &flakyStore{inner: NewInMemoryStore()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewFallbackStore(primary, NewInMemoryStore(), logger)
	ctx := context.Background()

	result, err := store.Allow(ctx, "k", 100, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	// Three consecutive failures trip the breaker; requests still succeed
	// through the fallback.
	primary.failing = true
	for i := 0; i < 3; i++ {
		result, err = store.Allow(ctx, "k", 100, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}

	// While open, the primary is only probed, not trusted.
	primaryCalls := primary.calls
	_, err = store.Allow(ctx, "k", 100, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, primaryCalls+1, primary.calls)

	// Two healthy probes close the circuit again.
	primary.failing = false
	for i := 0; i < 2; i++ {
		_, err = store.Allow(ctx, "k", 100, time.Minute)
		require.NoError(t, err)
	}

	before := primary.calls
	result, err = store.Allow(ctx, "other", 100, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, before+1, primary.calls, "primary should serve again")
}

func TestFallbackStoreStillLimits(t *testing.T) {
	primary := &flakyStore{inner: NewInMemoryStore(), failing: true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := NewFallbackStore(primary, NewInMemoryStore(), logger)
	ctx := context.Background()

	var denied bool
	for i := 0; i < 5; i++ {
		result, err := store.Allow(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		if !result.Allowed {
			denied = true
		}
	}
	assert.True(t, denied, "fallback must still enforce the limit")
}
