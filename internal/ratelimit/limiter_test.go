package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hearth/internal/platform/metrics"
	"hearth/pkg/platform/audit"
	auditmemory "hearth/pkg/platform/audit/store/memory"
	id "hearth/pkg/domain"
	"hearth/pkg/requestcontext"
)

func TestInMemoryStoreAllow(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := store.Allow(ctx, "ip:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should pass", i)
		assert.Equal(t, 3-(i+1), result.Remaining)
	}

	result, err := store.Allow(ctx, "ip:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)

	// A different key gets its own window.
	other, err := store.Allow(ctx, "ip:10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestInMemoryStoreWindowSlides(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	result, err := store.Allow(ctx, "k", 1, 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = store.Allow(ctx, "k", 1, 10*time.Millisecond)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	time.Sleep(15 * time.Millisecond)

	result, err = store.Allow(ctx, "k", 1, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "window should have expired")
}

func TestInMemoryStoreReset(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx, "k"))

	result, err := store.Allow(ctx, "k", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMiddleware(t *testing.T) {
	trail := auditmemory.NewInMemoryStore()
	limiter := NewLimiter(NewInMemoryStore(), 2, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWith(prometheus.NewRegistry())

	handler := Middleware(limiter, audit.NewPublisher(trail), m, logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/claim/x", nil)
		ctx := requestcontext.WithClientMetadata(req.Context(), "203.0.113.9", "test-agent")
		ctx = requestcontext.WithTime(ctx, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(ctx))
		return rec
	}

	require.Equal(t, http.StatusOK, do().Code)
	require.Equal(t, http.StatusOK, do().Code)

	rec := do()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	events, err := trail.ListByPerson(context.Background(), id.PersonID{})
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, string(audit.ActionRateLimited), events[len(events)-1].Action)
}

type brokenStore struct{}

func (brokenStore) Allow(context.Context, string, int, time.Duration) (*Result, error) {
	return nil, context.DeadlineExceeded
}
func (brokenStore) Reset(context.Context, string) error { return nil }

func TestMiddlewareFailsOpen(t *testing.T) {
	limiter := NewLimiter(brokenStore{}, 1, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWith(prometheus.NewRegistry())

	handler := Middleware(limiter, audit.NewPublisher(auditmemory.NewInMemoryStore()), m, logger)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodPost, "/claim/x", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
