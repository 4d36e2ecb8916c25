package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"hearth/internal/platform/metrics"
	"hearth/pkg/platform/audit"
	"hearth/pkg/requestcontext"
)

// Auditor records limiter trips for the security trail.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Middleware limits requests per client IP. On a trip it answers 429 with
// Retry-After; limiter store failures fail open, because blocking the claim
// flow on a Redis outage punishes legitimate recipients.
func Middleware(limiter *Limiter, auditor Auditor, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := requestcontext.ClientIP(ctx)
			if key == "" {
				key = r.RemoteAddr
			}

			result, err := limiter.Allow(ctx, key)
			if err != nil {
				logger.ErrorContext(ctx, "rate limiter unavailable, failing open",
					"error", err,
					"request_id", requestcontext.RequestID(ctx))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				m.RateLimited.Inc()
				logger.WarnContext(ctx, "rate limit exceeded",
					"client_ip", key,
					"request_id", requestcontext.RequestID(ctx))
				if err := auditor.Emit(ctx, audit.Event{
					Timestamp: requestcontext.Now(ctx),
					Action:    string(audit.ActionRateLimited),
					ActorID:   "anonymous",
					Reason:    "claim endpoint limit",
					RequestID: requestcontext.RequestID(ctx),
					Device:    requestcontext.UserAgent(ctx),
				}); err != nil {
					logger.ErrorContext(ctx, "failed to audit rate limit trip", "error", err)
				}

				retryAfter := int(result.ResetAt.Sub(requestcontext.Now(ctx)).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","error_description":"too many requests"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
