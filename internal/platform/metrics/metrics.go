package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ClaimsConsumed      prometheus.Counter
	ClaimsRejected      prometheus.Counter
	MentionsPromoted    prometheus.Counter
	MentionsIgnored     prometheus.Counter
	PersonsCreated      prometheus.Counter
	ReferencesProjected prometheus.Counter
	InvariantViolations prometheus.Counter
	RateLimited         prometheus.Counter
	RequestLatency      *prometheus.HistogramVec
}

// New creates all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all metrics on the given registry. Tests pass a fresh
// registry so parallel suites never collide on registration.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ClaimsConsumed: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearth_claims_consumed_total",
			Help: "Total number of claim tokens consumed successfully",
		}),
		ClaimsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearth_claims_rejected_total",
			Help: "Total number of claim consumptions rejected (expired, used, or unknown tokens)",
		}),
		MentionsPromoted: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearth_mentions_promoted_total",
			Help: "Total number of mentions promoted to person references",
		}),
		MentionsIgnored: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearth_mentions_ignored_total",
			Help: "Total number of mentions explicitly ignored",
		}),
		PersonsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearth_persons_created_total",
			Help: "Total number of person records created",
		}),
		ReferencesProjected: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearth_references_projected_total",
			Help: "Total number of references passed through the redaction projector",
		}),
		InvariantViolations: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearth_invariant_violations_total",
			Help: "Total number of privacy invariant violations detected (should stay zero)",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "hearth_rate_limited_total",
			Help: "Total number of requests rejected by the claim rate limiter",
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hearth_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// ObserveLatency records a request duration for a route/status pair.
func (m *Metrics) ObserveLatency(route, status string, d time.Duration) {
	m.RequestLatency.WithLabelValues(route, status).Observe(d.Seconds())
}
