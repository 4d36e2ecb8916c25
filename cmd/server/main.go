// Command server wires the hearth identity-consent service: stores, the
// transaction boundary, audit fan-out, and the HTTP surface.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adminhandler "hearth/internal/admin/handler"
	adminservice "hearth/internal/admin/service"
	authhandler "hearth/internal/auth/handler"
	authservice "hearth/internal/auth/service"
	"hearth/internal/claim"
	claimhandler "hearth/internal/claim/handler"
	claimservice "hearth/internal/claim/service"
	jwttoken "hearth/internal/jwt_token"
	"hearth/internal/mention"
	mentionhandler "hearth/internal/mention/handler"
	mentionservice "hearth/internal/mention/service"
	"hearth/internal/note"
	notehandler "hearth/internal/note/handler"
	noteservice "hearth/internal/note/service"
	"hearth/internal/person"
	"hearth/internal/platform/config"
	"hearth/internal/platform/db"
	"hearth/internal/platform/httpserver"
	"hearth/internal/platform/logger"
	"hearth/internal/platform/metrics"
	platformredis "hearth/internal/platform/redis"
	"hearth/internal/ratelimit"
	httptransport "hearth/internal/transport/http"
	id "hearth/pkg/domain"
	"hearth/pkg/platform/audit"
	"hearth/pkg/platform/audit/kafka"
	auditmemory "hearth/pkg/platform/audit/store/memory"
	auditpostgres "hearth/pkg/platform/audit/store/postgres"
	auditworker "hearth/pkg/platform/audit/worker"
)

type stores struct {
	persons  personStores
	notes    note.Store
	mentions mention.Store
	claims   claimservice.TokenStore
	boundary claimservice.Boundary
	audit    audit.Store
	outbox   kafka.OutboxSource
}

// personStores is the union of the per-service person store interfaces; both
// concrete stores satisfy it.
type personStores interface {
	claimservice.PersonStore
	mentionservice.PersonStore
	noteservice.PersonStore
	adminservice.PersonStore
}

// asyncTrail hands writes to the audit worker's inbox so request handling
// never waits on the trail, while reads go straight to the backing store.
type asyncTrail struct {
	inbox chan<- audit.Event
	store audit.Store
}

func (a *asyncTrail) Append(ctx context.Context, event audit.Event) error {
	select {
	case a.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *asyncTrail) ListByPerson(ctx context.Context, personID id.PersonID) ([]audit.Event, error) {
	return a.store.ListByPerson(ctx, personID)
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	inbox := make(chan audit.Event, 256)
	trailWorker := auditworker.NewWorker(inbox, log, st.audit)
	go func() {
		if err := trailWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()
	auditor := audit.NewPublisher(&asyncTrail{inbox: inbox, store: st.audit})

	if len(cfg.KafkaBrokers) > 0 && st.outbox != nil {
		publisher, err := kafka.NewPublisher(ctx, cfg.KafkaBrokers, cfg.AuditTopic, st.outbox, log)
		if err != nil {
			log.Error("failed to connect audit publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		go func() {
			if err := publisher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit publisher stopped", "error", err)
			}
		}()
	}

	limiterStore, err := buildLimiterStore(cfg, log)
	if err != nil {
		log.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	limiter := ratelimit.NewLimiter(limiterStore, cfg.ClaimRatePerMinute, time.Minute)

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, "hearth", "hearth")

	handlers := httptransport.Handlers{
		Auth: authhandler.New(
			authservice.NewService(tokens, cfg.AdminEmail, cfg.AdminPasswordHash, auditor, log), log),
		Claim: claimhandler.New(
			claimservice.NewService(st.claims, st.persons, st.boundary, auditor, m, log,
				cfg.BaseURL, cfg.ClaimTokenTTL), log),
		Mention: mentionhandler.New(
			mentionservice.NewService(st.mentions, st.persons, st.boundary, auditor, m, log), log),
		Note: notehandler.New(
			noteservice.NewService(st.notes, st.persons, st.mentions, st.boundary, m, log), log),
		Admin: adminhandler.New(
			adminservice.NewService(st.persons, st.boundary, auditor, st.audit, log), log),
	}
	router := httptransport.NewRouter(handlers, httptransport.Deps{
		Tokens:       tokens,
		ClaimLimiter: limiter,
		Auditor:      auditor,
		Metrics:      m,
		Logger:       log,
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("hearth listening", "addr", cfg.Addr, "fixture_mode", cfg.FixtureMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// buildStores picks the storage backend: in-memory for fixture mode, else
// PostgreSQL with claim consume and preference writes sharing transactions.
func buildStores(ctx context.Context, cfg config.Server) (*stores, func(), error) {
	if cfg.FixtureMode || cfg.DatabaseURL == "" {
		return &stores{
			persons:  person.NewInMemoryStore(),
			notes:    note.NewInMemoryStore(),
			mentions: mention.NewInMemoryStore(),
			claims:   claim.NewInMemoryStore(),
			boundary: claimservice.NewMemoryBoundary(),
			audit:    auditmemory.NewInMemoryStore(),
		}, func() {}, nil
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	auditStore := auditpostgres.New(sqlDB)
	return &stores{
		persons:  person.NewPostgres(sqlDB),
		notes:    note.NewPostgres(sqlDB),
		mentions: mention.NewPostgres(sqlDB),
		claims:   claim.NewPostgres(sqlDB),
		boundary: claimservice.NewSQLBoundary(sqlDB),
		audit:    auditStore,
		outbox:   auditStore,
	}, func() { _ = sqlDB.Close() }, nil
}

func buildLimiterStore(cfg config.Server, log *slog.Logger) (ratelimit.Store, error) {
	client, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Info("redis not configured, claim rate limiter runs in-memory")
		return ratelimit.NewInMemoryStore(), nil
	}
	return ratelimit.NewFallbackStore(
		ratelimit.NewRedisStore(client),
		ratelimit.NewInMemoryStore(),
		log,
	), nil
}
