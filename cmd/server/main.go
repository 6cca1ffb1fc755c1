package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"rxledger/internal/access"
	audithandler "rxledger/internal/audit/handler"
	"rxledger/internal/events"
	"rxledger/internal/eventstore"
	"rxledger/internal/eventstore/publisher"
	"rxledger/internal/eventstore/query"
	"rxledger/internal/eventstore/replayer"
	pgstore "rxledger/internal/eventstore/store/postgres"
	"rxledger/internal/inventory"
	"rxledger/internal/jwtauth"
	"rxledger/internal/platform/config"
	"rxledger/internal/platform/httpserver"
	"rxledger/internal/platform/logger"
	"rxledger/internal/platform/metrics"
	"rxledger/internal/platform/postgres"
	"rxledger/internal/platform/redis"
	"rxledger/internal/projection"
	"rxledger/pkg/platform/tx"
)

// main wires the event store, its listeners, and the audit HTTP surface.
// Business rules live in the internal packages; main only assembles them.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := pgstore.Migrate(ctx, db); err != nil {
		log.Error("failed to migrate event store schema", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	store := pgstore.New(db)
	bus := eventstore.NewBus(log, m)

	registry := eventstore.NewRegistry()
	events.RegisterAll(registry)

	pub := publisher.New(store, bus, log, m, cfg.Environment)
	rep := replayer.New(store, registry, bus, log, m)
	queries := query.New(store, log)
	txManager := tx.NewManager(db).WithTimeout(cfg.TxTimeout)

	stockListener := inventory.NewListener(inventory.NewInMemoryStock(), log)
	stockListener.Register(bus)

	var activity *projection.RecentActivity
	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		activity = projection.NewRecentActivity(rdb.Client, log, 0)
		activity.Register(bus, registry)
	} else {
		log.Info("redis not configured, activity feed disabled")
	}

	tokens := jwtauth.NewService(cfg.JWTSigningKey, "rxledger", "rxledger")
	recorder := access.NewRecorder(txManager, pub, log)
	onAuth := func(r *http.Request, claims *jwtauth.Claims) {
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return
		}
		recorder.RecordSessionSeen(r.Context(), userID, claims.SessionID, claims.Subject)
	}

	router := chi.NewRouter()
	audithandler.New(queries, rep, activity, tokens, onAuth, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting rxledger", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}

		// Let in-flight subscriber goroutines finish before exiting.
		bus.Wait()
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("rxledger stopped")
}
