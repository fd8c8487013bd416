package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lunastore/storefront/api/routes"
	"github.com/lunastore/storefront/internal/cart"
	"github.com/lunastore/storefront/internal/checkout"
	"github.com/lunastore/storefront/internal/gateway"
	"github.com/lunastore/storefront/internal/persist"
	"github.com/lunastore/storefront/internal/reconcile"
	"github.com/lunastore/storefront/pkg/config"
	"github.com/lunastore/storefront/pkg/env"
	"github.com/lunastore/storefront/pkg/logger"
	"github.com/lunastore/storefront/pkg/metrics"
	"github.com/lunastore/storefront/pkg/session"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewCartSyncMetrics(registry)

	persister, closePersister, err := newPersister(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap cart storage", err)
		os.Exit(1)
	}
	defer closePersister()

	store := cart.NewStore(persister, logg)
	if lines, err := persister.LoadLines(context.Background()); err != nil {
		logg.Warn(context.Background(), "failed to restore persisted cart, starting empty")
	} else if len(lines) > 0 {
		store.Restore(lines)
	}

	sess := session.NewManager()

	gw, err := gateway.NewClient(cfg.Gateway, sess, logg, syncMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart gateway client", err)
		os.Exit(1)
	}

	orch := reconcile.NewOrchestrator(store, gw, logg, syncMetrics, reconcile.Options{
		RefreshDebounce: cfg.Sync.RefreshDebounce,
		FailClosed:      cfg.Sync.FailClosed,
	})
	defer orch.Close()

	pipeline := reconcile.NewPipeline(store, gw, orch, logg, syncMetrics, cfg.Sync.QuantityDebounce)
	defer pipeline.Close()

	gate, err := checkout.NewGate(store, sess, logg, cfg.Checkout.PolicyRequired)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout gate", err)
		os.Exit(1)
	}

	sess.OnChange(orch.SetAuthenticated)

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"persist": cfg.Persist.Backend,
	})
	logg.Info(ctx, "starting storefront server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:       cfg,
			Logger:       logg,
			Store:        store,
			Orchestrator: orch,
			Pipeline:     pipeline,
			Gate:         gate,
			Session:      sess,
			Registry:     registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "storefront server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func newPersister(ctx context.Context, cfg *config.Config, logg *logger.Logger) (persist.Store, func(), error) {
	switch cfg.Persist.Backend {
	case config.PersistBackendSQLite:
		store, err := persist.NewSQLiteStore(ctx, cfg.Persist, logg)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.PersistBackendRedis:
		store, err := persist.NewRedisStore(ctx, cfg.Redis, cfg.Persist.Slot, logg)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return persist.NewNoopStore(), func() {}, nil
	}
}
