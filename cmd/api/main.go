package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/cartstore/api/routes"
	"github.com/angelmondragon/cartstore/internal/bootstrap"
	"github.com/angelmondragon/cartstore/internal/session"
	"github.com/angelmondragon/cartstore/pkg/config"
	"github.com/angelmondragon/cartstore/pkg/instance"
	"github.com/angelmondragon/cartstore/pkg/logger"
	"github.com/angelmondragon/cartstore/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := bootstrap.OpenStorage(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap storage", err)
		os.Exit(1)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			logg.Error(context.Background(), "error closing storage", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	provider := session.NewProvider(session.ProviderParams{
		Storage:     storage.Store,
		Namespace:   cfg.Storage.Namespace,
		AsyncWrites: cfg.Storage.AsyncWrites,
		Logger:      logg,
		Metrics:     metrics.NewCartMetrics(registry),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"storage_driver": storage.Driver,
		"instance":       instance.GetID(),
	})

	if cfg.Storage.SessionIdle > 0 && cfg.Storage.SweepInterval > 0 {
		go sweepSessions(ctx, logg, provider, cfg.Storage.SweepInterval, cfg.Storage.SessionIdle)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, provider, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			provider.CloseAll(context.Background())
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "graceful shutdown failed", err)
	}
	provider.CloseAll(shutdownCtx)
	logg.Info(ctx, "api server stopped")
}

func sweepSessions(ctx context.Context, logg *logger.Logger, provider *session.Provider, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := provider.Sweep(ctx, idle); n > 0 {
				logg.Debug(logg.WithField(ctx, "closed", n), "idle sessions swept")
			}
		}
	}
}
