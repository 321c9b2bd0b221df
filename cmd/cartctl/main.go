package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/cartstore/internal/bootstrap"
	"github.com/angelmondragon/cartstore/internal/session"
	"github.com/angelmondragon/cartstore/pkg/config"
	"github.com/angelmondragon/cartstore/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	app := newApp(os.Stdout, openFromEnv)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "cartctl:", err)
		os.Exit(1)
	}
}

// openFromEnv builds a provider over the storage configured in the environment.
func openFromEnv(ctx context.Context) (*session.Provider, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logg := logger.New(logger.Options{
		ServiceName: "cartctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		Output:      os.Stderr,
	})

	storage, err := bootstrap.OpenStorage(ctx, cfg, logg)
	if err != nil {
		return nil, nil, err
	}
	provider := session.NewProvider(session.ProviderParams{
		Storage:   storage.Store,
		Namespace: cfg.Storage.Namespace,
		Logger:    logg,
	})
	return provider, storage.Close, nil
}
