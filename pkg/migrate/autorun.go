package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/cartstore/pkg/config"
	"github.com/angelmondragon/cartstore/pkg/db"
	"github.com/angelmondragon/cartstore/pkg/logger"
)

// MaybeAutoRun applies the embedded migrations when the storage driver is SQL
// backed and auto-migration is enabled.
func MaybeAutoRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.Storage.UsesDB() || !cfg.Storage.AutoMigrate {
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	driver := cfg.Storage.NormalizedDriver()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": driver})
	logg.Info(ctx, "running goose migrations (auto-run)")

	if err := Run(ctx, sqlDB, driver, "", "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
