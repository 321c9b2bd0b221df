package bootstrap

import (
	"context"
	"fmt"

	"github.com/angelmondragon/cartstore/pkg/config"
	"github.com/angelmondragon/cartstore/pkg/db"
	"github.com/angelmondragon/cartstore/pkg/kv"
	"github.com/angelmondragon/cartstore/pkg/logger"
	"github.com/angelmondragon/cartstore/pkg/migrate"
	"github.com/angelmondragon/cartstore/pkg/redis"
)

// Storage is the key-value backend selected by configuration along with the
// connection that must be released on shutdown.
type Storage struct {
	Store  kv.Store
	Driver string
	close  func() error
}

// Close releases the backend connection, if any.
func (s *Storage) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStorage builds the kv.Store for the configured driver. The none driver
// yields a nil Store so carts run purely in memory.
func OpenStorage(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Storage, error) {
	driver := cfg.Storage.NormalizedDriver()
	ctx = logg.WithField(ctx, "storage_driver", driver)

	switch driver {
	case config.DriverNone:
		logg.Warn(ctx, "storage disabled, carts will not survive restarts")
		return &Storage{Driver: driver}, nil

	case config.DriverMemory:
		return &Storage{Store: kv.NewMemory(), Driver: driver}, nil

	case config.DriverRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		return &Storage{
			Store:  kv.NewRedis(client, cfg.Storage.TTL),
			Driver: driver,
			close:  client.Close,
		}, nil

	case config.DriverSQLite, config.DriverPostgres:
		dbCfg := cfg.DB
		dbCfg.Driver = driver
		client, err := db.New(ctx, dbCfg, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
		if err := migrate.MaybeAutoRun(ctx, cfg, logg, client); err != nil {
			_ = client.Close()
			return nil, err
		}
		return &Storage{
			Store:  kv.NewSQL(client.DB()),
			Driver: driver,
			close:  client.Close,
		}, nil
	}

	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
}
