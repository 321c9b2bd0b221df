package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "CARTSTORE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv         = "CARTSTORE_APP_ENV"
	EnvPort           = "CARTSTORE_APP_PORT"
	EnvLogLevel       = "CARTSTORE_LOG_LEVEL"
	EnvStorageDriver  = "CARTSTORE_STORAGE_DRIVER"
	EnvStorageTTL     = "CARTSTORE_STORAGE_TTL"
	EnvRedisURL       = "CARTSTORE_REDIS_URL"
	EnvRedisAddr      = "CARTSTORE_REDIS_ADDR"
	EnvDBDSN          = "CARTSTORE_DB_DSN"
	EnvAutoMigrate    = "CARTSTORE_AUTO_MIGRATE"
	EnvMetricsEnabled = "CARTSTORE_METRICS_ENABLED"
)

// Storage drivers understood by the key-value layer.
const (
	DriverNone     = "none"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	App     AppConfig
	Storage StorageConfig
	Redis   RedisConfig
	DB      DBConfig
	Metrics MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CARTSTORE_APP_ENV" required:"true"`
	Port         string `envconfig:"CARTSTORE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CARTSTORE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CARTSTORE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CARTSTORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type StorageConfig struct {
	Driver      string        `envconfig:"CARTSTORE_STORAGE_DRIVER" default:"memory"`
	Namespace   string        `envconfig:"CARTSTORE_STORAGE_NAMESPACE" default:"cs"`
	TTL         time.Duration `envconfig:"CARTSTORE_STORAGE_TTL" default:"0s"`
	AutoMigrate bool          `envconfig:"CARTSTORE_AUTO_MIGRATE" default:"false"`
	AsyncWrites bool          `envconfig:"CARTSTORE_STORAGE_ASYNC_WRITES" default:"false"`

	// SessionIdle is how long an untouched session stays open; zero disables sweeping.
	SessionIdle   time.Duration `envconfig:"CARTSTORE_SESSION_IDLE" default:"30m"`
	SweepInterval time.Duration `envconfig:"CARTSTORE_SESSION_SWEEP_INTERVAL" default:"1m"`
}

// NormalizedDriver lower-cases the configured driver and defaults it to memory.
func (s StorageConfig) NormalizedDriver() string {
	driver := strings.ToLower(strings.TrimSpace(s.Driver))
	if driver == "" {
		return DriverMemory
	}
	return driver
}

// UsesDB reports whether the driver is backed by the SQL snapshot table.
func (s StorageConfig) UsesDB() bool {
	switch s.NormalizedDriver() {
	case DriverSQLite, DriverPostgres:
		return true
	}
	return false
}

type RedisConfig struct {
	URL          string        `envconfig:"CARTSTORE_REDIS_URL"`
	Address      string        `envconfig:"CARTSTORE_REDIS_ADDR"`
	Password     string        `envconfig:"CARTSTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARTSTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARTSTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARTSTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARTSTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARTSTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARTSTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type DBConfig struct {
	// Driver is filled from the storage driver; sqlite and postgres are supported.
	Driver string `ignored:"true"`
	DSN    string `envconfig:"CARTSTORE_DB_DSN"`

	MaxOpenConns    int           `envconfig:"CARTSTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARTSTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARTSTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARTSTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"CARTSTORE_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"CARTSTORE_METRICS_PATH" default:"/metrics"`
}

func (c *Config) validate() error {
	switch c.Storage.NormalizedDriver() {
	case DriverNone, DriverMemory:
	case DriverRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("either %s or %s is required for the redis driver", EnvRedisURL, EnvRedisAddr)
		}
	case DriverSQLite, DriverPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("%s is required for the %s driver", EnvDBDSN, c.Storage.NormalizedDriver())
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageDriver, c.Storage.Driver)
	}
	c.DB.Driver = c.Storage.NormalizedDriver()
	return nil
}
