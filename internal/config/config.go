package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Catalog   CatalogConfig   `mapstructure:"catalog" validate:"required"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres memory"`
}

// DatabaseConfig contains all database-related configuration settings.
// URL is required when the storage driver is postgres.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// RedisConfig configures the catalog response cache and the distributed
// library lock. An empty Addr disables Redis; in-process fallbacks are used.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	LockTTL  time.Duration `mapstructure:"lock_ttl" validate:"gt=0"`
}

// CatalogConfig configures the external book-metadata provider.
type CatalogConfig struct {
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	APIKey            string        `mapstructure:"api_key"`
	PageSize          int           `mapstructure:"page_size" validate:"gt=0,lte=40"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	MaxRetries        int           `mapstructure:"max_retries" validate:"gte=0"`
}

// ReconcileConfig controls the background sweep that repairs pending flags
// and finishes interrupted transitions.
type ReconcileConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval" validate:"gt=0"`
	SettleGrace time.Duration `mapstructure:"settle_grace" validate:"gt=0"`
}
