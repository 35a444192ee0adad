package config

import "time"

// CatalogCacheConfig controls the Redis cache in front of the public reward
// catalog.  Only the active, non-archived rows are cached; activation windows
// are still evaluated on every read so a cached entry never shows an expired
// reward.
type CatalogCacheConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	TTL     time.Duration `env:"TTL" envDefault:"30s"`
	Prefix  string        `env:"PREFIX" envDefault:"catalog"`
}
