package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; nested structs share a common prefix so that
// related settings (Redis, rate limiting, catalog cache) are grouped.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"dev"`    // application environment (dev/test/prod)
	Port     string `env:"APP_PORT" envDefault:"8080"`  // HTTP port to listen on
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"` // logrus level name

	DB DatabaseConfig

	JWTSecret string `env:"JWT_SECRET,required,notEmpty"` // secret used to verify resident access tokens

	// RequestTimeout bounds every request context, including the redeem and
	// equip transactions.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	// TxMaxRetries is how many times a redeem/equip transaction is re-run after
	// a uniqueness violation, deadlock or lock wait timeout.
	TxMaxRetries uint64        `env:"TX_MAX_RETRIES" envDefault:"3"`
	TxRetryBase  time.Duration `env:"TX_RETRY_BASE" envDefault:"25ms"`

	RabbitURL         string        `env:"RABBITMQ_URL"`                                 // empty disables event publishing
	RabbitDialTimeout time.Duration `env:"RABBITMQ_DIAL_TIMEOUT" envDefault:"2s"`        // connect and handshake bound per publish
	AuditConsumer     bool          `env:"AUDIT_CONSUMER_ENABLED" envDefault:"false"`    // run the rewards.events consumer in-process
	AuditLogPath      string        `env:"AUDIT_LOG_PATH" envDefault:"logs/rewards.log"` // file the consumer appends to

	Redis        RedisConfig        `envPrefix:"REDIS_"`
	RateLimit    RateLimitConfig    `envPrefix:"RATE_LIMIT_"`
	CatalogCache CatalogCacheConfig `envPrefix:"CATALOG_CACHE_"`
}

// DatabaseConfig selects the SQL backend.  MySQL is the production store;
// the sqlite driver exists for local development and tests.
type DatabaseConfig struct {
	Driver      string `env:"DB_DRIVER" envDefault:"mysql"`
	User        string `env:"DB_USER"`
	Pass        string `env:"DB_PASS"`
	Host        string `env:"DB_HOST" envDefault:"127.0.0.1"`
	Port        string `env:"DB_PORT" envDefault:"3306"`
	Name        string `env:"DB_NAME" envDefault:"barangay"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"rewards.db"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// Load reads an optional .env file and then parses the environment into a
// Config.  Variables already present in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	switch cfg.DB.Driver {
	case "mysql":
		if cfg.DB.User == "" {
			return Config{}, errors.New("DB_USER is required for the mysql driver")
		}
	case "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	cfg.RateLimit = cfg.RateLimit.normalize()
	return cfg, nil
}
