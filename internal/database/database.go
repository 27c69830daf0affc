// Package database provides PostgreSQL connection management for the
// warehouse.
package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Config holds database connection configuration.
type Config struct {
	// URL, when set, takes precedence over the individual fields.
	URL string

	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectTimeout bounds the retried initial connection (default: 30s).
	ConnectTimeout time.Duration

	// StatementTimeout is applied to every session (0 disables it).
	StatementTimeout time.Duration
}

// ConfigFromEnv creates a Config from environment variables.
func ConfigFromEnv() Config {
	port, _ := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	maxOpen, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "10"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "2"))
	lifetime, _ := time.ParseDuration(getEnvOrDefault("DB_CONN_MAX_LIFETIME", "30m"))
	connectTimeout, _ := time.ParseDuration(getEnvOrDefault("DB_CONNECT_TIMEOUT", "30s"))
	statementTimeout, _ := time.ParseDuration(getEnvOrDefault("DB_STATEMENT_TIMEOUT", "60s"))

	return Config{
		URL:              os.Getenv("DATABASE_URL"),
		Host:             getEnvOrDefault("DB_HOST", "localhost"),
		Port:             port,
		User:             getEnvOrDefault("DB_USER", "roadweather"),
		Password:         getEnvOrDefault("DB_PASSWORD", "localdev"),
		Database:         getEnvOrDefault("DB_NAME", "warehouse"),
		SSLMode:          getEnvOrDefault("DB_SSL_MODE", "disable"),
		MaxOpenConns:     maxOpen,
		MaxIdleConns:     maxIdle,
		ConnMaxLifetime:  lifetime,
		ConnectTimeout:   connectTimeout,
		StatementTimeout: statementTimeout,
	}
}

// Validate checks the pool bounds.
func (c Config) Validate() error {
	if c.URL == "" && c.Host == "" {
		return errors.New("database: host or url is required")
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("database: max open connections must be positive, got %d", c.MaxOpenConns)
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("database: max idle connections must be between 0 and %d, got %d", c.MaxOpenConns, c.MaxIdleConns)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c Config) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Connect creates a connection pool and waits until the database answers a
// ping, retrying with exponential backoff for up to cfg.ConnectTimeout.
func Connect(ctx context.Context, cfg Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns) //nolint:gosec // bounded by Validate
	poolConfig.MinConns = int32(cfg.MaxIdleConns) //nolint:gosec // bounded by Validate
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	if cfg.StatementTimeout > 0 {
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := waitForPing(ctx, pool, cfg.ConnectTimeout, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

func waitForPing(ctx context.Context, db pinger, timeout time.Duration, logger zerolog.Logger) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = timeout

	attempt := 0
	operation := func() error {
		attempt++
		err := db.Ping(ctx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", next).
			Msg("database not reachable, retrying")
	}

	return backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
