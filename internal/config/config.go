// Package config loads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/St1cky1/tarefa-service/internal/infrastructure/client"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	HTTPPort string
	GRPCPort string

	StoreDriver string
	SQLitePath  string
	Postgres    client.Config

	RabbitMQURL string
	AuditQueue  string

	RedisAddr     string
	StatsCacheTTL time.Duration

	CORSOrigins     []string
	ShutdownTimeout time.Duration
	HealthInterval  time.Duration

	LogLevel  slog.Level
	LogFormat string
}

// Load reads .env files (if any) and then the environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset keys.
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}

	cfg := &Config{
		HTTPPort:    r.str("HTTP_PORT", "8080"),
		GRPCPort:    r.str("GRPC_PORT", "9090"),
		StoreDriver: strings.ToLower(r.str("STORE_DRIVER", DriverPostgres)),
		SQLitePath:  r.str("SQLITE_PATH", "tarefas.db"),
		Postgres: client.Config{
			Host:     r.str("DB_HOST", "localhost"),
			Port:     r.str("DB_PORT", "5432"),
			User:     r.str("DB_USER", "postgres"),
			Password: r.str("DB_PASSWORD", ""),
			DBName:   r.str("DB_NAME", "tarefas"),
			SSLMode:  r.str("DB_SSLMODE", "disable"),
		},
		RabbitMQURL:     r.str("RABBITMQ_URL", ""),
		AuditQueue:      r.str("AUDIT_QUEUE", "task_audit_logs"),
		RedisAddr:       r.str("REDIS_ADDR", ""),
		StatsCacheTTL:   r.duration("STATS_CACHE_TTL", 30*time.Second),
		CORSOrigins:     r.list("CORS_ORIGINS", []string{"http://localhost:3000"}),
		ShutdownTimeout: r.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
		HealthInterval:  r.duration("HEALTH_INTERVAL", 10*time.Second),
		LogFormat:       strings.ToLower(r.str("LOG_FORMAT", "text")),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(r.str("LOG_LEVEL", "info"))); err != nil {
		r.errs = append(r.errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	switch cfg.StoreDriver {
	case DriverPostgres, DriverSQLite:
	default:
		r.errs = append(r.errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", cfg.StoreDriver))
	}
	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		r.errs = append(r.errs, fmt.Errorf("HTTP_PORT: %w", err))
	}
	if _, err := strconv.Atoi(cfg.GRPCPort); err != nil {
		r.errs = append(r.errs, fmt.Errorf("GRPC_PORT: %w", err))
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (r *reader) list(key string, def []string) []string {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
