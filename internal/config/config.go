// Package config loads settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"dynsched/internal/adapter/telegram/middleware"
	"dynsched/internal/platform/pg"
	"dynsched/internal/shared"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds application configuration values.
type Config struct {
	Env  string `validate:"required,oneof=dev prod"`
	HTTP struct {
		Addr string `validate:"required"`
	}
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
	Store struct {
		Driver     string `validate:"required,oneof=sqlite postgres"`
		SQLitePath string `validate:"required_if=Driver sqlite"`
		// DatabaseURL wins over the PG_* parts.
		DatabaseURL string
		Postgres    pg.DSNConfig
	}
	Scheduler struct {
		Workers         int            `validate:"gte=1,lte=1024"`
		QueueSize       int            `validate:"gte=1"`
		Timezone        string         `validate:"required"`
		Location        *time.Location `validate:"-"`
		JobTimeout      time.Duration  `validate:"gte=0"`
		ShutdownTimeout time.Duration  `validate:"gt=0"`
	}
	Webhook struct {
		URL    string `validate:"omitempty,url"`
		Secret string
	}
	Telegram struct {
		Token       string
		AllowedIDs  []int64
		NotifyChats []int64
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	env := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}

	var (
		c    Config
		errs []error
	)
	c.Env = env("ENV", "prod")
	c.HTTP.Addr = env("HTTP_ADDR", ":8080")
	c.Log.ConsoleLevel = strings.ToLower(env("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(env("LOG_FILE_LEVEL", "debug"))
	c.Log.File = env("LOG_FILE", "data/logs/dynsched.log")

	c.Store.Driver = strings.ToLower(env("STORE_DRIVER", DriverSQLite))
	c.Store.SQLitePath = env("SQLITE_PATH", "data/dynsched.db")
	c.Store.DatabaseURL = env("DATABASE_URL", "")
	c.Store.Postgres = pg.DSNConfig{
		Host:            env("PG_HOST", "localhost"),
		User:            env("PG_USER", ""),
		Password:        getenv("PG_PASSWORD"),
		Database:        env("PG_DATABASE", ""),
		SSLMode:         env("PG_SSLMODE", "disable"),
		ApplicationName: "dynsched",
	}
	c.Store.Postgres.Port, errs = intVar(env, "PG_PORT", 5432, errs)

	c.Scheduler.Workers, errs = intVar(env, "SCHEDULER_WORKERS", 4, errs)
	c.Scheduler.QueueSize, errs = intVar(env, "SCHEDULER_QUEUE_SIZE", 64, errs)
	c.Scheduler.Timezone = env("SCHEDULER_TIMEZONE", "Local")
	c.Scheduler.JobTimeout, errs = durationVar(env, "JOB_TIMEOUT", 0, errs)
	c.Scheduler.ShutdownTimeout, errs = durationVar(env, "SHUTDOWN_TIMEOUT", 10*time.Second, errs)

	c.Webhook.URL = env("WEBHOOK_URL", "")
	c.Webhook.Secret = getenv("WEBHOOK_SECRET")

	c.Telegram.Token = env("TELEGRAM_BOT_TOKEN", "")
	var err error
	if c.Telegram.AllowedIDs, err = middleware.ParseIDs(getenv("TELEGRAM_ALLOWED_IDS")); err != nil {
		errs = append(errs, fmt.Errorf("TELEGRAM_ALLOWED_IDS: %w", err))
	}
	if c.Telegram.NotifyChats, err = middleware.ParseIDs(getenv("TELEGRAM_NOTIFY_CHAT_IDS")); err != nil {
		errs = append(errs, fmt.Errorf("TELEGRAM_NOTIFY_CHAT_IDS: %w", err))
	}

	if loc, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("SCHEDULER_TIMEZONE: %w", err))
	} else {
		c.Scheduler.Location = loc
	}

	if err := validate.Struct(c); err != nil {
		errs = append(errs, err)
	}
	if c.Store.Driver == DriverPostgres && c.Store.DatabaseURL == "" {
		if err := c.Store.Postgres.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("postgres settings (DATABASE_URL or PG_*): %w", err))
		}
	}
	if c.Telegram.Token == "" && (len(c.Telegram.AllowedIDs) > 0 || len(c.Telegram.NotifyChats) > 0) {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN required when telegram ids are set"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, shared.MarkKind(fmt.Errorf("config: %w", err), shared.KindValidation)
	}
	return c, nil
}

// PostgresDSN returns DATABASE_URL or the DSN built from the PG_* parts.
func (c Config) PostgresDSN() string {
	if c.Store.DatabaseURL != "" {
		return c.Store.DatabaseURL
	}
	return pg.BuildDSN(c.Store.Postgres)
}

// TelegramEnabled reports whether the admin bot should run.
func (c Config) TelegramEnabled() bool { return c.Telegram.Token != "" }

func intVar(env func(string, string) string, key string, def int, errs []error) (int, []error) {
	raw := env(key, "")
	if raw == "" {
		return def, errs
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, append(errs, fmt.Errorf("%s: %w", key, err))
	}
	return n, errs
}

func durationVar(env func(string, string) string, key string, def time.Duration, errs []error) (time.Duration, []error) {
	raw := env(key, "")
	if raw == "" {
		return def, errs
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def, append(errs, fmt.Errorf("%s: %w", key, err))
	}
	return d, errs
}
