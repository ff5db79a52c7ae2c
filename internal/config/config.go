// Package config reads the panel's settings from the environment.
//
// Unset variables fall back to defaults. A variable that is set but cannot be
// parsed is an error, and Load reports every such problem at once together
// with the validation failures.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists the browser origins allowed to call the API with
// credentials. Empty means any origin without credentials.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls the Strict-Transport-Security header.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures trace export over OTLP/gRPC.
type OTELConfig struct {
	Enabled     bool
	Endpoint    string // host:port of the collector
	Insecure    bool   // plaintext gRPC
	ServiceName string
	SampleRatio float64 // share of root traces kept, 0 to 1
}

// DBConfig selects and locates the relational store.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file path
	URL    string // Postgres DSN
}

// AuthConfig holds the token verification settings.
type AuthConfig struct {
	JWTSecret  string // HS256 key shared with the token issuer
	CookieName string // cookie carrying the token
}

// PrimePagConfig holds the payment provider settings. SecretKey is the shared
// secret used to authenticate inbound webhook deliveries.
type PrimePagConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	SecretKey    string
	Timeout      time.Duration
	MaxRetries   int
}

// PixConfig holds charge limits, in centavos.
type PixConfig struct {
	MinAmountCents int64
	MaxAmountCents int64
	CronSecret     string // optional shared secret for the public sweep route
}

// RedisConfig configures the optional admin config cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig configures the optional lifecycle event publisher.
type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string
}

// Config is the full set of process settings.
type Config struct {
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug, release or test

	LogLevel       string // zerolog level name
	LogPretty      bool   // console writer instead of JSON
	SwaggerEnabled bool
	APIBasePath    string

	DB       DBConfig
	Auth     AuthConfig
	PrimePag PrimePagConfig
	Pix      PixConfig

	// Per-client token bucket.
	RateRPS   float64
	RateBurst int

	// Per-IP bucket of the provider webhook, sized for delivery bursts from
	// a single egress address.
	WebhookRateRPS   float64
	WebhookRateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	// IdempotencyTTL bounds how long a stored Idempotency-Key replays.
	IdempotencyTTL time.Duration

	Redis RedisConfig
	Kafka KafkaConfig
	OTEL  OTELConfig
}

// Load reads the environment, normalizes aliases and validates the result.
// The returned error joins every problem found.
func Load() (Config, error) {
	var e env

	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.integer("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.flag("LOG_PRETTY", false),
		SwaggerEnabled: e.flag("SWAGGER_ENABLED", false),
		APIBasePath:    cleanBasePath(e.str("API_BASE_PATH", "/api")),

		DB: DBConfig{
			Driver: strings.ToLower(e.str("DB_DRIVER", "sqlite")),
			Path:   e.str("DB_PATH", "pixpanel.db"),
			URL:    e.str("DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:  e.str("JWT_SECRET", ""),
			CookieName: e.str("AUTH_COOKIE_NAME", "token"),
		},
		PrimePag: PrimePagConfig{
			BaseURL:      strings.TrimRight(e.str("PRIMEPAG_BASE_URL", ""), "/"),
			ClientID:     e.str("PRIMEPAG_CLIENT_ID", ""),
			ClientSecret: e.str("PRIMEPAG_CLIENT_SECRET", ""),
			SecretKey:    e.str("PRIMEPAG_SECRET_KEY", ""),
			Timeout:      e.dur("PRIMEPAG_TIMEOUT", 10*time.Second),
			MaxRetries:   e.integer("PRIMEPAG_MAX_RETRIES", 2),
		},
		Pix: PixConfig{
			MinAmountCents: int64(e.integer("PIX_MIN_AMOUNT_CENTS", 100)),
			MaxAmountCents: int64(e.integer("PIX_MAX_AMOUNT_CENTS", 1_000_000)),
			CronSecret:     e.str("CRON_SECRET", ""),
		},

		RateRPS:   e.float("RATE_RPS", 5),
		RateBurst: e.integer("RATE_BURST", 10),

		WebhookRateRPS:   e.float("WEBHOOK_RATE_RPS", 50),
		WebhookRateBurst: e.integer("WEBHOOK_RATE_BURST", 200),

		CORS: CORSConfig{
			AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS"),
		},
		Security: SecurityConfig{
			EnableHSTS: e.flag("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		Redis: RedisConfig{
			Addr:     e.str("REDIS_ADDR", ""),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.integer("REDIS_DB", 0),
			TTL:      e.dur("CONFIG_CACHE_TTL", time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:     e.list("KAFKA_BROKERS"),
			TopicPrefix: e.str("KAFKA_TOPIC_PREFIX", "pixpanel"),
		},

		OTEL: OTELConfig{
			Enabled:     e.flag("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.flag("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "pix-panel"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}
	cfg.normalize()

	if err := errors.Join(e.errs...); err != nil {
		return cfg, errors.Join(err, cfg.Validate())
	}
	return cfg, cfg.Validate()
}

func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	if c.GinMode != "debug" && c.GinMode != "test" {
		c.GinMode = "release"
	}
	switch c.DB.Driver {
	case "pg", "postgresql":
		c.DB.Driver = "postgres"
	case "sqlite3":
		c.DB.Driver = "sqlite"
	}
}

// Validate checks cross-field rules and the required secrets.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		check(false, "LOG_LEVEL %q is not a zerolog level", c.LogLevel)
	}
	check(strings.TrimSpace(c.Port) != "", "PORT is empty")
	for name, d := range map[string]time.Duration{
		"READ_TIMEOUT":        c.ReadTimeout,
		"READ_HEADER_TIMEOUT": c.ReadHeaderTimeout,
		"WRITE_TIMEOUT":       c.WriteTimeout,
		"IDLE_TIMEOUT":        c.IdleTimeout,
		"PRIMEPAG_TIMEOUT":    c.PrimePag.Timeout,
		"IDEMPOTENCY_TTL":     c.IdempotencyTTL,
	} {
		check(d > 0, "%s must be positive, got %s", name, d)
	}
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be positive")

	switch c.DB.Driver {
	case "sqlite":
		check(strings.TrimSpace(c.DB.Path) != "", "DB_PATH is empty")
	case "postgres":
		check(strings.TrimSpace(c.DB.URL) != "", "DATABASE_URL is required for postgres")
	default:
		check(false, "DB_DRIVER %q is not sqlite or postgres", c.DB.Driver)
	}

	check(strings.TrimSpace(c.Auth.JWTSecret) != "", "JWT_SECRET is required")
	check(strings.TrimSpace(c.Auth.CookieName) != "", "AUTH_COOKIE_NAME is empty")
	check(strings.TrimSpace(c.PrimePag.SecretKey) != "", "PRIMEPAG_SECRET_KEY is required")
	check(c.PrimePag.MaxRetries >= 0, "PRIMEPAG_MAX_RETRIES must not be negative")

	check(c.Pix.MinAmountCents > 0, "PIX_MIN_AMOUNT_CENTS must be positive")
	check(c.Pix.MaxAmountCents >= c.Pix.MinAmountCents,
		"PIX_MAX_AMOUNT_CENTS (%d) is below PIX_MIN_AMOUNT_CENTS (%d)", c.Pix.MaxAmountCents, c.Pix.MinAmountCents)

	check(c.RateRPS >= 0, "RATE_RPS must not be negative")
	check(c.RateBurst >= 1, "RATE_BURST must be at least 1")
	check(c.WebhookRateRPS >= 0, "WEBHOOK_RATE_RPS must not be negative")
	check(c.WebhookRateBurst >= 1, "WEBHOOK_RATE_BURST must be at least 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must not be negative")
	if c.Redis.Addr != "" {
		check(c.Redis.TTL > 0, "CONFIG_CACHE_TTL must be positive when REDIS_ADDR is set")
	}
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be within [0,1]")

	return errors.Join(errs...)
}

// ProviderEnabled reports whether outbound PrimePag calls are configured.
func (c PrimePagConfig) ProviderEnabled() bool {
	return c.BaseURL != "" && c.ClientID != "" && c.ClientSecret != ""
}

// env reads typed variables and remembers the ones that failed to parse.
type env struct {
	errs []error
}

func (e *env) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *env) bad(key, raw, kind string) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q is not a valid %s", key, raw, kind))
}

func (e *env) integer(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.bad(key, v, "integer")
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.bad(key, v, "number")
		return def
	}
	return f
}

func (e *env) dur(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.bad(key, v, "duration")
		return def
	}
	return d
}

func (e *env) flag(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.bad(key, v, "boolean")
	return def
}

// list splits a comma separated variable, dropping blank items.
func (e *env) list(key string) []string {
	v, ok := e.lookup(key)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// cleanBasePath returns p with exactly one leading slash and no trailing one.
func cleanBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
