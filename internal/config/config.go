// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the database path, rate limiting, cache
// TTLs, lookup source endpoints, backups, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "osint-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Transport auth. The token is an opaque secret shared with the
	// messaging transport collaborator; it is never logged and never
	// stored in query records.
	BotToken string // BOT_TOKEN

	// Store
	DBPath string // SQLite path

	// Dispatcher rate limiting (domain level, per user)
	RateRPS        float64 // tokens per second (>= 0)
	RateBurst      int     // bucket size (>= 1)
	GlobalRPS      float64 // cross-user secondary cap (0 disables)
	GlobalBurst    int
	DailyFreeLimit int // free lookups per user per UTC day (0 disables)

	// Edge rate limiting (HTTP layer, per client IP)
	EdgeRPS   float64
	EdgeBurst int

	// Cache
	CacheTTL           time.Duration // success entries
	NegativeCacheTTL   time.Duration // "no information found" entries
	CachePurgeInterval time.Duration // expired-row sweep cadence

	// External lookup sources
	LookupTimeout     time.Duration
	LookupMaxAttempts int
	// LookupEndpoints maps query types to URL templates, collected from
	// LOOKUP_ENDPOINT_<TYPE> variables (e.g. LOOKUP_ENDPOINT_PHONE).
	LookupEndpoints map[string]string

	// Backups
	BackupEnabled  bool
	BackupDir      string
	BackupInterval time.Duration
	BackupKeep     int // snapshots retained

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Transport auth
		BotToken: getenv("BOT_TOKEN", ""),

		// Store
		DBPath: getenv("DB_PATH", "osint_bot.db"),

		// Dispatcher rate limiting
		RateRPS:        getfloat("RATE_RPS", 0.05), // 3/minute
		RateBurst:      getint("RATE_BURST", 3),
		GlobalRPS:      getfloat("GLOBAL_RATE_RPS", 0),
		GlobalBurst:    getint("GLOBAL_RATE_BURST", 10),
		DailyFreeLimit: getint("DAILY_FREE_LIMIT", 30),

		// Edge rate limiting
		EdgeRPS:   getfloat("EDGE_RATE_RPS", 5.0),
		EdgeBurst: getint("EDGE_RATE_BURST", 10),

		// Cache
		CacheTTL:           getdur("CACHE_TTL", time.Hour),
		NegativeCacheTTL:   getdur("NEGATIVE_CACHE_TTL", 5*time.Minute),
		CachePurgeInterval: getdur("CACHE_PURGE_INTERVAL", 15*time.Minute),

		// External lookup sources
		LookupTimeout:     getdur("LOOKUP_TIMEOUT", 15*time.Second),
		LookupMaxAttempts: getint("LOOKUP_MAX_ATTEMPTS", 3),
		LookupEndpoints:   collectEndpoints(),

		// Backups
		BackupEnabled:  getbool("BACKUP_ENABLED", false),
		BackupDir:      getenv("BACKUP_DIR", "backups"),
		BackupInterval: getdur("BACKUP_INTERVAL", 6*time.Hour),
		BackupKeep:     getint("BACKUP_KEEP", 7),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "osint-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 || cfg.EdgeRPS < 0 || cfg.GlobalRPS < 0 {
		return cfg, errors.New("rate limits must be >= 0")
	}
	if cfg.RateBurst < 1 || cfg.EdgeBurst < 1 {
		return cfg, errors.New("rate bursts must be >= 1")
	}
	if cfg.DailyFreeLimit < 0 {
		return cfg, errors.New("DAILY_FREE_LIMIT must be >= 0")
	}
	if cfg.CacheTTL <= 0 || cfg.NegativeCacheTTL <= 0 {
		return cfg, errors.New("cache TTLs must be > 0")
	}
	if cfg.CachePurgeInterval <= 0 {
		return cfg, errors.New("CACHE_PURGE_INTERVAL must be > 0")
	}
	if cfg.LookupTimeout <= 0 {
		return cfg, errors.New("LOOKUP_TIMEOUT must be > 0")
	}
	if cfg.LookupMaxAttempts < 1 {
		return cfg, errors.New("LOOKUP_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.BackupEnabled {
		if strings.TrimSpace(cfg.BackupDir) == "" {
			return cfg, errors.New("BACKUP_DIR must not be empty when backups are enabled")
		}
		if cfg.BackupInterval <= 0 {
			return cfg, errors.New("BACKUP_INTERVAL must be > 0")
		}
		if cfg.BackupKeep < 1 {
			return cfg, errors.New("BACKUP_KEEP must be >= 1")
		}
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// collectEndpoints gathers LOOKUP_ENDPOINT_<TYPE>=<url-template> variables.
// The type suffix is lower-cased, so LOOKUP_ENDPOINT_PHONE configures the
// "phone" lookup family.
func collectEndpoints() map[string]string {
	const prefix = "LOOKUP_ENDPOINT_"
	out := map[string]string{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, prefix) || v == "" {
			continue
		}
		qtype := strings.ToLower(strings.TrimPrefix(k, prefix))
		if qtype != "" {
			out[qtype] = v
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
