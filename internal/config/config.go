// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// admin HTTP server, logging, persistence, the upstream timetable API, the
// inference credential pool, the notification dispatchers and observability.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"timetable-notifier"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1.0"`
}

// TimetableConfig describes the upstream schedule API and the cache in front of it.
type TimetableConfig struct {
	BaseURL     string        `env:"TIMETABLE_BASE_URL"`
	Token       string        `env:"TIMETABLE_TOKEN"`
	Timeout     time.Duration `env:"TIMETABLE_TIMEOUT" envDefault:"15s"`
	CacheTTL    time.Duration `env:"SCHEDULE_CACHE_TTL" envDefault:"10m"`
	Concurrency int           `env:"FETCH_CONCURRENCY" envDefault:"5"`
	Retries     int           `env:"FETCH_RETRIES" envDefault:"3"`
	BackoffBase time.Duration `env:"FETCH_BACKOFF_BASE" envDefault:"5s"`
}

// InferenceConfig describes the OpenAI-compatible inference API and the
// credential pool that rotates its keys.
type InferenceConfig struct {
	BaseURL         string        `env:"INFERENCE_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	Model           string        `env:"INFERENCE_MODEL" envDefault:"llama-3.1-8b-instant"`
	TranscribeModel string        `env:"TRANSCRIBE_MODEL" envDefault:"whisper-large-v3"`
	ProbeModel      string        `env:"PROBE_MODEL" envDefault:"llama-3.1-8b-instant"`
	Timeout         time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"60s"`
	Keys            []string      `env:"INFERENCE_KEYS" envSeparator:","`
	KeysFile        string        `env:"INFERENCE_KEYS_FILE"`
	MinTokensFloor  int           `env:"MIN_TOKENS_FLOOR" envDefault:"500"`
	DefaultRequests int           `env:"DEFAULT_REQUEST_QUOTA" envDefault:"14400"`
	DefaultTokens   int           `env:"DEFAULT_TOKEN_QUOTA" envDefault:"6000"`
}

// DispatchConfig controls the lesson and exam notification cadences.
type DispatchConfig struct {
	WindowMinutes       int           `env:"NOTIFY_WINDOW_MINUTES" envDefault:"2"`
	LessonInterval      time.Duration `env:"LESSON_TICK_INTERVAL" envDefault:"1m"`
	ExamInterval        time.Duration `env:"EXAM_TICK_INTERVAL" envDefault:"5m"`
	HealthCheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"1h"`
	DedupTTL            time.Duration `env:"DEDUP_TTL" envDefault:"24h"`
	ExamStaleAfter      time.Duration `env:"EXAM_STALE_AFTER" envDefault:"24h"`
}

// SecurityConfig controls response security headers.
type SecurityConfig struct {
	EnableHSTS bool          `env:"SECURITY_ENABLE_HSTS" envDefault:"false"`
	HSTSMaxAge time.Duration `env:"SECURITY_HSTS_MAX_AGE" envDefault:"4320h"`
}

// TelegramConfig configures the push delivery channel.
type TelegramConfig struct {
	BotToken string  `env:"TELEGRAM_BOT_TOKEN"`
	APIURL   string  `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	SendRPS  float64 `env:"SEND_RPS" envDefault:"25"`
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port        string `env:"PORT" envDefault:"8080"`
	GinMode     string `env:"GIN_MODE" envDefault:"release"`
	APIBasePath string `env:"API_BASE_PATH" envDefault:"/api/v1"`
	AdminToken  string `env:"ADMIN_TOKEN"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	// Storage
	DBPath string `env:"DB_PATH" envDefault:"app.db"`

	// Canonical service timezone; lesson dates are computed in it.
	Timezone string `env:"TIMEZONE" envDefault:"Europe/Moscow"`
	loc      *time.Location

	// API rate limiting
	RateRPS   float64 `env:"RATE_RPS" envDefault:"5"`
	RateBurst int     `env:"RATE_BURST" envDefault:"10"`

	CORS      CORSConfig
	Security  SecurityConfig
	Timetable TimetableConfig
	Inference InferenceConfig
	Dispatch  DispatchConfig
	Telegram  TelegramConfig
	OTEL      OTELConfig
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
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	// --- normalization ---
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	cfg.GinMode = strings.ToLower(strings.TrimSpace(cfg.GinMode))
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.APIBasePath = normalizeBasePath(cfg.APIBasePath)
	cfg.Timetable.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Timetable.BaseURL), "/")
	cfg.Inference.Keys = trimAll(cfg.Inference.Keys)
	cfg.CORS.AllowedOrigins = trimAll(cfg.CORS.AllowedOrigins)

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	loc, err := time.LoadLocation(strings.TrimSpace(cfg.Timezone))
	if err != nil {
		return cfg, fmt.Errorf("TIMEZONE is invalid: %w", err)
	}
	cfg.loc = loc

	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}

	if cfg.Timetable.BaseURL == "" {
		return cfg, errors.New("TIMETABLE_BASE_URL must not be empty")
	}
	if cfg.Timetable.Timeout <= 0 {
		return cfg, errors.New("TIMETABLE_TIMEOUT must be > 0")
	}
	if cfg.Timetable.CacheTTL <= 0 {
		return cfg, errors.New("SCHEDULE_CACHE_TTL must be > 0")
	}
	if cfg.Timetable.Concurrency < 1 {
		return cfg, errors.New("FETCH_CONCURRENCY must be >= 1")
	}
	if cfg.Timetable.Retries < 0 {
		return cfg, errors.New("FETCH_RETRIES must be >= 0")
	}
	if cfg.Timetable.BackoffBase <= 0 {
		return cfg, errors.New("FETCH_BACKOFF_BASE must be > 0")
	}

	if cfg.Inference.MinTokensFloor < 0 {
		return cfg, errors.New("MIN_TOKENS_FLOOR must be >= 0")
	}
	if cfg.Inference.DefaultRequests < 0 || cfg.Inference.DefaultTokens < 0 {
		return cfg, errors.New("DEFAULT_REQUEST_QUOTA and DEFAULT_TOKEN_QUOTA must be >= 0")
	}

	if cfg.Dispatch.WindowMinutes < 1 {
		return cfg, errors.New("NOTIFY_WINDOW_MINUTES must be >= 1")
	}
	if cfg.Dispatch.LessonInterval <= 0 || cfg.Dispatch.ExamInterval <= 0 || cfg.Dispatch.HealthCheckInterval <= 0 {
		return cfg, errors.New("tick intervals must be positive durations")
	}
	// A lesson can only be caught if at least one tick lands inside its window.
	if time.Duration(cfg.Dispatch.WindowMinutes)*time.Minute < cfg.Dispatch.LessonInterval {
		return cfg, errors.New("NOTIFY_WINDOW_MINUTES must cover at least one LESSON_TICK_INTERVAL")
	}
	if cfg.Dispatch.DedupTTL <= 0 {
		return cfg, errors.New("DEDUP_TTL must be > 0")
	}
	if cfg.Dispatch.DedupTTL < time.Duration(cfg.Dispatch.WindowMinutes)*time.Minute {
		return cfg, errors.New("DEDUP_TTL must cover NOTIFY_WINDOW_MINUTES")
	}
	if cfg.Dispatch.ExamStaleAfter <= 0 {
		return cfg, errors.New("EXAM_STALE_AFTER must be > 0")
	}

	if cfg.Telegram.SendRPS <= 0 {
		return cfg, errors.New("SEND_RPS must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Location returns the resolved canonical timezone. It falls back to UTC for
// a Config that did not come from Load.
func (c Config) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
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
