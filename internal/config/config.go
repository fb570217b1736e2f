// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, rate limiting, external
// image services, and observability.
package config

import (
	"errors"
	"fmt"
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "charstream-api")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TogetherConfig holds settings for the external image-generation provider.
type TogetherConfig struct {
	APIKey  string // TOGETHER_API_KEY (bearer token)
	BaseURL string // TOGETHER_BASE_URL
	Model   string // TOGETHER_IMAGE_MODEL
	Width   int    // TOGETHER_IMAGE_WIDTH
	Height  int    // TOGETHER_IMAGE_HEIGHT
	Steps   int    // TOGETHER_IMAGE_STEPS
}

// CloudinaryConfig holds settings for the durable media store. Uploaded
// avatars land under Folder using the named UploadPreset.
type CloudinaryConfig struct {
	CloudName    string // CLOUDINARY_CLOUD_NAME
	APIKey       string // CLOUDINARY_API_KEY
	APISecret    string // CLOUDINARY_API_SECRET
	UploadPreset string // CLOUDINARY_UPLOAD_PRESET
	Folder       string // CLOUDINARY_FOLDER
}

// UploadURL returns the image upload endpoint for the configured cloud.
func (c CloudinaryConfig) UploadURL() string {
	return fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", c.CloudName)
}

// AuthConfig holds the JWT cookie check and the admin gate.
type AuthConfig struct {
	JWTSecret   string // AUTH_JWT_SECRET (HMAC key for session tokens)
	CookieName  string // AUTH_COOKIE_NAME
	AdminSecret string // ADMIN_SECRET (X-Admin-Secret header for admin routes)
}

// AvatarConfig tunes the avatar resolver and its fallbacks.
//
// DurableHosts and TransientHosts are hostname substrings: a URL containing
// any DurableHosts entry is treated as already migrated; one containing any
// TransientHosts entry is a known provider URL eligible for remediation.
type AvatarConfig struct {
	DurableHosts    []string // AVATAR_DURABLE_HOSTS (CSV)
	TransientHosts  []string // AVATAR_TRANSIENT_HOSTS (CSV)
	PlaceholderBase string   // AVATAR_PLACEHOLDER_BASE (fallback image service)
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

	// App
	DBPath string // SQLite path

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// External services
	Together   TogetherConfig
	Cloudinary CloudinaryConfig

	// Auth
	Auth AuthConfig

	// Avatar policy
	Avatar AvatarConfig

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

		// App
		DBPath: getenv("DB_PATH", "app.db"),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Image generation provider
		Together: TogetherConfig{
			APIKey:  getenv("TOGETHER_API_KEY", ""),
			BaseURL: getenv("TOGETHER_BASE_URL", "https://api.together.xyz/v1/images/generations"),
			Model:   getenv("TOGETHER_IMAGE_MODEL", "black-forest-labs/FLUX.1-schnell"),
			Width:   getint("TOGETHER_IMAGE_WIDTH", 512),
			Height:  getint("TOGETHER_IMAGE_HEIGHT", 512),
			Steps:   getint("TOGETHER_IMAGE_STEPS", 4),
		},

		// Durable media store
		Cloudinary: CloudinaryConfig{
			CloudName:    getenv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:       getenv("CLOUDINARY_API_KEY", ""),
			APISecret:    getenv("CLOUDINARY_API_SECRET", ""),
			UploadPreset: getenv("CLOUDINARY_UPLOAD_PRESET", "character_avatars"),
			Folder:       getenv("CLOUDINARY_FOLDER", "character-avatars"),
		},

		// Auth
		Auth: AuthConfig{
			JWTSecret:   getenv("AUTH_JWT_SECRET", ""),
			CookieName:  getenv("AUTH_COOKIE_NAME", "charstream_session"),
			AdminSecret: getenv("ADMIN_SECRET", ""),
		},

		// Avatar policy
		Avatar: AvatarConfig{
			DurableHosts:    splitCSV(getenv("AVATAR_DURABLE_HOSTS", "res.cloudinary.com")),
			TransientHosts:  splitCSV(getenv("AVATAR_TRANSIENT_HOSTS", "together.xyz,api.together,replicate.delivery,oaidalleapiprodscus")),
			PlaceholderBase: getenv("AVATAR_PLACEHOLDER_BASE", "https://api.dicebear.com/7.x/initials/svg"),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "charstream-api"),
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
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.Together.Width <= 0 || cfg.Together.Height <= 0 {
		return cfg, errors.New("TOGETHER_IMAGE_WIDTH and TOGETHER_IMAGE_HEIGHT must be > 0")
	}
	if cfg.Together.Steps <= 0 {
		return cfg, errors.New("TOGETHER_IMAGE_STEPS must be > 0")
	}
	if strings.TrimSpace(cfg.Cloudinary.Folder) == "" {
		return cfg, errors.New("CLOUDINARY_FOLDER must not be empty")
	}
	if strings.TrimSpace(cfg.Cloudinary.UploadPreset) == "" {
		return cfg, errors.New("CLOUDINARY_UPLOAD_PRESET must not be empty")
	}
	if len(cfg.Avatar.DurableHosts) == 0 {
		return cfg, errors.New("AVATAR_DURABLE_HOSTS must list at least one host")
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
