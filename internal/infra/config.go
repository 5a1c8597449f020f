package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Transport names accepted by GEMINI_TRANSPORT.
const (
	TransportREST = "rest"
	TransportSDK  = "sdk"
)

// Config represents application configuration loaded from environment
// variables once at process start. It is not re-read afterwards.
type Config struct {
	AppEnv   string
	LogLevel string
	Port     string

	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiTransport  string
	GeminiImageModel string
	GeminiTextModel  string
	GeminiTimeout    time.Duration
	PromptsFile      string

	ImageProxyURL     string
	ImageProxyWidth   int
	ImageProxyQuality int

	UserMaxDimension    int
	ProductMaxDimension int
	SizeMaxDimension    int
	OutputMaxDimension  int
	JPEGQuality         int

	MaxUploadBytes     int64
	DefaultLocale      string
	GeoIPDBPath        string
	CORSAllowedOrigins []string
	RateLimitPerMin    int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		LogLevel:          strings.ToLower(os.Getenv("LOG_LEVEL")),
		Port:              getEnv("PORT", "8080"),
		GeminiAPIKey:      strings.TrimSpace(getEnv("GEMINI_API_KEY", os.Getenv("API_KEY"))),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTransport:   strings.ToLower(getEnv("GEMINI_TRANSPORT", TransportREST)),
		GeminiImageModel:  getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiTextModel:   getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiTimeout:     time.Second * time.Duration(getEnvInt("GEMINI_TIMEOUT_SECONDS", 120)),
		PromptsFile:       os.Getenv("PROMPTS_FILE"),
		ImageProxyURL:     getEnv("IMAGE_PROXY_URL", "https://images.weserv.nl"),
		ImageProxyWidth:   getEnvInt("IMAGE_PROXY_WIDTH", 800),
		ImageProxyQuality: getEnvInt("IMAGE_PROXY_QUALITY", 90),

		UserMaxDimension:    getEnvInt("USER_MAX_DIMENSION", 1024),
		ProductMaxDimension: getEnvInt("PRODUCT_MAX_DIMENSION", 800),
		SizeMaxDimension:    getEnvInt("SIZE_MAX_DIMENSION", 800),
		OutputMaxDimension:  getEnvInt("OUTPUT_MAX_DIMENSION", 2048),
		JPEGQuality:         getEnvInt("JPEG_QUALITY", 80),

		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 20)) << 20,
		DefaultLocale:      strings.ToLower(getEnv("DEFAULT_LOCALE", "en")),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	switch cfg.GeminiTransport {
	case TransportREST, TransportSDK:
	default:
		return nil, fmt.Errorf("GEMINI_TRANSPORT must be %q or %q, got %q", TransportREST, TransportSDK, cfg.GeminiTransport)
	}

	dimensions := []struct {
		key   string
		value int
	}{
		{"USER_MAX_DIMENSION", cfg.UserMaxDimension},
		{"PRODUCT_MAX_DIMENSION", cfg.ProductMaxDimension},
		{"SIZE_MAX_DIMENSION", cfg.SizeMaxDimension},
		{"OUTPUT_MAX_DIMENSION", cfg.OutputMaxDimension},
		{"IMAGE_PROXY_WIDTH", cfg.ImageProxyWidth},
	}
	for _, d := range dimensions {
		if d.value <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %d", d.key, d.value)
		}
	}

	if cfg.LogLevel != "" {
		if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}

	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return nil, fmt.Errorf("JPEG_QUALITY must be between 1 and 100, got %d", cfg.JPEGQuality)
	}

	return cfg, nil
}

// HasCredential reports whether a usable provider key is configured. The
// literal "undefined" is what bundlers inject for a missing variable.
func (c *Config) HasCredential() bool {
	return ValidCredential(c.GeminiAPIKey)
}

// ValidCredential rejects empty and placeholder keys.
func ValidCredential(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != "undefined"
}

// MaskedAPIKey renders the key for display.
func (c *Config) MaskedAPIKey() string {
	if !c.HasCredential() {
		return "(missing)"
	}
	key := c.GeminiAPIKey
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
