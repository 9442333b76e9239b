package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv        string
	Port          string
	DefaultLocale string

	GeminiAPIKey  string
	GeminiModel   string
	CloudinaryURL string

	// ScratchRoot is where downloaded assets and generated pages live until
	// the campaign is published and the files are removed.
	ScratchRoot string

	// ImageFetchAllowlist restricts which hosts product/logo images may be
	// fetched from. Empty means any host is allowed.
	ImageFetchAllowlist []string
	ImageFetchTimeout   time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	// GenerateRPM paces outbound Gemini calls across all campaigns.
	GenerateRPM int

	AllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "en"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash-image-preview"),
		CloudinaryURL:       os.Getenv("CLOUDINARY_URL"),
		ScratchRoot:         getEnv("SCRATCH_DIR", "temp"),
		ImageFetchAllowlist: getEnvList("IMAGE_SOURCE_HOST_ALLOWLIST"),
		ImageFetchTimeout:   time.Second * time.Duration(getEnvInt("IMAGE_FETCH_TIMEOUT_SECONDS", 15)),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		// Flyer generation holds the connection open across several model
		// calls, so the write timeout is far longer than usual.
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 600)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		GenerateRPM:      getEnvInt("GEMINI_REQUESTS_PER_MINUTE", 10),
		AllowedOrigins:   getEnvList("ALLOWED_ORIGINS"),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	if cfg.CloudinaryURL == "" {
		return nil, fmt.Errorf("CLOUDINARY_URL is required")
	}

	cfg.ScratchRoot = filepath.Clean(cfg.ScratchRoot)

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
