package config

import (
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/moverq1337/hireboard/internal/apperrors"
)

const (
	ProviderGemini   = "gemini"
	ProviderNLP      = "nlp"
	ProviderKeyword  = "keyword"
	ProviderDisabled = "disabled"
)

type Config struct {
	DBURL              string
	HTTPPort           string
	GRPCAddr           string
	RedisAddr          string
	UploadDir          string
	YandexDiskToken    string
	YandexDiskFolder   string
	ScorerProvider     string
	ScorerTimeout      time.Duration
	GeminiAPIKey       string
	GeminiModel        string
	LogLevel           string
	LogJSON            bool
	RateLimitPerMinute int
}

// Load reads the environment, after applying the given .env files (".env"
// when none are named). Missing files are skipped.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !apperrors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Wrapf(err, "load %s", f)
		}
	}

	cfg := &Config{
		DBURL:            os.Getenv("DB_URL"),    // e.g., postgres://user:pass@db:5432/hireboard
		HTTPPort:         env("HTTP_PORT", ":8080"),
		GRPCAddr:         os.Getenv("GRPC_ADDR"), // e.g., nlp:50051
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		UploadDir:        env("UPLOAD_DIR", "uploads"),
		YandexDiskToken:  os.Getenv("YANDEX_DISK_TOKEN"),
		YandexDiskFolder: env("YANDEX_DISK_FOLDER", "hireboard-cv"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      os.Getenv("GEMINI_MODEL"),
		LogLevel:         env("LOG_LEVEL", "info"),
	}
	if !strings.Contains(cfg.HTTPPort, ":") {
		cfg.HTTPPort = ":" + cfg.HTTPPort
	}

	provider := strings.ToLower(os.Getenv("SCORER_PROVIDER"))
	switch provider {
	case "":
		provider = ProviderDisabled
		if cfg.GeminiAPIKey != "" {
			provider = ProviderGemini
		}
	case ProviderGemini, ProviderNLP, ProviderKeyword, ProviderDisabled:
	default:
		return nil, apperrors.Validation("SCORER_PROVIDER", "must be one of gemini, nlp, keyword, disabled")
	}
	cfg.ScorerProvider = provider

	var err error
	if cfg.ScorerTimeout, err = duration("SCORER_TIMEOUT", 20*time.Second); err != nil {
		return nil, err
	}
	if cfg.LogJSON, err = boolean("LOG_JSON", false); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = integer("RATE_LIMIT_PER_MINUTE", 5); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.DBURL == "" {
		return apperrors.Validation("DB_URL", "is required")
	}
	switch c.ScorerProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return apperrors.Validation("GEMINI_API_KEY", "is required for the gemini scorer")
		}
	case ProviderNLP:
		if c.GRPCAddr == "" {
			return apperrors.Validation("GRPC_ADDR", "is required for the nlp scorer")
		}
	}
	return nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// duration accepts Go durations ("15s") or plain seconds ("15").
func duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, apperrors.Validation(key, "must be a positive duration")
	}
	return d, nil
}

func boolean(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.Validation(key, "must be a boolean")
	}
	return v, nil
}

func integer(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperrors.Validation(key, "must be a non-negative integer")
	}
	return v, nil
}
