package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	LogLevel  string
	LogFormat string

	TaxonomyFile   string
	HashtagMarker  rune
	SecretStorage  string
	WorkerInterval time.Duration
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getenv("DATABASE_URL", "file:memos.db"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		LogLevel:             strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(getenv("LOG_FORMAT", "json")),
		TaxonomyFile:         getenv("TAXONOMY_FILE", ""),
		SecretStorage:        strings.ToLower(getenv("SECRET_STORAGE", "plain")),
	}

	// Any origin by default so a separately served web client works out of the
	// box; "none" turns CORS off.
	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", "*"), ",")
	if len(origins) == 1 && strings.EqualFold(strings.TrimSpace(origins[0]), "none") {
		origins = nil
	}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	marker := getenv("HASHTAG_MARKER", "#")
	if utf8.RuneCountInString(marker) != 1 {
		return cfg, fmt.Errorf("HASHTAG_MARKER must be a single character, got %q", marker)
	}
	cfg.HashtagMarker, _ = utf8.DecodeRuneInString(marker)

	switch cfg.SecretStorage {
	case "plain", "bcrypt":
	default:
		return cfg, fmt.Errorf("SECRET_STORAGE must be plain or bcrypt, got %q", cfg.SecretStorage)
	}

	switch cfg.LogFormat {
	case "json", "console":
	default:
		return cfg, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.LogFormat)
	}

	iv, err := time.ParseDuration(getenv("WORKER_INTERVAL", "800ms"))
	if err != nil || iv <= 0 {
		return cfg, fmt.Errorf("invalid WORKER_INTERVAL: %q", os.Getenv("WORKER_INTERVAL"))
	}
	cfg.WorkerInterval = iv

	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
