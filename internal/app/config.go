package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr           string
	RequestTimeout     time.Duration
	LogLevel           string
	LogFormat          string
	HTTPRateLimitRPS   float64
	HTTPRateLimitBurst int

	TMDBAPIKey       string
	TMDBBaseURL      string
	TMDBLanguage     string
	TMDBImageBaseURL string
	TMDBRateLimitRPS float64

	LLMProvider string
	LLMModel    string
	LLMAPIKey   string
	LLMBaseURL  string
	OllamaHost  string
	LLMTimeout  time.Duration

	AIDailyLimit   int
	RedisURL       string
	QuotaKey       string
	QuotaStatePath string

	ResolverCacheMaxEntries int
	ResolverCacheTTL        time.Duration
	ResolverMaxConcurrency  int
	HistoryMaxEntries       int
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8091"),
		RequestTimeout:     time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		HTTPRateLimitRPS:   getEnvFloat("HTTP_RATE_LIMIT_RPS", 20),
		HTTPRateLimitBurst: getEnvInt("HTTP_RATE_LIMIT_BURST", 40),

		TMDBAPIKey:       strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL:      getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBLanguage:     getEnv("TMDB_LANGUAGE", "en-US"),
		TMDBImageBaseURL: getEnv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p"),
		TMDBRateLimitRPS: getEnvFloat("TMDB_RATE_LIMIT_RPS", 40),

		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", "googleai")),
		LLMModel:    getEnv("LLM_MODEL", ""),
		LLMAPIKey:   strings.TrimSpace(os.Getenv("LLM_API_KEY")),
		LLMBaseURL:  getEnv("LLM_BASE_URL", ""),
		OllamaHost:  getEnv("OLLAMA_HOST", "http://localhost:11434"),
		LLMTimeout:  time.Duration(getEnvInt("LLM_TIMEOUT_SECONDS", 10)) * time.Second,

		AIDailyLimit:   getEnvInt("AI_DAILY_LIMIT", 500),
		RedisURL:       getEnv("REDIS_URL", ""),
		QuotaKey:       getEnv("QUOTA_KEY", ""),
		QuotaStatePath: getEnv("QUOTA_STATE_PATH", defaultQuotaStatePath()),

		ResolverCacheMaxEntries: getEnvInt("RESOLVER_CACHE_MAX_ENTRIES", 2000),
		ResolverCacheTTL:        time.Duration(getEnvInt("RESOLVER_CACHE_TTL_HOURS", 24)) * time.Hour,
		ResolverMaxConcurrency:  getEnvInt("RESOLVER_MAX_CONCURRENCY", 8),
		HistoryMaxEntries:       getEnvInt("HISTORY_MAX_ENTRIES", 8),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// defaultQuotaStatePath is the local quota file used when Redis is not
// configured. It follows the XDG state directory convention.
func defaultQuotaStatePath() string {
	dir := strings.TrimSpace(os.Getenv("XDG_STATE_HOME"))
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "screenscape", "discovery-quota.json")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "screenscape", "discovery-quota.json")
}
