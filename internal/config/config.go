package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBPath    string
	Addr      string
	LogLevel  string
	LogFormat string
	// Redis is optional; an empty URL keeps project locks in process
	RedisURL string
	LockTTL  time.Duration
}

func Load() Config {
	return Config{
		DBPath:    getenv("CODEBOOK_DB", defaultDBPath()),
		Addr:      getenv("CODEBOOK_ADDR", ":8080"),
		LogLevel:  getenv("CODEBOOK_LOG_LEVEL", "info"),
		LogFormat: getenv("CODEBOOK_LOG_FORMAT", "text"),
		RedisURL:  getenv("REDIS_URL", ""),
		LockTTL:   time.Duration(getenvInt("CODEBOOK_LOCK_TTL_SECONDS", 30)) * time.Second,
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "codebook.db"
	}
	return home + "/.codebook.db"
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
