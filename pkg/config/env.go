package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"aistate/pkg/log"

	"github.com/joho/godotenv"
)

// DefaultEnvFiles are loaded in order; later files override earlier ones.
var DefaultEnvFiles = []string{".env", ".env.local"}

// LoadEnv loads environment variables from the given files, skipping missing ones.
// It returns the files that were actually loaded.
func LoadEnv(files ...string) []string {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}

	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			log.Warn().Err(err).Str("file", file).Msg("Failed to load env file")
			continue
		}
		loaded = append(loaded, file)
	}

	if len(loaded) == 0 {
		log.Debug().Msg("No env files loaded, relying on process environment")
	} else {
		log.Debug().Str("files", strings.Join(loaded, ", ")).Msg("Loaded env files")
	}
	return loaded
}

// GetEnv gets an environment variable with a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable with a default value.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvBool gets a boolean environment variable with a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvDuration gets a duration environment variable ("90s", "3m") with a default value.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
