/*
Package config loads runtime configuration and builds the logger.

SOURCES (later wins):
  1. Defaults
  2. .env file in the working directory (optional, never overrides the environment)
  3. Environment variables
  4. Command-line flags (applied by cmd/server)

ENVIRONMENT:
  PORT              HTTP port (default 8080)
  DB_PATH           SQLite path, ":memory:" for in-memory (default margin.db)
  LOG_LEVEL         logrus level: debug, info, warn, error (default info)
  LOG_FORMAT        "json" or "text" (default json)
  SEED_FILE         Reference-data document loaded at startup (JSON or YAML)
  CORS_ORIGINS      Comma-separated allowed origins
  SHUTDOWN_TIMEOUT  Graceful shutdown window, Go duration (default 30s)
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort            = 8080
	defaultDBPath          = "margin.db"
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
	defaultShutdownTimeout = 30 * time.Second
)

var defaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// Config holds application configuration.
type Config struct {
	Port            int
	DBPath          string
	LogLevel        string
	LogFormat       string
	SeedFile        string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an error.
func LoadFile(envPath string) (Config, error) {
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envPath, err)
	}

	cfg := Config{
		Port:            defaultPort,
		DBPath:          getenv("DB_PATH", defaultDBPath),
		LogLevel:        getenv("LOG_LEVEL", defaultLogLevel),
		LogFormat:       getenv("LOG_FORMAT", defaultLogFormat),
		SeedFile:        os.Getenv("SEED_FILE"),
		CORSOrigins:     defaultCORSOrigins,
		ShutdownTimeout: defaultShutdownTimeout,
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q: %w", v, err)
		}
		cfg.ShutdownTimeout = timeout
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
