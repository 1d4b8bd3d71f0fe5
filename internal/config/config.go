package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr          string
	JWTSecret     string
	Runner        string // "http" or "redis"
	RunnerURL     string
	RedisAddr     string
	RunTimeout    time.Duration
	ArchiveDriver string // "pgx", "sqlite3" or empty (disabled)
	ArchiveDSN    string
	ICEConfig     string
	SendBuffer    int
}

// Load reads flags and environment. Flags must not have been parsed yet.
func Load() (*Config, error) {
	addr := flag.String("addr", getEnv("ADDR", ":8080"), "http service address")
	flag.Parse()

	return fromEnv(*addr)
}

func fromEnv(addr string) (*Config, error) {
	cfg := &Config{
		Addr:          addr,
		JWTSecret:     os.Getenv("JWT_SECRET"),
		Runner:        getEnv("RUNNER", "http"),
		RunnerURL:     getEnv("RUNNER_URL", "http://localhost:2000/api/v2/execute"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		ArchiveDriver: os.Getenv("ARCHIVE_DRIVER"),
		ArchiveDSN:    os.Getenv("ARCHIVE_DSN"),
		ICEConfig:     os.Getenv("ICE_CONFIG"),
	}

	timeout, err := time.ParseDuration(getEnv("RUN_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("RUN_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("RUN_TIMEOUT must be positive, got %s", timeout)
	}
	cfg.RunTimeout = timeout

	buf, err := strconv.Atoi(getEnv("SEND_BUFFER", "256"))
	if err != nil {
		return nil, fmt.Errorf("SEND_BUFFER: %w", err)
	}
	if buf <= 0 {
		return nil, fmt.Errorf("SEND_BUFFER must be positive, got %d", buf)
	}
	cfg.SendBuffer = buf

	switch cfg.Runner {
	case "http", "redis":
	default:
		return nil, fmt.Errorf("unknown RUNNER %q (want http or redis)", cfg.Runner)
	}

	switch cfg.ArchiveDriver {
	case "":
	case "pgx", "sqlite3":
		if cfg.ArchiveDSN == "" {
			return nil, fmt.Errorf("ARCHIVE_DSN is required when ARCHIVE_DRIVER=%s", cfg.ArchiveDriver)
		}
	default:
		return nil, fmt.Errorf("unknown ARCHIVE_DRIVER %q (want pgx or sqlite3)", cfg.ArchiveDriver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
