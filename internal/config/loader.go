// Package config loads the service configuration from the environment, with
// an optional .env file picked up for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the roomboard
// service.
type Config struct {
	HTTPPort       int
	Host           string
	DataDir        string
	AllowedOrigins []string
	MaxUploadBytes int64
	MaxBackups     int
	RateLimitRPS   float64
	RateLimitBurst int
	ConflictCheck  bool
	GateSecret     string
	SessionSecret  string
	SessionTTL     time.Duration
	DefaultRooms   []string
}

// Load parses configuration values from the current process environment. A
// .env file in the working directory is merged in first when present.
//
// Defaults cover every optional field; required values and malformed entries
// are accumulated and reported together.
func Load() (Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:       3000,
		Host:           "0.0.0.0",
		DataDir:        "data",
		AllowedOrigins: []string{"*"},
		MaxUploadBytes: 10 << 20,
		MaxBackups:     10,
		RateLimitRPS:   50,
		RateLimitBurst: 100,
		SessionTTL:     8 * time.Hour,
		DefaultRooms:   []string{"Room A", "Room B", "Room C"},
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	if value := strings.TrimSpace(os.Getenv("ROOMBOARD_HTTP_PORT")); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 {
			invalid = append(invalid, "ROOMBOARD_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if value := strings.TrimSpace(os.Getenv("ROOMBOARD_HOST")); value != "" {
		cfg.Host = value
	}

	if value := strings.TrimSpace(os.Getenv("ROOMBOARD_DATA_DIR")); value != "" {
		cfg.DataDir = value
	}

	if value := strings.TrimSpace(os.Getenv("ROOMBOARD_ALLOWED_ORIGINS")); value != "" {
		cfg.AllowedOrigins = splitCSV(value)
	}

	if value := strings.TrimSpace(os.Getenv("ROOMBOARD_MAX_UPLOAD_BYTES")); value != "" {
		size, err := strconv.ParseInt(value, 10, 64)
		if err != nil || size <= 0 {
			invalid = append(invalid, "ROOMBOARD_MAX_UPLOAD_BYTES")
		} else {
			cfg.MaxUploadBytes = size
		}
	}

	if value := strings.TrimSpace(os.Getenv("ROOMBOARD_MAX_BACKUPS")); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			invalid = append(invalid, "ROOMBOARD_MAX_BACKUPS")
		} else {
			cfg.MaxBackups = n
		}
	}

	if value := strings.TrimSpace(os.Getenv("ROOMBOARD_RATE_LIMIT_RPS")); value != "" {
		rps, err := strconv.ParseFloat(value, 64)
		if err != nil || rps <= 0 {
			invalid = append(invalid, "ROOMBOARD_RATE_LIMIT_RPS")
		} else {
			cfg.RateLimitRPS = rps
		}
	}

	if value := strings.TrimSpace(os.Getenv("ROOMBOARD_RATE_LIMIT_BURST")); value != "" {
		burst, err := strconv.Atoi(value)
		if err != nil || burst <= 0 {
			invalid = append(invalid, "ROOMBOARD_RATE_LIMIT_BURST")
		} else {
			cfg.RateLimitBurst = burst
		}
	}

	if value := strings.TrimSpace(os.Getenv("ROOMBOARD_CONFLICT_CHECK")); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			invalid = append(invalid, "ROOMBOARD_CONFLICT_CHECK")
		} else {
			cfg.ConflictCheck = enabled
		}
	}

	if secret := strings.TrimSpace(os.Getenv("ROOMBOARD_GATE_SECRET")); secret == "" {
		missing = append(missing, "ROOMBOARD_GATE_SECRET")
	} else {
		cfg.GateSecret = secret
	}

	if secret := strings.TrimSpace(os.Getenv("ROOMBOARD_SESSION_SECRET")); secret == "" {
		missing = append(missing, "ROOMBOARD_SESSION_SECRET")
	} else {
		cfg.SessionSecret = secret
	}

	if value := strings.TrimSpace(os.Getenv("ROOMBOARD_SESSION_TTL")); value != "" {
		ttl, err := time.ParseDuration(value)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "ROOMBOARD_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if value := strings.TrimSpace(os.Getenv("ROOMBOARD_DEFAULT_ROOMS")); value != "" {
		cfg.DefaultRooms = splitCSV(value)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
