// Package config loads the environment-variable toggles spec.md §6 names
// plus the ambient HTTP/persistence settings SPEC_FULL.md adds, optionally
// from a .env file via github.com/joho/godotenv the way the rest of the
// retrieved pack does.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds every environment toggle the core consults.
type Config struct {
	EnableActuators        bool
	EnableKeypress          bool
	KeypressAllowedProcesses []string
	DefaultWatchCondition   string
	AdvisoryURL             string
	AdvisoryTimeout         time.Duration
	StandingOrdersPath      string

	HTTPAddr     string
	SQLitePath   string
}

// Load reads a .env file if present (missing file is not an error, matching
// the rest of the ecosystem's tolerant godotenv.Load usage) and then
// resolves every toggle from the process environment.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			log.Warn().Err(err).Str("path", envPath).Msg("config: could not load .env file, continuing with process environment")
		}
	}

	cfg := &Config{
		EnableActuators:          boolEnv("ENABLE_ACTUATORS", false),
		EnableKeypress:           boolEnv("ENABLE_KEYPRESS", false),
		KeypressAllowedProcesses: splitCSV(os.Getenv("KEYPRESS_ALLOWED_PROCESSES")),
		DefaultWatchCondition:    envOr("DEFAULT_WATCH_CONDITION", "STANDBY"),
		AdvisoryURL:              os.Getenv("ADVISORY_URL"),
		AdvisoryTimeout:          durationSecondsEnv("ADVISORY_TIMEOUT_SEC", 8*time.Second),
		StandingOrdersPath:       envOr("STANDING_ORDERS_PATH", "configs/standing_orders.json"),
		HTTPAddr:                 envOr("WATCHKEEPER_HTTP_ADDR", ":8085"),
		SQLitePath:               envOr("WATCHKEEPER_SQLITE_PATH", "watchkeeper.db"),
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func boolEnv(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("config: could not parse boolean env var, using default")
		return fallback
	}
	return parsed
}

func durationSecondsEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("config: could not parse seconds env var, using default")
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
