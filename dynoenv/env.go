// Package dynoenv loads dyno.Options from environment variables, grounded
// on Resinat-Resin/internal/config.LoadEnvConfig's flat envStr/envInt/
// envDuration-with-default style (not a config file parser, which stays
// out of scope per spec.md §1).
package dynoenv

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorcz/dyno"
)

// EnvConfig holds the environment-variable-driven settings used to build a
// dyno.Options. Unlike dyno.Options itself, it carries no callback/factory
// fields — those are still wired in code by the demo binary.
type EnvConfig struct {
	Name                    string
	Port                    int
	MaxConnsPerHost         int
	ConnectTimeout          time.Duration
	MaxTimeoutWhenExhausted time.Duration
	PoolTypeAsync           bool
	RefreshSchedule         string
}

// Load reads DYNO_* environment variables and returns a validated
// EnvConfig.
func Load() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	cfg.Name = envStr("DYNO_NAME", "default")
	cfg.Port = envInt("DYNO_PORT", 8102, &errs)
	cfg.MaxConnsPerHost = envInt("DYNO_MAX_CONNS_PER_HOST", dyno.DefaultMaxConnsPerHost, &errs)
	cfg.ConnectTimeout = envDuration("DYNO_CONNECT_TIMEOUT", dyno.DefaultConnectTimeout, &errs)
	cfg.MaxTimeoutWhenExhausted = envDuration(
		"DYNO_MAX_TIMEOUT_WHEN_EXHAUSTED", dyno.DefaultMaxTimeoutWhenExhausted, &errs,
	)
	cfg.PoolTypeAsync = strings.EqualFold(envStr("DYNO_POOL_TYPE", "sync"), "async")
	cfg.RefreshSchedule = envStr("DYNO_REFRESH_SCHEDULE", "")

	validatePort("DYNO_PORT", cfg.Port, &errs)
	validatePositive("DYNO_MAX_CONNS_PER_HOST", cfg.MaxConnsPerHost, &errs)
	if cfg.ConnectTimeout <= 0 {
		errs = append(errs, "DYNO_CONNECT_TIMEOUT must be positive")
	}
	if cfg.MaxTimeoutWhenExhausted <= 0 {
		errs = append(errs, "DYNO_MAX_TIMEOUT_WHEN_EXHAUSTED must be positive")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("dynoenv: config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return cfg, nil
}

// PoolType returns the dyno.PoolType selected by DYNO_POOL_TYPE.
func (c *EnvConfig) PoolType() dyno.PoolType {
	if c.PoolTypeAsync {
		return dyno.PoolTypeAsync
	}
	return dyno.PoolTypeSync
}

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}
