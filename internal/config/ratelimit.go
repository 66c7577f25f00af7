package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedEnv is returned when a variable is set but cannot be parsed.
var ErrMalformedEnv = errors.New("malformed environment variable")

// RateLimitConfig controls the token bucket placed in front of uploads.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  Out-of-range values
// are clamped; values that do not parse are an error.
func LoadRateLimitConfig() (RateLimitConfig, error) {
	var env envReader
	def := RateLimitConfig{
		Enabled:        env.boolean("RATE_LIMIT_ENABLED", true),
		Capacity:       env.integer("RATE_LIMIT_CAPACITY", 10),
		RefillTokens:   env.integer("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: env.duration("RATE_LIMIT_REFILL_INTERVAL", 6*time.Second),
		TTL:            env.duration("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "user_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "docconv:rl"),
		Debug:          env.boolean("RATE_LIMIT_DEBUG", false),
	}
	if b := env.integer("RATE_LIMIT_BURST", -1); b > 0 {
		def.Capacity = b
	}
	if err := env.err(); err != nil {
		return RateLimitConfig{}, err
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	if minTTL := 5 * def.RefillInterval; def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def, nil
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// envReader parses typed variables.  Unset or empty variables yield the
// default; set but malformed ones are recorded and reported by err.
type envReader struct {
	malformed []string
}

func (r *envReader) bad(k, v string) {
	r.malformed = append(r.malformed, fmt.Sprintf("%s=%q", k, v))
}

func (r *envReader) err() error {
	if len(r.malformed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMalformedEnv, strings.Join(r.malformed, ", "))
}

func (r *envReader) boolean(k string, d bool) bool {
	v := os.Getenv(k)
	switch strings.ToLower(v) {
	case "":
		return d
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	r.bad(k, v)
	return d
}

func (r *envReader) integer(k string, d int) int {
	return int(r.int64(k, int64(d)))
}

func (r *envReader) int64(k string, d int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		r.bad(k, v)
		return d
	}
	return n
}

func (r *envReader) duration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	dur, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		r.bad(k, v)
		return d
	}
	return dur
}
