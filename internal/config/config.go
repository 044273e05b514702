// Package config loads the environment knobs described in spec.md §6:
// statement timeout defaults, outbound capability restrictions for
// http::* functions, and response body-size caps enforced by the layer
// above this core.
//
// What: A small struct bound from environment variables.
// How: github.com/spf13/viper's AutomaticEnv reads QLCORE_*-prefixed
// variables; no command-line flags are parsed (flag parsing is an
// out-of-scope external collaborator per spec.md §1).
// Why: The executor and transaction need these values at construction
// time without each caller re-deriving env var names by hand.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Knobs holds the environment-configurable limits the executor and its
// callers consult.
type Knobs struct {
	// DefaultTimeout is used when a statement omits an explicit TIMEOUT.
	DefaultTimeout time.Duration

	// MaxBodyBytes bounds request/response bodies the layer above this
	// core will accept; exposed here only so tests can exercise the
	// max_body() function hook without a live API layer.
	MaxBodyBytes int64

	// AllowedNetTargets restricts hosts http::* functions may reach.
	// Empty means no outbound network access is permitted.
	AllowedNetTargets []string

	// MaxCommitRetries bounds the Conflict retry loop in
	// Session.ExecuteStatements (qlcore.go): the total number of attempts
	// at a batch (spec.md §7).
	MaxCommitRetries int

	// OrderedBufferCap is loaded but not consulted: ORDER BY and GROUP BY
	// work on fully materialized rows with no size bound.
	OrderedBufferCap int
}

// Default returns the knob set used when no environment overrides apply.
func Default() Knobs {
	return Knobs{
		DefaultTimeout:   30 * time.Second,
		MaxBodyBytes:     10 << 20,
		AllowedNetTargets: nil,
		MaxCommitRetries: 5,
		OrderedBufferCap: 100_000,
	}
}

// Load reads QLCORE_* environment variables over the defaults.
func Load() Knobs {
	v := viper.New()
	v.SetEnvPrefix("QLCORE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	k := Default()
	if v.IsSet("default_timeout") {
		if d, err := time.ParseDuration(v.GetString("default_timeout")); err == nil {
			k.DefaultTimeout = d
		}
	}
	if v.IsSet("max_body_bytes") {
		k.MaxBodyBytes = v.GetInt64("max_body_bytes")
	}
	if v.IsSet("allowed_net_targets") {
		raw := v.GetString("allowed_net_targets")
		if raw != "" {
			k.AllowedNetTargets = strings.Split(raw, ",")
		}
	}
	if v.IsSet("max_commit_retries") {
		k.MaxCommitRetries = v.GetInt("max_commit_retries")
	}
	if v.IsSet("ordered_buffer_cap") {
		k.OrderedBufferCap = v.GetInt("ordered_buffer_cap")
	}
	return k
}

// NetAllowed reports whether host is in the capability allow-list. An empty
// list denies everything, matching a fail-closed default.
func (k Knobs) NetAllowed(host string) bool {
	for _, allowed := range k.AllowedNetTargets {
		if strings.EqualFold(allowed, host) {
			return true
		}
	}
	return false
}
