package storage

import (
	"strconv"
	"time"

	"github.com/storyreel/backend/config"
)

// StrategyMode governs whether and how secondary writes are attempted.
type StrategyMode string

const (
	// StrategyRequired mirrors every write; a secondary failure rolls the
	// primary write back.
	StrategyRequired StrategyMode = "required"
	// StrategyPreferred mirrors every write but tolerates secondary
	// failure, returning a partial result.
	StrategyPreferred StrategyMode = "preferred"
	// StrategyFallback mirrors only when the secondary store is fully
	// configured, skipping silently otherwise.
	StrategyFallback StrategyMode = "fallback"
	// StrategyMock never touches the secondary store. Used in test
	// environments.
	StrategyMock StrategyMode = "mock"
)

// Strategy is the immutable per-process storage policy, constructed once
// from environment configuration.
type Strategy struct {
	Environment     string
	Mode            StrategyMode
	FallbackEnabled bool
	RetryAttempts   int
	Timeout         time.Duration
}

// StrategyFromEnv builds the storage strategy from environment variables.
// Unknown modes fall back to preferred so a typo never silently disables
// mirroring in production.
func StrategyFromEnv() Strategy {
	mode := StrategyMode(config.GetEnv("STORAGE_STRATEGY", string(StrategyPreferred)))
	switch mode {
	case StrategyRequired, StrategyPreferred, StrategyFallback, StrategyMock:
	default:
		mode = StrategyPreferred
	}

	attempts, err := strconv.Atoi(config.GetEnv("STORAGE_RETRY_ATTEMPTS", "3"))
	if err != nil || attempts < 1 {
		attempts = 3
	}

	timeoutMs, err := strconv.Atoi(config.GetEnv("STORAGE_TIMEOUT_MS", "5000"))
	if err != nil || timeoutMs < 1 {
		timeoutMs = 5000
	}

	return Strategy{
		Environment:     config.GetEnv("APP_ENV", "development"),
		Mode:            mode,
		FallbackEnabled: config.GetEnv("STORAGE_FALLBACK_ENABLED", "true") == "true",
		RetryAttempts:   attempts,
		Timeout:         time.Duration(timeoutMs) * time.Millisecond,
	}
}

// Validate checks the strategy against the secondary store's availability.
// The required mode with a disabled secondary store is a misconfiguration
// that must fail fast rather than produce unmirrored writes.
func (s Strategy) Validate(secondaryEnabled bool) error {
	if s.Mode == StrategyRequired && !secondaryEnabled {
		return &StorageStrategyError{
			Environment: s.Environment,
			Mode:        s.Mode,
			Message:     "secondary store is disabled but strategy requires it",
		}
	}
	return nil
}

// WantsSecondary reports whether this strategy attempts a secondary write
// given the secondary store's current availability.
func (s Strategy) WantsSecondary(secondaryEnabled bool) bool {
	switch s.Mode {
	case StrategyRequired, StrategyPreferred:
		return secondaryEnabled
	case StrategyFallback:
		return s.FallbackEnabled && secondaryEnabled
	default: // mock
		return false
	}
}
