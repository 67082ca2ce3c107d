package repositories

import (
	"context"
	"time"

	"github.com/storyreel/backend/storage"
)

// retryOperation runs fn up to r.retryAttempts times, sleeping
// delay * attemptNumber between attempts (linear backoff). The last error
// is returned untouched so the root cause stays visible to callers.
//
// Deterministic failures (validation, transformation, strategy
// misconfiguration, failed rollback) are never retried.
func (r *ProjectRepository) retryOperation(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= r.retryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !storage.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt < r.retryAttempts {
			select {
			case <-time.After(r.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return lastErr
			}
		}
	}
	return lastErr
}
