package repositories

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/storyreel/backend/cache"
	"github.com/storyreel/backend/storage"
	"github.com/stretchr/testify/assert"
)

func newRetryRepo(t *testing.T, attempts int, delay time.Duration) *ProjectRepository {
	t.Helper()

	primary := storage.NewMemoryPrimaryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	strategy := storage.Strategy{
		Environment:     "test",
		Mode:            storage.StrategyPreferred,
		FallbackEnabled: true,
		RetryAttempts:   attempts,
		Timeout:         time.Second,
	}
	engine := storage.NewEngine(primary, storage.NewMemorySecondaryStore(), nil, strategy, logger, nil, nil)
	return NewProjectRepository(engine, primary, cache.New(), logger, WithRetry(attempts, delay))
}

func TestRetryOperationBoundedAttempts(t *testing.T) {
	repo := newRetryRepo(t, 3, 0)

	calls := 0
	boom := errors.New("mongo down")
	err := repo.retryOperation(context.Background(), func() error {
		calls++
		return boom
	})

	assert.Equal(t, 3, calls)
	// The last error comes back untouched, not wrapped.
	assert.Same(t, boom, err)
}

func TestRetryOperationStopsOnSuccess(t *testing.T) {
	repo := newRetryRepo(t, 3, 0)

	calls := 0
	err := repo.retryOperation(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryOperationSkipsDeterministicFailures(t *testing.T) {
	repo := newRetryRepo(t, 3, 0)

	calls := 0
	strategyErr := &storage.StorageStrategyError{Environment: "test", Mode: storage.StrategyRequired, Message: "secondary disabled"}
	err := repo.retryOperation(context.Background(), func() error {
		calls++
		return strategyErr
	})

	assert.Equal(t, 1, calls)
	assert.ErrorAs(t, err, &strategyErr)
}

func TestRetryOperationLinearBackoff(t *testing.T) {
	const delay = 10 * time.Millisecond
	repo := newRetryRepo(t, 3, delay)

	start := time.Now()
	err := repo.retryOperation(context.Background(), func() error {
		return errors.New("mongo down")
	})
	elapsed := time.Since(start)

	assert.Error(t, err)
	// Sleeps of delay*1 then delay*2 between the three attempts; a constant
	// backoff would finish after only 2*delay.
	assert.GreaterOrEqual(t, elapsed, 3*delay)
}

func TestRetryOperationHonorsContextCancellation(t *testing.T) {
	repo := newRetryRepo(t, 3, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	start := time.Now()
	err := repo.retryOperation(ctx, func() error {
		calls++
		return errors.New("mongo down")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second)
}
