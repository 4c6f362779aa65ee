package badger

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/infrastructure/metrics"
)

// Retrier implements usecase.Retrier with exponential backoff.
type Retrier struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	logger          zerolog.Logger
	metrics         *metrics.Metrics
}

// NewRetrier creates a new store retrier with default settings.
func NewRetrier(logger zerolog.Logger, m *metrics.Metrics) *Retrier {
	return &Retrier{
		maxRetries:      5,
		initialInterval: 5 * time.Millisecond,
		maxInterval:     200 * time.Millisecond,
		maxElapsedTime:  5 * time.Second,
		logger:          logger,
		metrics:         m,
	}
}

// Retry executes an operation with exponential backoff on retryable errors.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = r.maxElapsedTime

	retryCount := 0

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}

		if !isRetryableError(err) {
			return backoff.Permanent(err)
		}

		retryCount++
		if retryCount > r.maxRetries {
			return backoff.Permanent(err)
		}

		if r.metrics != nil {
			r.metrics.StorageConflicts.Inc()
		}
		r.logger.Warn().
			Err(err).
			Int("retry", retryCount).
			Msg("transaction conflict, retrying")

		return err
	}, backoff.WithContext(b, ctx))
}

// isRetryableError reports whether err came from two transactions racing on a key.
func isRetryableError(err error) bool {
	return errors.Is(err, domain.ErrConflict) || errors.Is(err, badgerdb.ErrConflict)
}
