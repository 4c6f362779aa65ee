package usecase

import "time"

const (
	// DefaultTransactionTimeout bounds one storage transaction
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultPublishTimeout bounds publishing all entries of one plan
	DefaultPublishTimeout = 30 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)
