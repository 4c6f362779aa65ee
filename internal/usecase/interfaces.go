package usecase

import (
	"context"
	"time"

	"github.com/iho/accounter/internal/domain"
)

// BalanceRepository defines data access for account balances.
type BalanceRepository interface {
	Get(ctx context.Context, accountID int64) (*domain.Balance, error)
	GetForUpdate(ctx context.Context, tx Transaction, accountID int64) (*domain.Balance, error)
	Put(ctx context.Context, tx Transaction, balance *domain.Balance) error
	List(ctx context.Context) ([]*domain.Balance, error)
	// ClaimCurrencies binds accounts to currencies on first use and fails
	// with ErrCurrencyMismatch if any is bound to another.
	ClaimCurrencies(ctx context.Context, currencies map[int64]string) error
}

// PlanMarkerRepository defines data access for plan markers.
type PlanMarkerRepository interface {
	Get(ctx context.Context, planID string, op domain.Operation, accountID int64) (*domain.PlanMarker, error)
	GetForUpdate(ctx context.Context, tx Transaction, planID string, op domain.Operation, accountID int64) (*domain.PlanMarker, error)
	Put(ctx context.Context, tx Transaction, marker *domain.PlanMarker) error
	ListByPlan(ctx context.Context, planID string) ([]*domain.PlanMarker, error)
}

// OffsetRepository persists the next offset to consume per partition.
type OffsetRepository interface {
	// Load returns persisted offsets for the given partitions; partitions
	// never saved are absent from the result.
	Load(ctx context.Context, partitions []int32) (map[int32]int64, error)
	Save(ctx context.Context, offsets map[int32]int64) error
	List(ctx context.Context) (map[int32]int64, error)
}

// Transaction represents a storage transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation that failed on a retryable storage error.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// LogPublisher appends entries to the partitioned log.
type LogPublisher interface {
	// Publish appends entry to the partition owning key and returns where it landed.
	Publish(ctx context.Context, key int64, entry *domain.LedgerEntry) (domain.LogPosition, error)
	Partitions() int32
}

// LogSource opens readers over a group of partitions.
type LogSource interface {
	Open(ctx context.Context, partitions []int32) (LogReader, error)
}

// LogReader reads a fixed group of partitions in per-partition order.
type LogReader interface {
	// Seek positions the next read of partition at offset.
	Seek(partition int32, offset int64) error
	// Poll returns the records available past the current positions, waiting
	// at most timeout for any to appear. It advances the read positions.
	Poll(ctx context.Context, timeout time.Duration) ([]domain.LogRecord, error)
	Close() error
}

// EntryHandler applies one replicated entry to local state.
type EntryHandler interface {
	Apply(ctx context.Context, entry *domain.LedgerEntry) (domain.ApplyResult, error)
}

// IdempotentResponse is the stored outcome of a completed write request.
type IdempotentResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// IdempotencyStore remembers write responses by client supplied key.
type IdempotencyStore interface {
	// Reserve claims key for a new request. It returns the stored response
	// when the key already completed, and domain.ErrRequestInFlight when
	// another request holds it.
	Reserve(ctx context.Context, key string, ttl time.Duration) (*IdempotentResponse, error)
	// Complete stores the final response for key.
	Complete(ctx context.Context, key string, resp IdempotentResponse, ttl time.Duration) error
	// Release drops a reservation so the request can be retried.
	Release(ctx context.Context, key string) error
}
