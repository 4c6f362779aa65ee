package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/infrastructure/metrics"
)

// BalanceUseCase replays ledger entries into account balances.
// It implements EntryHandler.
type BalanceUseCase struct {
	txManager   TransactionManager
	balanceRepo BalanceRepository
	markerRepo  PlanMarkerRepository
	retrier     Retrier
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewBalanceUseCase(
	txManager TransactionManager,
	balanceRepo BalanceRepository,
	markerRepo PlanMarkerRepository,
	retrier Retrier,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *BalanceUseCase {
	return &BalanceUseCase{
		txManager:   txManager,
		balanceRepo: balanceRepo,
		markerRepo:  markerRepo,
		retrier:     retrier,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Apply applies one entry to its account exactly once in effect.
// Storage failures are returned; the caller must not advance past the entry.
func (uc *BalanceUseCase) Apply(ctx context.Context, entry *domain.LedgerEntry) (domain.ApplyResult, error) {
	start := uc.now()

	var result domain.ApplyResult
	op := func() error {
		var err error
		result, err = uc.applyOnce(ctx, entry)
		return err
	}

	var err error
	if uc.retrier != nil {
		err = uc.retrier.Retry(ctx, op)
	} else {
		err = op()
	}

	if err != nil {
		if uc.metrics != nil {
			uc.metrics.ApplyErrors.WithLabelValues(errorType(err)).Inc()
		}
		return domain.ApplyResult{}, fmt.Errorf("apply entry %s of plan %s: %w", entry.ID, entry.PlanID, err)
	}

	if uc.metrics != nil {
		uc.metrics.EntriesApplied.WithLabelValues(string(entry.Operation), string(result.Status)).Inc()
		uc.metrics.ApplyDuration.Observe(time.Since(start).Seconds())
	}

	if result.Status.Rejected() {
		uc.logger.Warn().
			Str("plan_id", entry.PlanID).
			Int64("batch_id", entry.BatchID).
			Int64("account_id", entry.AccountID).
			Str("operation", string(entry.Operation)).
			Str("status", string(result.Status)).
			Msg("entry rejected on replay, not applied")
	}

	return result, nil
}

func (uc *BalanceUseCase) applyOnce(ctx context.Context, entry *domain.LedgerEntry) (domain.ApplyResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return domain.ApplyResult{}, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	marker, err := uc.getMarker(txCtx, tx, entry.PlanID, entry.Operation, entry.AccountID)
	if err != nil {
		return domain.ApplyResult{}, err
	}
	if status, ok := marker.Rejection(entry.ID); ok {
		return domain.ApplyResult{Status: status}, tx.Commit(txCtx)
	}
	if sum, ok := marker.Checksum(entry.BatchID); ok && sum != entry.BatchChecksum {
		return uc.reject(txCtx, tx, marker, entry, domain.ApplyStatusChecksumMismatch)
	}
	if marker.Has(entry.BatchID, entry.Sequence) {
		return domain.ApplyResult{Status: domain.ApplyStatusDuplicate}, tx.Commit(txCtx)
	}

	if entry.Operation.IsFinal() {
		// First of commit or rollback to reach a batch wins.
		opposite, err := uc.getMarker(txCtx, tx, entry.PlanID, entry.Operation.Opposite(), entry.AccountID)
		if err != nil {
			return domain.ApplyResult{}, err
		}
		if opposite.HasBatch(entry.BatchID) {
			return domain.ApplyResult{Status: domain.ApplyStatusDuplicate}, tx.Commit(txCtx)
		}

		hold, err := uc.getMarker(txCtx, tx, entry.PlanID, domain.OperationHold, entry.AccountID)
		if err != nil {
			return domain.ApplyResult{}, err
		}
		sum, ok := hold.Checksum(entry.BatchID)
		if !ok {
			return uc.reject(txCtx, tx, marker, entry, domain.ApplyStatusHoldMissing)
		}
		// Finalizing different content than was held would leave the
		// hold bounds behind or break them.
		if sum != entry.BatchChecksum {
			return uc.reject(txCtx, tx, marker, entry, domain.ApplyStatusChecksumMismatch)
		}
	}

	balance, err := uc.balanceRepo.GetForUpdate(txCtx, tx, entry.AccountID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		balance = domain.NewBalance(entry.AccountID, entry.Currency)
	} else if err != nil {
		return domain.ApplyResult{}, err
	}

	if balance.Currency != entry.Currency {
		return uc.reject(txCtx, tx, marker, entry, domain.ApplyStatusCurrencyMismatch)
	}
	if err := balance.Apply(entry.Operation, entry.Amount); err != nil {
		return domain.ApplyResult{}, err
	}
	balance.UpdatedAt = uc.now().UTC()

	if marker == nil {
		marker = domain.NewPlanMarker(entry.PlanID, entry.Operation, entry.AccountID)
	}
	marker.Mark(entry)
	marker.UpdatedAt = balance.UpdatedAt

	if err := uc.balanceRepo.Put(txCtx, tx, balance); err != nil {
		return domain.ApplyResult{}, err
	}
	if err := uc.markerRepo.Put(txCtx, tx, marker); err != nil {
		return domain.ApplyResult{}, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return domain.ApplyResult{}, err
	}

	return domain.ApplyResult{Status: domain.ApplyStatusApplied, Balance: balance}, nil
}

// reject records the refusal on the entry's marker and writes nothing
// else. A redelivered entry gets the same answer even if the state that
// decided it has moved on since.
func (uc *BalanceUseCase) reject(ctx context.Context, tx Transaction, marker *domain.PlanMarker, entry *domain.LedgerEntry, status domain.ApplyStatus) (domain.ApplyResult, error) {
	if marker == nil {
		marker = domain.NewPlanMarker(entry.PlanID, entry.Operation, entry.AccountID)
	}
	marker.Reject(entry, status)

	if err := uc.markerRepo.Put(ctx, tx, marker); err != nil {
		return domain.ApplyResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.ApplyResult{}, err
	}
	return domain.ApplyResult{Status: status}, nil
}

// getMarker returns nil without error when no marker exists yet.
func (uc *BalanceUseCase) getMarker(ctx context.Context, tx Transaction, planID string, op domain.Operation, accountID int64) (*domain.PlanMarker, error) {
	marker, err := uc.markerRepo.GetForUpdate(ctx, tx, planID, op, accountID)
	if errors.Is(err, domain.ErrPlanMarkerNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return marker, nil
}
