package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/infrastructure/metrics"
)

var (
	// ErrInconsistentLedger is returned when settled balances do not sum to zero.
	ErrInconsistentLedger = errors.New("ledger is inconsistent: debits do not equal credits")
)

// LedgerUseCase is the service surface: plan writes, gated reads and
// operational inspection.
type LedgerUseCase struct {
	registration *RegistrationUseCase
	gate         *ConsistencyGate
	balanceRepo  BalanceRepository
	markerRepo   PlanMarkerRepository
	offsetRepo   OffsetRepository
	metrics      *metrics.Metrics
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	registration *RegistrationUseCase,
	gate *ConsistencyGate,
	balanceRepo BalanceRepository,
	markerRepo PlanMarkerRepository,
	offsetRepo OffsetRepository,
	metrics *metrics.Metrics,
) *LedgerUseCase {
	return &LedgerUseCase{
		registration: registration,
		gate:         gate,
		balanceRepo:  balanceRepo,
		markerRepo:   markerRepo,
		offsetRepo:   offsetRepo,
		metrics:      metrics,
	}
}

// Hold reserves funds for every batch of plan.
func (uc *LedgerUseCase) Hold(ctx context.Context, plan *domain.Plan, clock domain.Clock) (domain.Clock, error) {
	return uc.submit(ctx, domain.OperationHold, plan, clock)
}

// CommitPlan settles previously held batches of plan.
func (uc *LedgerUseCase) CommitPlan(ctx context.Context, plan *domain.Plan, clock domain.Clock) (domain.Clock, error) {
	return uc.submit(ctx, domain.OperationCommit, plan, clock)
}

// RollbackPlan releases previously held batches of plan.
func (uc *LedgerUseCase) RollbackPlan(ctx context.Context, plan *domain.Plan, clock domain.Clock) (domain.Clock, error) {
	return uc.submit(ctx, domain.OperationRollback, plan, clock)
}

// submit gates a write on clock so that checks against local state see
// everything the caller already wrote.
func (uc *LedgerUseCase) submit(ctx context.Context, op domain.Operation, plan *domain.Plan, clock domain.Clock) (domain.Clock, error) {
	if plan == nil {
		return nil, domain.NewValidationError(domain.ErrEmptyPlan, "no plan given")
	}
	plan.Operation = op

	if err := uc.gate.Check(ctx, clock, plan.Accounts()...); err != nil {
		return nil, err
	}

	return uc.registration.Register(ctx, plan)
}

// GetAccount returns the account once its state has caught up with clock.
func (uc *LedgerUseCase) GetAccount(ctx context.Context, id int64, clock domain.Clock) (*domain.Account, error) {
	balance, err := uc.read(ctx, "account", id, clock)
	if err != nil {
		return nil, err
	}

	account := balance.Account()
	return &account, nil
}

// GetBalance returns the balance once its state has caught up with clock.
func (uc *LedgerUseCase) GetBalance(ctx context.Context, id int64, clock domain.Clock) (*domain.Balance, error) {
	return uc.read(ctx, "balance", id, clock)
}

func (uc *LedgerUseCase) read(ctx context.Context, kind string, id int64, clock domain.Clock) (*domain.Balance, error) {
	balance, err := uc.readGated(ctx, id, clock)
	if uc.metrics != nil {
		status := "ok"
		if err != nil {
			status = errorType(err)
			if errors.Is(err, domain.ErrAccountNotFound) {
				status = "not_found"
			}
		}
		uc.metrics.Reads.WithLabelValues(kind, status).Inc()
	}
	return balance, err
}

func (uc *LedgerUseCase) readGated(ctx context.Context, id int64, clock domain.Clock) (*domain.Balance, error) {
	if err := uc.gate.Check(ctx, clock, id); err != nil {
		return nil, err
	}

	return uc.balanceRepo.Get(ctx, id)
}

// ListBalances returns every materialized balance ordered by account.
func (uc *LedgerUseCase) ListBalances(ctx context.Context) ([]*domain.Balance, error) {
	balances, err := uc.balanceRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	sort.Slice(balances, func(i, j int) bool {
		return balances[i].AccountID < balances[j].AccountID
	})

	return balances, nil
}

// ListOffsets returns the persisted consumer offset of every partition.
func (uc *LedgerUseCase) ListOffsets(ctx context.Context) (map[int32]int64, error) {
	return uc.offsetRepo.List(ctx)
}

// ListPlanMarkers returns the markers recorded for a plan.
func (uc *LedgerUseCase) ListPlanMarkers(ctx context.Context, planID string) ([]*domain.PlanMarker, error) {
	if err := domain.ValidatePlanID(planID); err != nil {
		return nil, domain.NewValidationError(domain.ErrInvalidPlanID, "%v", err)
	}

	return uc.markerRepo.ListByPlan(ctx, planID)
}

// CheckConsistency verifies that settled balances sum to zero per currency.
// Debit and credit of one posting may sit in different partitions, so the
// check is only meaningful once replay has drained the log.
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) (map[string]decimal.Decimal, error) {
	balances, err := uc.balanceRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal)
	for _, b := range balances {
		totals[b.Currency] = totals[b.Currency].Add(b.Amount)
	}

	for currency, total := range totals {
		if !total.IsZero() {
			return totals, fmt.Errorf("%w: %s totals %s", ErrInconsistentLedger, currency, total)
		}
	}

	return totals, nil
}
