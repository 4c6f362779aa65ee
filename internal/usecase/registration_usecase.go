package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/infrastructure/metrics"
)

// RegistrationUseCase turns posting requests into published ledger entries.
type RegistrationUseCase struct {
	publisher   LogPublisher
	balanceRepo BalanceRepository
	markerRepo  PlanMarkerRepository
	idGen       IDGenerator
	logger      zerolog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewRegistrationUseCase(
	publisher LogPublisher,
	balanceRepo BalanceRepository,
	markerRepo PlanMarkerRepository,
	idGen IDGenerator,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) *RegistrationUseCase {
	return &RegistrationUseCase{
		publisher:   publisher,
		balanceRepo: balanceRepo,
		markerRepo:  markerRepo,
		idGen:       idGen,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Register validates plan, publishes its entries keyed by account and
// returns the clock a reader must wait for to observe them.
//
// A failed publish may leave part of the plan in the log. Resubmitting the
// same plan is safe: replay applies each (batch, sequence) once per account.
func (uc *RegistrationUseCase) Register(ctx context.Context, plan *domain.Plan) (domain.Clock, error) {
	start := uc.now()

	currencies, err := uc.validate(plan)
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.PlansRejected.WithLabelValues(string(plan.Operation), errorType(err)).Inc()
		}
		return nil, err
	}

	now := uc.now().UTC()
	var entries []*domain.LedgerEntry
	for _, batch := range plan.Batches {
		var held bool
		held, err = uc.checkHold(ctx, plan.ID, batch)
		if err != nil {
			if uc.metrics != nil {
				uc.metrics.PlansRejected.WithLabelValues(string(plan.Operation), errorType(err)).Inc()
			}
			return nil, err
		}

		status := domain.ValidationStatusOK
		if plan.Operation.IsFinal() && !held {
			status = domain.ValidationStatusHoldMissing
			if uc.metrics != nil {
				uc.metrics.HoldMissingOnWrite.Inc()
			}
			uc.logger.Warn().
				Str("plan_id", plan.ID).
				Int64("batch_id", batch.ID).
				Msg("finalizing batch with no local hold")
		}

		batchEntries := domain.ExpandBatch(plan.ID, plan.Operation, batch, uc.idGen.Generate, now)
		for _, e := range batchEntries {
			e.ValidationStatus = status
		}
		entries = append(entries, batchEntries...)
	}

	// Claimed just before publishing so that two plans racing to open one
	// account in different currencies cannot both reach the log.
	if err := uc.balanceRepo.ClaimCurrencies(ctx, currencies); err != nil {
		if uc.metrics != nil {
			uc.metrics.PlansRejected.WithLabelValues(string(plan.Operation), errorType(err)).Inc()
		}
		return nil, err
	}

	positions, err := uc.publish(ctx, entries)
	if err != nil {
		return nil, err
	}

	clock := domain.ClockFromPositions(positions)

	if uc.metrics != nil {
		uc.metrics.PlansRegistered.WithLabelValues(string(plan.Operation)).Inc()
		uc.metrics.EntriesPublished.WithLabelValues(string(plan.Operation)).Add(float64(len(entries)))
		uc.metrics.RegistrationTime.WithLabelValues(string(plan.Operation)).Observe(time.Since(start).Seconds())
	}

	uc.logger.Debug().
		Str("plan_id", plan.ID).
		Str("operation", string(plan.Operation)).
		Int("entries", len(entries)).
		Str("clock", clock.Encode()).
		Msg("plan registered")

	return clock, nil
}

// validate checks the request and returns the currency of every account it
// names.
func (uc *RegistrationUseCase) validate(plan *domain.Plan) (map[int64]string, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	currencies := make(map[int64]string)
	for _, b := range plan.Batches {
		for _, p := range b.Postings {
			for _, acc := range []domain.Account{p.FromAccount, p.ToAccount} {
				if cur, ok := currencies[acc.ID]; ok && cur != acc.Currency {
					return nil, domain.NewValidationError(domain.ErrCurrencyMismatch,
						"account %d given as %s and %s", acc.ID, cur, acc.Currency)
				}
				currencies[acc.ID] = acc.Currency
			}
		}
	}

	return currencies, nil
}

// checkHold compares a batch with what was held for it locally and
// reports whether any hold was found. Content that differs from the hold
// is rejected, for a repeated hold as much as for a commit or rollback.
// A final batch with no local hold is still published and left for replay
// to decide.
func (uc *RegistrationUseCase) checkHold(ctx context.Context, planID string, batch domain.PostingBatch) (bool, error) {
	checksum := domain.BatchChecksum(batch)
	held := false

	for _, accountID := range batch.Accounts() {
		marker, err := uc.markerRepo.Get(ctx, planID, domain.OperationHold, accountID)
		if errors.Is(err, domain.ErrPlanMarkerNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}

		sum, ok := marker.Checksum(batch.ID)
		if !ok {
			continue
		}
		if sum != checksum {
			return false, domain.NewValidationError(domain.ErrChecksumMismatch,
				"plan %s batch %d", planID, batch.ID)
		}
		held = true
	}

	return held, nil
}

// publish appends entries partition by partition. Entries sharing a
// partition are published in order; partitions proceed concurrently.
func (uc *RegistrationUseCase) publish(ctx context.Context, entries []*domain.LedgerEntry) ([]domain.LogPosition, error) {
	pubCtx, cancel := context.WithTimeout(ctx, DefaultPublishTimeout)
	defer cancel()

	partitions := uc.publisher.Partitions()
	byPartition := make(map[int32][]*domain.LedgerEntry)
	for _, e := range entries {
		p := domain.PartitionFor(e.AccountID, partitions)
		byPartition[p] = append(byPartition[p], e)
	}

	groups := make([][]*domain.LedgerEntry, 0, len(byPartition))
	for _, group := range byPartition {
		groups = append(groups, group)
	}

	positions := make([][]domain.LogPosition, len(groups))
	g, gctx := errgroup.WithContext(pubCtx)
	for i, group := range groups {
		g.Go(func() error {
			out := make([]domain.LogPosition, 0, len(group))
			for _, e := range group {
				pos, err := uc.publisher.Publish(gctx, e.AccountID, e)
				if err != nil {
					return fmt.Errorf("publish entry %s: %w", e.ID, err)
				}
				out = append(out, pos)
			}
			positions[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.LogPosition
	for _, p := range positions {
		all = append(all, p...)
	}

	return all, nil
}
