package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/usecase"
	"github.com/iho/accounter/internal/usecase/mocks"
)

func TestBalanceUseCase_HoldCommit(t *testing.T) {
	s := newStore(t)
	uc := s.balanceUseCase()

	hold := plan("p1", domain.OperationHold, batch(1, posting(1, 2, "100")))
	applyAll(t, uc, expand(hold))

	assertBalance(t, s.balance(t, 1), wantBalance{"-100", "0", "0"})
	assertBalance(t, s.balance(t, 2), wantBalance{"0", "0", "100"})

	commit := plan("p1", domain.OperationCommit, batch(1, posting(1, 2, "100")))
	statuses := applyAll(t, uc, expand(commit))
	for _, st := range statuses {
		if st != domain.ApplyStatusApplied {
			t.Fatalf("expected applied, got %s", st)
		}
	}

	assertBalance(t, s.balance(t, 1), wantBalance{"-100", "-100", "-100"})
	assertBalance(t, s.balance(t, 2), wantBalance{"100", "100", "100"})
}

func TestBalanceUseCase_HoldRollback(t *testing.T) {
	s := newStore(t)
	uc := s.balanceUseCase()

	applyAll(t, uc, expand(plan("p1", domain.OperationHold, batch(1, posting(1, 2, "100")))))
	applyAll(t, uc, expand(plan("p1", domain.OperationRollback, batch(1, posting(1, 2, "100")))))

	assertBalance(t, s.balance(t, 1), wantBalance{"0", "0", "0"})
	assertBalance(t, s.balance(t, 2), wantBalance{"0", "0", "0"})
}

func TestBalanceUseCase_ReplayIsIdempotent(t *testing.T) {
	s := newStore(t)
	uc := s.balanceUseCase()

	entries := expand(plan("p1", domain.OperationHold, batch(1, posting(1, 2, "40"), posting(1, 3, "2.5"))))
	applyAll(t, uc, entries)

	statuses := applyAll(t, uc, entries)
	for i, st := range statuses {
		if st != domain.ApplyStatusDuplicate {
			t.Fatalf("entry %d: expected duplicate on replay, got %s", i, st)
		}
	}

	// Two entries of one batch on the same account are distinct by sequence.
	assertBalance(t, s.balance(t, 1), wantBalance{"-42.5", "0", "0"})
	assertBalance(t, s.balance(t, 3), wantBalance{"0", "0", "2.5"})
}

func TestBalanceUseCase_FirstFinalWins(t *testing.T) {
	s := newStore(t)
	uc := s.balanceUseCase()

	b := batch(1, posting(1, 2, "10"))
	applyAll(t, uc, expand(plan("p1", domain.OperationHold, b)))
	applyAll(t, uc, expand(plan("p1", domain.OperationCommit, b)))

	statuses := applyAll(t, uc, expand(plan("p1", domain.OperationRollback, b)))
	for _, st := range statuses {
		if st != domain.ApplyStatusDuplicate {
			t.Fatalf("expected rollback after commit to be a duplicate, got %s", st)
		}
	}

	assertBalance(t, s.balance(t, 1), wantBalance{"-10", "-10", "-10"})
}

func TestBalanceUseCase_HoldMissing(t *testing.T) {
	s := newStore(t)
	uc := s.balanceUseCase()

	entries := expand(plan("p1", domain.OperationCommit, batch(1, posting(1, 2, "10"))))
	statuses := applyAll(t, uc, entries)
	for _, st := range statuses {
		if st != domain.ApplyStatusHoldMissing {
			t.Fatalf("expected hold_missing, got %s", st)
		}
	}

	if _, err := s.balances.Get(context.Background(), 1); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected no balance to be written, got %v", err)
	}
	marker, err := s.markers.Get(context.Background(), "p1", domain.OperationCommit, 1)
	if err != nil {
		t.Fatalf("get marker: %v", err)
	}
	if marker.HasBatch(1) {
		t.Fatalf("expected the batch not to be marked applied")
	}
	if st, ok := marker.Rejection(entries[0].ID); !ok || st != domain.ApplyStatusHoldMissing {
		t.Fatalf("expected the rejection to be recorded, got %q", st)
	}
}

func TestBalanceUseCase_HoldMissingForOtherBatch(t *testing.T) {
	s := newStore(t)
	uc := s.balanceUseCase()

	applyAll(t, uc, expand(plan("p1", domain.OperationHold, batch(1, posting(1, 2, "10")))))

	statuses := applyAll(t, uc, expand(plan("p1", domain.OperationCommit, batch(2, posting(1, 2, "10")))))
	if statuses[0] != domain.ApplyStatusHoldMissing {
		t.Fatalf("expected hold_missing for a batch never held, got %s", statuses[0])
	}
	assertBalance(t, s.balance(t, 1), wantBalance{"-10", "0", "0"})
}

func TestBalanceUseCase_HoldBuiltFromSeveralBatches(t *testing.T) {
	s := newStore(t)
	uc := s.balanceUseCase()

	applyAll(t, uc, expand(plan("p1", domain.OperationHold, batch(1, posting(1, 2, "10")))))
	applyAll(t, uc, expand(plan("p1", domain.OperationHold, batch(2, posting(1, 2, "5")))))
	assertBalance(t, s.balance(t, 1), wantBalance{"-15", "0", "0"})

	applyAll(t, uc, expand(plan("p1", domain.OperationCommit, batch(2, posting(1, 2, "5")))))
	applyAll(t, uc, expand(plan("p1", domain.OperationRollback, batch(1, posting(1, 2, "10")))))

	assertBalance(t, s.balance(t, 1), wantBalance{"-5", "-5", "-5"})
	assertBalance(t, s.balance(t, 2), wantBalance{"5", "5", "5"})

	marker, err := s.markers.Get(context.Background(), "p1", domain.OperationHold, 1)
	if err != nil {
		t.Fatalf("get marker: %v", err)
	}
	if !marker.HasBatch(1) || !marker.HasBatch(2) {
		t.Fatalf("expected hold marker to record both batches, got %+v", marker.Batches)
	}
}

func TestBalanceUseCase_CurrencyMismatch(t *testing.T) {
	s := newStore(t)
	uc := s.balanceUseCase()

	applyAll(t, uc, expand(plan("p1", domain.OperationHold, batch(1, posting(1, 2, "10")))))

	entry := expand(plan("p2", domain.OperationHold, batch(1, posting(1, 2, "10"))))[0]
	entry.Currency = "EUR"

	// Refused without an error so the partition keeps moving.
	for i := 0; i < 2; i++ {
		res, err := uc.Apply(context.Background(), entry)
		if err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
		if res.Status != domain.ApplyStatusCurrencyMismatch {
			t.Fatalf("apply %d: expected currency_mismatch, got %s", i, res.Status)
		}
	}
	assertBalance(t, s.balance(t, 1), wantBalance{"-10", "0", "0"})
}

func TestBalanceUseCase_FinalContentMustMatchHold(t *testing.T) {
	tests := []struct {
		name   string
		op     domain.Operation
		amount string
	}{
		{"commit more than held", domain.OperationCommit, "500"},
		{"commit less than held", domain.OperationCommit, "30"},
		{"roll back less than held", domain.OperationRollback, "30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			uc := s.balanceUseCase()

			held := batch(1, posting(1, 2, "100"))
			applyAll(t, uc, expand(plan("p1", domain.OperationHold, held)))

			statuses := applyAll(t, uc, expand(plan("p1", tt.op, batch(1, posting(1, 2, tt.amount)))))
			for _, st := range statuses {
				if st != domain.ApplyStatusChecksumMismatch {
					t.Fatalf("expected checksum_mismatch, got %s", st)
				}
			}
			assertBalance(t, s.balance(t, 1), wantBalance{"-100", "0", "0"})
			assertBalance(t, s.balance(t, 2), wantBalance{"0", "0", "100"})

			// The held content still finalizes afterwards.
			statuses = applyAll(t, uc, expand(plan("p1", domain.OperationCommit, held)))
			for _, st := range statuses {
				if st != domain.ApplyStatusApplied {
					t.Fatalf("expected applied, got %s", st)
				}
			}
			assertBalance(t, s.balance(t, 1), wantBalance{"-100", "-100", "-100"})
			assertBalance(t, s.balance(t, 2), wantBalance{"100", "100", "100"})
		})
	}
}

func TestBalanceUseCase_HoldResubmittedWithOtherContent(t *testing.T) {
	s := newStore(t)
	uc := s.balanceUseCase()

	applyAll(t, uc, expand(plan("p1", domain.OperationHold, batch(1, posting(1, 2, "10")))))

	statuses := applyAll(t, uc, expand(plan("p1", domain.OperationHold,
		batch(1, posting(1, 2, "10"), posting(1, 3, "7")))))
	for i, st := range statuses {
		// Account 3 has no record of the batch yet.
		want := domain.ApplyStatusChecksumMismatch
		if i == 3 {
			want = domain.ApplyStatusApplied
		}
		if st != want {
			t.Fatalf("entry %d: expected %s, got %s", i, want, st)
		}
	}
	assertBalance(t, s.balance(t, 1), wantBalance{"-10", "0", "0"})
	assertBalance(t, s.balance(t, 2), wantBalance{"0", "0", "10"})
}

func TestBalanceUseCase_RejectionIsStableOnRedelivery(t *testing.T) {
	s := newStore(t)
	uc := s.balanceUseCase()

	b := batch(1, posting(1, 2, "10"))
	commit := expand(plan("p1", domain.OperationCommit, b))

	// The commit was published before its hold.
	applyAll(t, uc, commit)
	applyAll(t, uc, expand(plan("p1", domain.OperationHold, b)))

	// A restarted consumer delivers the same commit again.
	statuses := applyAll(t, uc, commit)
	for _, st := range statuses {
		if st != domain.ApplyStatusHoldMissing {
			t.Fatalf("expected hold_missing on redelivery, got %s", st)
		}
	}
	assertBalance(t, s.balance(t, 1), wantBalance{"-10", "0", "0"})
	assertBalance(t, s.balance(t, 2), wantBalance{"0", "0", "10"})
}

func TestBalanceUseCase_InvariantViolation(t *testing.T) {
	s := newStore(t)
	uc := s.balanceUseCase()

	b := batch(1, posting(1, 2, "10"))
	applyAll(t, uc, expand(plan("p1", domain.OperationHold, b)))

	// Settling more than was held would push the amount below its lower bound.
	debit := expand(plan("p1", domain.OperationCommit, b))[0]
	debit.Amount = decimal.NewFromInt(-20)

	_, err := uc.Apply(context.Background(), debit)
	if !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
	assertBalance(t, s.balance(t, 1), wantBalance{"-10", "0", "0"})
	if _, err := s.markers.Get(context.Background(), "p1", domain.OperationCommit, 1); !errors.Is(err, domain.ErrPlanMarkerNotFound) {
		t.Fatalf("expected no commit marker, got %v", err)
	}
}

func TestBalanceUseCase_StorageErrorsAreReturned(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*mocks.MockTransactionManager, *mocks.MockBalanceRepository, *mocks.MockPlanMarkerRepository)
	}{
		{
			name: "begin fails",
			setup: func(tm *mocks.MockTransactionManager, _ *mocks.MockBalanceRepository, _ *mocks.MockPlanMarkerRepository) {
				tm.BeginFunc = func(ctx context.Context) (usecase.Transaction, error) {
					return nil, domain.NewStorageError("begin", errors.New("closed"))
				}
			},
		},
		{
			name: "marker read fails",
			setup: func(_ *mocks.MockTransactionManager, _ *mocks.MockBalanceRepository, mr *mocks.MockPlanMarkerRepository) {
				mr.GetForUpdateFunc = func(ctx context.Context, tx usecase.Transaction, planID string, op domain.Operation, accountID int64) (*domain.PlanMarker, error) {
					return nil, domain.NewStorageError("get marker", errors.New("io"))
				}
			},
		},
		{
			name: "balance write fails",
			setup: func(_ *mocks.MockTransactionManager, br *mocks.MockBalanceRepository, _ *mocks.MockPlanMarkerRepository) {
				br.PutFunc = func(ctx context.Context, tx usecase.Transaction, balance *domain.Balance) error {
					return domain.NewStorageError("put balance", errors.New("io"))
				}
			},
		},
		{
			name: "commit fails",
			setup: func(tm *mocks.MockTransactionManager, _ *mocks.MockBalanceRepository, _ *mocks.MockPlanMarkerRepository) {
				tm.BeginFunc = func(ctx context.Context) (usecase.Transaction, error) {
					return &mocks.MockTransaction{CommitFunc: func(ctx context.Context) error {
						return domain.NewStorageError("commit", errors.New("io"))
					}}, nil
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := mocks.NewMockTransactionManager()
			br := mocks.NewMockBalanceRepository()
			mr := mocks.NewMockPlanMarkerRepository()
			tt.setup(tm, br, mr)

			uc := usecase.NewBalanceUseCase(tm, br, mr, nil, zerolog.Nop(), nil)
			entry := expand(plan("p1", domain.OperationHold, batch(1, posting(1, 2, "1"))))[0]

			_, err := uc.Apply(context.Background(), entry)
			if !errors.Is(err, domain.ErrStorage) {
				t.Fatalf("expected storage error, got %v", err)
			}
		})
	}
}

func TestBalanceUseCase_ConcurrentAppliesSerialize(t *testing.T) {
	s := newStore(t)
	uc := s.balanceUseCase()

	const n = 20
	var entries []*domain.LedgerEntry
	for i := 0; i < n; i++ {
		p := plan("p"+decimal.NewFromInt(int64(i)).String(), domain.OperationHold, batch(1, posting(1, int64(100+i), "1")))
		entries = append(entries, expand(p)[0])
	}

	errs := make(chan error, n)
	for _, e := range entries {
		go func() {
			_, err := uc.Apply(context.Background(), e)
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil && !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("apply: %v", err)
		}
	}

	// Entries that exhausted their conflict retries are redelivered, as a
	// restarted worker would.
	applyAll(t, uc, entries)

	assertBalance(t, s.balance(t, 1), wantBalance{"-20", "0", "0"})
}
