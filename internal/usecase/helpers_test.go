package usecase_test

import (
	"context"
	"testing"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	badgerrepo "github.com/iho/accounter/internal/adapter/repository/badger"
	"github.com/iho/accounter/internal/domain"
	infrabadger "github.com/iho/accounter/internal/infrastructure/badger"
	"github.com/iho/accounter/internal/usecase"
)

// store bundles repositories over one in-memory badger instance.
type store struct {
	db       *badgerdb.DB
	tx       *badgerrepo.TxManager
	balances *badgerrepo.BalanceRepository
	markers  *badgerrepo.PlanMarkerRepository
	offsets  *badgerrepo.OffsetRepository
}

func newStore(t *testing.T) *store {
	t.Helper()

	db, err := infrabadger.Open(infrabadger.Config{InMemory: true, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = infrabadger.Close(context.Background(), db) })

	return &store{
		db:       db,
		tx:       badgerrepo.NewTxManager(db),
		balances: badgerrepo.NewBalanceRepository(db),
		markers:  badgerrepo.NewPlanMarkerRepository(db),
		offsets:  badgerrepo.NewOffsetRepository(db),
	}
}

func (s *store) balanceUseCase() *usecase.BalanceUseCase {
	return usecase.NewBalanceUseCase(s.tx, s.balances, s.markers, badgerrepo.NewRetrier(zerolog.Nop(), nil), zerolog.Nop(), nil)
}

func (s *store) balance(t *testing.T, id int64) *domain.Balance {
	t.Helper()
	b, err := s.balances.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get balance %d: %v", id, err)
	}
	return b
}

func usd(id int64) domain.Account {
	return domain.Account{ID: id, Currency: "USD"}
}

func posting(from, to int64, amount string) domain.Posting {
	return domain.Posting{
		FromAccount: usd(from),
		ToAccount:   usd(to),
		Amount:      decimal.RequireFromString(amount),
		Currency:    "USD",
	}
}

func batch(id int64, postings ...domain.Posting) domain.PostingBatch {
	return domain.PostingBatch{ID: id, Postings: postings}
}

func plan(id string, op domain.Operation, batches ...domain.PostingBatch) *domain.Plan {
	return &domain.Plan{ID: id, Operation: op, Batches: batches}
}

// entryIDs is shared so that entries expanded by different calls never
// collide, as with IDs assigned at registration.
var entryIDs = badgerrepo.NewULIDGenerator()

func expand(p *domain.Plan) []*domain.LedgerEntry {
	var out []*domain.LedgerEntry
	for _, b := range p.Batches {
		out = append(out, domain.ExpandBatch(p.ID, p.Operation, b, entryIDs.Generate, time.Now())...)
	}
	return out
}

// applyAll replays entries and returns the status of each.
func applyAll(t *testing.T, h usecase.EntryHandler, entries []*domain.LedgerEntry) []domain.ApplyStatus {
	t.Helper()
	statuses := make([]domain.ApplyStatus, 0, len(entries))
	for _, e := range entries {
		res, err := h.Apply(context.Background(), e)
		if err != nil {
			t.Fatalf("apply %s: %v", e.ID, err)
		}
		statuses = append(statuses, res.Status)
	}
	return statuses
}

type wantBalance struct {
	min, amount, max string
}

func assertBalance(t *testing.T, b *domain.Balance, want wantBalance) {
	t.Helper()
	if !b.MinAvailableAmount.Equal(decimal.RequireFromString(want.min)) ||
		!b.Amount.Equal(decimal.RequireFromString(want.amount)) ||
		!b.MaxAvailableAmount.Equal(decimal.RequireFromString(want.max)) {
		t.Fatalf("account %d: expected min/amount/max %s/%s/%s, got %s/%s/%s",
			b.AccountID, want.min, want.amount, want.max,
			b.MinAvailableAmount, b.Amount, b.MaxAvailableAmount)
	}
}
