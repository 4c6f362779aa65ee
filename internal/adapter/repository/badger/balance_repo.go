package badger

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/usecase"
)

// balanceRecord is the stored form of a balance.
type balanceRecord struct {
	AccountID          int64           `json:"account_id"`
	Currency           string          `json:"currency"`
	Amount             decimal.Decimal `json:"amount"`
	MinAvailableAmount decimal.Decimal `json:"min_available_amount"`
	MaxAvailableAmount decimal.Decimal `json:"max_available_amount"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func toBalanceRecord(b *domain.Balance) balanceRecord {
	return balanceRecord{
		AccountID:          b.AccountID,
		Currency:           b.Currency,
		Amount:             b.Amount,
		MinAvailableAmount: b.MinAvailableAmount,
		MaxAvailableAmount: b.MaxAvailableAmount,
		UpdatedAt:          b.UpdatedAt,
	}
}

func (r balanceRecord) toDomain() *domain.Balance {
	return &domain.Balance{
		AccountID:          r.AccountID,
		Currency:           r.Currency,
		Amount:             r.Amount,
		MinAvailableAmount: r.MinAvailableAmount,
		MaxAvailableAmount: r.MaxAvailableAmount,
		UpdatedAt:          r.UpdatedAt,
	}
}

// BalanceRepository implements usecase.BalanceRepository.
type BalanceRepository struct {
	db *badgerdb.DB
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(db *badgerdb.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Get reads a balance outside any transaction.
func (r *BalanceRepository) Get(ctx context.Context, accountID int64) (*domain.Balance, error) {
	var (
		rec   balanceRecord
		found bool
	)
	err := r.db.View(func(txn *badgerdb.Txn) error {
		var err error
		found, err = getJSON(txn, balanceKey(accountID), &rec)
		return err
	})
	if err != nil {
		return nil, wrapError("get balance", err)
	}
	if !found {
		return nil, domain.ErrAccountNotFound
	}

	return rec.toDomain(), nil
}

// GetForUpdate reads a balance inside tx so that a concurrent write to it aborts tx.
func (r *BalanceRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, accountID int64) (*domain.Balance, error) {
	txn, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}

	var rec balanceRecord
	found, err := getJSON(txn, balanceKey(accountID), &rec)
	if err != nil {
		return nil, wrapError("get balance for update", err)
	}
	if !found {
		return nil, domain.ErrAccountNotFound
	}

	return rec.toDomain(), nil
}

// Put writes a balance inside tx.
func (r *BalanceRepository) Put(ctx context.Context, tx usecase.Transaction, balance *domain.Balance) error {
	txn, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	if err := setJSON(txn, balanceKey(balance.AccountID), toBalanceRecord(balance)); err != nil {
		return wrapError("put balance", err)
	}

	return nil
}

// List returns every stored balance.
func (r *BalanceRepository) List(ctx context.Context) ([]*domain.Balance, error) {
	var balances []*domain.Balance
	err := r.db.View(func(txn *badgerdb.Txn) error {
		return scan(txn, []byte(NamespaceBalances), func(_, val []byte) error {
			var rec balanceRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			balances = append(balances, rec.toDomain())
			return nil
		})
	})
	if err != nil {
		return nil, wrapError("list balances", err)
	}

	return balances, nil
}

// ClaimCurrencies binds each account to its currency on first use. An
// account already bound, or already holding a balance, in another currency
// fails the whole claim with a validation error and nothing is written.
func (r *BalanceRepository) ClaimCurrencies(ctx context.Context, currencies map[int64]string) error {
	ids := make([]int64, 0, len(currencies))
	for id := range currencies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	var mismatch error
	err := r.db.Update(func(txn *badgerdb.Txn) error {
		for _, id := range ids {
			want := currencies[id]

			held, err := claimedCurrency(txn, id)
			if err != nil {
				return err
			}
			if held != "" && held != want {
				mismatch = domain.NewValidationError(domain.ErrCurrencyMismatch,
					"account %d holds %s, request uses %s", id, held, want)
				return mismatch
			}
			if held == "" {
				if err := txn.Set(currencyKey(id), []byte(want)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if mismatch != nil {
		return mismatch
	}
	if err != nil {
		return wrapError("claim currencies", err)
	}

	return nil
}

// claimedCurrency returns the currency bound to an account, falling back to
// its replayed balance. Empty means the account is unused.
func claimedCurrency(txn *badgerdb.Txn, accountID int64) (string, error) {
	item, err := txn.Get(currencyKey(accountID))
	if err == nil {
		val, err := item.ValueCopy(nil)
		return string(val), err
	}
	if !errors.Is(err, badgerdb.ErrKeyNotFound) {
		return "", err
	}

	var rec balanceRecord
	found, err := getJSON(txn, balanceKey(accountID), &rec)
	if err != nil || !found {
		return "", err
	}
	return rec.Currency, nil
}
