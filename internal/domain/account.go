package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Account identifies a ledger account and the single currency it holds.
type Account struct {
	ID       int64
	Currency string
}

// Balance is the materialized state of one account.
//
// Amount is the settled balance. MinAvailableAmount and MaxAvailableAmount
// bound where Amount may end up once all outstanding holds are finalized.
type Balance struct {
	AccountID          int64
	Currency           string
	Amount             decimal.Decimal
	MinAvailableAmount decimal.Decimal
	MaxAvailableAmount decimal.Decimal
	UpdatedAt          time.Time
}

// NewBalance returns a zero balance for an account seen for the first time.
func NewBalance(accountID int64, currency string) *Balance {
	return &Balance{
		AccountID:          accountID,
		Currency:           currency,
		Amount:             decimal.Zero,
		MinAvailableAmount: decimal.Zero,
		MaxAvailableAmount: decimal.Zero,
	}
}

// Account returns the account this balance belongs to.
func (b *Balance) Account() Account {
	return Account{ID: b.AccountID, Currency: b.Currency}
}

// CheckInvariant verifies Min <= Amount <= Max.
func (b *Balance) CheckInvariant() error {
	if b.MinAvailableAmount.GreaterThan(b.Amount) || b.Amount.GreaterThan(b.MaxAvailableAmount) {
		return fmt.Errorf("%w: account %d min=%s amount=%s max=%s",
			ErrInvariantViolation, b.AccountID,
			b.MinAvailableAmount, b.Amount, b.MaxAvailableAmount)
	}
	return nil
}

// Apply moves the balance according to one ledger entry.
// Debits carry a negative amount, credits a positive one.
func (b *Balance) Apply(op Operation, amount decimal.Decimal) error {
	debit := amount.IsNegative()

	switch op {
	case OperationHold:
		if debit {
			b.MinAvailableAmount = b.MinAvailableAmount.Add(amount)
		} else {
			b.MaxAvailableAmount = b.MaxAvailableAmount.Add(amount)
		}
	case OperationCommit:
		// The hold already moved one bound; move the other and settle.
		if debit {
			b.MaxAvailableAmount = b.MaxAvailableAmount.Add(amount)
		} else {
			b.MinAvailableAmount = b.MinAvailableAmount.Add(amount)
		}
		b.Amount = b.Amount.Add(amount)
	case OperationRollback:
		if debit {
			b.MinAvailableAmount = b.MinAvailableAmount.Sub(amount)
		} else {
			b.MaxAvailableAmount = b.MaxAvailableAmount.Sub(amount)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}

	return b.CheckInvariant()
}
