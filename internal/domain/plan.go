package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Operation is the phase of the hold protocol a plan belongs to.
type Operation string

const (
	OperationHold     Operation = "HOLD"
	OperationCommit   Operation = "COMMIT"
	OperationRollback Operation = "ROLLBACK"
)

// ParseOperation parses an operation name, case-insensitively.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToUpper(strings.TrimSpace(s)))
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperation, s)
	}
	return op, nil
}

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OperationHold, OperationCommit, OperationRollback:
		return true
	}
	return false
}

// IsFinal reports whether op finalizes a hold.
func (op Operation) IsFinal() bool {
	return op == OperationCommit || op == OperationRollback
}

// Opposite returns the other final operation.
func (op Operation) Opposite() Operation {
	switch op {
	case OperationCommit:
		return OperationRollback
	case OperationRollback:
		return OperationCommit
	}
	return ""
}

// Posting moves Amount from one account to another.
type Posting struct {
	FromAccount Account
	ToAccount   Account
	Amount      decimal.Decimal
	Currency    string
	Description string
}

// Validate checks the posting against its endpoint accounts.
func (p Posting) Validate() error {
	if p.FromAccount.ID == p.ToAccount.ID {
		return NewValidationError(ErrSameAccount, "account %d", p.FromAccount.ID)
	}
	if err := ValidateAmount(p.Amount); err != nil {
		cause := ErrInvalidAmount
		if errors.Is(err, ErrAmountTooLarge) {
			cause = ErrAmountTooLarge
		}
		return NewValidationError(cause, "posting %d -> %d amount %s", p.FromAccount.ID, p.ToAccount.ID, p.Amount)
	}
	if err := ValidateCurrency(p.Currency); err != nil {
		return NewValidationError(ErrInvalidCurrency, "%q", p.Currency)
	}
	if p.Currency != p.FromAccount.Currency || p.Currency != p.ToAccount.Currency {
		return NewValidationError(ErrCurrencyMismatch, "posting %s, from %d %s, to %d %s",
			p.Currency, p.FromAccount.ID, p.FromAccount.Currency, p.ToAccount.ID, p.ToAccount.Currency)
	}
	return nil
}

// PostingBatch is the unit of atomicity within a plan.
type PostingBatch struct {
	ID       int64
	Postings []Posting
}

// Accounts returns the distinct account ids touched by the batch, in first-seen order.
func (b PostingBatch) Accounts() []int64 {
	seen := make(map[int64]bool, len(b.Postings)*2)
	ids := make([]int64, 0, len(b.Postings)*2)
	for _, p := range b.Postings {
		for _, id := range []int64{p.FromAccount.ID, p.ToAccount.ID} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Plan is one hold, commit or rollback request.
type Plan struct {
	ID        string
	Operation Operation
	Batches   []PostingBatch
}

// Validate rejects malformed plans before anything is published.
func (p *Plan) Validate() error {
	if err := ValidatePlanID(p.ID); err != nil {
		return NewValidationError(ErrInvalidPlanID, "%v", err)
	}
	if !p.Operation.Valid() {
		return NewValidationError(ErrInvalidOperation, "%q", p.Operation)
	}
	if len(p.Batches) == 0 {
		return NewValidationError(ErrEmptyPlan, "plan %s", p.ID)
	}

	seen := make(map[int64]bool, len(p.Batches))
	postings := 0
	for _, b := range p.Batches {
		if seen[b.ID] {
			return NewValidationError(ErrDuplicateBatch, "plan %s batch %d", p.ID, b.ID)
		}
		seen[b.ID] = true

		if len(b.Postings) == 0 {
			return NewValidationError(ErrEmptyBatch, "plan %s batch %d", p.ID, b.ID)
		}
		postings += len(b.Postings)
		if postings > MaxPostingsInPlan {
			return NewValidationError(ErrPlanTooLarge, "plan %s exceeds %d postings", p.ID, MaxPostingsInPlan)
		}
		for _, posting := range b.Postings {
			if err := posting.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Accounts returns every distinct account id the plan touches.
func (p *Plan) Accounts() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, b := range p.Batches {
		for _, id := range b.Accounts() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
