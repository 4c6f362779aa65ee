package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValidationStatus is attached to an entry at registration time.
type ValidationStatus string

const (
	ValidationStatusOK          ValidationStatus = ""
	ValidationStatusHoldMissing ValidationStatus = "HOLD_MISSING"
)

// LedgerEntry is one side of a posting, the unit replicated through the log.
type LedgerEntry struct {
	ID               string           `json:"id"`
	PlanID           string           `json:"plan_id"`
	BatchID          int64            `json:"batch_id"`
	Operation        Operation        `json:"operation"`
	AccountID        int64            `json:"account_id"`
	Amount           decimal.Decimal  `json:"amount"`
	Currency         string           `json:"currency"`
	Description      string           `json:"description,omitempty"`
	Sequence         int              `json:"sequence"`
	Total            int              `json:"total"`
	BatchChecksum    string           `json:"batch_checksum"`
	ValidationStatus ValidationStatus `json:"validation_status,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// IsDebit reports whether the entry takes funds from its account.
func (e *LedgerEntry) IsDebit() bool {
	return e.Amount.IsNegative()
}

// ExpandBatch turns every posting of a batch into a debit and a credit entry.
// Entries are ordered as postings are, debit first, and share the batch checksum.
func ExpandBatch(planID string, op Operation, batch PostingBatch, newID func() string, now time.Time) []*LedgerEntry {
	checksum := BatchChecksum(batch)
	total := len(batch.Postings) * 2
	entries := make([]*LedgerEntry, 0, total)

	for _, p := range batch.Postings {
		debit := &LedgerEntry{
			PlanID:      planID,
			BatchID:     batch.ID,
			Operation:   op,
			AccountID:   p.FromAccount.ID,
			Amount:      p.Amount.Neg(),
			Currency:    p.Currency,
			Description: p.Description,
		}
		credit := &LedgerEntry{
			PlanID:      planID,
			BatchID:     batch.ID,
			Operation:   op,
			AccountID:   p.ToAccount.ID,
			Amount:      p.Amount,
			Currency:    p.Currency,
			Description: p.Description,
		}
		entries = append(entries, debit, credit)
	}

	for i, e := range entries {
		e.ID = newID()
		e.Sequence = i
		e.Total = total
		e.BatchChecksum = checksum
		e.CreatedAt = now
	}

	return entries
}

// ApplyStatus is the outcome of replaying one entry.
type ApplyStatus string

const (
	ApplyStatusApplied     ApplyStatus = "applied"
	ApplyStatusDuplicate   ApplyStatus = "duplicate"
	ApplyStatusHoldMissing ApplyStatus = "hold_missing"
	// ApplyStatusChecksumMismatch rejects an entry whose batch content
	// differs from what is already recorded for that batch.
	ApplyStatusChecksumMismatch ApplyStatus = "checksum_mismatch"
	// ApplyStatusCurrencyMismatch rejects an entry in a currency other than
	// the one its account already holds.
	ApplyStatusCurrencyMismatch ApplyStatus = "currency_mismatch"
)

// Rejected reports whether the entry was refused without touching balances.
func (s ApplyStatus) Rejected() bool {
	return s == ApplyStatusHoldMissing || s == ApplyStatusChecksumMismatch || s == ApplyStatusCurrencyMismatch
}

// ApplyResult reports what replaying an entry did to its account.
// Balance is the state after the entry, nil when nothing was written.
type ApplyResult struct {
	Status  ApplyStatus
	Balance *Balance
}
