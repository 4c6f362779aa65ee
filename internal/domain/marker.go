package domain

import (
	"slices"
	"time"
)

// BatchMark records which entries of one batch were applied to an account.
type BatchMark struct {
	Checksum  string `json:"checksum"`
	Sequences []int  `json:"sequences"`
}

// PlanMarker witnesses that entries of a plan were applied to an account
// for one operation. Its presence is what makes replay idempotent.
type PlanMarker struct {
	PlanID    string               `json:"plan_id"`
	Operation Operation            `json:"operation"`
	AccountID int64                `json:"account_id"`
	Batches   map[int64]*BatchMark `json:"batches"`
	// Rejected maps entry IDs refused on replay to the reason.
	Rejected  map[string]ApplyStatus `json:"rejected,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// NewPlanMarker returns an empty marker.
func NewPlanMarker(planID string, op Operation, accountID int64) *PlanMarker {
	return &PlanMarker{
		PlanID:    planID,
		Operation: op,
		AccountID: accountID,
		Batches:   make(map[int64]*BatchMark),
	}
}

// HasBatch reports whether any entry of the batch was applied.
func (m *PlanMarker) HasBatch(batchID int64) bool {
	if m == nil {
		return false
	}
	_, ok := m.Batches[batchID]
	return ok
}

// Checksum returns the checksum recorded for a batch.
func (m *PlanMarker) Checksum(batchID int64) (string, bool) {
	if m == nil {
		return "", false
	}
	b, ok := m.Batches[batchID]
	if !ok {
		return "", false
	}
	return b.Checksum, true
}

// Has reports whether the entry at sequence of batch was applied.
func (m *PlanMarker) Has(batchID int64, sequence int) bool {
	if m == nil {
		return false
	}
	b, ok := m.Batches[batchID]
	if !ok {
		return false
	}
	return slices.Contains(b.Sequences, sequence)
}

// Mark records the entry as applied.
func (m *PlanMarker) Mark(e *LedgerEntry) {
	if m.Batches == nil {
		m.Batches = make(map[int64]*BatchMark)
	}
	b, ok := m.Batches[e.BatchID]
	if !ok {
		b = &BatchMark{Checksum: e.BatchChecksum}
		m.Batches[e.BatchID] = b
	}
	if !slices.Contains(b.Sequences, e.Sequence) {
		b.Sequences = append(b.Sequences, e.Sequence)
		slices.Sort(b.Sequences)
	}
	m.UpdatedAt = e.CreatedAt
}

// Rejection returns the status an entry was refused with, if it was.
func (m *PlanMarker) Rejection(entryID string) (ApplyStatus, bool) {
	if m == nil {
		return "", false
	}
	status, ok := m.Rejected[entryID]
	return status, ok
}

// Reject records that the entry was refused with status.
func (m *PlanMarker) Reject(e *LedgerEntry, status ApplyStatus) {
	if m.Rejected == nil {
		m.Rejected = make(map[string]ApplyStatus)
	}
	m.Rejected[e.ID] = status
	m.UpdatedAt = e.CreatedAt
}
