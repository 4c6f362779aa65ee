package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/accounter/internal/domain"
)

// AccountRequest identifies one side of a posting.
type AccountRequest struct {
	ID       int64  `json:"id"`
	Currency string `json:"currency"`
}

// PostingRequest represents one posting in a batch.
type PostingRequest struct {
	From        AccountRequest  `json:"from"`
	To          AccountRequest  `json:"to"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
}

// BatchRequest represents a posting batch.
type BatchRequest struct {
	ID       int64            `json:"id"`
	Postings []PostingRequest `json:"postings"`
}

// PlanRequest represents a plan to hold.
type PlanRequest struct {
	ID      string         `json:"id"`
	Batches []BatchRequest `json:"batches"`
}

// HoldRequest represents a request to hold a plan.
type HoldRequest struct {
	Plan  PlanRequest `json:"plan"`
	Clock string      `json:"clock,omitempty"`
}

// ToPlan converts the request into a hold plan.
func (r *HoldRequest) ToPlan() *domain.Plan {
	return &domain.Plan{
		ID:        r.Plan.ID,
		Operation: domain.OperationHold,
		Batches:   batchesToDomain(r.Plan.Batches),
	}
}

// FinalizeRequest represents a request to commit or roll back held batches.
type FinalizeRequest struct {
	Batches []BatchRequest `json:"batches"`
	Clock   string         `json:"clock,omitempty"`
}

// ToPlan converts the request into a plan for op.
func (r *FinalizeRequest) ToPlan(planID string, op domain.Operation) *domain.Plan {
	return &domain.Plan{
		ID:        planID,
		Operation: op,
		Batches:   batchesToDomain(r.Batches),
	}
}

func batchesToDomain(batches []BatchRequest) []domain.PostingBatch {
	out := make([]domain.PostingBatch, len(batches))
	for i, b := range batches {
		postings := make([]domain.Posting, len(b.Postings))
		for j, p := range b.Postings {
			postings[j] = domain.Posting{
				FromAccount: domain.Account{ID: p.From.ID, Currency: p.From.Currency},
				ToAccount:   domain.Account{ID: p.To.ID, Currency: p.To.Currency},
				Amount:      p.Amount,
				Currency:    p.Currency,
				Description: p.Description,
			}
		}
		out[i] = domain.PostingBatch{ID: b.ID, Postings: postings}
	}
	return out
}
