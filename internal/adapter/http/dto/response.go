package dto

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/accounter/internal/domain"
)

// ClockResponse carries the token a client presents to later reads.
type ClockResponse struct {
	Clock string `json:"clock"`
}

// ClockFromDomain encodes a clock for the wire.
func ClockFromDomain(c domain.Clock) ClockResponse {
	return ClockResponse{Clock: c.Encode()}
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID       int64  `json:"id"`
	Currency string `json:"currency"`
}

// AccountFromDomain converts a domain account to a response.
func AccountFromDomain(a *domain.Account) AccountResponse {
	return AccountResponse{ID: a.ID, Currency: a.Currency}
}

// BalanceResponse represents a balance in API responses.
type BalanceResponse struct {
	AccountID          int64           `json:"account_id"`
	Currency           string          `json:"currency"`
	Amount             decimal.Decimal `json:"amount"`
	MinAvailableAmount decimal.Decimal `json:"min_available_amount"`
	MaxAvailableAmount decimal.Decimal `json:"max_available_amount"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// BalanceFromDomain converts a domain balance to a response.
func BalanceFromDomain(b *domain.Balance) BalanceResponse {
	return BalanceResponse{
		AccountID:          b.AccountID,
		Currency:           b.Currency,
		Amount:             b.Amount,
		MinAvailableAmount: b.MinAvailableAmount,
		MaxAvailableAmount: b.MaxAvailableAmount,
		UpdatedAt:          b.UpdatedAt,
	}
}

// BalancesFromDomain converts domain balances to responses.
func BalancesFromDomain(balances []*domain.Balance) []BalanceResponse {
	result := make([]BalanceResponse, len(balances))
	for i, b := range balances {
		result[i] = BalanceFromDomain(b)
	}
	return result
}

// ListBalancesResponse represents a list of balances.
type ListBalancesResponse struct {
	Balances []BalanceResponse `json:"balances"`
	Total    int               `json:"total"`
}

// OffsetResponse is the persisted consumer offset of one partition.
type OffsetResponse struct {
	Partition int32 `json:"partition"`
	Offset    int64 `json:"offset"`
}

// ListOffsetsResponse represents consumer offsets ordered by partition.
type ListOffsetsResponse struct {
	Offsets []OffsetResponse `json:"offsets"`
}

// OffsetsFromDomain orders offsets by partition.
func OffsetsFromDomain(offsets map[int32]int64) ListOffsetsResponse {
	out := make([]OffsetResponse, 0, len(offsets))
	for p, off := range offsets {
		out = append(out, OffsetResponse{Partition: p, Offset: off})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Partition < out[j].Partition })
	return ListOffsetsResponse{Offsets: out}
}

// BatchMarkResponse lists the applied entries of one batch.
type BatchMarkResponse struct {
	BatchID   int64  `json:"batch_id"`
	Checksum  string `json:"checksum"`
	Sequences []int  `json:"sequences"`
}

// PlanMarkerResponse represents a plan marker in API responses.
type PlanMarkerResponse struct {
	PlanID    string              `json:"plan_id"`
	Operation string              `json:"operation"`
	AccountID int64               `json:"account_id"`
	Batches   []BatchMarkResponse `json:"batches"`
	// Rejected maps refused entry IDs to the reason.
	Rejected  map[string]string `json:"rejected,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// PlanMarkersFromDomain converts markers to responses with batches ordered by id.
func PlanMarkersFromDomain(markers []*domain.PlanMarker) []PlanMarkerResponse {
	result := make([]PlanMarkerResponse, len(markers))
	for i, m := range markers {
		batches := make([]BatchMarkResponse, 0, len(m.Batches))
		for id, b := range m.Batches {
			batches = append(batches, BatchMarkResponse{BatchID: id, Checksum: b.Checksum, Sequences: b.Sequences})
		}
		sort.Slice(batches, func(a, b int) bool { return batches[a].BatchID < batches[b].BatchID })

		var rejected map[string]string
		if len(m.Rejected) > 0 {
			rejected = make(map[string]string, len(m.Rejected))
			for id, status := range m.Rejected {
				rejected[id] = string(status)
			}
		}

		result[i] = PlanMarkerResponse{
			PlanID:    m.PlanID,
			Operation: string(m.Operation),
			AccountID: m.AccountID,
			Batches:   batches,
			Rejected:  rejected,
			UpdatedAt: m.UpdatedAt,
		}
	}
	return result
}

// ListPlanMarkersResponse represents the markers of one plan.
type ListPlanMarkersResponse struct {
	PlanID  string               `json:"plan_id"`
	Markers []PlanMarkerResponse `json:"markers"`
}

// ConsistencyResponse reports settled totals per currency.
type ConsistencyResponse struct {
	Consistent bool                       `json:"consistent"`
	Totals     map[string]decimal.Decimal `json:"totals"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
