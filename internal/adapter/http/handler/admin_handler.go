package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/accounter/internal/adapter/http/dto"
	"github.com/iho/accounter/internal/domain"
	"github.com/iho/accounter/internal/usecase"
)

// AdminService defines the operational reads needed by AdminHandler.
type AdminService interface {
	ListBalances(ctx context.Context) ([]*domain.Balance, error)
	ListOffsets(ctx context.Context) (map[int32]int64, error)
	ListPlanMarkers(ctx context.Context, planID string) ([]*domain.PlanMarker, error)
	CheckConsistency(ctx context.Context) (map[string]decimal.Decimal, error)
}

// AdminHandler exposes ungated operational views of local state.
type AdminHandler struct {
	admin AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// ListBalances lists every materialized balance.
func (h *AdminHandler) ListBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.admin.ListBalances(r.Context())
	if err != nil {
		writeDomainError(w, "failed to list balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListBalancesResponse{
		Balances: dto.BalancesFromDomain(balances),
		Total:    len(balances),
	})
}

// ListOffsets lists the persisted consumer offsets.
func (h *AdminHandler) ListOffsets(w http.ResponseWriter, r *http.Request) {
	offsets, err := h.admin.ListOffsets(r.Context())
	if err != nil {
		writeDomainError(w, "failed to list offsets", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OffsetsFromDomain(offsets))
}

// ListPlanMarkers lists the markers recorded for the plan in the path.
func (h *AdminHandler) ListPlanMarkers(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")

	markers, err := h.admin.ListPlanMarkers(r.Context(), planID)
	if err != nil {
		writeDomainError(w, "failed to list plan markers", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListPlanMarkersResponse{
		PlanID:  planID,
		Markers: dto.PlanMarkersFromDomain(markers),
	})
}

// Consistency reports whether settled balances sum to zero per currency.
func (h *AdminHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	totals, err := h.admin.CheckConsistency(r.Context())
	if err != nil && !errors.Is(err, usecase.ErrInconsistentLedger) {
		writeDomainError(w, "failed to check consistency", err)
		return
	}

	if totals == nil {
		totals = map[string]decimal.Decimal{}
	}
	writeJSON(w, http.StatusOK, dto.ConsistencyResponse{
		Consistent: err == nil,
		Totals:     totals,
	})
}
