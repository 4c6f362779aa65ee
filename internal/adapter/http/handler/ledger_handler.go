package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/accounter/internal/adapter/http/dto"
	"github.com/iho/accounter/internal/domain"
)

// PlanService defines the write operations needed by LedgerHandler.
type PlanService interface {
	Hold(ctx context.Context, plan *domain.Plan, clock domain.Clock) (domain.Clock, error)
	CommitPlan(ctx context.Context, plan *domain.Plan, clock domain.Clock) (domain.Clock, error)
	RollbackPlan(ctx context.Context, plan *domain.Plan, clock domain.Clock) (domain.Clock, error)
}

// LedgerHandler handles hold, commit and rollback requests. A successful
// write answers 202: the plan is in the log but may not be applied yet.
type LedgerHandler struct {
	plans PlanService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(plans PlanService) *LedgerHandler {
	return &LedgerHandler{plans: plans}
}

// Hold registers a hold plan.
func (h *LedgerHandler) Hold(w http.ResponseWriter, r *http.Request) {
	var req dto.HoldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	clock, err := domain.DecodeClock(req.Clock)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid clock", err.Error())
		return
	}

	next, err := h.plans.Hold(r.Context(), req.ToPlan(), clock)
	if err != nil {
		writeDomainError(w, "failed to hold plan", err)
		return
	}

	writeJSON(w, http.StatusAccepted, dto.ClockFromDomain(next))
}

// Commit settles held batches of the plan in the path.
func (h *LedgerHandler) Commit(w http.ResponseWriter, r *http.Request) {
	h.finalize(w, r, domain.OperationCommit, h.plans.CommitPlan)
}

// Rollback releases held batches of the plan in the path.
func (h *LedgerHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	h.finalize(w, r, domain.OperationRollback, h.plans.RollbackPlan)
}

type finalizeFunc func(ctx context.Context, plan *domain.Plan, clock domain.Clock) (domain.Clock, error)

func (h *LedgerHandler) finalize(w http.ResponseWriter, r *http.Request, op domain.Operation, fn finalizeFunc) {
	var req dto.FinalizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	clock, err := domain.DecodeClock(req.Clock)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid clock", err.Error())
		return
	}

	next, err := fn(r.Context(), req.ToPlan(chi.URLParam(r, "id"), op), clock)
	if err != nil {
		writeDomainError(w, "failed to "+string(op)+" plan", err)
		return
	}

	writeJSON(w, http.StatusAccepted, dto.ClockFromDomain(next))
}
