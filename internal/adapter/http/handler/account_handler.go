package handler

import (
	"context"
	"net/http"

	"github.com/iho/accounter/internal/adapter/http/dto"
	"github.com/iho/accounter/internal/domain"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	GetAccount(ctx context.Context, id int64, clock domain.Clock) (*domain.Account, error)
	GetBalance(ctx context.Context, id int64, clock domain.Clock) (*domain.Balance, error)
}

// AccountHandler serves gated account reads.
type AccountHandler struct {
	accounts AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Get returns an account once local state has caught up with ?clock=.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, clock, ok := h.readParams(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), id, clock)
	if err != nil {
		writeDomainError(w, "failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// GetBalance returns an account balance once local state has caught up with ?clock=.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, clock, ok := h.readParams(w, r)
	if !ok {
		return
	}

	balance, err := h.accounts.GetBalance(r.Context(), id, clock)
	if err != nil {
		writeDomainError(w, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromDomain(balance))
}

func (h *AccountHandler) readParams(w http.ResponseWriter, r *http.Request) (int64, domain.Clock, bool) {
	id, err := parseAccountID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id", err.Error())
		return 0, nil, false
	}

	clock, err := parseClockQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid clock", err.Error())
		return 0, nil, false
	}

	return id, clock, true
}
