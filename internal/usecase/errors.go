package usecase

import (
	"errors"

	"github.com/iho/accounter/internal/domain"
)

// errorType labels an error for metrics.
func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrStorage):
		return "storage"
	case errors.Is(err, domain.ErrInvariantViolation):
		return "invariant"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrCurrencyMismatch):
		return "currency"
	case errors.Is(err, domain.ErrNotReady):
		return "not_ready"
	case errors.Is(err, domain.ErrLogUnavailable):
		return "log"
	default:
		return "other"
	}
}
