package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateCurrency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		currency string
		wantErr  bool
	}{
		{name: "valid", currency: "USD"},
		{name: "another valid", currency: "EUR"},
		{name: "lower case rejected", currency: "usd", wantErr: true},
		{name: "padded rejected", currency: " USD", wantErr: true},
		{name: "unknown", currency: "XYZ", wantErr: true},
		{name: "empty", currency: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCurrency(tt.currency)
			if tt.wantErr && !errors.Is(err, ErrInvalidCurrency) {
				t.Fatalf("expected ErrInvalidCurrency, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateAmount(t *testing.T) {
	t.Parallel()

	t.Run("positive", func(t *testing.T) {
		if err := ValidateAmount(decimal.NewFromInt(100)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("negative is a valid signed amount", func(t *testing.T) {
		if err := ValidateAmount(decimal.NewFromInt(-100)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("zero rejected", func(t *testing.T) {
		if err := ValidateAmount(decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		amount := decimal.RequireFromString(MaxPostingAmount).Add(decimal.NewFromInt(1))
		if err := ValidateAmount(amount.Neg()); !errors.Is(err, ErrAmountTooLarge) {
			t.Fatalf("expected ErrAmountTooLarge, got %v", err)
		}
	})
}

func TestValidatePlanID(t *testing.T) {
	t.Parallel()

	if err := ValidatePlanID("order-42"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := ValidatePlanID("  "); !errors.Is(err, ErrInvalidIDFormat) {
		t.Fatalf("expected ErrInvalidIDFormat, got %v", err)
	}
	if err := ValidatePlanID(strings.Repeat("p", MaxPlanIDLength+1)); !errors.Is(err, ErrInvalidIDFormat) {
		t.Fatalf("expected ErrInvalidIDFormat, got %v", err)
	}
	if err := ValidatePlanID("a/b"); !errors.Is(err, ErrInvalidIDFormat) {
		t.Fatalf("expected ErrInvalidIDFormat, got %v", err)
	}
}
