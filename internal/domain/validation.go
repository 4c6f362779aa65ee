package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrAmountTooLarge  = errors.New("amount exceeds maximum allowed")
	ErrInvalidIDFormat = errors.New("invalid ID format")
)

// Validation constants
const (
	MaxPostingAmount  = "1000000000000" // 1 trillion
	MaxPlanIDLength   = 128
	MaxPostingsInPlan = 10000
)

// Valid currency codes (ISO 4217)
var validCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CNY": true, "AUD": true, "CAD": true, "CHF": true,
	"SEK": true, "NZD": true, "KRW": true, "SGD": true,
	"NOK": true, "MXN": true, "INR": true, "BRL": true,
	"ZAR": true, "RUB": true, "TRY": true, "HKD": true,
}

// ValidateCurrency validates currency code
func ValidateCurrency(currency string) error {
	if currency != strings.ToUpper(strings.TrimSpace(currency)) || !validCurrencies[currency] {
		return fmt.Errorf("%w: %s is not a valid ISO 4217 currency code", ErrInvalidCurrency, currency)
	}

	return nil
}

// ValidateAmount bounds the magnitude of a posting amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsZero() {
		return ErrInvalidAmount
	}

	maxAmount, _ := decimal.NewFromString(MaxPostingAmount)
	if amount.Abs().GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxPostingAmount)
	}

	return nil
}

// ValidatePlanID validates a caller supplied plan id
func ValidatePlanID(id string) error {
	id = strings.TrimSpace(id)

	if id == "" {
		return fmt.Errorf("%w: plan id cannot be empty", ErrInvalidIDFormat)
	}

	if len(id) > MaxPlanIDLength {
		return fmt.Errorf("%w: plan id exceeds %d characters", ErrInvalidIDFormat, MaxPlanIDLength)
	}

	// '/' separates key segments in the store
	if strings.ContainsAny(id, "/\x00") {
		return fmt.Errorf("%w: plan id contains forbidden characters", ErrInvalidIDFormat)
	}

	return nil
}
