package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// amountPattern accepts plain base-10 numbers only: no exponents, no separators.
var amountPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// maxAmount is the largest amount a session can store (NUMERIC(12,2)).
var maxAmount = decimal.RequireFromString("9999999999.99")

// AmountValidator parses and bounds-checks donation amounts.
type AmountValidator struct {
	ceiling *decimal.Decimal
}

// NewAmountValidator creates a validator. A nil ceiling disables the upper bound.
func NewAmountValidator(ceiling *decimal.Decimal) *AmountValidator {
	return &AmountValidator{ceiling: ceiling}
}

// Validate returns the amount rounded to cents.
func (v *AmountValidator) Validate(input string) (decimal.Decimal, error) {
	s := strings.TrimSpace(input)
	if !amountPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, input)
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, input)
	}

	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}

	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, fmt.Errorf("%w: more than two decimal places", ErrInvalidAmount)
	}

	if amount.GreaterThan(maxAmount) {
		return decimal.Zero, fmt.Errorf("%w: must be at most %s", ErrAmountOutOfPolicy, maxAmount.StringFixed(2))
	}

	if v.ceiling != nil && amount.GreaterThan(*v.ceiling) {
		return decimal.Zero, fmt.Errorf("%w: must be at most %s", ErrAmountOutOfPolicy, v.ceiling.StringFixed(2))
	}

	return amount.Round(2), nil
}
