package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// The gateway and storage layers deal in integer paise; rupee amounts only
// appear at the API and webhook boundaries. Conversions go through decimal
// so fractional rupee input never silently truncates.

var paisePerRupee = decimal.NewFromInt(100)

// RupeesToPaise converts a decimal rupee string (e.g. "1499.50") to paise.
func RupeesToPaise(rupees string) (int64, error) {
	amount, err := decimal.NewFromString(rupees)
	if err != nil {
		return 0, fmt.Errorf("invalid rupee amount %q: %w", rupees, err)
	}
	paise := amount.Mul(paisePerRupee)
	if !paise.IsInteger() {
		return 0, fmt.Errorf("amount %q is finer than one paisa", rupees)
	}
	if paise.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative", rupees)
	}
	return paise.IntPart(), nil
}

// PaiseToRupees formats paise as a rupee string with two decimal places.
func PaiseToRupees(paise int64) string {
	return decimal.NewFromInt(paise).Div(paisePerRupee).StringFixed(2)
}
