package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// IsDomestic reports whether a symbol trades on a domestic exchange,
// identified by the NSE/BSE suffix convention.
func IsDomestic(symbol string) bool {
	s := strings.ToUpper(symbol)
	return strings.HasSuffix(s, ".NS") || strings.HasSuffix(s, ".BO")
}

// CurrencyPrefix returns the display prefix for amounts of the given symbol.
func CurrencyPrefix(symbol string) string {
	if IsDomestic(symbol) {
		return "Rs. "
	}
	return "$"
}

// ConvertValue converts a stock's value between INR and USD at display time.
// Domestic instruments are INR-denominated, everything else is USD.
func ConvertValue(value decimal.Decimal, symbol string, targetIsUsd bool, rate decimal.Decimal) decimal.Decimal {
	if rate.IsZero() {
		return decimal.Zero
	}
	stockIsInr := IsDomestic(symbol)
	if targetIsUsd {
		if stockIsInr {
			return value.Div(rate)
		}
		return value
	}
	if stockIsInr {
		return value
	}
	return value.Mul(rate)
}
