package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsDomestic(t *testing.T) {
	assert.True(t, IsDomestic("TCS.NS"))
	assert.True(t, IsDomestic("RELIANCE.BO"))
	assert.True(t, IsDomestic("tcs.ns"))
	assert.False(t, IsDomestic("AAPL"))
	assert.False(t, IsDomestic("BNS.TO"))
}

func TestCurrencyPrefix(t *testing.T) {
	assert.Equal(t, "Rs. ", CurrencyPrefix("TCS.NS"))
	assert.Equal(t, "$", CurrencyPrefix("AAPL"))
}

func TestConvertValue(t *testing.T) {
	rate := decimal.NewFromInt(83)

	// 830 INR at rate 83 is 10 USD
	got := ConvertValue(decimal.NewFromInt(830), "TCS.NS", true, rate)
	assert.True(t, got.Equal(decimal.NewFromInt(10)), "got %s", got)

	// USD value displayed in USD is untouched
	got = ConvertValue(decimal.NewFromInt(100), "AAPL", true, rate)
	assert.True(t, got.Equal(decimal.NewFromInt(100)))

	// USD value displayed in INR is multiplied
	got = ConvertValue(decimal.NewFromInt(10), "AAPL", false, rate)
	assert.True(t, got.Equal(decimal.NewFromInt(830)))

	// INR value displayed in INR is untouched
	got = ConvertValue(decimal.NewFromInt(830), "TCS.NS", false, rate)
	assert.True(t, got.Equal(decimal.NewFromInt(830)))

	// a zero rate can never divide
	got = ConvertValue(decimal.NewFromInt(830), "TCS.NS", true, decimal.Zero)
	assert.True(t, got.IsZero())
}
