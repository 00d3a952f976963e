package dbConverter

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model/dbModel"
)

func TestConvertHolding(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got := ConvertHolding(dbModel.Holding{
		UserID:         "u1",
		Symbol:         "TCS.NS",
		Quantity:       15,
		AvgCost:        decimal.NewFromInt(110),
		CurrentPrice:   decimal.NewFromInt(3500),
		DailyChangePct: decimal.NewFromFloat(1.2),
		BuyDate:        "2026-01-05",
		LastUpdated:    updated,
	})

	assert.Equal(t, model.Holding{
		UserID:         "u1",
		Symbol:         "TCS.NS",
		Quantity:       15,
		AvgCost:        decimal.NewFromInt(110),
		CurrentPrice:   decimal.NewFromInt(3500),
		DailyChangePct: decimal.NewFromFloat(1.2),
		BuyDate:        "2026-01-05",
		LastUpdated:    updated,
	}, got)
}

func TestConvertTransaction(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got := ConvertTransaction(dbModel.Transaction{
		ID:        7,
		UserID:    "u1",
		Symbol:    "AAPL",
		Type:      "SELL",
		Quantity:  3,
		Price:     decimal.NewFromInt(190),
		CreatedAt: created,
	})

	assert.Equal(t, model.TransactionSell, got.Type)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, created, got.CreatedAt)
}
