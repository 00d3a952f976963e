package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Holding struct {
	UserID         string          `db:"user_id"`
	Symbol         string          `db:"symbol"`
	Quantity       int             `db:"quantity"`
	AvgCost        decimal.Decimal `db:"avg_cost"`
	CurrentPrice   decimal.Decimal `db:"current_price"`
	DailyChangePct decimal.Decimal `db:"daily_change_pct"`
	BuyDate        string          `db:"buy_date"`
	LastUpdated    time.Time       `db:"last_updated"`
}

type WatchlistEntry struct {
	UserID    string          `db:"user_id"`
	Symbol    string          `db:"symbol"`
	LastPrice decimal.Decimal `db:"last_price"`
}
