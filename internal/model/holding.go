package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is the materialized position for one owned instrument. It is
// derived state: replaying the symbol's transactions in timestamp order
// must reproduce Quantity and AvgCost exactly.
type Holding struct {
	UserID         string
	Symbol         string
	Quantity       int
	AvgCost        decimal.Decimal
	CurrentPrice   decimal.Decimal
	DailyChangePct decimal.Decimal
	BuyDate        string // ISO date of the original acquisition, carried through partial sells
	LastUpdated    time.Time
}

type WatchlistEntry struct {
	UserID    string
	Symbol    string
	LastPrice decimal.Decimal
}
