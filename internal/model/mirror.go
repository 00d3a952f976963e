package model

import "github.com/shopspring/decimal"

// MirrorHolding is the cloud-side copy of a Holding used for cross-device
// sync. Live price fields are never mirrored, they are always re-fetched.
type MirrorHolding struct {
	Symbol   string          `json:"symbol"`
	Quantity int             `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avgCost"`
	BuyDate  string          `json:"buyDate"`
}

type MirrorWatchlistEntry struct {
	Symbol string `json:"symbol"`
}
