package model

import "github.com/shopspring/decimal"

type HistoryPoint struct {
	Date  string
	Price decimal.Decimal
}

// StockDetail is the canonical quote shape both upstream providers are
// normalized into.
type StockDetail struct {
	Symbol        string
	Price         decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
	PrevClose     decimal.Decimal
	Open          decimal.Decimal
	DayHigh       decimal.Decimal
	DayLow        decimal.Decimal
	MarketCap     string
	PeRatio       string
	DividendYield string
	YearHigh      string
	YearLow       string
	HistoryPoints []HistoryPoint
}

type SearchResult struct {
	Symbol   string
	Name     string
	Exchange string
	Type     string
}
