package quoteModel

// RawStockResponse matches the JSON both quote backends return. History
// points come as loosely typed [date, price] pairs, validated point by
// point during normalization.
type RawStockResponse struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	PrevClose     float64 `json:"prevClose"`
	Open          float64 `json:"open"`
	DayHigh       float64 `json:"dayHigh"`
	DayLow        float64 `json:"dayLow"`
	MarketCap     string  `json:"marketCap"`
	PeRatio       string  `json:"peRatio"`
	DividendYield string  `json:"dividendYield"`
	YearHigh      string  `json:"yearHigh"`
	YearLow       string  `json:"yearLow"`
	HistoryPoints [][]any `json:"historyPoints"`
}

type RawSearchResult struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Exchange string `json:"exchange"`
}

type RawRatesResponse struct {
	Rates map[string]float64 `json:"rates"`
}
