package marketDataService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sujal-kumar-jasti/Apex-Invest/config"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/externalApi"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model/quoteModel"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/service"
	"github.com/sujal-kumar-jasti/Apex-Invest/utils"
)

const defaultRange = "1D"

type DomesticApi interface {
	GetStockDetails(ctx context.Context, symbol, rng string, charts bool) (quoteModel.RawStockResponse, error)
	GetLivePrice(ctx context.Context, symbol string) (quoteModel.RawStockResponse, error)
}

type GlobalApi interface {
	GetStockDetails(ctx context.Context, symbol, rng string, charts bool) (quoteModel.RawStockResponse, error)
	GetLivePrice(ctx context.Context, symbol string) (quoteModel.RawStockResponse, error)
	SearchStocks(ctx context.Context, query string) ([]quoteModel.RawSearchResult, error)
}

type CurrencyApi interface {
	GetUsdToInr(ctx context.Context) (float64, error)
}

type Cache interface {
	GetStockDetail(ctx context.Context, symbol, rng string) (model.StockDetail, error)
	SetStockDetail(ctx context.Context, rng string, detail model.StockDetail) error
	GetUsdRate(ctx context.Context) (float64, error)
	SetUsdRate(ctx context.Context, rate float64) error
}

// MarketDataService routes quote requests to the right upstream by symbol
// suffix and normalizes both providers into one canonical shape.
type MarketDataService struct {
	cfg         *config.Config
	cache       Cache
	domesticApi DomesticApi
	globalApi   GlobalApi
	currencyApi CurrencyApi
}

func New(cfg *config.Config, cache Cache, domesticApi DomesticApi, globalApi GlobalApi, currencyApi CurrencyApi) *MarketDataService {
	return &MarketDataService{
		cfg:         cfg,
		cache:       cache,
		domesticApi: domesticApi,
		globalApi:   globalApi,
		currencyApi: currencyApi,
	}
}

func (s *MarketDataService) GetFullStockDetails(ctx context.Context, symbol, rng string) (model.StockDetail, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MarketDataService.GetFullStockDetails"

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if rng == "" {
		rng = defaultRange
	}

	slog.Debug("GetFullStockDetails start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("range", rng))
	defer func() {
		slog.Debug("GetFullStockDetails finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	detail, err := s.cache.GetStockDetail(ctx, symbol, rng)
	if err == nil {
		return detail, nil
	}

	var raw quoteModel.RawStockResponse
	if utils.IsDomestic(symbol) {
		raw, err = s.domesticApi.GetStockDetails(ctx, symbol, rng, true)
	} else {
		raw, err = s.globalApi.GetStockDetails(ctx, symbol, rng, true)
	}
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			slog.Warn("stock not found upstream", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
			return model.StockDetail{}, service.ErrNotFound
		}
		slog.Error("can't get stock details upstream", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.StockDetail{}, err
	}

	detail = s.normalize(symbol, raw)

	// For multi-day ranges the upstream change fields still describe the
	// daily move, so the displayed change is recomputed against the first
	// history point.
	if rng != defaultRange && len(detail.HistoryPoints) > 0 {
		first := detail.HistoryPoints[0].Price
		rangeChange := detail.Price.Sub(first)
		detail.Change = rangeChange
		if !first.IsZero() {
			detail.ChangePercent = rangeChange.Div(first).Mul(decimal.NewFromInt(100))
		} else {
			detail.ChangePercent = decimal.Zero
		}
	}

	go s.cache.SetStockDetail(context.WithoutCancel(ctx), rng, detail)

	return detail, nil
}

// GetLivePrice returns the current price and daily change percent without
// history, the cheap call used by portfolio-wide refresh.
func (s *MarketDataService) GetLivePrice(ctx context.Context, symbol string) (price, changePct decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MarketDataService.GetLivePrice"

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	var raw quoteModel.RawStockResponse
	if utils.IsDomestic(symbol) {
		raw, err = s.domesticApi.GetLivePrice(ctx, symbol)
	} else {
		raw, err = s.globalApi.GetLivePrice(ctx, symbol)
	}
	if err != nil {
		slog.Warn("can't get live price", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
		return decimal.Decimal{}, decimal.Decimal{}, err
	}

	return decimal.NewFromFloat(raw.Price), decimal.NewFromFloat(raw.ChangePercent), nil
}

func (s *MarketDataService) SearchStocks(ctx context.Context, query string) ([]model.SearchResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MarketDataService.SearchStocks"

	slog.Debug("SearchStocks start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))

	rawResults, err := s.globalApi.SearchStocks(ctx, query)
	if err != nil {
		slog.Error("got error from globalApi.SearchStocks", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	results := make([]model.SearchResult, 0, len(rawResults))
	for _, r := range rawResults {
		results = append(results, model.SearchResult{
			Symbol:   r.Symbol,
			Name:     r.Name,
			Exchange: r.Exchange,
			Type:     r.Type,
		})
	}

	return results, nil
}

// ValidateSymbol reports whether a symbol is known upstream, used before
// recording a trade for a symbol the user typed by hand.
func (s *MarketDataService) ValidateSymbol(ctx context.Context, symbol string) bool {
	query := strings.ToUpper(strings.TrimSpace(symbol))

	results, err := s.SearchStocks(ctx, query)
	if err != nil {
		return false
	}

	for _, r := range results {
		if strings.EqualFold(r.Symbol, query) {
			return true
		}
	}

	return false
}

// GetConversionRate returns the USD->INR rate: cached value if fresh,
// otherwise the currency API, otherwise the configured fallback.
func (s *MarketDataService) GetConversionRate(ctx context.Context) decimal.Decimal {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MarketDataService.GetConversionRate"

	rate, err := s.cache.GetUsdRate(ctx)
	if err == nil {
		return decimal.NewFromFloat(rate)
	}

	rate, err = s.currencyApi.GetUsdToInr(ctx)
	if err != nil {
		slog.Warn("can't get usd rate, using fallback", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return decimal.NewFromFloat(s.cfg.Currency.FallbackUsdToInr)
	}

	go s.cache.SetUsdRate(context.WithoutCancel(ctx), rate)

	return decimal.NewFromFloat(rate)
}

// RefreshRate force-fetches the USD rate into the cache, run on an interval.
func (s *MarketDataService) RefreshRate(ctx context.Context) error {
	rate, err := s.currencyApi.GetUsdToInr(ctx)
	if err != nil {
		return fmt.Errorf("refresh usd rate: %w", err)
	}

	return s.cache.SetUsdRate(ctx, rate)
}

func (s *MarketDataService) normalize(symbol string, raw quoteModel.RawStockResponse) model.StockDetail {
	marketCap := raw.MarketCap
	if utils.IsDomestic(symbol) {
		marketCap = formatDomesticMarketCap(raw.MarketCap)
	}

	return model.StockDetail{
		Symbol:        symbol,
		Price:         decimal.NewFromFloat(raw.Price),
		Change:        decimal.NewFromFloat(raw.Change),
		ChangePercent: decimal.NewFromFloat(raw.ChangePercent),
		PrevClose:     decimal.NewFromFloat(raw.PrevClose),
		Open:          decimal.NewFromFloat(raw.Open),
		DayHigh:       decimal.NewFromFloat(raw.DayHigh),
		DayLow:        decimal.NewFromFloat(raw.DayLow),
		MarketCap:     marketCap,
		PeRatio:       raw.PeRatio,
		DividendYield: raw.DividendYield,
		YearHigh:      raw.YearHigh,
		YearLow:       raw.YearLow,
		HistoryPoints: parseHistoryPoints(raw.HistoryPoints),
	}
}

// parseHistoryPoints converts the loosely typed [date, price] pairs,
// dropping any malformed point rather than failing the whole quote.
func parseHistoryPoints(rawPoints [][]any) []model.HistoryPoint {
	points := make([]model.HistoryPoint, 0, len(rawPoints))
	for _, p := range rawPoints {
		if len(p) < 2 {
			continue
		}
		date, ok := p[0].(string)
		if !ok {
			continue
		}
		price, ok := p[1].(float64)
		if !ok {
			continue
		}
		points = append(points, model.HistoryPoint{Date: date, Price: decimal.NewFromFloat(price)})
	}
	return points
}

// formatDomesticMarketCap reformats the domestic backend's raw market cap
// (a comma-grouped rupee figure) into millions.
func formatDomesticMarketCap(rawCap string) string {
	if rawCap == "" {
		return "-"
	}

	sanitized := strings.ReplaceAll(rawCap, ",", "")
	value, err := strconv.ParseFloat(sanitized, 64)
	if err != nil {
		return rawCap
	}

	return fmt.Sprintf("%.2fM", value/1_000_000.0)
}
