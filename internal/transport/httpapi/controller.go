package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/notifier"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/service"
	"github.com/sujal-kumar-jasti/Apex-Invest/utils"
)

type PortfolioService interface {
	RecordTrade(ctx context.Context, userID, symbol string, txType model.TransactionType, quantity int, price decimal.Decimal, date string) error
	DeleteTransactionRecord(ctx context.Context, userID string, id int64, symbol string) error
	GetLocalPortfolio(ctx context.Context, userID string) ([]model.Holding, error)
	GetLocalWatchlist(ctx context.Context, userID string) ([]model.WatchlistEntry, error)
	GetTransactionHistory(ctx context.Context, userID, symbol string) ([]model.Transaction, error)
	GetAllTransactions(ctx context.Context, userID string) ([]model.Transaction, error)
	GetTotalInvested(ctx context.Context, userID, symbol string) (decimal.Decimal, error)
	GetTotalQtyBought(ctx context.Context, userID, symbol string) (int, error)
	AddWatchlistStock(ctx context.Context, userID, symbol string) error
	DeleteWatchlistStock(ctx context.Context, userID, symbol string) error
	SyncAllDataAndPrices(ctx context.Context, userID string) error
	RefreshPrices(ctx context.Context, userID string) error
	ClearAllLocalData(ctx context.Context, userID string) error
	ExportPortfolioCSV(ctx context.Context, userID string) ([]byte, error)
	ExportPortfolioXLSX(ctx context.Context, userID string) ([]byte, string, error)
}

type MarketDataService interface {
	GetFullStockDetails(ctx context.Context, symbol, rng string) (model.StockDetail, error)
	SearchStocks(ctx context.Context, query string) ([]model.SearchResult, error)
	ValidateSymbol(ctx context.Context, symbol string) bool
}

type EventSource interface {
	Subscribe(buffer int) (<-chan notifier.Event, func())
}

type Controller struct {
	portfolio  PortfolioService
	marketData MarketDataService
	events     EventSource
}

func NewController(portfolio PortfolioService, marketData MarketDataService, events EventSource) *Controller {
	return &Controller{
		portfolio:  portfolio,
		marketData: marketData,
		events:     events,
	}
}

type tradeRequest struct {
	Symbol   string          `json:"symbol"`
	Type     string          `json:"type"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Date     string          `json:"date"`
}

// CreateTrade POST /api/v1/trades
func (ctl *Controller) CreateTrade(c *fiber.Ctx) error {
	var req tradeRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, "invalid request body", fiber.StatusBadRequest)
	}

	txType := model.TransactionType(strings.ToUpper(strings.TrimSpace(req.Type)))

	err := ctl.portfolio.RecordTrade(c.UserContext(), getUserID(c), req.Symbol, txType, req.Quantity, req.Price, req.Date)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTrade) {
			return respondError(c, "invalid trade parameters", fiber.StatusBadRequest)
		}
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	return respondCreated(c, "trade recorded", nil)
}

// DeleteTrade DELETE /api/v1/trades/:id
func (ctl *Controller) DeleteTrade(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return respondError(c, "invalid trade id", fiber.StatusBadRequest)
	}

	symbol := c.Query("symbol")
	if symbol == "" {
		return respondError(c, "symbol query parameter is required", fiber.StatusBadRequest)
	}

	err = ctl.portfolio.DeleteTransactionRecord(c.UserContext(), getUserID(c), id, symbol)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return respondError(c, "trade not found", fiber.StatusNotFound)
		}
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	return respondSuccess(c, "trade deleted", nil)
}

// GetPortfolio GET /api/v1/portfolio
func (ctl *Controller) GetPortfolio(c *fiber.Ctx) error {
	holdings, err := ctl.portfolio.GetLocalPortfolio(c.UserContext(), getUserID(c))
	if err != nil {
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	return respondSuccess(c, "portfolio fetched", holdings)
}

// ExportPortfolio GET /api/v1/portfolio/export?format=csv|xlsx
func (ctl *Controller) ExportPortfolio(c *fiber.Ctx) error {
	format := c.Query("format", "csv")

	switch format {
	case "csv":
		fileBytes, err := ctl.portfolio.ExportPortfolioCSV(c.UserContext(), getUserID(c))
		if err != nil {
			return respondError(c, "internal server error", fiber.StatusInternalServerError)
		}
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="portfolio.csv"`)
		return c.Send(fileBytes)
	case "xlsx":
		fileBytes, ext, err := ctl.portfolio.ExportPortfolioXLSX(c.UserContext(), getUserID(c))
		if err != nil {
			return respondError(c, "internal server error", fiber.StatusInternalServerError)
		}
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="portfolio`+ext+`"`)
		return c.Send(fileBytes)
	default:
		return respondError(c, "unsupported export format", fiber.StatusBadRequest)
	}
}

// GetTradeHistory GET /api/v1/portfolio/:symbol/history
func (ctl *Controller) GetTradeHistory(c *fiber.Ctx) error {
	records, err := ctl.portfolio.GetTransactionHistory(c.UserContext(), getUserID(c), c.Params("symbol"))
	if err != nil {
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	return respondSuccess(c, "trade history fetched", records)
}

// GetAllTrades GET /api/v1/trades
func (ctl *Controller) GetAllTrades(c *fiber.Ctx) error {
	records, err := ctl.portfolio.GetAllTransactions(c.UserContext(), getUserID(c))
	if err != nil {
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	return respondSuccess(c, "trades fetched", records)
}

// GetInvested GET /api/v1/portfolio/:symbol/invested
func (ctl *Controller) GetInvested(c *fiber.Ctx) error {
	userID := getUserID(c)
	symbol := c.Params("symbol")

	invested, err := ctl.portfolio.GetTotalInvested(c.UserContext(), userID, symbol)
	if err != nil {
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	qtyBought, err := ctl.portfolio.GetTotalQtyBought(c.UserContext(), userID, symbol)
	if err != nil {
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	return respondSuccess(c, "invested totals fetched", fiber.Map{
		"totalInvested":  invested,
		"totalQtyBought": qtyBought,
	})
}

// GetWatchlist GET /api/v1/watchlist
func (ctl *Controller) GetWatchlist(c *fiber.Ctx) error {
	entries, err := ctl.portfolio.GetLocalWatchlist(c.UserContext(), getUserID(c))
	if err != nil {
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	return respondSuccess(c, "watchlist fetched", entries)
}

type watchlistRequest struct {
	Symbol string `json:"symbol"`
}

// AddWatchlistStock POST /api/v1/watchlist
func (ctl *Controller) AddWatchlistStock(c *fiber.Ctx) error {
	var req watchlistRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Symbol) == "" {
		return respondError(c, "symbol is required", fiber.StatusBadRequest)
	}

	if !ctl.marketData.ValidateSymbol(c.UserContext(), req.Symbol) {
		return respondError(c, "unknown symbol", fiber.StatusUnprocessableEntity)
	}

	if err := ctl.portfolio.AddWatchlistStock(c.UserContext(), getUserID(c), req.Symbol); err != nil {
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	return respondCreated(c, "symbol added to watchlist", nil)
}

// DeleteWatchlistStock DELETE /api/v1/watchlist/:symbol
func (ctl *Controller) DeleteWatchlistStock(c *fiber.Ctx) error {
	if err := ctl.portfolio.DeleteWatchlistStock(c.UserContext(), getUserID(c), c.Params("symbol")); err != nil {
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	return respondSuccess(c, "symbol removed from watchlist", nil)
}

// Sync POST /api/v1/sync
func (ctl *Controller) Sync(c *fiber.Ctx) error {
	err := ctl.portfolio.SyncAllDataAndPrices(c.UserContext(), getUserID(c))
	if err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			return respondError(c, "sync already in progress", fiber.StatusConflict)
		}
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	return respondSuccess(c, "sync completed", nil)
}

// RefreshPrices POST /api/v1/refresh
func (ctl *Controller) RefreshPrices(c *fiber.Ctx) error {
	if err := ctl.portfolio.RefreshPrices(c.UserContext(), getUserID(c)); err != nil {
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	return respondSuccess(c, "prices refreshed", nil)
}

// ClearData DELETE /api/v1/data
func (ctl *Controller) ClearData(c *fiber.Ctx) error {
	if err := ctl.portfolio.ClearAllLocalData(c.UserContext(), getUserID(c)); err != nil {
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	return respondSuccess(c, "local data cleared", nil)
}

// GetStockDetails GET /api/v1/stocks/:symbol?range=1D
func (ctl *Controller) GetStockDetails(c *fiber.Ctx) error {
	detail, err := ctl.marketData.GetFullStockDetails(c.UserContext(), c.Params("symbol"), c.Query("range", "1D"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return respondError(c, "stock not found", fiber.StatusNotFound)
		}
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	return respondSuccess(c, "stock details fetched", detail)
}

// Search GET /api/v1/search?q=
func (ctl *Controller) Search(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return respondError(c, "q query parameter is required", fiber.StatusBadRequest)
	}

	results, err := ctl.marketData.SearchStocks(c.UserContext(), query)
	if err != nil {
		return respondError(c, "internal server error", fiber.StatusInternalServerError)
	}

	return respondSuccess(c, "search completed", results)
}

// StreamEvents GET /api/v1/events
// Server-sent events: one JSON line per portfolio or watchlist change of
// the caller, until the client disconnects.
func (ctl *Controller) StreamEvents(c *fiber.Ctx) error {
	userID := getUserID(c)
	rqID := utils.GetRequestIDFromCtx(c.UserContext())

	events, cancel := ctl.events.Subscribe(16)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		for event := range events {
			if event.UserID != userID {
				continue
			}

			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}

			if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				slog.Debug("event stream closed", slog.String("rqID", rqID), slog.String("userID", userID))
				return
			}
		}
	})

	return nil
}
