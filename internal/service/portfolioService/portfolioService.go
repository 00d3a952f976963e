package portfolioService

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sujal-kumar-jasti/Apex-Invest/config"
	"github.com/sujal-kumar-jasti/Apex-Invest/data/repository"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/notifier"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/service"
	"github.com/sujal-kumar-jasti/Apex-Invest/utils"
)

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error

	InsertTransaction(ctx context.Context, tx model.Transaction) (id int64, err error)
	GetTransactionsForSymbol(ctx context.Context, userID, symbol string) ([]model.Transaction, error)
	GetAllTransactions(ctx context.Context, userID string) ([]model.Transaction, error)
	GetTransactionsForReplay(ctx context.Context, userID, symbol string) ([]model.Transaction, error)
	GetTotalInvested(ctx context.Context, userID, symbol string) (decimal.Decimal, error)
	GetTotalQtyBought(ctx context.Context, userID, symbol string) (int, error)
	DeleteTransaction(ctx context.Context, userID string, id int64) error

	UpsertHolding(ctx context.Context, holding model.Holding) error
	GetHolding(ctx context.Context, userID, symbol string) (model.Holding, error)
	GetAllHoldings(ctx context.Context, userID string) ([]model.Holding, error)
	DeleteHolding(ctx context.Context, userID, symbol string) error
	UpdateHoldingQuote(ctx context.Context, userID, symbol string, price, changePct decimal.Decimal) error
	ClearHoldings(ctx context.Context, userID string) error

	UpsertWatchlistEntry(ctx context.Context, entry model.WatchlistEntry) error
	GetWatchlistEntry(ctx context.Context, userID, symbol string) (model.WatchlistEntry, error)
	GetAllWatchlistEntries(ctx context.Context, userID string) ([]model.WatchlistEntry, error)
	DeleteWatchlistEntry(ctx context.Context, userID, symbol string) error
	UpdateWatchlistPrice(ctx context.Context, userID, symbol string, price decimal.Decimal) error
	ClearWatchlist(ctx context.Context, userID string) error

	GetActiveUserIDs(ctx context.Context) ([]string, error)
}

type CloudMirror interface {
	SetHolding(ctx context.Context, userID string, holding model.MirrorHolding) error
	DeleteHolding(ctx context.Context, userID, symbol string) error
	GetAllHoldings(ctx context.Context, userID string) ([]model.MirrorHolding, error)
	SetWatchlistEntry(ctx context.Context, userID, symbol string) error
	DeleteWatchlistEntry(ctx context.Context, userID, symbol string) error
	GetAllWatchlistEntries(ctx context.Context, userID string) ([]model.MirrorWatchlistEntry, error)
}

type MarketData interface {
	GetLivePrice(ctx context.Context, symbol string) (price, changePct decimal.Decimal, err error)
	GetConversionRate(ctx context.Context) decimal.Decimal
}

type ReportGenerator interface {
	GenerateCSV(ctx context.Context, holdings []model.Holding) ([]byte, error)
	GenerateXLSX(ctx context.Context, holdings []model.Holding) (fileBytes []byte, fileExtension string, err error)
}

type Notifier interface {
	Publish(event notifier.Event)
}

// PortfolioService is the single authority for mutating holdings. Local
// state is authoritative; the cloud mirror is best-effort and never rolls
// back a local write.
type PortfolioService struct {
	cfg        *config.Config
	repo       Repository
	mirror     CloudMirror
	marketData MarketData
	reports    ReportGenerator
	notifier   Notifier

	symLocks symbolLocks

	syncInFlight sync.Map // userID -> struct{}
}

func New(
	cfg *config.Config,
	repo Repository,
	mirror CloudMirror,
	marketData MarketData,
	reports ReportGenerator,
	ntf Notifier,
) *PortfolioService {
	return &PortfolioService{
		cfg:        cfg,
		repo:       repo,
		mirror:     mirror,
		marketData: marketData,
		reports:    reports,
		notifier:   ntf,
	}
}

// symbolLocks serializes holding mutations per (user, symbol). Different
// symbols proceed concurrently.
type symbolLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *symbolLocks) get(userID, symbol string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}

	key := userID + ":" + symbol
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	return lock
}

// RecordTrade appends the trade to the ledger and reconciles the holding.
// The ledger record is written unconditionally so a trade is never lost
// from history even when the holding update or mirror push fails.
func (s *PortfolioService) RecordTrade(
	ctx context.Context,
	userID string,
	symbol string,
	txType model.TransactionType,
	quantity int,
	price decimal.Decimal,
	date string,
) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RecordTrade"

	slog.Debug("RecordTrade start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("type", string(txType)))
	defer func() {
		slog.Debug("RecordTrade finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if symbol == "" || quantity <= 0 || !price.IsPositive() {
		return service.ErrInvalidTrade
	}
	if txType != model.TransactionBuy && txType != model.TransactionSell {
		return service.ErrInvalidTrade
	}
	if date == "" {
		date = time.Now().Format(time.DateOnly)
	}

	lock := s.symLocks.get(userID, symbol)
	lock.Lock()
	defer lock.Unlock()

	_, err = s.repo.InsertTransaction(ctx, model.Transaction{
		UserID:    userID,
		Symbol:    symbol,
		Type:      txType,
		Quantity:  quantity,
		Price:     price,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Error("got error from repo.InsertTransaction", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	holding, err := s.repo.GetHolding(ctx, userID, symbol)
	exists := true
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("got error from repo.GetHolding", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return err
		}
		exists = false
	}

	if txType == model.TransactionBuy {
		err = s.applyBuy(ctx, userID, symbol, holding, exists, quantity, price, date)
	} else {
		err = s.applySell(ctx, userID, symbol, holding, exists, quantity)
	}
	if err != nil {
		return err
	}

	s.notifier.Publish(notifier.Event{UserID: userID, Topic: notifier.TopicPortfolio})

	return nil
}

func (s *PortfolioService) applyBuy(
	ctx context.Context,
	userID, symbol string,
	holding model.Holding,
	exists bool,
	quantity int,
	price decimal.Decimal,
	date string,
) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.applyBuy"

	var updated model.Holding
	if !exists {
		updated = model.Holding{
			UserID:       userID,
			Symbol:       symbol,
			Quantity:     quantity,
			AvgCost:      price,
			CurrentPrice: price,
			BuyDate:      date,
			LastUpdated:  time.Now(),
		}
	} else {
		totalOldCost := decimal.NewFromInt(int64(holding.Quantity)).Mul(holding.AvgCost)
		totalNewCost := decimal.NewFromInt(int64(quantity)).Mul(price)
		newTotalQty := holding.Quantity + quantity
		newAvgCost := totalOldCost.Add(totalNewCost).Div(decimal.NewFromInt(int64(newTotalQty)))

		updated = holding
		updated.Quantity = newTotalQty
		updated.AvgCost = newAvgCost
		updated.LastUpdated = time.Now()
	}

	if err := s.repo.UpsertHolding(ctx, updated); err != nil {
		slog.Error("got error from repo.UpsertHolding", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	s.pushHoldingToMirror(ctx, updated)

	return nil
}

func (s *PortfolioService) applySell(
	ctx context.Context,
	userID, symbol string,
	holding model.Holding,
	exists bool,
	quantity int,
) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.applySell"

	if !exists {
		// Nothing held locally: the audit record is already written, the
		// holding state is untouched. Kept as a silent no-op to match the
		// established ledger semantics; likely worth surfacing upstream.
		slog.Warn("sell for symbol with no holding", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
		return nil
	}

	newQty := holding.Quantity - quantity

	if newQty <= 0 {
		if err := s.repo.DeleteHolding(ctx, userID, symbol); err != nil {
			slog.Error("got error from repo.DeleteHolding", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return err
		}

		if err := s.mirror.DeleteHolding(ctx, userID, symbol); err != nil {
			slog.Error("mirror delete failed, local state kept", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}

		return nil
	}

	updated := holding
	updated.Quantity = newQty
	updated.LastUpdated = time.Now()

	if err := s.repo.UpsertHolding(ctx, updated); err != nil {
		slog.Error("got error from repo.UpsertHolding", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	s.pushHoldingToMirror(ctx, updated)

	return nil
}

// pushHoldingToMirror mirrors the snapshot best-effort. Failures are
// logged and never propagated: local state stays authoritative.
func (s *PortfolioService) pushHoldingToMirror(ctx context.Context, holding model.Holding) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.pushHoldingToMirror"

	err := s.mirror.SetHolding(ctx, holding.UserID, model.MirrorHolding{
		Symbol:   holding.Symbol,
		Quantity: holding.Quantity,
		AvgCost:  holding.AvgCost,
		BuyDate:  holding.BuyDate,
	})
	if err != nil {
		slog.Error("mirror push failed, local state kept", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", holding.Symbol), slog.String("err", err.Error()))
	}
}

func (s *PortfolioService) GetLocalPortfolio(ctx context.Context, userID string) ([]model.Holding, error) {
	return s.repo.GetAllHoldings(ctx, userID)
}

func (s *PortfolioService) GetLocalWatchlist(ctx context.Context, userID string) ([]model.WatchlistEntry, error) {
	return s.repo.GetAllWatchlistEntries(ctx, userID)
}

func (s *PortfolioService) GetTransactionHistory(ctx context.Context, userID, symbol string) ([]model.Transaction, error) {
	return s.repo.GetTransactionsForSymbol(ctx, userID, strings.ToUpper(strings.TrimSpace(symbol)))
}

func (s *PortfolioService) GetAllTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	return s.repo.GetAllTransactions(ctx, userID)
}

func (s *PortfolioService) GetTotalInvested(ctx context.Context, userID, symbol string) (decimal.Decimal, error) {
	return s.repo.GetTotalInvested(ctx, userID, strings.ToUpper(strings.TrimSpace(symbol)))
}

func (s *PortfolioService) GetTotalQtyBought(ctx context.Context, userID, symbol string) (int, error) {
	return s.repo.GetTotalQtyBought(ctx, userID, strings.ToUpper(strings.TrimSpace(symbol)))
}

func (s *PortfolioService) AddWatchlistStock(ctx context.Context, userID, symbol string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.AddWatchlistStock"

	slog.Debug("AddWatchlistStock start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("AddWatchlistStock finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return service.ErrInvalidTrade
	}

	err = s.repo.UpsertWatchlistEntry(ctx, model.WatchlistEntry{UserID: userID, Symbol: symbol})
	if err != nil {
		slog.Error("got error from repo.UpsertWatchlistEntry", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err := s.mirror.SetWatchlistEntry(ctx, userID, symbol); err != nil {
		slog.Error("mirror push failed, local state kept", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	s.notifier.Publish(notifier.Event{UserID: userID, Topic: notifier.TopicWatchlist})

	// fill in the price best-effort so the entry doesn't sit at zero
	go s.refreshSymbol(context.WithoutCancel(ctx), userID, symbol)

	return nil
}

func (s *PortfolioService) DeleteWatchlistStock(ctx context.Context, userID, symbol string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.DeleteWatchlistStock"

	slog.Debug("DeleteWatchlistStock start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("DeleteWatchlistStock finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if err := s.mirror.DeleteWatchlistEntry(ctx, userID, symbol); err != nil {
		slog.Error("mirror delete failed, local state kept", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	err = s.repo.DeleteWatchlistEntry(ctx, userID, symbol)
	if err != nil {
		slog.Error("got error from repo.DeleteWatchlistEntry", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	s.notifier.Publish(notifier.Event{UserID: userID, Topic: notifier.TopicWatchlist})

	return nil
}

// DeleteTransactionRecord removes a ledger record (an explicit user
// correction) and rebuilds the derived holding by replaying what remains.
func (s *PortfolioService) DeleteTransactionRecord(ctx context.Context, userID string, id int64, symbol string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.DeleteTransactionRecord"

	slog.Debug("DeleteTransactionRecord start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("id", id))
	defer func() {
		slog.Debug("DeleteTransactionRecord finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("id", id))
	}()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	lock := s.symLocks.get(userID, symbol)
	lock.Lock()
	defer lock.Unlock()

	err = s.repo.DeleteTransaction(ctx, userID, id)
	if err != nil {
		slog.Error("got error from repo.DeleteTransaction", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return s.rebuildHoldingLocked(ctx, userID, symbol)
}

// RebuildHolding replays the symbol's ledger oldest-first and rewrites the
// materialized holding, the consistency check behind the audit trail.
func (s *PortfolioService) RebuildHolding(ctx context.Context, userID, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	lock := s.symLocks.get(userID, symbol)
	lock.Lock()
	defer lock.Unlock()

	return s.rebuildHoldingLocked(ctx, userID, symbol)
}

func (s *PortfolioService) rebuildHoldingLocked(ctx context.Context, userID, symbol string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.rebuildHoldingLocked"

	records, err := s.repo.GetTransactionsForReplay(ctx, userID, symbol)
	if err != nil {
		slog.Error("got error from repo.GetTransactionsForReplay", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	qty, avgCost, buyDate := replayLedger(records)

	existing, err := s.repo.GetHolding(ctx, userID, symbol)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		slog.Error("got error from repo.GetHolding", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if qty <= 0 {
		if err := s.repo.DeleteHolding(ctx, userID, symbol); err != nil {
			return err
		}
		if err := s.mirror.DeleteHolding(ctx, userID, symbol); err != nil {
			slog.Error("mirror delete failed, local state kept", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		s.notifier.Publish(notifier.Event{UserID: userID, Topic: notifier.TopicPortfolio})
		return nil
	}

	rebuilt := model.Holding{
		UserID:         userID,
		Symbol:         symbol,
		Quantity:       qty,
		AvgCost:        avgCost,
		CurrentPrice:   existing.CurrentPrice,
		DailyChangePct: existing.DailyChangePct,
		BuyDate:        buyDate,
		LastUpdated:    time.Now(),
	}

	if err := s.repo.UpsertHolding(ctx, rebuilt); err != nil {
		return err
	}

	s.pushHoldingToMirror(ctx, rebuilt)
	s.notifier.Publish(notifier.Event{UserID: userID, Topic: notifier.TopicPortfolio})

	return nil
}

// replayLedger folds BUY/SELL records (oldest-first) into the derived
// position. A sell that empties the position resets cost basis and buy
// date; a sell with nothing held is a no-op, mirroring RecordTrade.
func replayLedger(records []model.Transaction) (qty int, avgCost decimal.Decimal, buyDate string) {
	for _, rec := range records {
		switch rec.Type {
		case model.TransactionBuy:
			if qty <= 0 {
				qty = rec.Quantity
				avgCost = rec.Price
				buyDate = rec.CreatedAt.Format(time.DateOnly)
				continue
			}
			totalOldCost := decimal.NewFromInt(int64(qty)).Mul(avgCost)
			totalNewCost := decimal.NewFromInt(int64(rec.Quantity)).Mul(rec.Price)
			qty += rec.Quantity
			avgCost = totalOldCost.Add(totalNewCost).Div(decimal.NewFromInt(int64(qty)))
		case model.TransactionSell:
			if qty <= 0 {
				continue
			}
			qty -= rec.Quantity
			if qty <= 0 {
				qty = 0
				avgCost = decimal.Decimal{}
				buyDate = ""
			}
		}
	}
	return qty, avgCost, buyDate
}

func (s *PortfolioService) ClearAllLocalData(ctx context.Context, userID string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.ClearAllLocalData"

	slog.Debug("ClearAllLocalData start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	defer func() {
		slog.Debug("ClearAllLocalData finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	}()

	if err = s.repo.ClearHoldings(ctx, userID); err != nil {
		return err
	}
	if err = s.repo.ClearWatchlist(ctx, userID); err != nil {
		return err
	}

	s.notifier.Publish(notifier.Event{UserID: userID, Topic: notifier.TopicPortfolio})
	s.notifier.Publish(notifier.Event{UserID: userID, Topic: notifier.TopicWatchlist})

	return nil
}

func (s *PortfolioService) ExportPortfolioCSV(ctx context.Context, userID string) ([]byte, error) {
	holdings, err := s.repo.GetAllHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.reports.GenerateCSV(ctx, holdings)
}

func (s *PortfolioService) ExportPortfolioXLSX(ctx context.Context, userID string) ([]byte, string, error) {
	holdings, err := s.repo.GetAllHoldings(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	return s.reports.GenerateXLSX(ctx, holdings)
}
