package portfolioService

import (
	"context"
	"log/slog"

	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/notifier"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/service"
	"github.com/sujal-kumar-jasti/Apex-Invest/utils"
	"golang.org/x/sync/errgroup"
)

// SyncAllDataAndPrices pulls the mirror snapshot into local storage and
// refreshes live prices for every known symbol. At most one sync per user
// runs at a time; an overlapping request is dropped with ErrSyncInProgress.
func (s *PortfolioService) SyncAllDataAndPrices(ctx context.Context, userID string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.SyncAllDataAndPrices"

	if _, loaded := s.syncInFlight.LoadOrStore(userID, struct{}{}); loaded {
		slog.Warn("sync already in progress, dropping request", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
		return service.ErrSyncInProgress
	}
	defer s.syncInFlight.Delete(userID)

	slog.Debug("SyncAllDataAndPrices start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	defer func() {
		slog.Debug("SyncAllDataAndPrices finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	}()

	var (
		mirrorHoldings  []model.MirrorHolding
		mirrorWatchlist []model.MirrorWatchlistEntry
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		mirrorHoldings, err = s.mirror.GetAllHoldings(gCtx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		mirrorWatchlist, err = s.mirror.GetAllWatchlistEntries(gCtx, userID)
		return err
	})
	if err = g.Wait(); err != nil {
		slog.Error("got error fetching mirror snapshot", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err = s.applyMirrorHoldings(ctx, userID, mirrorHoldings); err != nil {
		return err
	}
	if err = s.applyMirrorWatchlist(ctx, userID, mirrorWatchlist); err != nil {
		return err
	}

	s.notifier.Publish(notifier.Event{UserID: userID, Topic: notifier.TopicPortfolio})
	s.notifier.Publish(notifier.Event{UserID: userID, Topic: notifier.TopicWatchlist})

	return s.RefreshPrices(ctx, userID)
}

// applyMirrorHoldings upserts mirror holdings over local rows. Local price
// fields survive the merge: the mirror carries position data only, so a
// stale zero must not clobber a fresher local quote.
func (s *PortfolioService) applyMirrorHoldings(ctx context.Context, userID string, mirrorHoldings []model.MirrorHolding) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.applyMirrorHoldings"

	for _, mh := range mirrorHoldings {
		if mh.Symbol == "" || mh.Quantity <= 0 {
			continue
		}

		lock := s.symLocks.get(userID, mh.Symbol)
		lock.Lock()

		holding := model.Holding{
			UserID:   userID,
			Symbol:   mh.Symbol,
			Quantity: mh.Quantity,
			AvgCost:  mh.AvgCost,
			BuyDate:  mh.BuyDate,
		}
		if local, err := s.repo.GetHolding(ctx, userID, mh.Symbol); err == nil {
			holding.CurrentPrice = local.CurrentPrice
			holding.DailyChangePct = local.DailyChangePct
		}

		err := s.repo.UpsertHolding(ctx, holding)
		lock.Unlock()
		if err != nil {
			slog.Error("got error from repo.UpsertHolding", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", mh.Symbol), slog.String("err", err.Error()))
			return err
		}
	}

	return nil
}

// applyMirrorWatchlist replaces the local watchlist with the mirror's.
// Clear and refill run in one transaction so a failed refill cannot leave
// the watchlist emptied.
func (s *PortfolioService) applyMirrorWatchlist(ctx context.Context, userID string, entries []model.MirrorWatchlistEntry) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.applyMirrorWatchlist"

	err := s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.ClearWatchlist(ctx, userID); err != nil {
			return err
		}

		for _, entry := range entries {
			if entry.Symbol == "" {
				continue
			}
			err := s.repo.UpsertWatchlistEntry(ctx, model.WatchlistEntry{UserID: userID, Symbol: entry.Symbol})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		slog.Error("got error replacing watchlist", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// RefreshPrices re-fetches live quotes for every holding and watchlist
// symbol of the user. Fetches run concurrently with a bounded fan-out and
// each symbol fails independently.
func (s *PortfolioService) RefreshPrices(ctx context.Context, userID string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RefreshPrices"

	slog.Debug("RefreshPrices start", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	defer func() {
		slog.Debug("RefreshPrices finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID))
	}()

	holdings, err := s.repo.GetAllHoldings(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetAllHoldings", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}
	watchlist, err := s.repo.GetAllWatchlistEntries(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetAllWatchlistEntries", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	symbols := make(map[string]struct{}, len(holdings)+len(watchlist))
	for _, h := range holdings {
		symbols[h.Symbol] = struct{}{}
	}
	for _, w := range watchlist {
		symbols[w.Symbol] = struct{}{}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Sync.RefreshConcurrency)
	for symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			s.refreshSymbol(gCtx, userID, symbol)
			return nil
		})
	}
	_ = g.Wait()

	if len(holdings) > 0 {
		s.notifier.Publish(notifier.Event{UserID: userID, Topic: notifier.TopicPortfolio})
	}
	if len(watchlist) > 0 {
		s.notifier.Publish(notifier.Event{UserID: userID, Topic: notifier.TopicWatchlist})
	}

	return nil
}

// RefreshAllUsers refreshes prices for every user that has any data, used
// by the periodic job.
func (s *PortfolioService) RefreshAllUsers(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RefreshAllUsers"

	userIDs, err := s.repo.GetActiveUserIDs(ctx)
	if err != nil {
		slog.Error("got error from repo.GetActiveUserIDs", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	for _, userID := range userIDs {
		if err := s.RefreshPrices(ctx, userID); err != nil {
			slog.Error("got error refreshing user prices", slog.String("rqID", rqID), slog.String("op", op), slog.String("userID", userID), slog.String("err", err.Error()))
		}
	}

	return nil
}

// refreshSymbol fetches a live quote and patches it into the holding and
// watchlist rows. A failed fetch or a non-positive price leaves the last
// good values untouched.
func (s *PortfolioService) refreshSymbol(ctx context.Context, userID, symbol string) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.refreshSymbol"

	price, changePct, err := s.marketData.GetLivePrice(ctx, symbol)
	if err != nil {
		slog.Warn("live price fetch failed, keeping last value", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
		return
	}
	if !price.IsPositive() {
		slog.Warn("live price not positive, keeping last value", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
		return
	}

	lock := s.symLocks.get(userID, symbol)
	lock.Lock()
	defer lock.Unlock()

	if err := s.repo.UpdateHoldingQuote(ctx, userID, symbol, price, changePct); err != nil {
		slog.Error("got error from repo.UpdateHoldingQuote", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
	}
	if err := s.repo.UpdateWatchlistPrice(ctx, userID, symbol, price); err != nil {
		slog.Error("got error from repo.UpdateWatchlistPrice", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
	}
}
