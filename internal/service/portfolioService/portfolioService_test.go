package portfolioService

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sujal-kumar-jasti/Apex-Invest/config"
	"github.com/sujal-kumar-jasti/Apex-Invest/data/repository"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/model"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/notifier"
	"github.com/sujal-kumar-jasti/Apex-Invest/internal/service"
)

type fakeRepo struct {
	mu           sync.Mutex
	holdings     map[string]model.Holding
	watchlist    map[string]model.WatchlistEntry
	transactions []model.Transaction
	nextTxID     int64

	insertTxErr error
	upsertErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		holdings:  make(map[string]model.Holding),
		watchlist: make(map[string]model.WatchlistEntry),
	}
}

func key(userID, symbol string) string { return userID + ":" + symbol }

func (r *fakeRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	return tFunc(ctx)
}

func (r *fakeRepo) InsertTransaction(_ context.Context, tx model.Transaction) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertTxErr != nil {
		return 0, r.insertTxErr
	}
	r.nextTxID++
	tx.ID = r.nextTxID
	r.transactions = append(r.transactions, tx)
	return tx.ID, nil
}

func (r *fakeRepo) GetTransactionsForSymbol(_ context.Context, userID, symbol string) ([]model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Transaction
	for i := len(r.transactions) - 1; i >= 0; i-- {
		tx := r.transactions[i]
		if tx.UserID == userID && tx.Symbol == symbol {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetAllTransactions(_ context.Context, userID string) ([]model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Transaction
	for i := len(r.transactions) - 1; i >= 0; i-- {
		if r.transactions[i].UserID == userID {
			out = append(out, r.transactions[i])
		}
	}
	return out, nil
}

func (r *fakeRepo) GetTransactionsForReplay(_ context.Context, userID, symbol string) ([]model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Transaction
	for _, tx := range r.transactions {
		if tx.UserID == userID && tx.Symbol == symbol {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetTotalInvested(_ context.Context, userID, symbol string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, tx := range r.transactions {
		if tx.UserID == userID && tx.Symbol == symbol && tx.Type == model.TransactionBuy {
			total = total.Add(decimal.NewFromInt(int64(tx.Quantity)).Mul(tx.Price))
		}
	}
	return total, nil
}

func (r *fakeRepo) GetTotalQtyBought(_ context.Context, userID, symbol string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, tx := range r.transactions {
		if tx.UserID == userID && tx.Symbol == symbol && tx.Type == model.TransactionBuy {
			total += tx.Quantity
		}
	}
	return total, nil
}

func (r *fakeRepo) DeleteTransaction(_ context.Context, userID string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, tx := range r.transactions {
		if tx.UserID == userID && tx.ID == id {
			r.transactions = append(r.transactions[:i], r.transactions[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeRepo) UpsertHolding(_ context.Context, holding model.Holding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.holdings[key(holding.UserID, holding.Symbol)] = holding
	return nil
}

func (r *fakeRepo) GetHolding(_ context.Context, userID, symbol string) (model.Holding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.holdings[key(userID, symbol)]
	if !ok {
		return model.Holding{}, repository.ErrNotFound
	}
	return h, nil
}

func (r *fakeRepo) GetAllHoldings(_ context.Context, userID string) ([]model.Holding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Holding
	for _, h := range r.holdings {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteHolding(_ context.Context, userID, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.holdings, key(userID, symbol))
	return nil
}

func (r *fakeRepo) UpdateHoldingQuote(_ context.Context, userID, symbol string, price, changePct decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.holdings[key(userID, symbol)]
	if !ok {
		return nil
	}
	h.CurrentPrice = price
	h.DailyChangePct = changePct
	h.LastUpdated = time.Now()
	r.holdings[key(userID, symbol)] = h
	return nil
}

func (r *fakeRepo) ClearHoldings(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, h := range r.holdings {
		if h.UserID == userID {
			delete(r.holdings, k)
		}
	}
	return nil
}

func (r *fakeRepo) UpsertWatchlistEntry(_ context.Context, entry model.WatchlistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.watchlist[key(entry.UserID, entry.Symbol)]; ok && entry.LastPrice.IsZero() {
		entry.LastPrice = existing.LastPrice
	}
	r.watchlist[key(entry.UserID, entry.Symbol)] = entry
	return nil
}

func (r *fakeRepo) GetWatchlistEntry(_ context.Context, userID, symbol string) (model.WatchlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.watchlist[key(userID, symbol)]
	if !ok {
		return model.WatchlistEntry{}, repository.ErrNotFound
	}
	return e, nil
}

func (r *fakeRepo) GetAllWatchlistEntries(_ context.Context, userID string) ([]model.WatchlistEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.WatchlistEntry
	for _, e := range r.watchlist {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteWatchlistEntry(_ context.Context, userID, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.watchlist, key(userID, symbol))
	return nil
}

func (r *fakeRepo) UpdateWatchlistPrice(_ context.Context, userID, symbol string, price decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.watchlist[key(userID, symbol)]
	if !ok {
		return nil
	}
	e.LastPrice = price
	r.watchlist[key(userID, symbol)] = e
	return nil
}

func (r *fakeRepo) ClearWatchlist(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, e := range r.watchlist {
		if e.UserID == userID {
			delete(r.watchlist, k)
		}
	}
	return nil
}

func (r *fakeRepo) GetActiveUserIDs(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	for _, h := range r.holdings {
		seen[h.UserID] = struct{}{}
	}
	for _, e := range r.watchlist {
		seen[e.UserID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

type fakeMirror struct {
	mu        sync.Mutex
	holdings  map[string]model.MirrorHolding
	watchlist map[string]struct{}
	deleted   []string

	setErr     error
	deleteErr  error
	getBlockCh chan struct{}
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{
		holdings:  make(map[string]model.MirrorHolding),
		watchlist: make(map[string]struct{}),
	}
}

func (m *fakeMirror) SetHolding(_ context.Context, userID string, holding model.MirrorHolding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.holdings[key(userID, holding.Symbol)] = holding
	return nil
}

func (m *fakeMirror) DeleteHolding(_ context.Context, userID, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.holdings, key(userID, symbol))
	m.deleted = append(m.deleted, symbol)
	return nil
}

func (m *fakeMirror) GetAllHoldings(_ context.Context, userID string) ([]model.MirrorHolding, error) {
	if m.getBlockCh != nil {
		<-m.getBlockCh
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.MirrorHolding
	for k, h := range m.holdings {
		if k == key(userID, h.Symbol) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *fakeMirror) SetWatchlistEntry(_ context.Context, userID, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.watchlist[key(userID, symbol)] = struct{}{}
	return nil
}

func (m *fakeMirror) DeleteWatchlistEntry(_ context.Context, userID, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watchlist, key(userID, symbol))
	return nil
}

func (m *fakeMirror) GetAllWatchlistEntries(_ context.Context, userID string) ([]model.MirrorWatchlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.MirrorWatchlistEntry
	prefix := userID + ":"
	for k := range m.watchlist {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, model.MirrorWatchlistEntry{Symbol: k[len(prefix):]})
		}
	}
	return out, nil
}

type fakeMarketData struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	errs   map[string]error
}

func (m *fakeMarketData) GetLivePrice(_ context.Context, symbol string) (decimal.Decimal, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.errs[symbol]; ok {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	price, ok := m.prices[symbol]
	if !ok {
		return decimal.Decimal{}, decimal.Decimal{}, errors.New("unknown symbol")
	}
	return price, decimal.NewFromFloat(1.5), nil
}

func (m *fakeMarketData) GetConversionRate(_ context.Context) decimal.Decimal {
	return decimal.NewFromFloat(84.0)
}

type fakeReports struct{}

func (fakeReports) GenerateCSV(_ context.Context, _ []model.Holding) ([]byte, error) {
	return []byte("csv"), nil
}

func (fakeReports) GenerateXLSX(_ context.Context, _ []model.Holding) ([]byte, string, error) {
	return []byte("xlsx"), ".xlsx", nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (n *fakeNotifier) Publish(event notifier.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func newTestService(repo *fakeRepo, mirror *fakeMirror, marketData *fakeMarketData) *PortfolioService {
	cfg := &config.Config{Sync: config.Sync{RefreshConcurrency: 4}}
	if marketData == nil {
		marketData = &fakeMarketData{prices: map[string]decimal.Decimal{}}
	}
	return New(cfg, repo, mirror, marketData, fakeReports{}, &fakeNotifier{})
}

// Two buys at different prices average into a single position.
func TestRecordTrade_BuyWeightedAverage(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeMirror(), nil)
	ctx := context.Background()

	require.NoError(t, svc.RecordTrade(ctx, "u1", "TCS.NS", model.TransactionBuy, 10, decimal.NewFromInt(100), "2026-01-05"))
	require.NoError(t, svc.RecordTrade(ctx, "u1", "TCS.NS", model.TransactionBuy, 5, decimal.NewFromInt(130), "2026-01-06"))

	h, err := repo.GetHolding(ctx, "u1", "TCS.NS")
	require.NoError(t, err)
	assert.Equal(t, 15, h.Quantity)
	assert.True(t, h.AvgCost.Equal(decimal.NewFromInt(110)), "avg cost = %s", h.AvgCost)
	assert.Equal(t, "2026-01-05", h.BuyDate, "buy date of the original position survives")
}

// Selling the full position removes the holding locally and in the mirror,
// and both ledger records remain.
func TestRecordTrade_SellToZero(t *testing.T) {
	repo := newFakeRepo()
	mirror := newFakeMirror()
	svc := newTestService(repo, mirror, nil)
	ctx := context.Background()

	require.NoError(t, svc.RecordTrade(ctx, "u1", "AAPL", model.TransactionBuy, 10, decimal.NewFromInt(150), ""))
	require.NoError(t, svc.RecordTrade(ctx, "u1", "AAPL", model.TransactionSell, 10, decimal.NewFromInt(180), ""))

	_, err := repo.GetHolding(ctx, "u1", "AAPL")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Contains(t, mirror.deleted, "AAPL")
	assert.Len(t, repo.transactions, 2)
}

// A partial sell reduces quantity but never touches the average cost.
func TestRecordTrade_PartialSellKeepsAvgCost(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeMirror(), nil)
	ctx := context.Background()

	require.NoError(t, svc.RecordTrade(ctx, "u1", "MSFT", model.TransactionBuy, 10, decimal.NewFromInt(300), ""))
	require.NoError(t, svc.RecordTrade(ctx, "u1", "MSFT", model.TransactionSell, 4, decimal.NewFromInt(350), ""))

	h, err := repo.GetHolding(ctx, "u1", "MSFT")
	require.NoError(t, err)
	assert.Equal(t, 6, h.Quantity)
	assert.True(t, h.AvgCost.Equal(decimal.NewFromInt(300)))
}

// A sell with nothing held leaves holdings untouched but the ledger still
// records it.
func TestRecordTrade_SellWithoutHolding(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeMirror(), nil)
	ctx := context.Background()

	require.NoError(t, svc.RecordTrade(ctx, "u1", "NVDA", model.TransactionSell, 3, decimal.NewFromInt(500), ""))

	_, err := repo.GetHolding(ctx, "u1", "NVDA")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.Len(t, repo.transactions, 1)
	assert.Equal(t, model.TransactionSell, repo.transactions[0].Type)
}

// A failing mirror never fails the trade: ledger and holding are written.
func TestRecordTrade_MirrorFailureKeepsLocalState(t *testing.T) {
	repo := newFakeRepo()
	mirror := newFakeMirror()
	mirror.setErr = errors.New("drive unavailable")
	svc := newTestService(repo, mirror, nil)
	ctx := context.Background()

	require.NoError(t, svc.RecordTrade(ctx, "u1", "TCS.NS", model.TransactionBuy, 10, decimal.NewFromInt(100), ""))

	h, err := repo.GetHolding(ctx, "u1", "TCS.NS")
	require.NoError(t, err)
	assert.Equal(t, 10, h.Quantity)
	assert.Len(t, repo.transactions, 1)
}

func TestRecordTrade_Validation(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeMirror(), nil)
	ctx := context.Background()

	assert.ErrorIs(t, svc.RecordTrade(ctx, "u1", "", model.TransactionBuy, 1, decimal.NewFromInt(10), ""), service.ErrInvalidTrade)
	assert.ErrorIs(t, svc.RecordTrade(ctx, "u1", "AAPL", model.TransactionBuy, 0, decimal.NewFromInt(10), ""), service.ErrInvalidTrade)
	assert.ErrorIs(t, svc.RecordTrade(ctx, "u1", "AAPL", model.TransactionBuy, 1, decimal.Zero, ""), service.ErrInvalidTrade)
	assert.ErrorIs(t, svc.RecordTrade(ctx, "u1", "AAPL", "SHORT", 1, decimal.NewFromInt(10), ""), service.ErrInvalidTrade)

	assert.Empty(t, repo.transactions, "invalid trades never reach the ledger")
}

// Replaying the ledger reproduces exactly the state incremental updates
// produced.
func TestRebuildHolding_MatchesIncrementalState(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeMirror(), nil)
	ctx := context.Background()

	require.NoError(t, svc.RecordTrade(ctx, "u1", "TCS.NS", model.TransactionBuy, 10, decimal.NewFromInt(100), ""))
	require.NoError(t, svc.RecordTrade(ctx, "u1", "TCS.NS", model.TransactionBuy, 5, decimal.NewFromInt(130), ""))
	require.NoError(t, svc.RecordTrade(ctx, "u1", "TCS.NS", model.TransactionSell, 3, decimal.NewFromInt(150), ""))

	incremental, err := repo.GetHolding(ctx, "u1", "TCS.NS")
	require.NoError(t, err)

	require.NoError(t, svc.RebuildHolding(ctx, "u1", "TCS.NS"))

	rebuilt, err := repo.GetHolding(ctx, "u1", "TCS.NS")
	require.NoError(t, err)
	assert.Equal(t, incremental.Quantity, rebuilt.Quantity)
	assert.True(t, incremental.AvgCost.Equal(rebuilt.AvgCost), "incremental %s vs rebuilt %s", incremental.AvgCost, rebuilt.AvgCost)
}

// Deleting a buy record rebuilds the holding from what remains; deleting
// the only buy removes the holding entirely.
func TestDeleteTransactionRecord_RebuildsHolding(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeMirror(), nil)
	ctx := context.Background()

	require.NoError(t, svc.RecordTrade(ctx, "u1", "AAPL", model.TransactionBuy, 10, decimal.NewFromInt(100), ""))
	require.NoError(t, svc.RecordTrade(ctx, "u1", "AAPL", model.TransactionBuy, 10, decimal.NewFromInt(200), ""))

	require.NoError(t, svc.DeleteTransactionRecord(ctx, "u1", repo.transactions[1].ID, "AAPL"))

	h, err := repo.GetHolding(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 10, h.Quantity)
	assert.True(t, h.AvgCost.Equal(decimal.NewFromInt(100)))

	require.NoError(t, svc.DeleteTransactionRecord(ctx, "u1", repo.transactions[0].ID, "AAPL"))
	_, err = repo.GetHolding(ctx, "u1", "AAPL")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReplayLedger_SellResetsCostBasis(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	records := []model.Transaction{
		{Type: model.TransactionBuy, Quantity: 10, Price: decimal.NewFromInt(100), CreatedAt: now},
		{Type: model.TransactionSell, Quantity: 10, Price: decimal.NewFromInt(120), CreatedAt: now.Add(time.Hour)},
		{Type: model.TransactionBuy, Quantity: 4, Price: decimal.NewFromInt(200), CreatedAt: now.Add(2 * time.Hour)},
	}

	qty, avgCost, buyDate := replayLedger(records)
	assert.Equal(t, 4, qty)
	assert.True(t, avgCost.Equal(decimal.NewFromInt(200)), "cost basis restarts after the position is closed")
	assert.Equal(t, "2026-02-01", buyDate)
}

// One failing symbol must not keep the others from being refreshed.
func TestRefreshPrices_FetchIsolation(t *testing.T) {
	repo := newFakeRepo()
	marketData := &fakeMarketData{
		prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(190)},
		errs:   map[string]error{"TCS.NS": errors.New("upstream down")},
	}
	svc := newTestService(repo, newFakeMirror(), marketData)
	ctx := context.Background()

	require.NoError(t, svc.RecordTrade(ctx, "u1", "AAPL", model.TransactionBuy, 1, decimal.NewFromInt(150), ""))
	require.NoError(t, svc.RecordTrade(ctx, "u1", "TCS.NS", model.TransactionBuy, 1, decimal.NewFromInt(100), ""))

	require.NoError(t, svc.RefreshPrices(ctx, "u1"))

	aapl, err := repo.GetHolding(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assert.True(t, aapl.CurrentPrice.Equal(decimal.NewFromInt(190)))

	tcs, err := repo.GetHolding(ctx, "u1", "TCS.NS")
	require.NoError(t, err)
	assert.True(t, tcs.CurrentPrice.Equal(decimal.NewFromInt(100)), "failed fetch keeps the last price")
}

// A non-positive upstream price is discarded.
func TestRefreshPrices_IgnoresNonPositivePrice(t *testing.T) {
	repo := newFakeRepo()
	marketData := &fakeMarketData{prices: map[string]decimal.Decimal{"AAPL": decimal.Zero}}
	svc := newTestService(repo, newFakeMirror(), marketData)
	ctx := context.Background()

	require.NoError(t, svc.RecordTrade(ctx, "u1", "AAPL", model.TransactionBuy, 1, decimal.NewFromInt(150), ""))
	require.NoError(t, svc.RefreshPrices(ctx, "u1"))

	h, err := repo.GetHolding(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assert.True(t, h.CurrentPrice.Equal(decimal.NewFromInt(150)))
}

// Sync pulls mirror positions in while keeping locally known prices, and
// replaces the watchlist wholesale.
func TestSyncAllDataAndPrices(t *testing.T) {
	repo := newFakeRepo()
	mirror := newFakeMirror()
	marketData := &fakeMarketData{prices: map[string]decimal.Decimal{
		"AAPL":   decimal.NewFromInt(190),
		"TCS.NS": decimal.NewFromInt(3500),
		"MSFT":   decimal.NewFromInt(410),
	}}
	svc := newTestService(repo, mirror, marketData)
	ctx := context.Background()

	// local state before sync: AAPL with a known price, stale watchlist
	require.NoError(t, repo.UpsertHolding(ctx, model.Holding{
		UserID: "u1", Symbol: "AAPL", Quantity: 5,
		AvgCost: decimal.NewFromInt(120), CurrentPrice: decimal.NewFromInt(185),
	}))
	require.NoError(t, repo.UpsertWatchlistEntry(ctx, model.WatchlistEntry{UserID: "u1", Symbol: "GOOG"}))

	mirror.holdings[key("u1", "AAPL")] = model.MirrorHolding{Symbol: "AAPL", Quantity: 7, AvgCost: decimal.NewFromInt(130), BuyDate: "2026-01-02"}
	mirror.holdings[key("u1", "TCS.NS")] = model.MirrorHolding{Symbol: "TCS.NS", Quantity: 2, AvgCost: decimal.NewFromInt(3000), BuyDate: "2026-01-03"}
	mirror.watchlist[key("u1", "MSFT")] = struct{}{}

	require.NoError(t, svc.SyncAllDataAndPrices(ctx, "u1"))

	aapl, err := repo.GetHolding(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 7, aapl.Quantity, "mirror quantity wins")
	assert.True(t, aapl.AvgCost.Equal(decimal.NewFromInt(130)))

	tcs, err := repo.GetHolding(ctx, "u1", "TCS.NS")
	require.NoError(t, err)
	assert.Equal(t, 2, tcs.Quantity)

	_, err = repo.GetWatchlistEntry(ctx, "u1", "GOOG")
	assert.ErrorIs(t, err, repository.ErrNotFound, "watchlist entries absent from the mirror are dropped")

	msft, err := repo.GetWatchlistEntry(ctx, "u1", "MSFT")
	require.NoError(t, err)
	assert.True(t, msft.LastPrice.Equal(decimal.NewFromInt(410)), "new watchlist entry gets a live price")
}

// A second sync for the same user while one is running is dropped.
func TestSyncAllDataAndPrices_InFlightGuard(t *testing.T) {
	repo := newFakeRepo()
	mirror := newFakeMirror()
	mirror.getBlockCh = make(chan struct{})
	svc := newTestService(repo, mirror, nil)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- svc.SyncAllDataAndPrices(ctx, "u1")
	}()

	// wait until the first sync is registered as in flight
	require.Eventually(t, func() bool {
		_, loaded := svc.syncInFlight.Load("u1")
		return loaded
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, svc.SyncAllDataAndPrices(ctx, "u1"), service.ErrSyncInProgress)

	close(mirror.getBlockCh)
	require.NoError(t, <-firstDone)

	// once finished, syncing again is allowed
	require.NoError(t, svc.SyncAllDataAndPrices(ctx, "u1"))
}

func TestAddAndDeleteWatchlistStock(t *testing.T) {
	repo := newFakeRepo()
	mirror := newFakeMirror()
	marketData := &fakeMarketData{prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(190)}}
	svc := newTestService(repo, mirror, marketData)
	ctx := context.Background()

	require.NoError(t, svc.AddWatchlistStock(ctx, "u1", "aapl"))

	_, err := repo.GetWatchlistEntry(ctx, "u1", "AAPL")
	require.NoError(t, err)
	_, mirrored := mirror.watchlist[key("u1", "AAPL")]
	assert.True(t, mirrored)

	require.NoError(t, svc.DeleteWatchlistStock(ctx, "u1", "AAPL"))
	_, err = repo.GetWatchlistEntry(ctx, "u1", "AAPL")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, mirrored = mirror.watchlist[key("u1", "AAPL")]
	assert.False(t, mirrored)
}

func TestClearAllLocalData(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeMirror(), nil)
	ctx := context.Background()

	require.NoError(t, svc.RecordTrade(ctx, "u1", "AAPL", model.TransactionBuy, 1, decimal.NewFromInt(150), ""))
	require.NoError(t, repo.UpsertWatchlistEntry(ctx, model.WatchlistEntry{UserID: "u1", Symbol: "GOOG"}))
	require.NoError(t, svc.RecordTrade(ctx, "u2", "AAPL", model.TransactionBuy, 1, decimal.NewFromInt(150), ""))

	require.NoError(t, svc.ClearAllLocalData(ctx, "u1"))

	holdings, err := repo.GetAllHoldings(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, holdings)

	watchlist, err := repo.GetAllWatchlistEntries(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, watchlist)

	other, err := repo.GetAllHoldings(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, other, 1, "other users are untouched")
}

func TestGetTotalInvested(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, newFakeMirror(), nil)
	ctx := context.Background()

	require.NoError(t, svc.RecordTrade(ctx, "u1", "AAPL", model.TransactionBuy, 10, decimal.NewFromInt(100), ""))
	require.NoError(t, svc.RecordTrade(ctx, "u1", "AAPL", model.TransactionBuy, 5, decimal.NewFromInt(130), ""))
	require.NoError(t, svc.RecordTrade(ctx, "u1", "AAPL", model.TransactionSell, 8, decimal.NewFromInt(150), ""))

	invested, err := svc.GetTotalInvested(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assert.True(t, invested.Equal(decimal.NewFromInt(1650)), "sells never reduce the invested total, got %s", invested)

	qty, err := svc.GetTotalQtyBought(ctx, "u1", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 15, qty)
}
