package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/userpanel/internal/gateway"
	"github.com/atmx/userpanel/internal/localstore"
	"github.com/atmx/userpanel/internal/model"
	"github.com/atmx/userpanel/internal/state"
	"github.com/atmx/userpanel/internal/validate"
	"github.com/atmx/userpanel/internal/view"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// fakeBackend answers with canned results and counts calls.
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	profile      gateway.Result[model.Session]
	profilePanic bool
	coins        func(search string) gateway.Result[[]model.Coin]
	portfolio    gateway.Result[model.Portfolio]
	spot         func(ctx context.Context, n int) gateway.Result[[]model.Position]
	leverage     gateway.Result[[]model.Position]
	action       gateway.Result[json.RawMessage]
	closePrices  []decimal.Decimal
}

func ok[T any](v T) gateway.Result[T] {
	return gateway.Result[T]{OK: true, Data: v}
}

func failed[T any](kind gateway.Kind, status int, msg string) gateway.Result[T] {
	return gateway.Result[T]{Kind: kind, Status: status, Message: msg}
}

var liveCoins = []model.Coin{
	{ID: "1", Symbol: "BTC", Name: "Bitcoin", CurrentPrice: decimal.NewFromInt(110)},
	{ID: "2", Symbol: "ETH", Name: "Ethereum", CurrentPrice: decimal.NewFromInt(20)},
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:   make(map[string]int),
		profile: ok(model.Session{Username: "alice", Email: "alice@example.com", Balance: decimal.NewFromInt(1000)}),
		coins: func(string) gateway.Result[[]model.Coin] {
			return ok(append([]model.Coin{}, liveCoins...))
		},
		portfolio: ok(model.Portfolio{
			Entries: []model.PortfolioEntry{{CoinID: "1", CoinCode: "BTC", NetAmount: decimal.NewFromFloat(0.5)}},
			Summary: model.PortfolioSummary{TotalValue: decimal.NewFromInt(55), CoinCount: 1},
		}),
		spot: func(context.Context, int) gateway.Result[[]model.Position] {
			return ok([]model.Position{})
		},
		leverage: ok([]model.Position{}),
		action:   ok(json.RawMessage(`{}`)),
	}
}

func (f *fakeBackend) hit(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.calls[name]
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) Profile(context.Context) gateway.Result[model.Session] {
	f.hit("profile")
	if f.profilePanic {
		panic("profile exploded")
	}
	return f.profile
}

func (f *fakeBackend) Coins(_ context.Context, search string) gateway.Result[[]model.Coin] {
	f.hit("coins")
	return f.coins(search)
}

func (f *fakeBackend) Portfolio(context.Context) gateway.Result[model.Portfolio] {
	f.hit("portfolio")
	return f.portfolio
}

func (f *fakeBackend) Trade(context.Context, string, string, decimal.Decimal) gateway.Result[json.RawMessage] {
	f.hit("trade")
	return f.action
}

func (f *fakeBackend) Sell(context.Context, string, decimal.Decimal) gateway.Result[json.RawMessage] {
	f.hit("sell")
	return f.action
}

func (f *fakeBackend) SpotPositions(ctx context.Context) gateway.Result[[]model.Position] {
	n := f.hit("spot")
	return f.spot(ctx, n)
}

func (f *fakeBackend) LeveragePositions(context.Context) gateway.Result[[]model.Position] {
	f.hit("leverage")
	return f.leverage
}

func (f *fakeBackend) ClosePosition(_ context.Context, _ model.Position, closePrice decimal.Decimal) gateway.Result[json.RawMessage] {
	f.hit("close")
	f.mu.Lock()
	f.closePrices = append(f.closePrices, closePrice)
	f.mu.Unlock()
	return f.action
}

func (f *fakeBackend) Deposits(context.Context) gateway.Result[[]model.DepositRequest] {
	f.hit("deposits")
	return ok([]model.DepositRequest{})
}

func (f *fakeBackend) CreateDeposit(context.Context, gateway.DepositForm) gateway.Result[json.RawMessage] {
	f.hit("create_deposit")
	return f.action
}

func (f *fakeBackend) Transactions(context.Context) gateway.Result[[]model.Transaction] {
	f.hit("transactions")
	return ok([]model.Transaction{})
}

func (f *fakeBackend) Logout(context.Context) gateway.Result[json.RawMessage] {
	f.hit("logout")
	return f.action
}

func newTestDashboard(t *testing.T, fb *fakeBackend) (*Dashboard, *localstore.MemoryStore) {
	t.Helper()
	local := localstore.NewMemoryStore()
	dash := New(Options{
		Backend: fb,
		Local:   local,
		Intervals: Intervals{
			Prices:    time.Hour,
			Portfolio: time.Hour,
			Positions: time.Hour,
		},
	})
	t.Cleanup(dash.Stop)
	return dash, local
}

func lastToast(t *testing.T, dash *Dashboard) view.Toast {
	t.Helper()
	v, ok := dash.Slots().Get(view.SlotToast)
	if !ok {
		t.Fatal("no toast painted")
	}
	return v.(view.Toast)
}

// --- Startup ---

func TestStart_Authenticated(t *testing.T) {
	fb := newFakeBackend()
	dash, _ := newTestDashboard(t, fb)

	report := dash.Start(context.Background())
	if !report.Authenticated {
		t.Fatal("expected authenticated session")
	}
	if len(report.Outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(report.Outcomes))
	}
	want := []state.Resource{state.ResSession, state.ResCoins, state.ResPortfolio, state.ResPositions}
	for i, o := range report.Outcomes {
		if o.Resource != want[i] || !o.OK {
			t.Errorf("outcome %d = %+v, want ok %s", i, o, want[i])
		}
	}
	if len(report.Polling) != 3 {
		t.Errorf("expected 3 poll jobs, got %v", report.Polling)
	}
	if _, ok := dash.Slots().Get(view.SlotHeader); !ok {
		t.Error("header not painted")
	}
}

func TestStart_MarketNetworkFailureShowsFallback(t *testing.T) {
	fb := newFakeBackend()
	fb.coins = func(string) gateway.Result[[]model.Coin] {
		return failed[[]model.Coin](gateway.KindNetwork, 0, "connection refused")
	}
	dash, _ := newTestDashboard(t, fb)

	report := dash.Start(context.Background())
	coins := report.Outcomes[1]
	if coins.OK || !coins.Fallback {
		t.Errorf("expected failed outcome with fallback, got %+v", coins)
	}

	st := dash.Store().Snapshot()
	if !st.CoinsFallback || len(st.Coins) == 0 {
		t.Fatalf("expected fallback coins, got %d (fallback=%v)", len(st.Coins), st.CoinsFallback)
	}
	if phase := st.StatusOf(state.ResCoins).Phase; phase != state.PhaseReady {
		t.Errorf("expected loading phase cleared, got %s", phase)
	}
	grid := view.NewRenderer(view.Options{}).Markets(st)
	if grid.Phase != view.PhaseReady || !grid.Fallback {
		t.Errorf("expected ready fallback grid, got phase=%s fallback=%v", grid.Phase, grid.Fallback)
	}
}

func TestStart_SessionExpired(t *testing.T) {
	fb := newFakeBackend()
	fb.profile = failed[model.Session](gateway.KindApplication, 200, "session expired")
	fb.coins = func(string) gateway.Result[[]model.Coin] {
		return failed[[]model.Coin](gateway.KindNetwork, 0, "timeout")
	}
	dash, _ := newTestDashboard(t, fb)

	report := dash.Start(context.Background())
	if report.Authenticated {
		t.Fatal("expected unauthenticated report")
	}
	st := dash.Store().Snapshot()
	if st.Session != nil {
		t.Error("session must be cleared")
	}
	if toast := lastToast(t, dash); toast.Message != "Your session has expired. Please log in again." {
		t.Errorf("unexpected toast %q", toast.Message)
	}
	if !st.CoinsFallback || len(st.Coins) == 0 {
		t.Error("markets must still render from fallback")
	}
	v, _ := dash.Slots().Get(view.SlotPage)
	if page := v.(view.Page); !page.AuthRequired {
		t.Error("page must be marked auth required")
	}
	if fb.count("portfolio") != 0 || fb.count("spot") != 0 {
		t.Error("portfolio and positions must not load without a session")
	}
	if jobs := dash.Scheduler().Active(); len(jobs) != 1 || jobs[0] != JobPrices {
		t.Errorf("expected only price polling, got %v", jobs)
	}
}

func TestStart_RestoresLastSection(t *testing.T) {
	fb := newFakeBackend()
	dash, local := newTestDashboard(t, fb)
	local.Set(context.Background(), localstore.KeyLastSection, string(model.SectionPortfolio), 0)

	report := dash.Start(context.Background())
	if report.Section != model.SectionPortfolio {
		t.Errorf("expected portfolio section, got %s", report.Section)
	}
	if _, ok := dash.Slots().Get(view.SlotPortfolio); !ok {
		t.Error("portfolio slot not painted")
	}
}

func TestStart_PanicPaintsFallback(t *testing.T) {
	fb := newFakeBackend()
	fb.profilePanic = true
	dash, _ := newTestDashboard(t, fb)

	report := dash.Start(context.Background())
	if !report.Emergency {
		t.Fatal("expected emergency report")
	}
	if st := dash.Store().Snapshot(); !st.CoinsFallback {
		t.Error("expected fallback coins after panic")
	}
	if toast := lastToast(t, dash); toast.Level != view.ToastError {
		t.Errorf("expected error toast, got %s", toast.Level)
	}
}

// --- Navigation & polling ---

func TestNavigate_MarketsTwiceRefreshesOnce(t *testing.T) {
	fb := newFakeBackend()
	dash, local := newTestDashboard(t, fb)
	dash.Start(context.Background())
	before := fb.count("coins")

	ctx := context.Background()
	if changed, err := dash.Navigate(ctx, model.SectionMarkets); err != nil || !changed {
		t.Fatalf("first navigate: changed=%v err=%v", changed, err)
	}
	if changed, err := dash.Navigate(ctx, model.SectionMarkets); err != nil || changed {
		t.Fatalf("second navigate: changed=%v err=%v", changed, err)
	}
	if got := fb.count("coins") - before; got != 1 {
		t.Errorf("expected 1 refresh, got %d", got)
	}
	if v, err := local.Get(ctx, localstore.KeyLastSection); err != nil || v != "markets" {
		t.Errorf("expected persisted section markets, got %q (%v)", v, err)
	}
}

func TestShortcut_Unknown(t *testing.T) {
	dash, _ := newTestDashboard(t, newFakeBackend())
	if _, err := dash.Shortcut(context.Background(), 9); err == nil {
		t.Error("expected error for shortcut 9")
	}
}

func TestSetVisible_PausesAndResumesPolling(t *testing.T) {
	fb := newFakeBackend()
	dash, _ := newTestDashboard(t, fb)
	dash.Start(context.Background())

	if err := dash.SetVisible(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobs := dash.Scheduler().Active(); len(jobs) != 0 {
		t.Fatalf("expected no jobs while hidden, got %v", jobs)
	}
	if err := dash.SetVisible(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobs := dash.Scheduler().Active(); len(jobs) != 3 {
		t.Errorf("expected 3 jobs after resume, got %v", jobs)
	}
}

func TestSearch_EmptyFilteredResult(t *testing.T) {
	fb := newFakeBackend()
	fb.coins = func(search string) gateway.Result[[]model.Coin] {
		if search != "" {
			return ok([]model.Coin{})
		}
		return ok(append([]model.Coin{}, liveCoins...))
	}
	dash, local := newTestDashboard(t, fb)
	dash.Start(context.Background())

	o, err := dash.Search(context.Background(), "  zzz ")
	if err != nil || !o.OK || o.Fallback {
		t.Fatalf("unexpected outcome %+v err=%v", o, err)
	}
	st := dash.Store().Snapshot()
	if st.CoinsFallback || len(st.Coins) != 0 || st.CoinsQuery != "zzz" {
		t.Errorf("expected empty live result for zzz, got %d coins fallback=%v query=%q",
			len(st.Coins), st.CoinsFallback, st.CoinsQuery)
	}
	if v, _ := local.Get(context.Background(), localstore.KeyMarketSearch); v != "zzz" {
		t.Errorf("expected persisted term, got %q", v)
	}
}

func TestRetry_UnknownResource(t *testing.T) {
	dash, _ := newTestDashboard(t, newFakeBackend())
	if _, err := dash.Retry(context.Background(), "orders"); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("expected ErrUnknownResource, got %v", err)
	}
}

// --- Positions ---

func TestLoadPositions_StaleCompletionDiscarded(t *testing.T) {
	fb := newFakeBackend()
	entered := make(chan struct{})
	release := make(chan struct{})
	fb.spot = func(_ context.Context, n int) gateway.Result[[]model.Position] {
		if n == 1 {
			close(entered)
			<-release
			return ok([]model.Position{{ID: "old", Symbol: "BTC"}})
		}
		return ok([]model.Position{{ID: "new", Symbol: "BTC"}})
	}
	dash, _ := newTestDashboard(t, fb)
	ctx := context.Background()

	first := make(chan LoadOutcome, 1)
	go func() { first <- dash.loadPositions(ctx) }()
	<-entered

	second := dash.loadPositions(ctx)
	close(release)
	stale := <-first

	if second.Stale || !second.OK {
		t.Errorf("second load should apply, got %+v", second)
	}
	if !stale.Stale {
		t.Errorf("first load should be stale, got %+v", stale)
	}
	st := dash.Store().Snapshot()
	if len(st.Positions) != 1 || st.Positions[0].ID != "new" {
		t.Errorf("expected only the newer positions, got %+v", st.Positions)
	}
}

func TestLoadPositions_MissingSourceIsEmpty(t *testing.T) {
	fb := newFakeBackend()
	fb.spot = func(context.Context, int) gateway.Result[[]model.Position] {
		return ok([]model.Position{{ID: "s1", Symbol: "BTC", Source: model.SourceSpot}})
	}
	fb.leverage = failed[[]model.Position](gateway.KindHTTP, 404, "HTTP error! status: 404")
	dash, _ := newTestDashboard(t, fb)

	o := dash.loadPositions(context.Background())
	if !o.OK {
		t.Fatalf("expected ok outcome, got %+v", o)
	}
	if st := dash.Store().Snapshot(); len(st.Positions) != 1 {
		t.Errorf("expected 1 position, got %d", len(st.Positions))
	}
}

func TestLoadPositions_FailureKeepsPreviousList(t *testing.T) {
	fb := newFakeBackend()
	fb.spot = func(_ context.Context, n int) gateway.Result[[]model.Position] {
		if n == 1 {
			return ok([]model.Position{{ID: "s1", Symbol: "BTC"}})
		}
		return failed[[]model.Position](gateway.KindHTTP, 500, "HTTP error! status: 500")
	}
	dash, _ := newTestDashboard(t, fb)
	ctx := context.Background()

	dash.loadPositions(ctx)
	o := dash.loadPositions(ctx)
	if o.OK || o.Kind != string(gateway.KindHTTP) {
		t.Fatalf("expected http failure, got %+v", o)
	}
	st := dash.Store().Snapshot()
	if len(st.Positions) != 1 {
		t.Errorf("expected previous list kept, got %d", len(st.Positions))
	}
	if st.StatusOf(state.ResPositions).Phase != state.PhaseFailed {
		t.Error("expected failed phase")
	}
}

func TestLoad_CancelledRecordsNothing(t *testing.T) {
	fb := newFakeBackend()
	dash, _ := newTestDashboard(t, fb)
	dash.Start(context.Background())

	fb.portfolio = failed[model.Portfolio](gateway.KindNetwork, 0, "context canceled")
	fb.coins = func(string) gateway.Result[[]model.Coin] {
		return failed[[]model.Coin](gateway.KindNetwork, 0, "context canceled")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if o := dash.loadPortfolio(ctx); !o.Cancelled || o.OK {
		t.Errorf("expected cancelled portfolio outcome, got %+v", o)
	}
	if o := dash.loadCoins(ctx); !o.Cancelled || o.Fallback {
		t.Errorf("expected cancelled coins outcome without fallback, got %+v", o)
	}
	st := dash.Store().Snapshot()
	if st.StatusOf(state.ResPortfolio).Phase != state.PhaseReady || st.StatusOf(state.ResCoins).Phase != state.PhaseReady {
		t.Errorf("cancelled loads must keep the previous status, got %s/%s",
			st.StatusOf(state.ResPortfolio).Phase, st.StatusOf(state.ResCoins).Phase)
	}
	if st.CoinsFallback || len(st.Coins) != len(liveCoins) {
		t.Error("cancelled coins load must keep the live list")
	}
}

func TestLoadCoins_CancelledBeforeLiveDataKeepsFallbackOff(t *testing.T) {
	fb := newFakeBackend()
	fb.coins = func(string) gateway.Result[[]model.Coin] {
		return failed[[]model.Coin](gateway.KindNetwork, 0, "context canceled")
	}
	dash, _ := newTestDashboard(t, fb)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := dash.loadCoins(ctx)
	if !o.Cancelled {
		t.Fatalf("expected cancelled outcome, got %+v", o)
	}
	st := dash.Store().Snapshot()
	if st.CoinsFallback || st.StatusOf(state.ResCoins).Phase != state.PhaseIdle {
		t.Errorf("expected untouched idle coins, got fallback=%v phase=%s",
			st.CoinsFallback, st.StatusOf(state.ResCoins).Phase)
	}
}

func TestConcurrentLoads_DashboardSlotMatchesFinalState(t *testing.T) {
	fb := newFakeBackend()
	fb.spot = func(_ context.Context, n int) gateway.Result[[]model.Position] {
		ps := make([]model.Position, n%5)
		for i := range ps {
			ps[i] = model.Position{ID: model.ID(fmt.Sprintf("p%d", i)), Symbol: "BTC"}
		}
		return ok(ps)
	}
	dash, _ := newTestDashboard(t, fb)
	ctx := context.Background()
	dash.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); dash.loadPositions(ctx) }()
		go func() { defer wg.Done(); dash.loadPortfolio(ctx) }()
	}
	wg.Wait()

	painted, found := dash.Slots().Get(view.SlotDashboard)
	if !found {
		t.Fatal("dashboard slot not painted")
	}
	want, _ := json.Marshal(dash.renderer.Dashboard(dash.Store().Snapshot()))
	got, _ := json.Marshal(painted)
	if string(got) != string(want) {
		t.Errorf("dashboard slot lags the store:\n got  %s\n want %s", got, want)
	}
}

func TestClosePosition(t *testing.T) {
	fb := newFakeBackend()
	fb.spot = func(context.Context, int) gateway.Result[[]model.Position] {
		return ok([]model.Position{{
			ID: "7", Symbol: "BTC", Type: model.Long, Leverage: d(1),
			InvestedAmount: d(100), EntryPrice: d(100), CurrentPrice: d(100),
			Source: model.SourceSpot,
		}})
	}
	dash, _ := newTestDashboard(t, fb)
	ctx := context.Background()
	dash.Start(ctx)

	if err := dash.ClosePosition(ctx, "7", false); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if err := dash.ClosePosition(ctx, "99", true); !errors.Is(err, ErrUnknownPosition) {
		t.Fatalf("expected ErrUnknownPosition, got %v", err)
	}
	if fb.count("close") != 0 {
		t.Fatal("no close call expected yet")
	}

	if err := dash.ClosePosition(ctx, "7", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fb.closePrices) != 1 || !fb.closePrices[0].Equal(d(110)) {
		t.Errorf("expected close at live price 110, got %v", fb.closePrices)
	}
	if toast := lastToast(t, dash); toast.Level != view.ToastSuccess {
		t.Errorf("expected success toast, got %+v", toast)
	}
}

func TestClosePosition_FallbackPriceNotSent(t *testing.T) {
	fb := newFakeBackend()
	fb.coins = func(string) gateway.Result[[]model.Coin] {
		return failed[[]model.Coin](gateway.KindNetwork, 0, "connection refused")
	}
	fb.spot = func(context.Context, int) gateway.Result[[]model.Position] {
		return ok([]model.Position{{
			ID: "7", Symbol: "BTC", Type: model.Long, Leverage: d(1),
			InvestedAmount: d(100), EntryPrice: d(100), CurrentPrice: d(100),
			Source: model.SourceSpot,
		}})
	}
	dash, _ := newTestDashboard(t, fb)
	ctx := context.Background()
	dash.Start(ctx)
	if !dash.Store().Snapshot().CoinsFallback {
		t.Fatal("expected fallback coins")
	}

	if err := dash.ClosePosition(ctx, "7", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fb.closePrices) != 1 || !fb.closePrices[0].Equal(d(100)) {
		t.Errorf("expected close at the position's own price 100, got %v", fb.closePrices)
	}
}

// --- Trading ---

func TestSell_ZeroAmountMakesNoCall(t *testing.T) {
	fb := newFakeBackend()
	dash, _ := newTestDashboard(t, fb)
	dash.Start(context.Background())

	err := dash.Sell(context.Background(), "1", decimal.Zero)
	if !errors.Is(err, validate.ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
	if fb.count("sell") != 0 {
		t.Error("sell must not reach the backend")
	}
	if toast := lastToast(t, dash); toast.Level != view.ToastError {
		t.Errorf("expected error toast, got %+v", toast)
	}
}

func TestSell_AboveHoldingRejected(t *testing.T) {
	fb := newFakeBackend()
	dash, _ := newTestDashboard(t, fb)
	dash.Start(context.Background())

	err := dash.Sell(context.Background(), "1", d(2))
	if !errors.Is(err, validate.ErrInsufficientHoldings) {
		t.Fatalf("expected ErrInsufficientHoldings, got %v", err)
	}
	if fb.count("sell") != 0 {
		t.Error("sell must not reach the backend")
	}
}

func TestSell_RefreshesPortfolioAndSession(t *testing.T) {
	fb := newFakeBackend()
	dash, _ := newTestDashboard(t, fb)
	ctx := context.Background()
	dash.Start(ctx)
	portfolio, profile := fb.count("portfolio"), fb.count("profile")

	if err := dash.Sell(ctx, "1", d(0.25)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.count("portfolio") != portfolio+1 || fb.count("profile") != profile+1 {
		t.Error("expected portfolio and session refresh after sale")
	}
}

func TestSell_BackendFailureToasts(t *testing.T) {
	fb := newFakeBackend()
	fb.action = failed[json.RawMessage](gateway.KindApplication, 200, "Market closed")
	dash, _ := newTestDashboard(t, fb)
	ctx := context.Background()
	dash.Start(ctx)

	if err := dash.Sell(ctx, "1", d(0.1)); err == nil {
		t.Fatal("expected error")
	}
	if toast := lastToast(t, dash); toast.Message != "Market closed" {
		t.Errorf("expected backend message in toast, got %q", toast.Message)
	}
}

func TestSubmitTrade(t *testing.T) {
	fb := newFakeBackend()
	dash, _ := newTestDashboard(t, fb)
	ctx := context.Background()
	dash.Start(ctx)

	if err := dash.SubmitTrade(ctx, "hold", "1", d(1)); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction, got %v", err)
	}
	if err := dash.SubmitTrade(ctx, "buy", "404", d(1)); !errors.Is(err, ErrUnknownCoin) {
		t.Errorf("expected ErrUnknownCoin, got %v", err)
	}
	if err := dash.OpenTrade("1"); err != nil {
		t.Fatalf("open trade: %v", err)
	}
	if err := dash.SubmitTrade(ctx, "BUY", "1", d(0.1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.count("trade") != 1 {
		t.Errorf("expected 1 trade call, got %d", fb.count("trade"))
	}
	if st := dash.Store().Snapshot(); st.TradeCoin != nil {
		t.Error("trade view should close after a successful trade")
	}
}

func TestSubmitTrade_FallbackCoinRejected(t *testing.T) {
	fb := newFakeBackend()
	fb.coins = func(string) gateway.Result[[]model.Coin] {
		return failed[[]model.Coin](gateway.KindNetwork, 0, "connection refused")
	}
	dash, _ := newTestDashboard(t, fb)
	ctx := context.Background()
	dash.Start(ctx)

	st := dash.Store().Snapshot()
	if !st.CoinsFallback || len(st.Coins) == 0 {
		t.Fatal("expected fallback coins")
	}
	id := st.Coins[0].ID

	if err := dash.OpenTrade(id); !errors.Is(err, ErrMarketUnavailable) {
		t.Errorf("expected ErrMarketUnavailable from OpenTrade, got %v", err)
	}
	if st := dash.Store().Snapshot(); st.TradeCoin != nil {
		t.Error("trade view must stay closed")
	}
	if err := dash.SubmitTrade(ctx, "buy", id, d(0.1)); !errors.Is(err, ErrMarketUnavailable) {
		t.Errorf("expected ErrMarketUnavailable from SubmitTrade, got %v", err)
	}
	if fb.count("trade") != 0 {
		t.Errorf("fallback trade must not reach the backend, got %d calls", fb.count("trade"))
	}
	if toast := lastToast(t, dash); toast.Level != view.ToastError {
		t.Errorf("expected error toast, got %+v", toast)
	}
}

func TestCreateDeposit_InvalidMakesNoCall(t *testing.T) {
	fb := newFakeBackend()
	dash, _ := newTestDashboard(t, fb)

	err := dash.CreateDeposit(context.Background(), validate.Deposit{Method: "papara", Amount: d(5)})
	if !errors.Is(err, validate.ErrAmountOutOfRange) {
		t.Fatalf("expected ErrAmountOutOfRange, got %v", err)
	}
	if fb.count("create_deposit") != 0 {
		t.Error("invalid deposit must not reach the backend")
	}

	err = dash.CreateDeposit(context.Background(), validate.Deposit{Method: "papara", Amount: d(100)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.count("create_deposit") != 1 || fb.count("deposits") != 1 {
		t.Error("expected submit followed by deposit list refresh")
	}
}

// --- Logout ---

func TestLogout_ClearsEverything(t *testing.T) {
	fb := newFakeBackend()
	dash, local := newTestDashboard(t, fb)
	ctx := context.Background()
	dash.Start(ctx)
	dash.Navigate(ctx, model.SectionMarkets)
	local.Set(ctx, localstore.KeyCSRFToken, "tok", 0)

	if err := dash.Logout(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fb.count("logout") != 1 {
		t.Error("expected backend logout")
	}
	if local.Len() != 0 {
		t.Errorf("expected empty local store, got %d entries", local.Len())
	}
	if jobs := dash.Scheduler().Active(); len(jobs) != 0 {
		t.Errorf("expected no jobs, got %v", jobs)
	}
	st := dash.Store().Snapshot()
	if st.Session != nil || len(st.Coins) != 0 {
		t.Error("expected reset state")
	}
	v, _ := dash.Slots().Get(view.SlotPage)
	if page := v.(view.Page); !page.LoggedOut {
		t.Error("page must be marked logged out")
	}
	if _, ok := dash.Slots().Get(view.SlotMarkets); ok {
		t.Error("section slots must be cleared")
	}
	if _, err := dash.Navigate(ctx, model.SectionPortfolio); !errors.Is(err, ErrLoggedOut) {
		t.Errorf("expected ErrLoggedOut, got %v", err)
	}
}
