// Package dashboard owns one user panel session: the state store, the
// polling scheduler, the renderer and the slots views are painted into.
// It wires backend results into the store and repaints after every
// mutation.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/userpanel/internal/fallback"
	"github.com/atmx/userpanel/internal/gateway"
	"github.com/atmx/userpanel/internal/localstore"
	"github.com/atmx/userpanel/internal/metrics"
	"github.com/atmx/userpanel/internal/model"
	"github.com/atmx/userpanel/internal/scheduler"
	"github.com/atmx/userpanel/internal/section"
	"github.com/atmx/userpanel/internal/state"
	"github.com/atmx/userpanel/internal/validate"
	"github.com/atmx/userpanel/internal/view"
)

// Poll job names.
const (
	JobPrices    = "prices"
	JobPortfolio = "portfolio"
	JobPositions = "positions"
)

var (
	ErrNotConfirmed    = errors.New("dashboard: action requires confirmation")
	ErrUnknownCoin     = errors.New("dashboard: unknown coin")
	ErrUnknownPosition = errors.New("dashboard: unknown position")
	ErrUnknownResource = errors.New("dashboard: unknown resource")
	ErrInvalidAction   = errors.New("dashboard: trade action must be buy or sell")
	ErrLoggedOut       = errors.New("dashboard: session has ended")

	// ErrMarketUnavailable is returned for trades while only fallback
	// market data is shown.
	ErrMarketUnavailable = errors.New("dashboard: live market data unavailable")
)

// Backend is the subset of the gateway the dashboard calls.
type Backend interface {
	Profile(ctx context.Context) gateway.Result[model.Session]
	Coins(ctx context.Context, search string) gateway.Result[[]model.Coin]
	Portfolio(ctx context.Context) gateway.Result[model.Portfolio]
	Trade(ctx context.Context, action, coinID string, amount decimal.Decimal) gateway.Result[json.RawMessage]
	Sell(ctx context.Context, coinID string, amount decimal.Decimal) gateway.Result[json.RawMessage]
	SpotPositions(ctx context.Context) gateway.Result[[]model.Position]
	LeveragePositions(ctx context.Context) gateway.Result[[]model.Position]
	ClosePosition(ctx context.Context, p model.Position, closePrice decimal.Decimal) gateway.Result[json.RawMessage]
	Deposits(ctx context.Context) gateway.Result[[]model.DepositRequest]
	CreateDeposit(ctx context.Context, f gateway.DepositForm) gateway.Result[json.RawMessage]
	Transactions(ctx context.Context) gateway.Result[[]model.Transaction]
	Logout(ctx context.Context) gateway.Result[json.RawMessage]
}

// Intervals are the polling cadences.
type Intervals struct {
	Prices    time.Duration
	Portfolio time.Duration
	Positions time.Duration
}

// DefaultIntervals returns the stock cadences.
func DefaultIntervals() Intervals {
	return Intervals{
		Prices:    30 * time.Second,
		Portfolio: 60 * time.Second,
		Positions: 30 * time.Second,
	}
}

// Options configures a Dashboard. Backend is required; everything else
// has a default.
type Options struct {
	Backend   Backend
	Local     localstore.Store
	Renderer  *view.Renderer
	Fallback  *fallback.Source
	Slots     *view.Slots
	Limits    validate.Limits
	Intervals Intervals
	// LocalTTL bounds how long persisted client state (last section,
	// search term) is kept.
	LocalTTL time.Duration
	Now      func() time.Time
}

// Dashboard is one panel session.
type Dashboard struct {
	backend   Backend
	local     localstore.Store
	store     *state.Store
	sched     *scheduler.Scheduler
	renderer  *view.Renderer
	fallback  *fallback.Source
	slots     *view.Slots
	sections  *section.Controller
	limits    validate.Limits
	intervals Intervals
	localTTL  time.Duration
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	search    string
	loggedOut bool

	// paintMu is held from snapshot to Paint so slots receive renders in
	// snapshot order.
	paintMu sync.Mutex
}

// New creates a dashboard. Nothing is fetched until Start.
func New(opts Options) *Dashboard {
	if opts.Local == nil {
		opts.Local = localstore.NewMemoryStore()
	}
	if opts.Renderer == nil {
		opts.Renderer = view.NewRenderer(view.Options{})
	}
	if opts.Fallback == nil {
		opts.Fallback = fallback.Default()
	}
	if opts.Slots == nil {
		opts.Slots = view.NewSlots()
	}
	if opts.Limits.MaxTrade.IsZero() {
		opts.Limits = validate.DefaultLimits()
	}
	def := DefaultIntervals()
	if opts.Intervals.Prices <= 0 {
		opts.Intervals.Prices = def.Prices
	}
	if opts.Intervals.Portfolio <= 0 {
		opts.Intervals.Portfolio = def.Portfolio
	}
	if opts.Intervals.Positions <= 0 {
		opts.Intervals.Positions = def.Positions
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		backend:   opts.Backend,
		local:     opts.Local,
		store:     state.New(),
		sched:     scheduler.New(ctx),
		renderer:  opts.Renderer,
		fallback:  opts.Fallback,
		slots:     opts.Slots,
		limits:    opts.Limits,
		intervals: opts.Intervals,
		localTTL:  opts.LocalTTL,
		now:       opts.Now,
		ctx:       ctx,
		cancel:    cancel,
	}

	d.sections = section.New(d.store, presenter{d}, map[model.Section]section.Loader{
		model.SectionMarkets:   func(ctx context.Context) error { return d.loadCoins(ctx).Err() },
		model.SectionPortfolio: func(ctx context.Context) error { return d.loadPortfolio(ctx).Err() },
		model.SectionPositions: func(ctx context.Context) error { return d.loadPositions(ctx).Err() },
		model.SectionHistory:   func(ctx context.Context) error { return d.loadTransactions(ctx).Err() },
		model.SectionDeposits:  func(ctx context.Context) error { return d.loadDeposits(ctx).Err() },
	})
	d.sections.OnEnter(d.persistSection)
	return d
}

// Store exposes the state store for read access.
func (d *Dashboard) Store() *state.Store { return d.store }

// Slots exposes the painted view-models.
func (d *Dashboard) Slots() *view.Slots { return d.slots }

// Scheduler exposes the polling scheduler.
func (d *Dashboard) Scheduler() *scheduler.Scheduler { return d.sched }

// LoadOutcome is the typed result of one loader run.
type LoadOutcome struct {
	Resource state.Resource `json:"resource"`
	OK       bool           `json:"ok"`
	Kind     string         `json:"kind,omitempty"`
	Message  string         `json:"message,omitempty"`
	Fallback bool           `json:"fallback,omitempty"`
	Stale    bool           `json:"stale,omitempty"`
	Duration time.Duration  `json:"duration"`

	// Cancelled is set when the load's context ended before it finished.
	Cancelled bool `json:"cancelled,omitempty"`
}

// Err returns a non-nil error when the load failed.
func (o LoadOutcome) Err() error {
	if o.OK {
		return nil
	}
	return fmt.Errorf("load %s: %s: %s", o.Resource, o.Kind, o.Message)
}

// StartupReport aggregates the outcome of initialisation.
type StartupReport struct {
	Authenticated bool          `json:"authenticated"`
	Outcomes      []LoadOutcome `json:"outcomes"`
	Section       model.Section `json:"section"`
	Polling       []string      `json:"polling"`
	// Emergency is set when initialisation panicked and fallback content
	// was painted instead.
	Emergency bool   `json:"emergency,omitempty"`
	Panic     string `json:"panic,omitempty"`
}

// Start runs the initial load (session, coins, portfolio, positions),
// paints every slot, starts polling and restores the last section.
func (d *Dashboard) Start(ctx context.Context) (report StartupReport) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dashboard initialisation panicked", "panic", r)
			d.emergency()
			report.Emergency = true
			report.Panic = fmt.Sprint(r)
		}
	}()

	d.restoreSearch(ctx)

	session := d.loadSession(ctx)
	report.Outcomes = append(report.Outcomes, session)
	report.Authenticated = session.OK
	if !session.OK {
		d.notifySessionFailure(session)
	}

	report.Outcomes = append(report.Outcomes, d.loadCoins(ctx))
	if report.Authenticated {
		report.Outcomes = append(report.Outcomes, d.loadPortfolio(ctx))
		report.Outcomes = append(report.Outcomes, d.loadPositions(ctx))
	}

	d.paintAll()
	d.startPolling(false)

	if sec := d.restoreSection(ctx); sec != model.SectionDashboard {
		if _, err := d.sections.Navigate(ctx, sec); err != nil {
			slog.Warn("failed to restore section", "section", sec, "err", err)
		}
	}

	report.Section = d.sections.Current()
	report.Polling = d.sched.Active()
	slog.Info("dashboard started",
		"authenticated", report.Authenticated,
		"section", report.Section,
		"polling", report.Polling)
	return report
}

// Stop cancels polling and waits for in-flight jobs to return.
func (d *Dashboard) Stop() {
	d.sched.StopAll()
	d.cancel()
	d.sched.Wait()
}

func (d *Dashboard) authenticated() bool {
	return d.store.Snapshot().Session != nil
}

func (d *Dashboard) isLoggedOut() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loggedOut
}

// startPolling (re)starts every job from scratch. Portfolio and positions
// are only polled for an authenticated session. With immediate set each
// job also refreshes right away.
func (d *Dashboard) startPolling(immediate bool) {
	if d.isLoggedOut() {
		return
	}
	start := d.sched.Schedule
	if immediate {
		start = d.sched.Start
	}
	mustStart := func(name string, interval time.Duration, fn scheduler.Func) {
		if err := start(name, interval, fn); err != nil {
			slog.Error("failed to start poll job", "job", name, "err", err)
		}
	}

	mustStart(JobPrices, d.intervals.Prices, func(ctx context.Context) error {
		return d.loadCoins(ctx).Err()
	})
	if !d.authenticated() {
		return
	}
	mustStart(JobPortfolio, d.intervals.Portfolio, func(ctx context.Context) error {
		return d.loadPortfolio(ctx).Err()
	})
	mustStart(JobPositions, d.intervals.Positions, func(ctx context.Context) error {
		return d.loadPositions(ctx).Err()
	})
}

// emergency paints fallback markets after a failed initialisation.
func (d *Dashboard) emergency() {
	t := d.store.Begin(state.ResCoins)
	d.store.ReplaceCoins(t, d.fallback.Coins(), true, "")
	metrics.FallbackActivations.WithLabelValues("panic").Inc()
	d.paintAll()
	d.toast(view.ToastError, "Something went wrong while loading. Showing reference data.")
}

func (d *Dashboard) notifySessionFailure(o LoadOutcome) {
	switch gateway.Kind(o.Kind) {
	case gateway.KindNetwork:
		d.toast(view.ToastError, "Connection error. Please refresh the page.")
	default:
		d.toast(view.ToastError, "Your session has expired. Please log in again.")
	}
}

// --- Persisted client state ---

func (d *Dashboard) restoreSearch(ctx context.Context) {
	term, err := d.local.Get(ctx, localstore.KeyMarketSearch)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			slog.Warn("failed to restore search term", "err", err)
		}
		return
	}
	d.mu.Lock()
	d.search = term
	d.mu.Unlock()
}

func (d *Dashboard) restoreSection(ctx context.Context) model.Section {
	v, err := d.local.Get(ctx, localstore.KeyLastSection)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			slog.Warn("failed to restore section", "err", err)
		}
		return model.SectionDashboard
	}
	sec := model.Section(v)
	if !sec.Valid() {
		return model.SectionDashboard
	}
	return sec
}

func (d *Dashboard) persistSection(sec model.Section) {
	if err := d.local.Set(d.ctx, localstore.KeyLastSection, string(sec), d.localTTL); err != nil {
		slog.Warn("failed to persist section", "section", sec, "err", err)
	}
}

func (d *Dashboard) searchTerm() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.search
}
