package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/atmx/userpanel/internal/gateway"
	"github.com/atmx/userpanel/internal/metrics"
	"github.com/atmx/userpanel/internal/model"
	"github.com/atmx/userpanel/internal/state"
	"github.com/atmx/userpanel/internal/view"
)

// affected lists the slots whose view-model depends on a resource.
var affected = map[state.Resource][]view.Slot{
	state.ResSession:      {view.SlotPage, view.SlotHeader, view.SlotDashboard, view.SlotProfile, view.SlotTrade},
	state.ResCoins:        {view.SlotMarkets, view.SlotPositions, view.SlotTrade},
	state.ResPortfolio:    {view.SlotPortfolio, view.SlotDashboard},
	state.ResPositions:    {view.SlotPositions, view.SlotDashboard},
	state.ResDeposits:     {view.SlotDeposits},
	state.ResTransactions: {view.SlotHistory},
}

func outcomeOf[T any](r state.Resource, res gateway.Result[T]) LoadOutcome {
	return LoadOutcome{
		Resource: r,
		OK:       res.OK,
		Kind:     string(res.Kind),
		Message:  res.Message,
		Duration: res.Duration,
	}
}

func logFailure(o LoadOutcome) {
	if o.OK {
		return
	}
	if o.Cancelled {
		slog.Debug("load cancelled", "resource", o.Resource)
		return
	}
	slog.Warn("load failed",
		"resource", o.Resource,
		"kind", o.Kind,
		"err", o.Message,
		"fallback", o.Fallback)
}

// loadSession probes the profile endpoint. A rejected session is cleared;
// a network failure keeps whatever session was known.
func (d *Dashboard) loadSession(ctx context.Context) LoadOutcome {
	t := d.store.Begin(state.ResSession)
	res := d.backend.Profile(ctx)
	o := outcomeOf(state.ResSession, res)

	switch {
	case res.OK:
		o.Stale = !d.store.ReplaceSession(t, res.Data)
	case d.abandon(ctx, t, &o):
	case d.store.MarkFailed(t, string(res.Kind), res.Message):
		if res.Kind != gateway.KindNetwork {
			d.store.ClearSession()
		}
	default:
		o.Stale = true
	}

	logFailure(o)
	d.paint(affected[state.ResSession]...)
	return o
}

// loadCoins refreshes the market list for the current search term. When
// no live list has been seen yet, a failed or empty unfiltered fetch
// shows the fallback dataset instead of an error. Once live data exists,
// a failed refresh keeps it on screen.
func (d *Dashboard) loadCoins(ctx context.Context) LoadOutcome {
	term := d.searchTerm()
	before := d.store.Snapshot()
	haveLive := len(before.Coins) > 0 && !before.CoinsFallback

	t := d.store.Begin(state.ResCoins)
	res := d.backend.Coins(ctx, term)
	o := outcomeOf(state.ResCoins, res)

	switch {
	case res.OK && (len(res.Data) > 0 || term != ""):
		o.Stale = !d.store.ReplaceCoins(t, res.Data, false, term)

	case !res.OK && d.abandon(ctx, t, &o):

	case !haveLive:
		reason := string(res.Kind)
		if res.OK {
			reason = "empty"
		}
		o.Fallback = true
		if d.store.ReplaceCoins(t, d.fallback.Coins(), true, "") {
			metrics.FallbackActivations.WithLabelValues(reason).Inc()
			slog.Info("showing fallback markets", "reason", reason)
		} else {
			o.Stale = true
		}

	case res.OK:
		o.Stale = !d.store.MarkFailed(t, "empty", "no markets returned")

	default:
		o.Stale = !d.store.MarkFailed(t, string(res.Kind), res.Message)
	}

	logFailure(o)
	d.paint(affected[state.ResCoins]...)
	return o
}

func (d *Dashboard) loadPortfolio(ctx context.Context) LoadOutcome {
	t := d.store.Begin(state.ResPortfolio)
	res := d.backend.Portfolio(ctx)
	o := outcomeOf(state.ResPortfolio, res)

	if res.OK {
		o.Stale = !d.store.ReplacePortfolio(t, res.Data.Entries, res.Data.Summary)
	} else if !d.abandon(ctx, t, &o) {
		o.Stale = !d.store.MarkFailed(t, string(res.Kind), res.Message)
	}

	logFailure(o)
	d.paint(affected[state.ResPortfolio]...)
	return o
}

// loadPositions fetches spot and leveraged positions concurrently and
// replaces the merged list in one step. A source answering 404 counts as
// empty; any other failure fails the whole load and keeps the old list.
func (d *Dashboard) loadPositions(ctx context.Context) LoadOutcome {
	t := d.store.Begin(state.ResPositions)

	var spot, lev []model.Position
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res := d.backend.SpotPositions(gctx)
		if missing(res) {
			return nil
		}
		spot = res.Data
		return res.Err()
	})
	g.Go(func() error {
		res := d.backend.LeveragePositions(gctx)
		if missing(res) {
			return nil
		}
		lev = res.Data
		return res.Err()
	})
	err := g.Wait()

	o := LoadOutcome{Resource: state.ResPositions, OK: err == nil}
	if err != nil && d.abandon(ctx, t, &o) {
		o.Kind = string(gateway.KindNetwork)
		o.Message = ctx.Err().Error()
	} else if err != nil {
		var gerr *gateway.Error
		if errors.As(err, &gerr) {
			o.Kind = string(gerr.Kind)
			o.Message = gerr.Message
		} else {
			o.Kind = string(gateway.KindNetwork)
			o.Message = err.Error()
		}
		o.Stale = !d.store.MarkFailed(t, o.Kind, o.Message)
	} else {
		merged := make([]model.Position, 0, len(spot)+len(lev))
		merged = append(merged, spot...)
		merged = append(merged, lev...)
		o.Stale = !d.store.ReplacePositions(t, merged)
	}

	logFailure(o)
	d.paint(affected[state.ResPositions]...)
	return o
}

// abandon handles a failure caused by ctx ending, as happens when polling
// is stopped mid-request. Nothing is recorded against the resource.
func (d *Dashboard) abandon(ctx context.Context, t state.Ticket, o *LoadOutcome) bool {
	if ctx.Err() == nil {
		return false
	}
	o.Cancelled = true
	o.Stale = !d.store.Abandon(t)
	return true
}

func missing[T any](res gateway.Result[T]) bool {
	return !res.OK && res.Kind == gateway.KindHTTP && res.Status == http.StatusNotFound
}

func (d *Dashboard) loadDeposits(ctx context.Context) LoadOutcome {
	t := d.store.Begin(state.ResDeposits)
	res := d.backend.Deposits(ctx)
	o := outcomeOf(state.ResDeposits, res)

	if res.OK {
		o.Stale = !d.store.ReplaceDeposits(t, res.Data)
	} else if !d.abandon(ctx, t, &o) {
		o.Stale = !d.store.MarkFailed(t, string(res.Kind), res.Message)
	}

	logFailure(o)
	d.paint(affected[state.ResDeposits]...)
	return o
}

func (d *Dashboard) loadTransactions(ctx context.Context) LoadOutcome {
	t := d.store.Begin(state.ResTransactions)
	res := d.backend.Transactions(ctx)
	o := outcomeOf(state.ResTransactions, res)

	if res.OK {
		o.Stale = !d.store.ReplaceTransactions(t, res.Data)
	} else if !d.abandon(ctx, t, &o) {
		o.Stale = !d.store.MarkFailed(t, string(res.Kind), res.Message)
	}

	logFailure(o)
	d.paint(affected[state.ResTransactions]...)
	return o
}

// load runs the loader of r.
func (d *Dashboard) load(ctx context.Context, r state.Resource) (LoadOutcome, error) {
	switch r {
	case state.ResSession:
		return d.loadSession(ctx), nil
	case state.ResCoins:
		return d.loadCoins(ctx), nil
	case state.ResPortfolio:
		return d.loadPortfolio(ctx), nil
	case state.ResPositions:
		return d.loadPositions(ctx), nil
	case state.ResDeposits:
		return d.loadDeposits(ctx), nil
	case state.ResTransactions:
		return d.loadTransactions(ctx), nil
	default:
		return LoadOutcome{}, ErrUnknownResource
	}
}

// --- Painting ---

// always lists slots painted regardless of the active section.
var always = map[view.Slot]bool{
	view.SlotPage:   true,
	view.SlotHeader: true,
	view.SlotTrade:  true,
}

// paint re-renders the given slots from a fresh snapshot. Section content
// slots are skipped unless their section is active.
func (d *Dashboard) paint(slots ...view.Slot) {
	d.paintMu.Lock()
	defer d.paintMu.Unlock()

	if d.isLoggedOut() {
		return
	}
	st := d.store.Snapshot()
	active := view.SlotFor(st.Section)
	for _, slot := range slots {
		if !always[slot] && slot != active {
			continue
		}
		d.paintSlot(slot, st)
	}
}

func (d *Dashboard) paintSlot(slot view.Slot, st state.AppState) {
	if v, ok := d.renderer.Render(slot, st); ok {
		d.slots.Paint(slot, v)
	}
}

// paintAll paints the frame and the active section.
func (d *Dashboard) paintAll() {
	d.paintMu.Lock()
	defer d.paintMu.Unlock()

	st := d.store.Snapshot()
	for _, slot := range []view.Slot{view.SlotPage, view.SlotHeader, view.SlotTrade, view.SlotFor(st.Section)} {
		d.paintSlot(slot, st)
	}
}

func (d *Dashboard) toast(level view.ToastLevel, msg string) {
	d.slots.Paint(view.SlotToast, view.Toast{Level: level, Message: msg, At: d.now()})
}

// presenter adapts the dashboard to section.Presenter.
type presenter struct{ d *Dashboard }

func (p presenter) PaintPage() {
	p.d.paintMu.Lock()
	defer p.d.paintMu.Unlock()
	p.d.paintSlot(view.SlotPage, p.d.store.Snapshot())
}

func (p presenter) PaintSection(sec model.Section) {
	p.d.paintMu.Lock()
	defer p.d.paintMu.Unlock()
	p.d.paintSlot(view.SlotFor(sec), p.d.store.Snapshot())
}
