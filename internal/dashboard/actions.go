package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atmx/userpanel/internal/gateway"
	"github.com/atmx/userpanel/internal/localstore"
	"github.com/atmx/userpanel/internal/model"
	"github.com/atmx/userpanel/internal/state"
	"github.com/atmx/userpanel/internal/validate"
	"github.com/atmx/userpanel/internal/view"
)

func (d *Dashboard) guard() error {
	if d.isLoggedOut() {
		return ErrLoggedOut
	}
	return nil
}

// --- Navigation ---

// Navigate switches to sec. It reports false when sec was already active.
func (d *Dashboard) Navigate(ctx context.Context, sec model.Section) (bool, error) {
	if err := d.guard(); err != nil {
		return false, err
	}
	return d.sections.Navigate(ctx, sec)
}

// Shortcut navigates to the section bound to the 1-based key index.
func (d *Dashboard) Shortcut(ctx context.Context, index int) (bool, error) {
	if err := d.guard(); err != nil {
		return false, err
	}
	return d.sections.Shortcut(ctx, index)
}

// ToggleNav flips the mobile navigation overlay.
func (d *Dashboard) ToggleNav() (bool, error) {
	if err := d.guard(); err != nil {
		return false, err
	}
	return d.sections.ToggleNav(), nil
}

// SetVisible records page visibility. Hiding the page stops every poll
// job; showing it again restarts them, which also refreshes at once.
func (d *Dashboard) SetVisible(visible bool) error {
	if err := d.guard(); err != nil {
		return err
	}
	if !d.store.SetVisible(visible) {
		return nil
	}
	if visible {
		d.startPolling(true)
		slog.Info("page visible, polling resumed", "jobs", d.sched.Active())
	} else {
		n := d.sched.StopAll()
		slog.Info("page hidden, polling paused", "stopped", n)
	}
	d.paint(view.SlotPage)
	return nil
}

// Search sets the market search term, persists it and reloads coins.
func (d *Dashboard) Search(ctx context.Context, term string) (LoadOutcome, error) {
	if err := d.guard(); err != nil {
		return LoadOutcome{}, err
	}
	term = strings.TrimSpace(term)
	d.mu.Lock()
	d.search = term
	d.mu.Unlock()

	var err error
	if term == "" {
		err = d.local.Delete(ctx, localstore.KeyMarketSearch)
	} else {
		err = d.local.Set(ctx, localstore.KeyMarketSearch, term, d.localTTL)
	}
	if err != nil {
		slog.Warn("failed to persist search term", "err", err)
	}
	return d.loadCoins(ctx), nil
}

// Retry re-runs the loader of r.
func (d *Dashboard) Retry(ctx context.Context, r state.Resource) (LoadOutcome, error) {
	if err := d.guard(); err != nil {
		return LoadOutcome{}, err
	}
	if !r.Valid() {
		return LoadOutcome{}, fmt.Errorf("%w: %q", ErrUnknownResource, r)
	}
	return d.load(ctx, r)
}

// --- Trading ---

// tradable returns the live coin for coinID. Coins from the fallback list
// cannot be traded.
func (d *Dashboard) tradable(st state.AppState, coinID model.ID) (model.Coin, error) {
	c, ok := st.CoinByID(coinID)
	if !ok {
		return model.Coin{}, fmt.Errorf("%w: %s", ErrUnknownCoin, coinID)
	}
	if st.CoinsFallback {
		d.toast(view.ToastError, "Live market data is unavailable. Trading is disabled until prices load.")
		return model.Coin{}, fmt.Errorf("%w: %s", ErrMarketUnavailable, coinID)
	}
	return c, nil
}

// OpenTrade opens the trade-entry view for coinID.
func (d *Dashboard) OpenTrade(coinID model.ID) error {
	if err := d.guard(); err != nil {
		return err
	}
	c, err := d.tradable(d.store.Snapshot(), coinID)
	if err != nil {
		return err
	}
	d.store.SetTradeCoin(&c)
	d.paint(view.SlotTrade)
	return nil
}

// CloseTrade closes the trade-entry view.
func (d *Dashboard) CloseTrade() error {
	if err := d.guard(); err != nil {
		return err
	}
	d.store.SetTradeCoin(nil)
	d.paint(view.SlotTrade)
	return nil
}

// SubmitTrade sends a buy or sell from the trade-entry view. Invalid input
// is rejected before any backend call.
func (d *Dashboard) SubmitTrade(ctx context.Context, action string, coinID model.ID, amount decimal.Decimal) error {
	if err := d.guard(); err != nil {
		return err
	}
	action = strings.ToLower(strings.TrimSpace(action))
	if action != "buy" && action != "sell" {
		return ErrInvalidAction
	}
	st := d.store.Snapshot()
	if _, err := d.tradable(st, coinID); err != nil {
		return err
	}

	err := d.limits.CheckTradeAmount(amount)
	if err == nil && action == "sell" {
		held, _ := st.Holding(coinID)
		err = d.limits.CheckSell(amount, held.NetAmount)
	}
	if err != nil {
		d.toast(view.ToastError, validationMessage(err))
		return err
	}

	res := d.backend.Trade(ctx, action, coinID.String(), amount)
	if !res.OK {
		d.actionFailed("trade", res.Err(), res.Message)
		return res.Err()
	}

	slog.Info("trade executed", "action", action, "coin_id", coinID, "amount", amount)
	d.toast(view.ToastSuccess, "Trade executed successfully.")
	d.store.SetTradeCoin(nil)
	d.paint(view.SlotTrade)
	d.loadPortfolio(ctx)
	d.loadSession(ctx)
	return nil
}

// Sell sells amount of a portfolio holding. A zero amount or one above the
// holding is rejected without calling the backend.
func (d *Dashboard) Sell(ctx context.Context, coinID model.ID, amount decimal.Decimal) error {
	if err := d.guard(); err != nil {
		return err
	}
	held, _ := d.store.Snapshot().Holding(coinID)
	if err := d.limits.CheckSell(amount, held.NetAmount); err != nil {
		d.toast(view.ToastError, validationMessage(err))
		return err
	}

	res := d.backend.Sell(ctx, coinID.String(), amount)
	if !res.OK {
		d.actionFailed("sell", res.Err(), res.Message)
		return res.Err()
	}

	slog.Info("holding sold", "coin_id", coinID, "amount", amount)
	d.toast(view.ToastSuccess, "Sale completed successfully.")
	d.loadPortfolio(ctx)
	d.loadSession(ctx)
	return nil
}

// ClosePosition closes an open position at the live coin price, or at the
// position's last known price when no live quote exists. confirmed must
// be true.
func (d *Dashboard) ClosePosition(ctx context.Context, id model.ID, confirmed bool) error {
	if err := d.guard(); err != nil {
		return err
	}
	if !confirmed {
		return ErrNotConfirmed
	}
	st := d.store.Snapshot()
	p, ok := st.Position(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPosition, id)
	}
	closePrice := p.CurrentPrice
	if price, ok := st.LivePrice(p.Symbol); ok {
		closePrice = price
	}

	res := d.backend.ClosePosition(ctx, p, closePrice)
	if !res.OK {
		d.actionFailed("close position", res.Err(), res.Message)
		return res.Err()
	}

	slog.Info("position closed", "position_id", id, "source", p.Source, "close_price", closePrice)
	d.toast(view.ToastSuccess, "Position closed successfully.")
	d.loadPositions(ctx)
	d.loadSession(ctx)
	return nil
}

// CreateDeposit validates and submits a deposit request.
func (d *Dashboard) CreateDeposit(ctx context.Context, dep validate.Deposit) error {
	if err := d.guard(); err != nil {
		return err
	}
	if err := d.limits.CheckDepositRequest(dep); err != nil {
		d.toast(view.ToastError, validationMessage(err))
		return err
	}

	res := d.backend.CreateDeposit(ctx, gateway.DepositForm{
		Method: dep.Method,
		Amount: dep.Amount,
		Detail: dep.Detail,
		Note:   dep.Note,
	})
	if !res.OK {
		d.actionFailed("deposit", res.Err(), res.Message)
		return res.Err()
	}

	slog.Info("deposit requested", "method", dep.Method, "amount", dep.Amount)
	d.toast(view.ToastSuccess, "Deposit request submitted. It will be reviewed shortly.")
	d.loadDeposits(ctx)
	return nil
}

// --- Session ---

// Logout ends the session: backend logout, all polling stopped, local
// state cleared, store reset and the page painted as logged out. A failed
// backend logout is logged and does not stop the local teardown.
func (d *Dashboard) Logout(ctx context.Context) error {
	if err := d.guard(); err != nil {
		return err
	}
	if res := d.backend.Logout(ctx); !res.OK {
		slog.Warn("backend logout failed", "err", res.Err())
	}

	d.mu.Lock()
	d.loggedOut = true
	d.search = ""
	d.mu.Unlock()

	stopped := d.sched.StopAll()
	if err := d.local.Clear(ctx); err != nil {
		slog.Warn("failed to clear local store", "err", err)
	}
	d.paintMu.Lock()
	d.store.Reset()
	d.slots.Clear()

	st := d.store.Snapshot()
	page := d.renderer.Page(st)
	page.LoggedOut = true
	d.slots.Paint(view.SlotPage, page)
	d.slots.Paint(view.SlotHeader, d.renderer.Header(st))
	d.paintMu.Unlock()
	d.toast(view.ToastInfo, "You have been logged out.")

	slog.Info("logged out", "stopped_jobs", stopped)
	return nil
}

func (d *Dashboard) actionFailed(action string, err error, msg string) {
	slog.Warn("action failed", "action", action, "err", err)
	if msg == "" {
		msg = "Request failed. Please try again."
	}
	d.toast(view.ToastError, msg)
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, validate.ErrZeroAmount):
		return "Please enter a valid amount."
	case errors.Is(err, validate.ErrInsufficientHoldings):
		return "Insufficient holdings for this sale."
	case errors.Is(err, validate.ErrAmountOutOfRange):
		return "Amount is outside the allowed range."
	case errors.Is(err, validate.ErrUnknownMethod):
		return "Please choose a deposit method."
	case errors.Is(err, validate.ErrMissingSender):
		return "Please enter the sender name."
	case errors.Is(err, validate.ErrInvalidIBAN):
		return "Please enter a valid IBAN."
	default:
		return err.Error()
	}
}
