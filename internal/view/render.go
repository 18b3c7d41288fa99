// Package view turns AppState snapshots into typed view-models bound to
// named slots. Rendering is a pure function of the snapshot: the same
// input always yields the same view-model, rebuilt in full on every call.
package view

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/atmx/userpanel/internal/model"
	"github.com/atmx/userpanel/internal/pricing"
	"github.com/atmx/userpanel/internal/state"
	"github.com/atmx/userpanel/internal/validate"
)

// APIPrefix is the path prefix of every browser intent.
const APIPrefix = "/api/v1"

// Options configures a Renderer.
type Options struct {
	Locale   language.Tag
	Currency string
	Limits   validate.Limits
	// FallbackNotice is shown on the market grid while fallback coins are
	// displayed.
	FallbackNotice string
}

// Renderer builds view-models. It is safe for concurrent use.
type Renderer struct {
	mu       sync.Mutex
	printer  *message.Printer
	currency string
	limits   validate.Limits
	notice   string
}

// NewRenderer creates a renderer for the given locale and currency symbol.
func NewRenderer(opts Options) *Renderer {
	if opts.Locale == language.Und {
		opts.Locale = language.Turkish
	}
	if opts.Currency == "" {
		opts.Currency = "₺"
	}
	if opts.Limits.MaxTrade.IsZero() {
		opts.Limits = validate.DefaultLimits()
	}
	if opts.FallbackNotice == "" {
		opts.FallbackNotice = "Live prices are unavailable."
	}
	return &Renderer{
		printer:  message.NewPrinter(opts.Locale),
		currency: opts.Currency,
		limits:   opts.Limits,
		notice:   opts.FallbackNotice,
	}
}

// --- Formatting ---

// Money formats v with two decimals, locale grouping and the currency
// symbol.
func (r *Renderer) Money(v decimal.Decimal) string {
	return r.currency + r.Number(v, 2)
}

// Number formats v with exactly scale decimals and locale grouping.
func (r *Renderer) Number(v decimal.Decimal, scale int) string {
	f := v.Round(int32(scale)).InexactFloat64()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.printer.Sprint(number.Decimal(f, number.Scale(scale)))
}

// Amount formats a coin quantity with up to eight decimals.
func (r *Renderer) Amount(v decimal.Decimal) string {
	f := v.Round(pricing.PriceScale).InexactFloat64()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.printer.Sprint(number.Decimal(f, number.MaxFractionDigits(int(pricing.PriceScale))))
}

// Percent formats a signed percentage: +1.25%, -0.40%.
func Percent(v decimal.Decimal) string {
	sign := ""
	if v.Sign() >= 0 {
		sign = "+"
	}
	return sign + v.StringFixed(2) + "%"
}

// Date formats a backend timestamp, or "" for the zero time.
func Date(ts model.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format("02.01.2006 15:04")
}

// --- Actions ---

func post(label, href string, body map[string]string) Action {
	return Action{Label: label, Method: "POST", Href: APIPrefix + href, Body: body}
}

// RetryAction re-runs the loader of res.
func RetryAction(res state.Resource) Action {
	return post("Retry", "/retry/"+string(res), nil)
}

func navigateAction(sec model.Section) Action {
	return post(sec.Title(), "/navigate", map[string]string{"section": string(sec)})
}

func errorPanel(res state.Resource, st state.LoadStatus) *ErrorPanel {
	msg := st.Message
	if msg == "" {
		msg = "Connection error"
	}
	return &ErrorPanel{Message: msg, Kind: st.Kind, Retry: RetryAction(res)}
}

// listPhase derives the phase of a list view from its load status and item
// count. Stale items stay visible while a reload is in flight.
func listPhase(st state.LoadStatus, n int) Phase {
	switch {
	case st.Phase == state.PhaseFailed:
		return PhaseError
	case n > 0:
		return PhaseReady
	case st.Phase == state.PhaseReady:
		return PhaseEmpty
	default:
		return PhaseLoading
	}
}

// --- Slots ---

// SlotFor maps a section to the slot that holds its content.
func SlotFor(sec model.Section) Slot {
	switch sec {
	case model.SectionMarkets:
		return SlotMarkets
	case model.SectionPortfolio:
		return SlotPortfolio
	case model.SectionPositions:
		return SlotPositions
	case model.SectionHistory:
		return SlotHistory
	case model.SectionDeposits:
		return SlotDeposits
	case model.SectionProfile:
		return SlotProfile
	default:
		return SlotDashboard
	}
}

// Render builds the view-model for slot. The toast slot has no state-backed
// view and reports false.
func (r *Renderer) Render(slot Slot, st state.AppState) (any, bool) {
	switch slot {
	case SlotPage:
		return r.Page(st), true
	case SlotHeader:
		return r.Header(st), true
	case SlotDashboard:
		return r.Dashboard(st), true
	case SlotMarkets:
		return r.Markets(st), true
	case SlotPortfolio:
		return r.Portfolio(st), true
	case SlotPositions:
		return r.Positions(st), true
	case SlotHistory:
		return r.History(st), true
	case SlotDeposits:
		return r.Deposits(st), true
	case SlotProfile:
		return r.Profile(st), true
	case SlotTrade:
		return r.Trade(st), true
	default:
		return nil, false
	}
}

// --- Views ---

// Page renders the frame for the active section.
func (r *Renderer) Page(st state.AppState) Page {
	nav := make([]NavItem, 0, len(model.Sections))
	for i, sec := range model.Sections {
		nav = append(nav, NavItem{
			Section:  sec,
			Title:    sec.Title(),
			Active:   sec == st.Section,
			Shortcut: i + 1,
			Navigate: navigateAction(sec),
		})
	}
	sess := st.StatusOf(state.ResSession)
	return Page{
		Section:      st.Section,
		Title:        st.Section.Title(),
		Nav:          nav,
		NavOpen:      st.NavOpen,
		AuthRequired: st.Session == nil && sess.Phase == state.PhaseFailed,
		Visible:      st.Visible,
	}
}

// Header renders the user badge and balance.
func (r *Renderer) Header(st state.AppState) Header {
	if st.Session == nil {
		return Header{Balance: r.Money(decimal.Zero), BalanceRaw: decimal.Zero}
	}
	logout := post("Logout", "/logout", nil)
	return Header{
		LoggedIn:   true,
		Username:   st.Session.Username,
		Balance:    r.Money(st.Session.Balance),
		BalanceRaw: st.Session.Balance,
		Logout:     &logout,
	}
}

// Dashboard renders the overview. The daily P&L is a simulated figure and
// is flagged as such.
func (r *Renderer) Dashboard(st state.AppState) Dashboard {
	balance := decimal.Zero
	if st.Session != nil {
		balance = st.Session.Balance
	}
	daily := pricing.SimulatedDailyPnL(balance)
	return Dashboard{
		Balance:        r.Money(balance),
		BalanceRaw:     balance,
		DailyPnL:       r.Money(daily),
		DailyPnLRaw:    daily,
		DailyPnLClass:  pricing.ChangeClass(daily),
		Simulated:      true,
		OpenPositions:  len(st.Positions),
		PortfolioValue: r.Money(st.PortfolioSummary.TotalValue),
		CoinCount:      len(st.Portfolio),
	}
}

// Markets renders the market grid. Fallback cards carry no trade action.
func (r *Renderer) Markets(st state.AppState) MarketGrid {
	status := st.StatusOf(state.ResCoins)
	grid := MarketGrid{
		Phase:    listPhase(status, len(st.Coins)),
		Query:    st.CoinsQuery,
		Fallback: st.CoinsFallback,
		Cards:    make([]MarketCard, 0, len(st.Coins)),
	}

	for _, c := range st.Coins {
		card := MarketCard{
			CoinID:      c.ID,
			Symbol:      c.Symbol,
			Name:        c.Name,
			LogoURL:     c.LogoURL,
			Price:       r.Money(c.CurrentPrice),
			PriceRaw:    c.CurrentPrice,
			Change:      Percent(c.PriceChange24h),
			ChangeClass: pricing.ChangeClass(c.PriceChange24h),
			Volume:      r.Money(c.Volume24h),
		}
		if !st.CoinsFallback {
			open := post("Trade", "/trade/open", map[string]string{"coin_id": c.ID.String()})
			card.Open = &open
		}
		grid.Cards = append(grid.Cards, card)
	}

	switch {
	case st.CoinsFallback:
		retry := RetryAction(state.ResCoins)
		grid.Phase = PhaseReady
		grid.Notice = r.notice
		grid.Retry = &retry
	case grid.Phase == PhaseError:
		grid.Error = errorPanel(state.ResCoins, status)
	case grid.Phase == PhaseEmpty && st.CoinsQuery != "":
		grid.Empty = fmt.Sprintf("No results for %q", st.CoinsQuery)
	case grid.Phase == PhaseEmpty:
		grid.Empty = "No markets available"
	}
	return grid
}

// Portfolio renders holdings with a sell action per entry.
func (r *Renderer) Portfolio(st state.AppState) Portfolio {
	status := st.StatusOf(state.ResPortfolio)
	sum := st.PortfolioSummary
	v := Portfolio{
		Phase: listPhase(status, len(st.Portfolio)),
		Summary: PortfolioSummary{
			TotalValue: r.Money(sum.TotalValue),
			TotalPnL:   r.Money(sum.TotalProfitLoss),
			PnLClass:   pricing.ChangeClass(sum.TotalProfitLoss),
			CoinCount:  sum.CoinCount,
		},
		Cards: make([]HoldingCard, 0, len(st.Portfolio)),
	}

	for _, e := range st.Portfolio {
		v.Cards = append(v.Cards, HoldingCard{
			CoinID:     e.CoinID,
			Code:       e.CoinCode,
			Name:       e.CoinName,
			Amount:     r.Amount(e.NetAmount),
			AmountRaw:  e.NetAmount,
			Value:      r.Money(e.CurrentValue),
			PnL:        r.Money(e.ProfitLoss),
			PnLPercent: Percent(e.ProfitLossPercent),
			PnLClass:   pricing.ChangeClass(e.ProfitLoss),
			Sell: post("Sell", "/portfolio/"+e.CoinID.String()+"/sell",
				map[string]string{"amount": e.NetAmount.String()}),
		})
	}

	switch v.Phase {
	case PhaseError:
		v.Error = errorPanel(state.ResPortfolio, status)
	case PhaseEmpty:
		v.Empty = "You do not hold any coins yet"
	}
	return v
}

// PositionCard renders one position. The live coin price is used when the
// market list has one; fallback prices never are.
func (r *Renderer) PositionCard(p model.Position, st state.AppState) PositionCard {
	current := p.CurrentPrice
	if price, ok := st.LivePrice(p.Symbol); ok {
		current = price
	}
	p.CurrentPrice = current

	pnl, err := pricing.PositionPnL(p)
	if err != nil {
		pnl = p.UnrealizedPnL
	}

	card := PositionCard{
		ID:         p.ID,
		Symbol:     p.Symbol,
		Type:       p.Type,
		Source:     p.Source,
		Leverage:   p.Leverage.String() + "x",
		Invested:   r.Money(p.InvestedAmount),
		EntryPrice: r.Money(p.EntryPrice),
		Current:    r.Money(current),
		PnL:        r.Money(pnl),
		PnLRaw:     pnl,
		PnLPercent: Percent(pricing.PnLPercent(pnl, p.InvestedAmount)),
		PnLClass:   pricing.ChangeClass(pnl),
		Opened:     Date(p.CreatedAt),
		Close: Action{
			Label:   "Close",
			Method:  "POST",
			Href:    APIPrefix + "/positions/" + p.ID.String() + "/close",
			Confirm: fmt.Sprintf("Close %s %s position?", p.Symbol, p.Type),
			Body:    map[string]string{"confirm": "true"},
		},
	}
	if p.Leverage.GreaterThan(decimal.NewFromInt(1)) {
		if liq, err := pricing.LiquidationPrice(p.EntryPrice, p.Leverage, p.Type); err == nil {
			card.Liquidation = r.Money(liq)
		}
	}
	return card
}

// Positions renders the merged position list.
func (r *Renderer) Positions(st state.AppState) Positions {
	status := st.StatusOf(state.ResPositions)
	v := Positions{
		Phase: listPhase(status, len(st.Positions)),
		Cards: make([]PositionCard, 0, len(st.Positions)),
	}
	total := decimal.Zero
	for _, p := range st.Positions {
		card := r.PositionCard(p, st)
		total = total.Add(card.PnLRaw)
		v.Cards = append(v.Cards, card)
	}
	v.TotalPnL = r.Money(total)
	v.PnLClass = pricing.ChangeClass(total)

	switch v.Phase {
	case PhaseError:
		v.Error = errorPanel(state.ResPositions, status)
	case PhaseEmpty:
		v.Empty = "No open positions"
	}
	return v
}

// History renders the transaction list.
func (r *Renderer) History(st state.AppState) History {
	status := st.StatusOf(state.ResTransactions)
	v := History{
		Phase: listPhase(status, len(st.Transactions)),
		Rows:  make([]TransactionRow, 0, len(st.Transactions)),
	}
	for _, tx := range st.Transactions {
		v.Rows = append(v.Rows, TransactionRow{
			Type:   tx.Type,
			Symbol: tx.Symbol,
			Amount: r.Amount(tx.Amount),
			Price:  r.Money(tx.Price),
			Total:  r.Money(tx.Amount.Mul(tx.Price)),
			Date:   Date(tx.CreatedAt),
		})
	}
	switch v.Phase {
	case PhaseError:
		v.Error = errorPanel(state.ResTransactions, status)
	case PhaseEmpty:
		v.Empty = "No transactions yet"
	}
	return v
}

func depositStatusClass(s model.DepositStatus) string {
	switch s {
	case model.DepositApproved:
		return "positive"
	case model.DepositRejected:
		return "negative"
	default:
		return "neutral"
	}
}

// Deposits renders the deposit form and request list.
func (r *Renderer) Deposits(st state.AppState) Deposits {
	status := st.StatusOf(state.ResDeposits)
	v := Deposits{
		Phase:   listPhase(status, len(st.Deposits)),
		Methods: validate.Methods(),
		Min:     r.Money(r.limits.MinDeposit),
		Max:     r.Money(r.limits.MaxDeposit),
		Submit:  post("Submit deposit", "/deposits", nil),
		Rows:    make([]DepositRow, 0, len(st.Deposits)),
	}
	for _, dep := range st.Deposits {
		method := dep.Method
		if m, err := validate.LookupMethod(dep.Method); err == nil {
			method = m.Name
		}
		v.Rows = append(v.Rows, DepositRow{
			ID:          dep.ID,
			Method:      method,
			Amount:      r.Money(dep.Amount),
			Status:      dep.Status,
			StatusClass: depositStatusClass(dep.Status),
			Note:        dep.Note,
			Date:        Date(dep.CreatedAt),
		})
	}
	switch v.Phase {
	case PhaseError:
		v.Error = errorPanel(state.ResDeposits, status)
	case PhaseEmpty:
		v.Empty = "No deposit requests yet"
	}
	return v
}

// Profile renders the account details.
func (r *Renderer) Profile(st state.AppState) Profile {
	if st.Session == nil {
		return Profile{Balance: r.Money(decimal.Zero)}
	}
	return Profile{
		LoggedIn: true,
		Username: st.Session.Username,
		Email:    st.Session.Email,
		Balance:  r.Money(st.Session.Balance),
		JoinedAt: Date(st.Session.CreatedAt),
	}
}

// Trade renders the trade-entry view for the selected coin.
func (r *Renderer) Trade(st state.AppState) TradeEntry {
	if st.TradeCoin == nil {
		return TradeEntry{}
	}
	c := *st.TradeCoin
	q := pricing.QuoteFor(c.CurrentPrice)
	balance := decimal.Zero
	if st.Session != nil {
		balance = st.Session.Balance
	}
	submit := post("Submit", "/trade", map[string]string{"coin_id": c.ID.String()})
	closeView := post("Cancel", "/trade/close", nil)
	return TradeEntry{
		Open:    true,
		CoinID:  c.ID,
		Symbol:  c.Symbol,
		Name:    c.Name,
		Price:   r.Money(q.Mid),
		Buy:     r.Money(q.Buy),
		Sell:    r.Money(q.Sell),
		Quote:   q,
		Balance: r.Money(balance),
		Min:     r.limits.MinTrade.String(),
		Max:     r.limits.MaxTrade.String(),
		Submit:  &submit,
		Close:   &closeView,
	}
}
