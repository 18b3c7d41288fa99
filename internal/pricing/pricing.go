// Package pricing implements the client-side figures the dashboard derives
// from backend prices: position profit and loss, liquidation estimates, the
// trade-entry spread quote and the simulated daily P&L placeholder.
//
// All monetary values use shopspring/decimal, never float64.
// Nothing here prices orders. The backend stays authoritative for fills.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/atmx/userpanel/internal/model"
)

var (
	// ErrInvalidEntryPrice is returned when a P&L is requested for a
	// position whose entry price is not positive.
	ErrInvalidEntryPrice = errors.New("pricing: entry price must be positive")

	// ErrInvalidLeverage is returned when leverage is below 1.
	ErrInvalidLeverage = errors.New("pricing: leverage must be at least 1")

	// Spread is the half-spread applied around the mid price on the
	// trade-entry view (0.1%).
	Spread = decimal.NewFromFloat(0.001)

	// MaintenanceMarginRatio is the share of posted margin that may be lost
	// before a leveraged position is liquidated.
	MaintenanceMarginRatio = decimal.NewFromFloat(0.8)

	// SimulatedDailyRate is the placeholder daily return used on the
	// dashboard until the backend reports real history. Views that use it
	// must flag the figure as simulated.
	SimulatedDailyRate = decimal.NewFromFloat(0.02)

	// PriceScale is the number of decimal places for derived figures.
	PriceScale int32 = 8

	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Direction returns +1 for long positions and -1 for short ones.
func Direction(t model.PositionType) decimal.Decimal {
	if t == model.Short {
		return one.Neg()
	}
	return one
}

// PnL computes the unrealized profit or loss of a position:
//
//	pnl = (current - entry) / entry * invested * leverage * direction
//
// direction is +1 for long and -1 for short.
func PnL(entry, current, invested, leverage decimal.Decimal, t model.PositionType) (decimal.Decimal, error) {
	if !entry.IsPositive() {
		return decimal.Zero, ErrInvalidEntryPrice
	}
	if leverage.LessThan(one) {
		return decimal.Zero, ErrInvalidLeverage
	}
	change := current.Sub(entry).Div(entry)
	return change.Mul(invested).Mul(leverage).Mul(Direction(t)).Round(PriceScale), nil
}

// PositionPnL applies PnL to a position.
func PositionPnL(p model.Position) (decimal.Decimal, error) {
	return PnL(p.EntryPrice, p.CurrentPrice, p.InvestedAmount, p.Leverage, p.Type)
}

// PnLPercent expresses pnl relative to the invested amount. A zero
// investment yields zero.
func PnLPercent(pnl, invested decimal.Decimal) decimal.Decimal {
	if invested.IsZero() {
		return decimal.Zero
	}
	return pnl.Div(invested).Mul(hundred).Round(2)
}

// LiquidationPrice estimates the price at which a leveraged position is
// liquidated:
//
//	long:  entry * (1 - ratio/leverage)
//	short: entry * (1 + ratio/leverage)
func LiquidationPrice(entry, leverage decimal.Decimal, t model.PositionType) (decimal.Decimal, error) {
	if !entry.IsPositive() {
		return decimal.Zero, ErrInvalidEntryPrice
	}
	if leverage.LessThan(one) {
		return decimal.Zero, ErrInvalidLeverage
	}
	threshold := MaintenanceMarginRatio.Div(leverage)
	if t == model.Short {
		return entry.Mul(one.Add(threshold)).Round(PriceScale), nil
	}
	return entry.Mul(one.Sub(threshold)).Round(PriceScale), nil
}

// Quote is the indicative buy/sell price pair around a mid price.
type Quote struct {
	Mid  decimal.Decimal `json:"mid"`
	Buy  decimal.Decimal `json:"buy"`
	Sell decimal.Decimal `json:"sell"`
}

// QuoteFor returns mid ± Spread.
func QuoteFor(mid decimal.Decimal) Quote {
	spread := mid.Mul(Spread)
	return Quote{
		Mid:  mid,
		Buy:  mid.Add(spread).Round(PriceScale),
		Sell: mid.Sub(spread).Round(PriceScale),
	}
}

// SimulatedDailyPnL is balance * SimulatedDailyRate. It is a stand-in and
// not derived from account history.
func SimulatedDailyPnL(balance decimal.Decimal) decimal.Decimal {
	return balance.Mul(SimulatedDailyRate).Round(2)
}

// ChangeClass maps a signed value to the colouring class used by views.
func ChangeClass(v decimal.Decimal) string {
	switch v.Sign() {
	case 1:
		return "positive"
	case -1:
		return "negative"
	default:
		return "neutral"
	}
}
