// Package model defines the domain types the dashboard reads from the trading
// backend and keeps in its state store.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"github.com/shopspring/decimal"
)

// Session is the authenticated user as reported by the profile endpoint.
// It is replaced wholesale on every successful profile load.
type Session struct {
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt Timestamp       `json:"created_at"`
}

// Coin is one tradable market listing.
type Coin struct {
	ID             ID              `json:"id"`
	Name           string          `json:"name"`
	Symbol         string          `json:"symbol"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	PriceChange24h decimal.Decimal `json:"price_change_24h"` // signed percent
	Volume24h      decimal.Decimal `json:"volume_24h"`
	LogoURL        string          `json:"logo_url"`
}

// PortfolioEntry is the user's net holding of one coin.
// Field names on the wire follow the backend's schema.
type PortfolioEntry struct {
	CoinID            ID              `json:"coin_id"`
	CoinCode          string          `json:"coin_kodu"`
	CoinName          string          `json:"coin_adi"`
	NetAmount         decimal.Decimal `json:"net_miktar"`
	CurrentValue      decimal.Decimal `json:"current_value"`
	ProfitLoss        decimal.Decimal `json:"profit_loss"`
	ProfitLossPercent decimal.Decimal `json:"profit_loss_percent"`
}

// PortfolioSummary aggregates the portfolio as computed by the backend.
type PortfolioSummary struct {
	TotalValue      decimal.Decimal `json:"total_value"`
	TotalProfitLoss decimal.Decimal `json:"total_profit_loss"`
	CoinCount       int             `json:"coin_count"`
}

// Portfolio is the payload of the get_portfolio action.
type Portfolio struct {
	Entries []PortfolioEntry `json:"portfolio"`
	Summary PortfolioSummary `json:"summary"`
}

// PositionType is the direction of a position.
type PositionType string

const (
	Long  PositionType = "long"
	Short PositionType = "short"
)

// PositionSource records which backend endpoint reported a position.
type PositionSource string

const (
	SourceSpot     PositionSource = "spot"
	SourceLeverage PositionSource = "leverage"
)

// Position is a spot or leveraged open position.
type Position struct {
	ID             ID              `json:"id"`
	Symbol         string          `json:"symbol"`
	Type           PositionType    `json:"position_type"`
	Leverage       decimal.Decimal `json:"leverage"`
	InvestedAmount decimal.Decimal `json:"invested_amount"`
	EntryPrice     decimal.Decimal `json:"entry_price"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	CreatedAt      Timestamp       `json:"created_at"`
	Source         PositionSource  `json:"source,omitempty"`
}

// Normalize fills defaults the backend may omit: leverage below 1 becomes 1
// and an unknown direction is treated as long.
func (p *Position) Normalize() {
	if p.Leverage.LessThan(decimal.NewFromInt(1)) {
		p.Leverage = decimal.NewFromInt(1)
	}
	if p.Type != Short {
		p.Type = Long
	}
}

// DepositStatus is the review state of a deposit request.
type DepositStatus string

const (
	DepositPending  DepositStatus = "pending"
	DepositApproved DepositStatus = "approved"
	DepositRejected DepositStatus = "rejected"
)

// DepositRequest is a user-submitted request to add funds.
type DepositRequest struct {
	ID        ID              `json:"id"`
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Note      string          `json:"note,omitempty"`
	Status    DepositStatus   `json:"status"`
	CreatedAt Timestamp       `json:"created_at"`
}

// Transaction is one immutable entry of the user's trade history.
type Transaction struct {
	Type      string          `json:"type"`
	Symbol    string          `json:"symbol"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt Timestamp       `json:"created_at"`
}
