package view

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/userpanel/internal/model"
	"github.com/atmx/userpanel/internal/pricing"
	"github.com/atmx/userpanel/internal/validate"
)

// Phase is the display phase of a list view.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseEmpty   Phase = "empty"
	PhaseError   Phase = "error"
)

// Action is an intent the browser sends back to the panel.
type Action struct {
	Label   string            `json:"label"`
	Method  string            `json:"method"`
	Href    string            `json:"href"`
	Confirm string            `json:"confirm,omitempty"`
	Body    map[string]string `json:"body,omitempty"`
}

// ErrorPanel is the inline "connection error, retry" block of a list view.
type ErrorPanel struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Retry   Action `json:"retry"`
}

// NavItem is one entry of the section navigation.
type NavItem struct {
	Section  model.Section `json:"section"`
	Title    string        `json:"title"`
	Active   bool          `json:"active"`
	Shortcut int           `json:"shortcut"`
	Navigate Action        `json:"navigate"`
}

// Page is the page frame: active section, title and navigation.
type Page struct {
	Section      model.Section `json:"section"`
	Title        string        `json:"title"`
	Nav          []NavItem     `json:"nav"`
	NavOpen      bool          `json:"nav_open"`
	AuthRequired bool          `json:"auth_required"`
	LoggedOut    bool          `json:"logged_out,omitempty"`
	Visible      bool          `json:"visible"`
}

// Header shows the signed-in user and balance.
type Header struct {
	LoggedIn   bool            `json:"logged_in"`
	Username   string          `json:"username,omitempty"`
	Balance    string          `json:"balance"`
	BalanceRaw decimal.Decimal `json:"balance_raw"`
	Logout     *Action         `json:"logout,omitempty"`
}

// Dashboard is the overview section.
type Dashboard struct {
	Balance        string          `json:"balance"`
	BalanceRaw     decimal.Decimal `json:"balance_raw"`
	DailyPnL       string          `json:"daily_pnl"`
	DailyPnLRaw    decimal.Decimal `json:"daily_pnl_raw"`
	DailyPnLClass  string          `json:"daily_pnl_class"`
	Simulated      bool            `json:"simulated"`
	OpenPositions  int             `json:"open_positions"`
	PortfolioValue string          `json:"portfolio_value"`
	CoinCount      int             `json:"coin_count"`
}

// MarketCard is one coin of the market grid.
type MarketCard struct {
	CoinID      model.ID        `json:"coin_id"`
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	LogoURL     string          `json:"logo_url"`
	Price       string          `json:"price"`
	PriceRaw    decimal.Decimal `json:"price_raw"`
	Change      string          `json:"change"`
	ChangeClass string          `json:"change_class"`
	Volume      string          `json:"volume"`
	Open        *Action         `json:"open,omitempty"`
}

// MarketGrid is the markets section.
type MarketGrid struct {
	Phase    Phase        `json:"phase"`
	Query    string       `json:"query,omitempty"`
	Fallback bool         `json:"fallback"`
	Notice   string       `json:"notice,omitempty"`
	Retry    *Action      `json:"retry,omitempty"`
	Empty    string       `json:"empty,omitempty"`
	Error    *ErrorPanel  `json:"error,omitempty"`
	Cards    []MarketCard `json:"cards"`
}

// HoldingCard is one portfolio entry.
type HoldingCard struct {
	CoinID     model.ID        `json:"coin_id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Amount     string          `json:"amount"`
	AmountRaw  decimal.Decimal `json:"amount_raw"`
	Value      string          `json:"value"`
	PnL        string          `json:"pnl"`
	PnLPercent string          `json:"pnl_percent"`
	PnLClass   string          `json:"pnl_class"`
	Sell       Action          `json:"sell"`
}

// PortfolioSummary is the header block of the portfolio section.
type PortfolioSummary struct {
	TotalValue string `json:"total_value"`
	TotalPnL   string `json:"total_pnl"`
	PnLClass   string `json:"pnl_class"`
	CoinCount  int    `json:"coin_count"`
}

// Portfolio is the portfolio section.
type Portfolio struct {
	Phase   Phase            `json:"phase"`
	Summary PortfolioSummary `json:"summary"`
	Empty   string           `json:"empty,omitempty"`
	Error   *ErrorPanel      `json:"error,omitempty"`
	Cards   []HoldingCard    `json:"cards"`
}

// PositionCard is one open position.
type PositionCard struct {
	ID          model.ID             `json:"id"`
	Symbol      string               `json:"symbol"`
	Type        model.PositionType   `json:"type"`
	Source      model.PositionSource `json:"source"`
	Leverage    string               `json:"leverage"`
	Invested    string               `json:"invested"`
	EntryPrice  string               `json:"entry_price"`
	Current     string               `json:"current_price"`
	PnL         string               `json:"pnl"`
	PnLRaw      decimal.Decimal      `json:"pnl_raw"`
	PnLPercent  string               `json:"pnl_percent"`
	PnLClass    string               `json:"pnl_class"`
	Liquidation string               `json:"liquidation_price,omitempty"`
	Opened      string               `json:"opened"`
	Close       Action               `json:"close"`
}

// Positions is the positions section.
type Positions struct {
	Phase    Phase          `json:"phase"`
	TotalPnL string         `json:"total_pnl"`
	PnLClass string         `json:"pnl_class"`
	Empty    string         `json:"empty,omitempty"`
	Error    *ErrorPanel    `json:"error,omitempty"`
	Cards    []PositionCard `json:"cards"`
}

// TransactionRow is one history entry.
type TransactionRow struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
	Price  string `json:"price"`
	Total  string `json:"total"`
	Date   string `json:"date"`
}

// History is the transaction history section.
type History struct {
	Phase Phase            `json:"phase"`
	Empty string           `json:"empty,omitempty"`
	Error *ErrorPanel      `json:"error,omitempty"`
	Rows  []TransactionRow `json:"rows"`
}

// DepositRow is one deposit request.
type DepositRow struct {
	ID          model.ID            `json:"id"`
	Method      string              `json:"method"`
	Amount      string              `json:"amount"`
	Status      model.DepositStatus `json:"status"`
	StatusClass string              `json:"status_class"`
	Note        string              `json:"note,omitempty"`
	Date        string              `json:"date"`
}

// Deposits is the deposits section: the request form and the request list.
type Deposits struct {
	Phase   Phase             `json:"phase"`
	Methods []validate.Method `json:"methods"`
	Min     string            `json:"min"`
	Max     string            `json:"max"`
	Submit  Action            `json:"submit"`
	Empty   string            `json:"empty,omitempty"`
	Error   *ErrorPanel       `json:"error,omitempty"`
	Rows    []DepositRow      `json:"rows"`
}

// Profile is the profile section.
type Profile struct {
	LoggedIn bool   `json:"logged_in"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Balance  string `json:"balance"`
	JoinedAt string `json:"joined_at,omitempty"`
}

// TradeEntry is the trade-entry view for the selected coin.
type TradeEntry struct {
	Open    bool          `json:"open"`
	CoinID  model.ID      `json:"coin_id,omitempty"`
	Symbol  string        `json:"symbol,omitempty"`
	Name    string        `json:"name,omitempty"`
	Price   string        `json:"price,omitempty"`
	Buy     string        `json:"buy,omitempty"`
	Sell    string        `json:"sell,omitempty"`
	Quote   pricing.Quote `json:"quote"`
	Balance string        `json:"balance,omitempty"`
	Min     string        `json:"min,omitempty"`
	Max     string        `json:"max,omitempty"`
	Submit  *Action       `json:"submit,omitempty"`
	Close   *Action       `json:"close,omitempty"`
}

// ToastLevel is the severity of a toast.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
	ToastInfo    ToastLevel = "info"
	ToastWarning ToastLevel = "warning"
)

// Toast is a transient notification.
type Toast struct {
	Level   ToastLevel `json:"level"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}
