package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atmx/userpanel/internal/model"
)

// Endpoints are backend paths relative to the base URL.
type Endpoints struct {
	Profile      string
	Coins        string
	Trading      string
	Leverage     string
	Deposits     string
	Transactions string
	Logout       string
}

// DefaultEndpoints returns the paths of the stock backend deployment.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Profile:      "public/profile.php",
		Coins:        "user/coins.php",
		Trading:      "user/trading.php",
		Leverage:     "user/leverage_trading.php",
		Deposits:     "user/deposits.php",
		Transactions: "user/transaction_history.php",
		Logout:       "public/logout.php",
	}
}

func (e *Endpoints) fillDefaults() {
	def := DefaultEndpoints()
	set := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	set(&e.Profile, def.Profile)
	set(&e.Coins, def.Coins)
	set(&e.Trading, def.Trading)
	set(&e.Leverage, def.Leverage)
	set(&e.Deposits, def.Deposits)
	set(&e.Transactions, def.Transactions)
	set(&e.Logout, def.Logout)
}

// TradeRequest is the body of buy, sell and close actions.
type TradeRequest struct {
	Action     string           `json:"action"`
	CoinID     string           `json:"coin_id,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	PositionID string           `json:"position_id,omitempty"`
	ClosePrice *decimal.Decimal `json:"close_price,omitempty"`
}

// DepositForm is the multipart body of a deposit request.
type DepositForm struct {
	Method string
	Amount decimal.Decimal
	Detail map[string]string
	Note   string
}

// Profile loads the authenticated user.
func (c *Client) Profile(ctx context.Context) Result[model.Session] {
	res := decode[model.Session](c.Call(ctx, http.MethodGet, c.endpoints.Profile, nil, nil))
	if res.OK && strings.TrimSpace(res.Data.Username) == "" {
		out := fail[model.Session](res.Endpoint, KindApplication, res.Status, "profile has no user")
		out.Duration = res.Duration
		return out
	}
	return res
}

// Coins lists markets, filtered by search when it is not blank.
func (c *Client) Coins(ctx context.Context, search string) Result[[]model.Coin] {
	var q url.Values
	if s := strings.TrimSpace(search); s != "" {
		q = url.Values{"search": {s}}
	}
	return decodeList[model.Coin](c.Call(ctx, http.MethodGet, c.endpoints.Coins, q, nil), "coins")
}

// Portfolio loads holdings and the backend-computed summary.
func (c *Client) Portfolio(ctx context.Context) Result[model.Portfolio] {
	q := url.Values{"action": {"get_portfolio"}}
	res := decode[model.Portfolio](c.Call(ctx, http.MethodGet, c.endpoints.Trading, q, nil))
	if res.OK && res.Data.Entries == nil {
		res.Data.Entries = []model.PortfolioEntry{}
	}
	return res
}

// Trade submits a buy or sell from the trade-entry view.
func (c *Client) Trade(ctx context.Context, action, coinID string, amount decimal.Decimal) Result[json.RawMessage] {
	body := TradeRequest{Action: action, CoinID: coinID, Amount: &amount}
	return c.Call(ctx, http.MethodPost, c.endpoints.Trading, nil, body)
}

// Sell sells amount of a portfolio holding.
func (c *Client) Sell(ctx context.Context, coinID string, amount decimal.Decimal) Result[json.RawMessage] {
	return c.Trade(ctx, "sell", coinID, amount)
}

// SpotPositions lists positions opened through the spot trading endpoint.
func (c *Client) SpotPositions(ctx context.Context) Result[[]model.Position] {
	q := url.Values{"action": {"get_positions"}}
	res := decodeList[model.Position](c.Call(ctx, http.MethodGet, c.endpoints.Trading, q, nil), "positions")
	tagPositions(res.Data, model.SourceSpot)
	return res
}

// LeveragePositions lists leveraged positions.
func (c *Client) LeveragePositions(ctx context.Context) Result[[]model.Position] {
	q := url.Values{"action": {"positions"}}
	res := decodeList[model.Position](c.Call(ctx, http.MethodGet, c.endpoints.Leverage, q, nil), "positions")
	tagPositions(res.Data, model.SourceLeverage)
	return res
}

func tagPositions(ps []model.Position, src model.PositionSource) {
	for i := range ps {
		ps[i].Normalize()
		if ps[i].Source == "" {
			ps[i].Source = src
		}
	}
}

// ClosePosition closes a position at closePrice through the endpoint that
// reported it.
func (c *Client) ClosePosition(ctx context.Context, p model.Position, closePrice decimal.Decimal) Result[json.RawMessage] {
	endpoint := c.endpoints.Leverage
	if p.Source == model.SourceSpot {
		endpoint = c.endpoints.Trading
	}
	body := TradeRequest{Action: "close_position", PositionID: p.ID.String(), ClosePrice: &closePrice}
	return c.Call(ctx, http.MethodPost, endpoint, nil, body)
}

// Deposits lists the user's deposit requests.
func (c *Client) Deposits(ctx context.Context) Result[[]model.DepositRequest] {
	q := url.Values{"action": {"list"}}
	return decodeList[model.DepositRequest](c.Call(ctx, http.MethodGet, c.endpoints.Deposits, q, nil), "deposits")
}

// CreateDeposit submits a deposit request as multipart form data.
func (c *Client) CreateDeposit(ctx context.Context, f DepositForm) Result[json.RawMessage] {
	detail := f.Detail
	if detail == nil {
		detail = map[string]string{}
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fail[json.RawMessage](c.endpoints.Deposits, KindParse, 0, err.Error())
	}
	form := Form{
		"method": f.Method,
		"amount": f.Amount.String(),
		"detail": string(detailJSON),
	}
	if f.Note != "" {
		form["note"] = f.Note
	}
	q := url.Values{"action": {"create"}}
	return c.Call(ctx, http.MethodPost, c.endpoints.Deposits, q, form)
}

// Transactions lists the user's trade history.
func (c *Client) Transactions(ctx context.Context) Result[[]model.Transaction] {
	return decodeList[model.Transaction](c.Call(ctx, http.MethodGet, c.endpoints.Transactions, nil, nil), "transactions")
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) Result[json.RawMessage] {
	return c.Call(ctx, http.MethodPost, c.endpoints.Logout, nil, nil)
}
