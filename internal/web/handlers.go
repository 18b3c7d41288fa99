// Package web exposes a dashboard to the browser: JSON endpoints that read
// painted slots and accept user intents, plus the WebSocket hub that
// pushes every paint.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/userpanel/internal/dashboard"
	"github.com/atmx/userpanel/internal/gateway"
	"github.com/atmx/userpanel/internal/model"
	"github.com/atmx/userpanel/internal/section"
	"github.com/atmx/userpanel/internal/state"
	"github.com/atmx/userpanel/internal/validate"
	"github.com/atmx/userpanel/internal/view"
)

// Panel is the dashboard surface the handlers drive.
type Panel interface {
	Slots() *view.Slots
	Navigate(ctx context.Context, sec model.Section) (bool, error)
	Shortcut(ctx context.Context, index int) (bool, error)
	ToggleNav() (bool, error)
	SetVisible(visible bool) error
	Search(ctx context.Context, term string) (dashboard.LoadOutcome, error)
	Retry(ctx context.Context, r state.Resource) (dashboard.LoadOutcome, error)
	OpenTrade(coinID model.ID) error
	CloseTrade() error
	SubmitTrade(ctx context.Context, action string, coinID model.ID, amount decimal.Decimal) error
	Sell(ctx context.Context, coinID model.ID, amount decimal.Decimal) error
	ClosePosition(ctx context.Context, id model.ID, confirmed bool) error
	CreateDeposit(ctx context.Context, dep validate.Deposit) error
	Logout(ctx context.Context) error
}

// Service handles browser requests against one panel.
type Service struct {
	panel Panel
}

// NewService creates the HTTP service for panel.
func NewService(panel Panel) *Service {
	return &Service{panel: panel}
}

// Routes mounts every endpoint on r. The WebSocket endpoint is mounted
// separately by the caller.
func (s *Service) Routes(r chi.Router) {
	r.Get("/views", s.GetViews)
	r.Get("/views/{slot}", s.GetView)

	r.Post("/navigate", s.Navigate)
	r.Post("/nav/toggle", s.ToggleNav)
	r.Post("/shortcut/{index}", s.Shortcut)
	r.Post("/visibility", s.SetVisibility)
	r.Post("/markets/search", s.Search)
	r.Post("/retry/{resource}", s.Retry)

	r.Post("/trade/open", s.OpenTrade)
	r.Post("/trade/close", s.CloseTrade)
	r.Post("/trade", s.SubmitTrade)
	r.Post("/portfolio/{coinID}/sell", s.Sell)
	r.Post("/positions/{positionID}/close", s.ClosePosition)
	r.Post("/deposits", s.CreateDeposit)
	r.Post("/logout", s.Logout)
}

// --- Request types ---

// NavigateRequest is the JSON body for POST /navigate.
type NavigateRequest struct {
	Section model.Section `json:"section"`
}

// VisibilityRequest is the JSON body for POST /visibility.
type VisibilityRequest struct {
	Visible bool `json:"visible"`
}

// SearchRequest is the JSON body for POST /markets/search.
type SearchRequest struct {
	Query string `json:"query"`
}

// OpenTradeRequest is the JSON body for POST /trade/open.
type OpenTradeRequest struct {
	CoinID model.ID `json:"coin_id"`
}

// TradeRequest is the JSON body for POST /trade.
type TradeRequest struct {
	Action string          `json:"action"` // "buy" or "sell"
	CoinID model.ID        `json:"coin_id"`
	Amount decimal.Decimal `json:"amount"`
}

// SellRequest is the JSON body for POST /portfolio/{coinID}/sell.
type SellRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ClosePositionRequest is the JSON body for POST /positions/{positionID}/close.
type ClosePositionRequest struct {
	Confirmed bool `json:"confirmed"`
}

// DepositRequest is the JSON body for POST /deposits.
type DepositRequest struct {
	Method string            `json:"method"`
	Amount decimal.Decimal   `json:"amount"`
	Detail map[string]string `json:"detail,omitempty"`
	Note   string            `json:"note,omitempty"`
}

// --- Views ---

// GetViews handles GET /api/v1/views
func (s *Service) GetViews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.panel.Slots().All())
}

// GetView handles GET /api/v1/views/{slot}
func (s *Service) GetView(w http.ResponseWriter, r *http.Request) {
	slot := view.Slot(chi.URLParam(r, "slot"))
	if !slot.Valid() {
		writeError(w, "unknown slot", http.StatusBadRequest)
		return
	}
	v, ok := s.panel.Slots().Get(slot)
	if !ok {
		writeError(w, "slot not painted", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// --- Navigation ---

// Navigate handles POST /api/v1/navigate
func (s *Service) Navigate(w http.ResponseWriter, r *http.Request) {
	var req NavigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	changed, err := s.panel.Navigate(r.Context(), req.Section)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "section": req.Section})
}

// Shortcut handles POST /api/v1/shortcut/{index}
func (s *Service) Shortcut(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, "index must be a number", http.StatusBadRequest)
		return
	}
	changed, err := s.panel.Shortcut(r.Context(), index)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed})
}

// ToggleNav handles POST /api/v1/nav/toggle
func (s *Service) ToggleNav(w http.ResponseWriter, r *http.Request) {
	open, err := s.panel.ToggleNav()
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"open": open})
}

// SetVisibility handles POST /api/v1/visibility
func (s *Service) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.panel.SetVisible(req.Visible); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"visible": req.Visible})
}

// Search handles POST /api/v1/markets/search
func (s *Service) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	out, err := s.panel.Search(r.Context(), req.Query)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Retry handles POST /api/v1/retry/{resource}
func (s *Service) Retry(w http.ResponseWriter, r *http.Request) {
	out, err := s.panel.Retry(r.Context(), state.Resource(chi.URLParam(r, "resource")))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// --- Trading ---

// OpenTrade handles POST /api/v1/trade/open
func (s *Service) OpenTrade(w http.ResponseWriter, r *http.Request) {
	var req OpenTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.panel.OpenTrade(req.CoinID); err != nil {
		writeFailure(w, err)
		return
	}
	writeOK(w)
}

// CloseTrade handles POST /api/v1/trade/close
func (s *Service) CloseTrade(w http.ResponseWriter, r *http.Request) {
	if err := s.panel.CloseTrade(); err != nil {
		writeFailure(w, err)
		return
	}
	writeOK(w)
}

// SubmitTrade handles POST /api/v1/trade
func (s *Service) SubmitTrade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CoinID == "" {
		writeError(w, "coin_id is required", http.StatusBadRequest)
		return
	}
	if err := s.panel.SubmitTrade(r.Context(), req.Action, req.CoinID, req.Amount); err != nil {
		writeFailure(w, err)
		return
	}
	writeOK(w)
}

// Sell handles POST /api/v1/portfolio/{coinID}/sell
func (s *Service) Sell(w http.ResponseWriter, r *http.Request) {
	var req SellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	coinID := model.ID(chi.URLParam(r, "coinID"))
	if err := s.panel.Sell(r.Context(), coinID, req.Amount); err != nil {
		writeFailure(w, err)
		return
	}
	writeOK(w)
}

// ClosePosition handles POST /api/v1/positions/{positionID}/close
func (s *Service) ClosePosition(w http.ResponseWriter, r *http.Request) {
	var req ClosePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id := model.ID(chi.URLParam(r, "positionID"))
	if err := s.panel.ClosePosition(r.Context(), id, req.Confirmed); err != nil {
		writeFailure(w, err)
		return
	}
	writeOK(w)
}

// CreateDeposit handles POST /api/v1/deposits
func (s *Service) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	err := s.panel.CreateDeposit(r.Context(), validate.Deposit{
		Method: req.Method,
		Amount: req.Amount,
		Detail: req.Detail,
		Note:   req.Note,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// Logout handles POST /api/v1/logout
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.panel.Logout(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	writeOK(w)
}

// --- Responses ---

// statusFor maps a panel error to an HTTP status.
func statusFor(err error) int {
	var gerr *gateway.Error
	switch {
	case errors.Is(err, validate.ErrValidation),
		errors.Is(err, dashboard.ErrInvalidAction),
		errors.Is(err, section.ErrUnknownShortcut):
		return http.StatusBadRequest
	case errors.Is(err, dashboard.ErrNotConfirmed):
		return http.StatusPreconditionRequired
	case errors.Is(err, dashboard.ErrMarketUnavailable):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrUnknownCoin),
		errors.Is(err, dashboard.ErrUnknownPosition),
		errors.Is(err, dashboard.ErrUnknownResource),
		errors.Is(err, section.ErrUnknownSection):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrLoggedOut):
		return http.StatusUnauthorized
	case errors.As(err, &gerr):
		if gerr.Kind == gateway.KindAuthRequired {
			return http.StatusUnauthorized
		}
		if gerr.Kind == gateway.KindApplication {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	var gerr *gateway.Error
	if errors.As(err, &gerr) {
		msg = gerr.Message
	}
	if status >= http.StatusInternalServerError {
		slog.Warn("request failed", "status", status, "err", err)
	}
	writeError(w, msg, status)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
var _ Panel = (*dashboard.Dashboard)(nil)
