// Package state holds the panel's single AppState. Every mutation swaps a
// whole collection under one lock so readers only ever observe complete
// snapshots.
//
// Loads are stamped with a per-resource sequence number by Begin. A
// completion applies only while its ticket is the latest one issued for
// that resource; older completions are discarded.
package state

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/userpanel/internal/metrics"
	"github.com/atmx/userpanel/internal/model"
)

// Resource names a backend-backed collection.
type Resource string

const (
	ResSession      Resource = "session"
	ResCoins        Resource = "coins"
	ResPortfolio    Resource = "portfolio"
	ResPositions    Resource = "positions"
	ResDeposits     Resource = "deposits"
	ResTransactions Resource = "transactions"
)

// Resources lists every resource.
var Resources = []Resource{ResSession, ResCoins, ResPortfolio, ResPositions, ResDeposits, ResTransactions}

// Valid reports whether r names a known resource.
func (r Resource) Valid() bool {
	for _, x := range Resources {
		if x == r {
			return true
		}
	}
	return false
}

// Phase is the load phase of a resource.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

// LoadStatus is the last known load outcome of a resource.
type LoadStatus struct {
	Phase     Phase     `json:"phase"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ticket identifies one issued load.
type Ticket struct {
	Resource Resource
	Seq      uint64
}

// AppState is the whole client state.
type AppState struct {
	Session *model.Session

	Coins         []model.Coin
	CoinsFallback bool
	CoinsQuery    string

	Portfolio        []model.PortfolioEntry
	PortfolioSummary model.PortfolioSummary

	Positions    []model.Position
	Deposits     []model.DepositRequest
	Transactions []model.Transaction

	Section   model.Section
	TradeCoin *model.Coin
	NavOpen   bool
	Visible   bool

	Status map[Resource]LoadStatus
}

// CoinByID returns the coin with the given id.
func (a AppState) CoinByID(id model.ID) (model.Coin, bool) {
	for _, c := range a.Coins {
		if c.ID == id {
			return c, true
		}
	}
	return model.Coin{}, false
}

// LivePrice returns the positive market price of the coin with the given
// symbol, matched case-insensitively. Fallback coins have no live price.
func (a AppState) LivePrice(symbol string) (decimal.Decimal, bool) {
	if a.CoinsFallback {
		return decimal.Zero, false
	}
	for _, c := range a.Coins {
		if strings.EqualFold(c.Symbol, symbol) && c.CurrentPrice.IsPositive() {
			return c.CurrentPrice, true
		}
	}
	return decimal.Zero, false
}

// Holding returns the portfolio entry for coinID.
func (a AppState) Holding(coinID model.ID) (model.PortfolioEntry, bool) {
	for _, e := range a.Portfolio {
		if e.CoinID == coinID {
			return e, true
		}
	}
	return model.PortfolioEntry{}, false
}

// Position returns the open position with the given id.
func (a AppState) Position(id model.ID) (model.Position, bool) {
	for _, p := range a.Positions {
		if p.ID == id {
			return p, true
		}
	}
	return model.Position{}, false
}

// StatusOf returns the load status of r, PhaseIdle if never loaded.
func (a AppState) StatusOf(r Resource) LoadStatus {
	if s, ok := a.Status[r]; ok {
		return s
	}
	return LoadStatus{Phase: PhaseIdle}
}

// Store guards the AppState.
type Store struct {
	mu   sync.RWMutex
	st   AppState
	seq  map[Resource]uint64
	prev map[Resource]LoadStatus
	now  func() time.Time
}

// New creates a store in its initial state: no session, empty lists,
// dashboard section, page visible.
func New() *Store {
	s := &Store{
		seq:  make(map[Resource]uint64),
		prev: make(map[Resource]LoadStatus),
		now:  time.Now,
	}
	s.st = initial()
	return s
}

func initial() AppState {
	return AppState{
		Coins:        []model.Coin{},
		Portfolio:    []model.PortfolioEntry{},
		Positions:    []model.Position{},
		Deposits:     []model.DepositRequest{},
		Transactions: []model.Transaction{},
		Section:      model.SectionDashboard,
		Visible:      true,
		Status:       make(map[Resource]LoadStatus),
	}
}

// Begin issues a new ticket for r and marks it loading. Any ticket issued
// earlier for r becomes stale.
func (s *Store) Begin(r Resource) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq[r]++
	prev, ok := s.st.Status[r]
	if !ok {
		prev = LoadStatus{Phase: PhaseIdle}
	}
	s.prev[r] = prev
	s.st.Status[r] = LoadStatus{Phase: PhaseLoading, UpdatedAt: prev.UpdatedAt}
	return Ticket{Resource: r, Seq: s.seq[r]}
}

// Abandon withdraws t after its load was cancelled. The resource returns
// to the status it had before t was issued; data is untouched. It reports
// false when t is already stale.
func (s *Store) Abandon(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq[t.Resource] != t.Seq {
		return false
	}
	s.st.Status[t.Resource] = s.prev[t.Resource]
	return true
}

// accept must be called with mu held.
func (s *Store) accept(t Ticket) bool {
	if s.seq[t.Resource] == t.Seq {
		return true
	}
	metrics.StaleResponses.WithLabelValues(string(t.Resource)).Inc()
	slog.Debug("stale response discarded", "resource", t.Resource, "seq", t.Seq, "latest", s.seq[t.Resource])
	return false
}

func (s *Store) ready(r Resource) {
	s.st.Status[r] = LoadStatus{Phase: PhaseReady, UpdatedAt: s.now()}
}

// ReplaceSession swaps in a new session.
func (s *Store) ReplaceSession(t Ticket, sess model.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accept(t) {
		return false
	}
	s.st.Session = &sess
	s.ready(ResSession)
	return true
}

// ClearSession drops the session.
func (s *Store) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Session = nil
}

// ReplaceCoins swaps the coin list. Duplicate symbols collapse to the first
// occurrence. fallback marks static data; query is the search term that
// produced the list.
func (s *Store) ReplaceCoins(t Ticket, coins []model.Coin, fallback bool, query string) bool {
	deduped := make([]model.Coin, 0, len(coins))
	seen := make(map[string]struct{}, len(coins))
	for _, c := range coins {
		key := strings.ToUpper(c.Symbol)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accept(t) {
		return false
	}
	s.st.Coins = deduped
	s.st.CoinsFallback = fallback
	s.st.CoinsQuery = query
	if s.st.TradeCoin != nil {
		for _, c := range deduped {
			if c.ID == s.st.TradeCoin.ID {
				c := c
				s.st.TradeCoin = &c
				break
			}
		}
	}
	s.ready(ResCoins)
	return true
}

// ReplacePortfolio swaps holdings and summary together.
func (s *Store) ReplacePortfolio(t Ticket, entries []model.PortfolioEntry, summary model.PortfolioSummary) bool {
	entries = append([]model.PortfolioEntry{}, entries...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accept(t) {
		return false
	}
	s.st.Portfolio = entries
	s.st.PortfolioSummary = summary
	s.ready(ResPortfolio)
	return true
}

// ReplacePositions swaps the merged spot and leverage positions.
func (s *Store) ReplacePositions(t Ticket, positions []model.Position) bool {
	positions = append([]model.Position{}, positions...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accept(t) {
		return false
	}
	s.st.Positions = positions
	s.ready(ResPositions)
	return true
}

// ReplaceDeposits swaps the deposit request list.
func (s *Store) ReplaceDeposits(t Ticket, deposits []model.DepositRequest) bool {
	deposits = append([]model.DepositRequest{}, deposits...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accept(t) {
		return false
	}
	s.st.Deposits = deposits
	s.ready(ResDeposits)
	return true
}

// ReplaceTransactions swaps the transaction history.
func (s *Store) ReplaceTransactions(t Ticket, txs []model.Transaction) bool {
	txs = append([]model.Transaction{}, txs...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accept(t) {
		return false
	}
	s.st.Transactions = txs
	s.ready(ResTransactions)
	return true
}

// MarkFailed records a failed load. Data from the last successful load is
// kept.
func (s *Store) MarkFailed(t Ticket, kind, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accept(t) {
		return false
	}
	s.st.Status[t.Resource] = LoadStatus{Phase: PhaseFailed, Kind: kind, Message: message, UpdatedAt: s.now()}
	return true
}

// SetSection marks sec active. It reports whether the section changed.
func (s *Store) SetSection(sec model.Section) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Section == sec {
		return false
	}
	s.st.Section = sec
	return true
}

// SetTradeCoin opens the trade-entry view for c, or closes it when c is nil.
func (s *Store) SetTradeCoin(c *model.Coin) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c == nil {
		s.st.TradeCoin = nil
		return
	}
	cp := *c
	s.st.TradeCoin = &cp
}

// SetNavOpen opens or closes the mobile navigation overlay.
func (s *Store) SetNavOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.NavOpen = open
}

// SetVisible records page visibility. It reports whether it changed.
func (s *Store) SetVisible(visible bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.Visible == visible {
		return false
	}
	s.st.Visible = visible
	return true
}

// Snapshot returns a deep copy of the state.
func (s *Store) Snapshot() AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.st
	if s.st.Session != nil {
		sess := *s.st.Session
		out.Session = &sess
	}
	if s.st.TradeCoin != nil {
		c := *s.st.TradeCoin
		out.TradeCoin = &c
	}
	out.Coins = append([]model.Coin{}, s.st.Coins...)
	out.Portfolio = append([]model.PortfolioEntry{}, s.st.Portfolio...)
	out.Positions = append([]model.Position{}, s.st.Positions...)
	out.Deposits = append([]model.DepositRequest{}, s.st.Deposits...)
	out.Transactions = append([]model.Transaction{}, s.st.Transactions...)
	out.Status = make(map[Resource]LoadStatus, len(s.st.Status))
	for k, v := range s.st.Status {
		out.Status[k] = v
	}
	return out
}

// Reset returns the state to its initial value and invalidates every
// ticket issued so far.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range Resources {
		s.seq[r]++
	}
	s.st = initial()
}
