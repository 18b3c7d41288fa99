package state

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/userpanel/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestNew_InitialState(t *testing.T) {
	snap := New().Snapshot()
	if snap.Session != nil {
		t.Error("expected no session")
	}
	if snap.Section != model.SectionDashboard {
		t.Errorf("expected dashboard, got %s", snap.Section)
	}
	if !snap.Visible {
		t.Error("page starts visible")
	}
	if snap.Coins == nil || len(snap.Coins) != 0 {
		t.Error("coins start as an empty list")
	}
	if snap.StatusOf(ResCoins).Phase != PhaseIdle {
		t.Errorf("expected idle, got %s", snap.StatusOf(ResCoins).Phase)
	}
}

func TestBegin_StaleCompletionDiscarded(t *testing.T) {
	s := New()
	older := s.Begin(ResCoins)
	newer := s.Begin(ResCoins)

	if !s.ReplaceCoins(newer, []model.Coin{{ID: "1", Symbol: "BTC"}}, false, "") {
		t.Fatal("latest ticket must apply")
	}
	if s.ReplaceCoins(older, []model.Coin{{ID: "2", Symbol: "ETH"}}, false, "") {
		t.Fatal("stale ticket must be discarded")
	}
	if s.MarkFailed(older, "network", "boom") {
		t.Fatal("stale failure must be discarded")
	}

	snap := s.Snapshot()
	if len(snap.Coins) != 1 || snap.Coins[0].Symbol != "BTC" {
		t.Errorf("expected newer coins kept, got %+v", snap.Coins)
	}
	if snap.StatusOf(ResCoins).Phase != PhaseReady {
		t.Errorf("expected ready, got %s", snap.StatusOf(ResCoins).Phase)
	}
}

func TestBegin_IndependentPerResource(t *testing.T) {
	s := New()
	coins := s.Begin(ResCoins)
	s.Begin(ResPortfolio)
	if !s.ReplaceCoins(coins, []model.Coin{{ID: "1", Symbol: "BTC"}}, false, "") {
		t.Error("a portfolio ticket must not invalidate a coins ticket")
	}
}

func TestAbandon_RestoresPreviousStatus(t *testing.T) {
	s := New()
	s.ReplaceCoins(s.Begin(ResCoins), []model.Coin{{ID: "1", Symbol: "BTC"}}, false, "")

	tk := s.Begin(ResCoins)
	if !s.Abandon(tk) {
		t.Fatal("abandoning the latest ticket should succeed")
	}
	snap := s.Snapshot()
	if snap.StatusOf(ResCoins).Phase != PhaseReady || len(snap.Coins) != 1 {
		t.Errorf("expected ready status and coins kept, got %s/%d", snap.StatusOf(ResCoins).Phase, len(snap.Coins))
	}

	old := s.Begin(ResPortfolio)
	s.Begin(ResPortfolio)
	if s.Abandon(old) {
		t.Error("a stale ticket must not be abandoned")
	}

	fresh := s.Begin(ResDeposits)
	s.Abandon(fresh)
	if got := s.Snapshot().StatusOf(ResDeposits).Phase; got != PhaseIdle {
		t.Errorf("expected idle after abandoning the first load, got %s", got)
	}
}

func TestReplaceCoins_DedupesBySymbol(t *testing.T) {
	s := New()
	tk := s.Begin(ResCoins)
	s.ReplaceCoins(tk, []model.Coin{
		{ID: "1", Symbol: "BTC", CurrentPrice: d(1)},
		{ID: "2", Symbol: "btc", CurrentPrice: d(2)},
		{ID: "3", Symbol: "ETH"},
	}, false, "")

	snap := s.Snapshot()
	if len(snap.Coins) != 2 {
		t.Fatalf("expected 2 coins, got %d", len(snap.Coins))
	}
	if snap.Coins[0].ID != "1" {
		t.Errorf("duplicate must collapse to first, got id %s", snap.Coins[0].ID)
	}
}

func TestMarkFailed_KeepsLastGoodData(t *testing.T) {
	s := New()
	tk := s.Begin(ResPortfolio)
	s.ReplacePortfolio(tk, []model.PortfolioEntry{{CoinID: "1", NetAmount: d(2)}}, model.PortfolioSummary{CoinCount: 1})

	tk = s.Begin(ResPortfolio)
	if s.Snapshot().StatusOf(ResPortfolio).Phase != PhaseLoading {
		t.Error("Begin must mark loading")
	}
	s.MarkFailed(tk, "http", "HTTP error! status: 500")

	snap := s.Snapshot()
	if len(snap.Portfolio) != 1 {
		t.Error("failed load must not clear existing data")
	}
	st := snap.StatusOf(ResPortfolio)
	if st.Phase != PhaseFailed || st.Message != "HTTP error! status: 500" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	s := New()
	tk := s.Begin(ResSession)
	s.ReplaceSession(tk, model.Session{Username: "ayse", Balance: d(100)})
	tk = s.Begin(ResPositions)
	s.ReplacePositions(tk, []model.Position{{ID: "1", Symbol: "BTC"}})

	snap := s.Snapshot()
	snap.Session.Username = "mallory"
	snap.Positions[0].Symbol = "DOGE"
	snap.Status[ResPositions] = LoadStatus{Phase: PhaseFailed}

	again := s.Snapshot()
	if again.Session.Username != "ayse" {
		t.Error("snapshot session aliases store memory")
	}
	if again.Positions[0].Symbol != "BTC" {
		t.Error("snapshot positions alias store memory")
	}
	if again.StatusOf(ResPositions).Phase != PhaseReady {
		t.Error("snapshot status map aliases store memory")
	}
}

func TestReplacePositions_CallerSliceNotAliased(t *testing.T) {
	s := New()
	in := []model.Position{{ID: "1"}}
	s.ReplacePositions(s.Begin(ResPositions), in)
	in[0].ID = "changed"
	if s.Snapshot().Positions[0].ID != "1" {
		t.Error("store must copy the caller's slice")
	}
}

func TestSetSection(t *testing.T) {
	s := New()
	if s.SetSection(model.SectionDashboard) {
		t.Error("setting the current section reports no change")
	}
	if !s.SetSection(model.SectionMarkets) {
		t.Error("expected change")
	}
}

func TestTradeCoin_RefreshedWithCoins(t *testing.T) {
	s := New()
	s.SetTradeCoin(&model.Coin{ID: "1", Symbol: "BTC", CurrentPrice: d(100)})
	s.ReplaceCoins(s.Begin(ResCoins), []model.Coin{{ID: "1", Symbol: "BTC", CurrentPrice: d(110)}}, false, "")

	snap := s.Snapshot()
	if snap.TradeCoin == nil || !snap.TradeCoin.CurrentPrice.Equal(d(110)) {
		t.Errorf("trade coin should track the latest price, got %+v", snap.TradeCoin)
	}

	s.SetTradeCoin(nil)
	if s.Snapshot().TradeCoin != nil {
		t.Error("expected trade view closed")
	}
}

func TestReset_InvalidatesTickets(t *testing.T) {
	s := New()
	s.ReplaceSession(s.Begin(ResSession), model.Session{Username: "ayse"})
	s.SetSection(model.SectionPortfolio)
	inflight := s.Begin(ResPortfolio)

	s.Reset()

	if s.ReplacePortfolio(inflight, []model.PortfolioEntry{{CoinID: "1"}}, model.PortfolioSummary{}) {
		t.Error("in-flight load must not apply after reset")
	}
	snap := s.Snapshot()
	if snap.Session != nil || snap.Section != model.SectionDashboard || len(snap.Portfolio) != 0 {
		t.Errorf("reset did not restore initial state: %+v", snap)
	}
}
