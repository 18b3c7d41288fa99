package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestID_AcceptsNumberAndString(t *testing.T) {
	var coins []Coin
	body := `[{"id": 7, "symbol": "BTC"}, {"id": "eth-1", "symbol": "ETH"}]`
	if err := json.Unmarshal([]byte(body), &coins); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coins[0].ID != "7" {
		t.Errorf("expected id=7, got %q", coins[0].ID)
	}
	if coins[1].ID != "eth-1" {
		t.Errorf("expected id=eth-1, got %q", coins[1].ID)
	}
}

func TestTimestamp_BackendLayouts(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2024-03-01 12:30:00"`, time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)},
		{`"2024-03-01T12:30:00Z"`, time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)},
		{`"2024-03-01"`, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		var ts Timestamp
		if err := json.Unmarshal([]byte(tt.in), &ts); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if !ts.Equal(tt.want) {
			t.Errorf("unmarshal %s = %v, want %v", tt.in, ts.Time, tt.want)
		}
	}
}

func TestTimestamp_Invalid(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Error("expected error for unrecognised timestamp")
	}
}

func TestPosition_Normalize(t *testing.T) {
	p := Position{Type: "", Leverage: decimal.Zero}
	p.Normalize()
	if p.Type != Long {
		t.Errorf("expected default type long, got %s", p.Type)
	}
	if !p.Leverage.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected leverage 1, got %s", p.Leverage)
	}

	s := Position{Type: Short, Leverage: decimal.NewFromInt(5)}
	s.Normalize()
	if s.Type != Short || !s.Leverage.Equal(decimal.NewFromInt(5)) {
		t.Errorf("normalize must keep explicit values, got %s %s", s.Type, s.Leverage)
	}
}

func TestSectionByShortcut(t *testing.T) {
	s, ok := SectionByShortcut(2)
	if !ok || s != SectionMarkets {
		t.Errorf("shortcut 2 = %s, %v; want markets", s, ok)
	}
	if _, ok := SectionByShortcut(0); ok {
		t.Error("shortcut 0 must not resolve")
	}
	if _, ok := SectionByShortcut(8); ok {
		t.Error("shortcut 8 must not resolve")
	}
	if Section("admin").Valid() {
		t.Error("unknown section must be invalid")
	}
}
