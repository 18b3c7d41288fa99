package view

import (
	"sync"
)

// Slot names a region of the page a view-model is bound to.
type Slot string

const (
	SlotPage      Slot = "page"
	SlotHeader    Slot = "header"
	SlotDashboard Slot = "dashboard"
	SlotMarkets   Slot = "markets"
	SlotPortfolio Slot = "portfolio"
	SlotPositions Slot = "positions"
	SlotHistory   Slot = "history"
	SlotDeposits  Slot = "deposits"
	SlotProfile   Slot = "profile"
	SlotTrade     Slot = "trade"
	SlotToast     Slot = "toast"
)

// AllSlots lists every slot in paint order.
var AllSlots = []Slot{
	SlotPage, SlotHeader, SlotDashboard, SlotMarkets, SlotPortfolio,
	SlotPositions, SlotHistory, SlotDeposits, SlotProfile, SlotTrade, SlotToast,
}

// Valid reports whether s names a known slot.
func (s Slot) Valid() bool {
	for _, x := range AllSlots {
		if x == s {
			return true
		}
	}
	return false
}

// Display receives painted view-models.
type Display interface {
	Show(slot Slot, v any)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(slot Slot, v any)

func (f DisplayFunc) Show(slot Slot, v any) { f(slot, v) }

// Slots keeps the last view-model painted into each slot and fans every
// paint out to the attached displays. Paints reach every display in the
// order they were stored.
type Slots struct {
	order    sync.Mutex
	mu       sync.RWMutex
	last     map[Slot]any
	displays []Display
}

// NewSlots creates an empty slot set.
func NewSlots() *Slots {
	return &Slots{last: make(map[Slot]any)}
}

// Attach adds a display. It does not replay earlier paints.
func (s *Slots) Attach(d Display) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displays = append(s.displays, d)
}

// Paint binds v to slot and forwards it to every display. Displays must
// not block.
func (s *Slots) Paint(slot Slot, v any) {
	s.order.Lock()
	defer s.order.Unlock()

	s.mu.Lock()
	s.last[slot] = v
	displays := append([]Display(nil), s.displays...)
	s.mu.Unlock()

	for _, d := range displays {
		d.Show(slot, v)
	}
}

// Get returns the view-model last painted into slot.
func (s *Slots) Get(slot Slot) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.last[slot]
	return v, ok
}

// All returns every painted slot.
func (s *Slots) All() map[Slot]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Slot]any, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}

// Clear forgets every painted slot.
func (s *Slots) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = make(map[Slot]any)
}
