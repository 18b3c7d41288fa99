package section

import (
	"context"
	"errors"
	"testing"

	"github.com/atmx/userpanel/internal/model"
	"github.com/atmx/userpanel/internal/state"
)

type recorder struct {
	pages    int
	sections []model.Section
}

func (r *recorder) PaintPage()                     { r.pages++ }
func (r *recorder) PaintSection(sec model.Section) { r.sections = append(r.sections, sec) }

func newTestController() (*Controller, *state.Store, *recorder, map[model.Section]int) {
	st := state.New()
	rec := &recorder{}
	calls := make(map[model.Section]int)
	loader := func(sec model.Section) Loader {
		return func(context.Context) error {
			calls[sec]++
			return nil
		}
	}
	c := New(st, rec, map[model.Section]Loader{
		model.SectionMarkets:   loader(model.SectionMarkets),
		model.SectionPortfolio: loader(model.SectionPortfolio),
		model.SectionPositions: loader(model.SectionPositions),
		model.SectionHistory:   loader(model.SectionHistory),
		model.SectionDeposits:  loader(model.SectionDeposits),
	})
	return c, st, rec, calls
}

func TestNavigate_TwiceRefreshesOnce(t *testing.T) {
	c, _, _, calls := newTestController()
	ctx := context.Background()

	changed, err := c.Navigate(ctx, model.SectionMarkets)
	if err != nil || !changed {
		t.Fatalf("first navigate: changed=%v err=%v", changed, err)
	}
	changed, err = c.Navigate(ctx, model.SectionMarkets)
	if err != nil || changed {
		t.Fatalf("second navigate must be a no-op: changed=%v err=%v", changed, err)
	}
	if calls[model.SectionMarkets] != 1 {
		t.Errorf("expected one refresh, got %d", calls[model.SectionMarkets])
	}
}

func TestNavigate_PaintsBeforeAndAfterLoad(t *testing.T) {
	c, _, rec, _ := newTestController()
	c.Navigate(context.Background(), model.SectionPortfolio)

	if len(rec.sections) != 2 {
		t.Fatalf("expected stale paint then fresh paint, got %v", rec.sections)
	}
	if rec.pages != 2 {
		t.Errorf("expected page painted on entry and after nav close, got %d", rec.pages)
	}
}

func TestNavigate_ClosesMobileNav(t *testing.T) {
	c, st, _, _ := newTestController()
	if !c.ToggleNav() {
		t.Fatal("toggle should open nav")
	}
	c.Navigate(context.Background(), model.SectionHistory)
	if st.Snapshot().NavOpen {
		t.Error("navigation must close the mobile overlay")
	}
}

func TestNavigate_SnapshotOnlySections(t *testing.T) {
	c, _, rec, calls := newTestController()
	c.Navigate(context.Background(), model.SectionProfile)
	if len(calls) != 0 {
		t.Errorf("profile has no loader, got calls %v", calls)
	}
	if len(rec.sections) != 2 || rec.sections[1] != model.SectionProfile {
		t.Errorf("profile must still be painted, got %v", rec.sections)
	}
}

func TestNavigate_UnknownSection(t *testing.T) {
	c, st, _, _ := newTestController()
	_, err := c.Navigate(context.Background(), model.Section("admin"))
	if !errors.Is(err, ErrUnknownSection) {
		t.Errorf("expected ErrUnknownSection, got %v", err)
	}
	if st.Snapshot().Section != model.SectionDashboard {
		t.Error("unknown section must not change state")
	}
}

func TestNavigate_LoaderErrorStillRepaints(t *testing.T) {
	st := state.New()
	rec := &recorder{}
	c := New(st, rec, map[model.Section]Loader{
		model.SectionDeposits: func(context.Context) error { return errors.New("backend down") },
	})
	changed, err := c.Navigate(context.Background(), model.SectionDeposits)
	if err != nil || !changed {
		t.Fatalf("loader failure must not fail navigation: %v", err)
	}
	if len(rec.sections) != 2 {
		t.Errorf("expected repaint after failed load, got %v", rec.sections)
	}
}

func TestShortcut(t *testing.T) {
	c, _, _, calls := newTestController()
	if _, err := c.Shortcut(context.Background(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Current() != model.SectionPositions {
		t.Errorf("shortcut 4 should open positions, got %s", c.Current())
	}
	if calls[model.SectionPositions] != 1 {
		t.Error("positions loader should run")
	}
	if _, err := c.Shortcut(context.Background(), 9); !errors.Is(err, ErrUnknownShortcut) {
		t.Errorf("expected ErrUnknownShortcut, got %v", err)
	}
}

func TestOnEnter(t *testing.T) {
	c, _, _, _ := newTestController()
	var entered []model.Section
	c.OnEnter(func(s model.Section) { entered = append(entered, s) })
	c.Navigate(context.Background(), model.SectionMarkets)
	c.Navigate(context.Background(), model.SectionMarkets)
	if len(entered) != 1 || entered[0] != model.SectionMarkets {
		t.Errorf("unexpected enter callbacks %v", entered)
	}
}
