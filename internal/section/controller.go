// Package section implements top-level navigation between the panel's
// sections. Entering a section paints it at once with whatever the store
// holds, then runs that section's loader and repaints.
package section

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atmx/userpanel/internal/model"
	"github.com/atmx/userpanel/internal/state"
)

var (
	ErrUnknownSection  = errors.New("section: unknown section")
	ErrUnknownShortcut = errors.New("section: no section for shortcut")
)

// Loader refreshes the data behind a section.
type Loader func(ctx context.Context) error

// Presenter paints the page frame and section content from the store.
type Presenter interface {
	// PaintPage paints navigation, title and section visibility.
	PaintPage()
	// PaintSection paints the content slot of sec.
	PaintSection(sec model.Section)
}

// Controller drives section transitions. Sections without a loader
// (dashboard, profile) render from the existing snapshot.
type Controller struct {
	store     *state.Store
	presenter Presenter
	loaders   map[model.Section]Loader
	onEnter   func(model.Section)
}

// New creates a controller. loaders may omit sections that read the
// snapshot only.
func New(store *state.Store, presenter Presenter, loaders map[model.Section]Loader) *Controller {
	l := make(map[model.Section]Loader, len(loaders))
	for k, v := range loaders {
		l[k] = v
	}
	return &Controller{store: store, presenter: presenter, loaders: l}
}

// OnEnter registers fn to run after every completed transition.
func (c *Controller) OnEnter(fn func(model.Section)) {
	c.onEnter = fn
}

// Current returns the active section.
func (c *Controller) Current() model.Section {
	return c.store.Snapshot().Section
}

// Navigate switches to target. It reports false without doing anything
// when target is already active.
func (c *Controller) Navigate(ctx context.Context, target model.Section) (bool, error) {
	if !target.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownSection, target)
	}
	if !c.store.SetSection(target) {
		return false, nil
	}

	c.presenter.PaintPage()
	c.presenter.PaintSection(target)

	c.load(ctx, target)

	c.store.SetNavOpen(false)
	c.presenter.PaintPage()

	if c.onEnter != nil {
		c.onEnter(target)
	}
	slog.Debug("section entered", "section", target)
	return true, nil
}

// Shortcut navigates to the section at 1-based position index.
func (c *Controller) Shortcut(ctx context.Context, index int) (bool, error) {
	sec, ok := model.SectionByShortcut(index)
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownShortcut, index)
	}
	return c.Navigate(ctx, sec)
}

// ToggleNav opens or closes the mobile navigation overlay and returns the
// new state.
func (c *Controller) ToggleNav() bool {
	open := !c.store.Snapshot().NavOpen
	c.store.SetNavOpen(open)
	c.presenter.PaintPage()
	return open
}

func (c *Controller) load(ctx context.Context, sec model.Section) {
	loader, ok := c.loaders[sec]
	if !ok {
		c.presenter.PaintSection(sec)
		return
	}
	if err := loader(ctx); err != nil {
		slog.Warn("section load failed", "section", sec, "err", err)
	}
	c.presenter.PaintSection(sec)
}
