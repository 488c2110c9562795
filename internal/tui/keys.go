package tui

import (
	"github.com/gdamore/tcell/v2"

	"waview/internal/nav"
)

// Action represents a keybinding action.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	Visible     bool
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Registry holds keybindings organized by focused pane, plus a global scope.
type Registry struct {
	global []*Action
	panes  map[nav.Pane][]*Action
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{
		panes: make(map[nav.Pane][]*Action),
	}
}

// AddGlobal registers a keybinding active in every pane.
func (r *Registry) AddGlobal(action *Action) {
	r.global = append(r.global, action)
}

// AddPane registers a keybinding active only while the given pane is focused.
func (r *Registry) AddPane(pane nav.Pane, action *Action) {
	r.panes[pane] = append(r.panes[pane], action)
}

// Hints returns visible keybinding descriptions for the given pane.
func (r *Registry) Hints(pane nav.Pane) []string {
	var hints []string
	for _, a := range r.panes[pane] {
		if a.Visible {
			hints = append(hints, a.Description)
		}
	}
	for _, a := range r.global {
		if a.Visible {
			hints = append(hints, a.Description)
		}
	}
	return hints
}

// HandleEvent dispatches a key event to the first matching action for the
// focused pane. Returns true if a handler matched.
func (r *Registry) HandleEvent(pane nav.Pane, ev *tcell.EventKey) bool {
	for _, a := range r.panes[pane] {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	for _, a := range r.global {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	return false
}
