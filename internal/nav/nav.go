// Package nav tracks focus, selection, scroll offsets, the search filter,
// and the reply/members overlays. It owns cursors and flags only; it refers
// into the state store by identifier and tolerates the referenced chat or
// message disappearing between renders.
package nav

import (
	"sync"

	"waview/internal/state"
)

// Pane identifies the focused UI pane.
type Pane int

const (
	PaneInput Pane = iota
	PaneChats
	PaneMessages
	PaneMembers
)

// PageSize is the fixed visible chat page; selection crossing it adjusts the
// scroll offset.
const PageSize = 12

// noSelection marks "no message selected".
const noSelection = -1

// SelectFunc is invoked exactly once per chat selection change, with the
// generation that identifies the new selection.
type SelectFunc func(chatID string, generation int64)

// State is a copyable snapshot of the navigation cursors for rendering.
type State struct {
	Focus           Pane
	SelectedChat    string
	SelectedMessage int
	ChatScroll      int
	Search          string
	ReplyTarget     *state.Message
	MembersVisible  bool
	Generation      int64
}

// Machine is the navigation state machine, driven by discrete input events.
// It never persists across restarts.
type Machine struct {
	mu       sync.Mutex
	store    *state.Store
	onSelect SelectFunc

	focus          Pane
	selectedChat   string
	selectedMsg    int
	chatScroll     int
	search         string
	replyTarget    *state.Message
	membersVisible bool
	generation     int64
}

// New creates a navigation machine over the given store. onSelect may be nil.
func New(store *state.Store, onSelect SelectFunc) *Machine {
	return &Machine{
		store:       store,
		onSelect:    onSelect,
		focus:       PaneChats,
		selectedMsg: noSelection,
	}
}

// Snapshot returns a copy of the current navigation state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Focus:           m.focus,
		SelectedChat:    m.selectedChat,
		SelectedMessage: m.selectedMsg,
		ChatScroll:      m.chatScroll,
		Search:          m.search,
		ReplyTarget:     m.replyTarget,
		MembersVisible:  m.membersVisible,
		Generation:      m.generation,
	}
}

// Projection returns the filtered, ordered chat list the cursors move over.
func (m *Machine) Projection() []state.Chat {
	m.mu.Lock()
	query := m.search
	m.mu.Unlock()
	return m.store.Chats(query)
}

// CycleFocus advances pane focus. The members pane is visited only while
// the members overlay is visible.
func (m *Machine) CycleFocus() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focus = m.nextPaneLocked(m.focus, 1)
}

// CycleFocusBack moves pane focus in the opposite direction.
func (m *Machine) CycleFocusBack() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focus = m.nextPaneLocked(m.focus, -1)
}

func (m *Machine) nextPaneLocked(p Pane, dir int) Pane {
	order := []Pane{PaneInput, PaneChats, PaneMessages}
	if m.membersVisible {
		order = append(order, PaneMembers)
	}
	idx := 0
	for i, candidate := range order {
		if candidate == p {
			idx = i
			break
		}
	}
	return order[(idx+dir+len(order))%len(order)]
}

// Focus returns the focused pane.
func (m *Machine) Focus() Pane {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focus
}

// SetFocus moves focus directly to a pane.
func (m *Machine) SetFocus(p Pane) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == PaneMembers && !m.membersVisible {
		return
	}
	m.focus = p
}

// MoveChat moves the chat selection by delta within the current filtered
// projection. Moving past either end is a no-op; crossing the visible page
// adjusts the scroll offset to keep the selection on screen.
func (m *Machine) MoveChat(delta int) {
	projection := m.Projection()

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(projection) == 0 {
		return
	}

	idx := noSelection
	for i, c := range projection {
		if c.ID == m.selectedChat {
			idx = i
			break
		}
	}

	next := idx + delta
	if idx == noSelection {
		next = 0
	}
	if next < 0 || next >= len(projection) {
		return
	}

	if next < m.chatScroll {
		m.chatScroll = next
	} else if next >= m.chatScroll+PageSize {
		m.chatScroll = next - PageSize + 1
	}

	m.changeSelectionLocked(projection[next].ID)
}

// changeSelectionLocked applies the selection-change side effects exactly
// once: reset message cursor, clear reply mode, bump the async generation,
// and notify the mark-read/metadata hook.
func (m *Machine) changeSelectionLocked(chatID string) {
	if chatID == m.selectedChat {
		return
	}
	m.selectedChat = chatID
	m.selectedMsg = noSelection
	m.replyTarget = nil
	m.membersVisible = false
	m.generation++
	if m.onSelect != nil {
		m.onSelect(chatID, m.generation)
	}
}

// MoveMessage moves the message cursor within the active chat's window. The
// first press selects the most recent message; later presses move by one,
// clamped to the window bounds.
func (m *Machine) MoveMessage(delta int) {
	m.mu.Lock()
	chatID := m.selectedChat
	m.mu.Unlock()
	if chatID == "" {
		return
	}
	window := m.store.Window(chatID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(window) == 0 {
		return
	}

	if m.selectedMsg == noSelection {
		m.selectedMsg = len(window) - 1
		return
	}
	next := m.selectedMsg + delta
	if next < 0 {
		next = 0
	}
	if next >= len(window) {
		next = len(window) - 1
	}
	m.selectedMsg = next
}

// SelectedMessage returns the message under the cursor, or nil when the
// cursor is unset or the window shrank underneath it.
func (m *Machine) SelectedMessage() *state.Message {
	m.mu.Lock()
	chatID, idx := m.selectedChat, m.selectedMsg
	m.mu.Unlock()
	if chatID == "" || idx == noSelection {
		return nil
	}
	window := m.store.Window(chatID)
	if idx < 0 || idx >= len(window) {
		return nil
	}
	msg := window[idx]
	return &msg
}

// StartReply snapshots the selected message as the reply target and returns
// focus to the input pane. No-op without a selected message.
func (m *Machine) StartReply() {
	msg := m.SelectedMessage()
	if msg == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyTarget = msg
	m.focus = PaneInput
}

// ClearReply leaves reply mode, typically after the reply was sent.
func (m *Machine) ClearReply() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyTarget = nil
}

// SetSearch replaces the search filter. The chat projection is recomputed by
// callers on every keystroke; a selection filtered out simply goes inert.
func (m *Machine) SetSearch(query string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.search = query
	m.chatScroll = 0
}

// ToggleMembers shows or hides the members overlay. Only group chats with
// cached metadata can show it; toggling redirects focus to or from the
// members pane.
func (m *Machine) ToggleMembers() {
	m.mu.Lock()
	chatID, visible := m.selectedChat, m.membersVisible
	m.mu.Unlock()

	if visible {
		m.mu.Lock()
		m.membersVisible = false
		m.focus = PaneChats
		m.mu.Unlock()
		return
	}

	chat, ok := m.store.Chat(chatID)
	if !ok || !chat.IsGroup || chat.GroupMeta == nil {
		return
	}
	m.mu.Lock()
	m.membersVisible = true
	m.focus = PaneMembers
	m.mu.Unlock()
}

// Escape performs exactly one dismissal per press, in priority order: clear
// reply mode, then clear search, then close the members overlay, then
// request application exit (reported via the return value).
func (m *Machine) Escape() (quit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.replyTarget != nil:
		m.replyTarget = nil
	case m.search != "":
		m.search = ""
		m.chatScroll = 0
	case m.membersVisible:
		m.membersVisible = false
		m.focus = PaneChats
	default:
		return true
	}
	return false
}
