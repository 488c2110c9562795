package nav

import (
	"fmt"
	"testing"

	"waview/internal/state"
)

func seededStore(n int) *state.Store {
	s := state.New()
	for i := 0; i < n; i++ {
		s.UpsertChat(fmt.Sprintf("c%02d@s.whatsapp.net", i), state.ChatDelta{
			Timestamp: int64(1000 - i), // c00 newest, presented first
		})
	}
	return s
}

func TestMoveChatOnEmptyListIsNoop(t *testing.T) {
	m := New(state.New(), nil)

	m.MoveChat(1)
	m.MoveChat(-1)

	if got := m.Snapshot().SelectedChat; got != "" {
		t.Errorf("SelectedChat = %q, want none", got)
	}
}

func TestMoveChatSelectsFirstThenClamps(t *testing.T) {
	m := New(seededStore(3), nil)

	m.MoveChat(1)
	if got := m.Snapshot().SelectedChat; got != "c00@s.whatsapp.net" {
		t.Errorf("first move selected %q, want c00", got)
	}

	m.MoveChat(-1)
	if got := m.Snapshot().SelectedChat; got != "c00@s.whatsapp.net" {
		t.Errorf("move before first changed selection to %q, want no-op", got)
	}

	m.MoveChat(1)
	m.MoveChat(1)
	m.MoveChat(1) // past the last entry
	if got := m.Snapshot().SelectedChat; got != "c02@s.whatsapp.net" {
		t.Errorf("SelectedChat = %q, want clamped at c02", got)
	}
}

func TestMoveChatAdjustsScrollAcrossPage(t *testing.T) {
	m := New(seededStore(PageSize+5), nil)

	for i := 0; i <= PageSize; i++ {
		m.MoveChat(1)
	}
	st := m.Snapshot()
	if st.ChatScroll != 1 {
		t.Errorf("ChatScroll = %d, want 1 after crossing the page", st.ChatScroll)
	}

	for i := 0; i <= PageSize; i++ {
		m.MoveChat(-1)
	}
	if got := m.Snapshot().ChatScroll; got != 0 {
		t.Errorf("ChatScroll = %d, want 0 after returning to top", got)
	}
}

func TestSelectionChangeSideEffectsFireOnce(t *testing.T) {
	var calls []string
	var generations []int64
	m := New(seededStore(3), func(chatID string, gen int64) {
		calls = append(calls, chatID)
		generations = append(generations, gen)
	})

	m.MoveChat(1)
	m.MoveChat(0) // same selection, no side effects
	m.MoveChat(1)

	if len(calls) != 2 {
		t.Fatalf("onSelect calls = %d, want 2", len(calls))
	}
	if calls[0] != "c00@s.whatsapp.net" || calls[1] != "c01@s.whatsapp.net" {
		t.Errorf("onSelect chats = %v", calls)
	}
	if generations[1] != generations[0]+1 {
		t.Errorf("generations = %v, want monotone increments", generations)
	}
}

func TestSwitchingChatResetsMessageCursorAndReply(t *testing.T) {
	s := seededStore(2)
	s.AppendMessage("c00@s.whatsapp.net", state.Message{ID: "m1", Text: "hi"})
	m := New(s, nil)

	m.MoveChat(1)
	m.MoveMessage(-1)
	m.StartReply()
	if st := m.Snapshot(); st.ReplyTarget == nil || st.SelectedMessage != 0 {
		t.Fatalf("setup failed: %+v", st)
	}

	m.MoveChat(1)
	st := m.Snapshot()
	if st.SelectedMessage != -1 {
		t.Errorf("SelectedMessage = %d, want -1 after chat switch", st.SelectedMessage)
	}
	if st.ReplyTarget != nil {
		t.Error("ReplyTarget survived chat switch")
	}
}

func TestMoveMessageFirstPressSelectsNewest(t *testing.T) {
	s := seededStore(1)
	for i := 0; i < 5; i++ {
		s.AppendMessage("c00@s.whatsapp.net", state.Message{ID: fmt.Sprintf("m%d", i)})
	}
	m := New(s, nil)
	m.MoveChat(1)

	m.MoveMessage(-1) // direction of the first press is irrelevant
	if got := m.Snapshot().SelectedMessage; got != 4 {
		t.Errorf("SelectedMessage = %d, want newest index 4", got)
	}

	m.MoveMessage(-1)
	m.MoveMessage(-1)
	if got := m.Snapshot().SelectedMessage; got != 2 {
		t.Errorf("SelectedMessage = %d, want 2", got)
	}

	for i := 0; i < 10; i++ {
		m.MoveMessage(1)
	}
	if got := m.Snapshot().SelectedMessage; got != 4 {
		t.Errorf("SelectedMessage = %d, want clamped at 4", got)
	}
}

func TestMoveMessageEmptyWindowIsNoop(t *testing.T) {
	m := New(seededStore(1), nil)
	m.MoveChat(1)

	m.MoveMessage(-1)
	if got := m.Snapshot().SelectedMessage; got != -1 {
		t.Errorf("SelectedMessage = %d, want -1 on empty window", got)
	}
}

func TestStartReplyFocusesInput(t *testing.T) {
	s := seededStore(1)
	s.AppendMessage("c00@s.whatsapp.net", state.Message{ID: "m1", Text: "quote me"})
	m := New(s, nil)
	m.MoveChat(1)
	m.MoveMessage(-1)

	m.StartReply()

	st := m.Snapshot()
	if st.ReplyTarget == nil || st.ReplyTarget.Text != "quote me" {
		t.Fatalf("ReplyTarget = %+v, want the selected message", st.ReplyTarget)
	}
	if st.Focus != PaneInput {
		t.Errorf("Focus = %v, want input pane", st.Focus)
	}
}

func TestClearReplyLeavesReplyMode(t *testing.T) {
	s := seededStore(1)
	s.AppendMessage("c00@s.whatsapp.net", state.Message{ID: "m1", Text: "hi"})
	m := New(s, nil)
	m.MoveChat(1)
	m.MoveMessage(-1)
	m.StartReply()

	m.ClearReply()

	if m.Snapshot().ReplyTarget != nil {
		t.Error("ReplyTarget survived ClearReply")
	}
}

func TestEscapePriorityChain(t *testing.T) {
	s := seededStore(1)
	s.UpsertChat("g@g.us", state.ChatDelta{
		GroupMeta: &state.GroupMeta{Subject: "G", Participants: []state.Participant{{ID: "p@s.whatsapp.net"}}},
		Timestamp: 1,
	})
	s.AppendMessage("c00@s.whatsapp.net", state.Message{ID: "m1"})
	m := New(s, nil)
	m.MoveChat(1) // selects c00 (newest)
	m.MoveMessage(-1)
	m.StartReply()
	m.SetSearch("c")

	// Select the group and show members, then re-arm reply and search on top.
	if quit := m.Escape(); quit {
		t.Fatal("escape with reply armed requested quit")
	}
	if m.Snapshot().ReplyTarget != nil {
		t.Fatal("first escape did not clear reply")
	}

	if m.Escape() {
		t.Fatal("escape with search set requested quit")
	}
	if got := m.Snapshot().Search; got != "" {
		t.Fatalf("second escape left search = %q", got)
	}

	// Move to the group chat and open members.
	for i := 0; i < 3; i++ {
		m.MoveChat(1)
	}
	m.ToggleMembers()
	if !m.Snapshot().MembersVisible {
		t.Fatal("members overlay did not open for group with metadata")
	}
	if m.Escape() {
		t.Fatal("escape with members visible requested quit")
	}
	if m.Snapshot().MembersVisible {
		t.Fatal("third escape did not close members")
	}

	if !m.Escape() {
		t.Error("final escape did not request quit")
	}
}

func TestToggleMembersRequiresGroupWithMetadata(t *testing.T) {
	s := seededStore(1)
	s.UpsertChat("g@g.us", state.ChatDelta{Timestamp: 1}) // group, no metadata
	m := New(s, nil)
	m.MoveChat(1) // individual chat

	m.ToggleMembers()
	if m.Snapshot().MembersVisible {
		t.Error("members overlay opened for an individual chat")
	}

	m.MoveChat(1) // the group, still without metadata
	m.ToggleMembers()
	if m.Snapshot().MembersVisible {
		t.Error("members overlay opened without cached metadata")
	}
}

func TestCycleFocusSkipsHiddenMembers(t *testing.T) {
	m := New(seededStore(1), nil)

	seen := map[Pane]bool{}
	for i := 0; i < 4; i++ {
		seen[m.Focus()] = true
		m.CycleFocus()
	}
	if seen[PaneMembers] {
		t.Error("focus cycle visited hidden members pane")
	}
}

func TestSearchFiltersProjection(t *testing.T) {
	s := state.New()
	s.UpsertChat("1@s.whatsapp.net", state.ChatDelta{Timestamp: 2})
	s.UpsertChat("2@s.whatsapp.net", state.ChatDelta{Timestamp: 1})
	s.UpsertContacts([]state.Contact{{ID: "1@s.whatsapp.net", Name: "Alice"}})
	m := New(s, nil)

	m.SetSearch("ALI")
	got := m.Projection()
	if len(got) != 1 || got[0].ID != "1@s.whatsapp.net" {
		t.Errorf("projection = %+v, want case-insensitive match on Alice only", got)
	}

	m.SetSearch("")
	if len(m.Projection()) != 2 {
		t.Error("empty query should match all")
	}
}

func TestSelectedMessageToleratesMissingChat(t *testing.T) {
	m := New(state.New(), nil)
	if msg := m.SelectedMessage(); msg != nil {
		t.Errorf("SelectedMessage() = %+v, want nil with no selection", msg)
	}
}
