package reconcile

import (
	"testing"
	"time"

	"waview/internal/bus"
	"waview/internal/state"
	"waview/internal/status"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in   string
		want Command
	}{
		{"hello there", CmdText{Text: "hello there"}},
		{"/search ali ce", CmdSearch{Query: "ali ce"}},
		{"/search", CmdSearch{Query: ""}},
		{"/send /tmp/pic.jpg", CmdSendFile{Path: "/tmp/pic.jpg"}},
		{"/alias 15551234 Alice B", CmdAlias{ID: "15551234@s.whatsapp.net", Name: "Alice B"}},
		{"/unalias 15551234@c.us", CmdUnalias{ID: "15551234@s.whatsapp.net"}},
		{"/react \U0001F44D", CmdReact{Emoji: "\U0001F44D"}},
		{"/clear", CmdClear{}},
		{"/logout", CmdLogout{}},
	}
	for _, c := range cases {
		got, err := ParseCommand(c.in)
		if err != nil {
			t.Errorf("ParseCommand(%q) error = %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseCommand(%q) = %#v, want %#v", c.in, got, c.want)
		}
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, in := range []string{"/bogus", "/send", "/alias onlyid", "/unalias", "/react", "", "   "} {
		if cmd, err := ParseCommand(in); err == nil {
			t.Errorf("ParseCommand(%q) = %#v, want error", in, cmd)
		}
	}
}

func TestDispatchAliasThenResolve(t *testing.T) {
	r, s, _, _, _ := testReconciler(t)

	cmd, err := ParseCommand("/alias 15551234 Alice")
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}
	if !r.Dispatch(CommandContext{}, cmd) {
		t.Fatal("Dispatch(alias) not handled")
	}

	// A message later arrives from the full jid; the alias must win over any
	// contact data.
	r.HandleEvent(EvMessages{Messages: []IncomingMessage{{
		ChatID: "15551234@s.whatsapp.net",
		Notify: "someone else",
		Msg:    state.Message{ID: "m1", From: "15551234@s.whatsapp.net", Text: "hi", Kind: "text", Timestamp: 100},
	}}})

	if got := s.ResolveName("15551234@s.whatsapp.net", "", ""); got != "Alice" {
		t.Errorf("resolved name = %q, want alias %q", got, "Alice")
	}

	unalias, _ := ParseCommand("/unalias 15551234")
	r.Dispatch(CommandContext{}, unalias)
	if got := s.ResolveName("15551234@s.whatsapp.net", "", ""); got == "Alice" {
		t.Error("alias still resolves after /unalias")
	}
}

func TestDispatchTextOptimisticAppend(t *testing.T) {
	r, s, _, _, ft := testReconciler(t)
	s.UpsertChat("1555@s.whatsapp.net", state.ChatDelta{})

	r.Dispatch(CommandContext{SelectedChat: "1555@s.whatsapp.net"}, CmdText{Text: "hi there"})

	w := s.Window("1555@s.whatsapp.net")
	if len(w) != 1 || !w[0].IsMe || w[0].Text != "hi there" {
		t.Fatalf("window = %+v, want one optimistic own message", w)
	}
	if w[0].ID == "" {
		t.Error("optimistic message has no client id")
	}
	c, _ := s.Chat("1555@s.whatsapp.net")
	if c.LastMessage != "hi there" {
		t.Errorf("LastMessage = %q, want preview updated", c.LastMessage)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		ft.mu.Lock()
		n := len(ft.sentTexts)
		ft.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("transport send was never issued")
}

func TestDispatchTextCarriesReply(t *testing.T) {
	r, s, _, _, _ := testReconciler(t)
	s.UpsertChat("1555@s.whatsapp.net", state.ChatDelta{})
	quoted := &state.Message{ID: "m0", From: "1555@s.whatsapp.net", Text: "original"}

	r.Dispatch(CommandContext{SelectedChat: "1555@s.whatsapp.net", ReplyTo: quoted}, CmdText{Text: "answer"})

	w := s.Window("1555@s.whatsapp.net")
	if len(w) != 1 || w[0].ReplyTo == nil {
		t.Fatalf("window = %+v, want message with reply context", w)
	}
	if w[0].ReplyTo.Text != "original" || w[0].ReplyTo.Participant != "1555@s.whatsapp.net" {
		t.Errorf("ReplyTo = %+v, want quoted text and participant", w[0].ReplyTo)
	}
}

func TestDispatchTextWithoutChatFlashes(t *testing.T) {
	r, s, _, b, _ := testReconciler(t)
	flashCh, unsub := b.Subscribe(bus.KindFlash, 1)
	defer unsub()

	r.Dispatch(CommandContext{}, CmdText{Text: "hi"})

	select {
	case <-flashCh:
	case <-time.After(time.Second):
		t.Fatal("no inline error for send without a selected chat")
	}
	if len(s.Chats("")) != 0 {
		t.Error("failed command mutated state")
	}
}

func TestDispatchSendMissingFileFlashes(t *testing.T) {
	r, s, _, b, _ := testReconciler(t)
	s.UpsertChat("1555@s.whatsapp.net", state.ChatDelta{})
	flashCh, unsub := b.Subscribe(bus.KindFlash, 1)
	defer unsub()

	r.Dispatch(CommandContext{SelectedChat: "1555@s.whatsapp.net"},
		CmdSendFile{Path: "/definitely/not/here.png"})

	select {
	case <-flashCh:
	case <-time.After(time.Second):
		t.Fatal("no inline error for missing file")
	}
}

func TestDispatchLogoutIsTerminal(t *testing.T) {
	r, _, m, b, _ := testReconciler(t)
	quitCh, unsub := b.Subscribe(bus.KindQuit, 1)
	defer unsub()

	r.Dispatch(CommandContext{}, CmdLogout{})

	if m.Current() != status.LoggedOut {
		t.Errorf("state = %s, want LOGGED_OUT", m.Current())
	}
	select {
	case <-quitCh:
	case <-time.After(time.Second):
		t.Fatal("no quit event after /logout")
	}
}

func TestDispatchLeavesNavCommandsUnhandled(t *testing.T) {
	r, _, _, _, _ := testReconciler(t)

	if r.Dispatch(CommandContext{}, CmdSearch{Query: "x"}) {
		t.Error("Dispatch(search) handled = true, want navigation to own it")
	}
	if r.Dispatch(CommandContext{}, CmdClear{}) {
		t.Error("Dispatch(clear) handled = true, want navigation to own it")
	}
}

func TestOpenLastMediaFindsPlaceholder(t *testing.T) {
	r, s, _, _, ft := testReconciler(t)
	ft.downloadRes = "/tmp/waview-media-1.jpg"
	s.AppendMessage("1555@s.whatsapp.net", state.Message{ID: "m1", Text: "hi", Kind: "text"})
	s.AppendMessage("1555@s.whatsapp.net", state.Message{ID: "m2", Text: "[image]", Kind: "image"})
	s.AppendMessage("1555@s.whatsapp.net", state.Message{ID: "m3", Text: "bye", Kind: "text"})

	r.OpenLastMedia(CommandContext{SelectedChat: "1555@s.whatsapp.net", Generation: 1})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		ft.mu.Lock()
		n := ft.downloads
		ft.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("media download was never issued")
}

func TestOpenLastMediaNoMediaFlashes(t *testing.T) {
	r, s, _, b, _ := testReconciler(t)
	s.AppendMessage("1555@s.whatsapp.net", state.Message{ID: "m1", Text: "hi", Kind: "text"})
	flashCh, unsub := b.Subscribe(bus.KindFlash, 1)
	defer unsub()

	r.OpenLastMedia(CommandContext{SelectedChat: "1555@s.whatsapp.net"})

	select {
	case <-flashCh:
	case <-time.After(time.Second):
		t.Fatal("no flash for chat without media")
	}
}
