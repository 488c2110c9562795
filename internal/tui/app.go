// Package tui renders the terminal interface. It is a pure projection of the
// state store plus the navigation machine: every refresh re-reads both, and
// all mutation flows through the reconciler's command surface.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"waview/internal/bus"
	"waview/internal/nav"
	"waview/internal/reconcile"
	"waview/internal/state"
	"waview/internal/status"
)

const flashDuration = 5 * time.Second

// App is the TUI application shell.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	store    *state.Store
	machine  *status.Machine
	nav      *nav.Machine
	rec      *reconcile.Reconciler
	bus      *bus.Bus
	logger   *zap.Logger
	registry *Registry
	flash    *Flash

	mainFlex  *tview.Flex
	chatList  *ChatList
	msgView   *MessageView
	members   *MembersView
	statusBar *StatusBar
	qrView    *QRView
	input     *Input

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(store *state.Store, machine *status.Machine, navM *nav.Machine, rec *reconcile.Reconciler, b *bus.Bus, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		store:     store,
		machine:   machine,
		nav:       navM,
		rec:       rec,
		bus:       b,
		logger:    logger,
		registry:  NewRegistry(),
		flash:     &Flash{},
		chatList:  NewChatList(),
		msgView:   NewMessageView(),
		members:   NewMembersView(),
		statusBar: NewStatusBar(),
		qrView:    NewQRView(),
		input:     NewInput(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.setupBindings()
	a.setupLayout()
	a.input.SetOnSubmit(a.submit)

	// The chat filter tracks a /search command keystroke by keystroke; Enter
	// only confirms what is already applied.
	a.input.SetChangedFunc(func(text string) {
		if q, ok := liveSearchQuery(text); ok {
			a.nav.SetSearch(q)
			a.render()
		}
	})

	return a
}

// liveSearchQuery extracts the query of a partially typed /search command.
func liveSearchQuery(text string) (string, bool) {
	return strings.CutPrefix(text, "/search ")
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&Action{
		Key: tcell.KeyTab, Description: "tab:focus", Visible: true,
		Handler: func() { a.nav.CycleFocus() },
	})
	a.registry.AddGlobal(&Action{
		Key: tcell.KeyBacktab,
		Handler: func() { a.nav.CycleFocusBack() },
	})

	for _, pane := range []nav.Pane{nav.PaneChats, nav.PaneMessages, nav.PaneMembers} {
		a.registry.AddPane(pane, &Action{
			Rune: 'q', Key: tcell.KeyRune, Description: "q:quit", Visible: pane == nav.PaneChats,
			Handler: func() { a.app.Stop() },
		})
		a.registry.AddPane(pane, &Action{
			Rune: 'i', Key: tcell.KeyRune,
			Handler: func() { a.nav.SetFocus(nav.PaneInput) },
		})
	}

	chatMoves := []struct {
		key   tcell.Key
		r     rune
		delta int
	}{
		{tcell.KeyDown, 0, 1},
		{tcell.KeyUp, 0, -1},
		{tcell.KeyRune, 'j', 1},
		{tcell.KeyRune, 'k', -1},
	}
	for _, mv := range chatMoves {
		delta := mv.delta
		a.registry.AddPane(nav.PaneChats, &Action{
			Key: mv.key, Rune: mv.r,
			Handler: func() { a.nav.MoveChat(delta) },
		})
		a.registry.AddPane(nav.PaneMessages, &Action{
			Key: mv.key, Rune: mv.r,
			Handler: func() { a.nav.MoveMessage(delta) },
		})
	}

	a.registry.AddPane(nav.PaneChats, &Action{
		Rune: 'm', Key: tcell.KeyRune, Description: "m:members", Visible: true,
		Handler: func() { a.nav.ToggleMembers() },
	})
	a.registry.AddPane(nav.PaneMessages, &Action{
		Rune: 'r', Key: tcell.KeyRune, Description: "r:reply", Visible: true,
		Handler: func() { a.nav.StartReply() },
	})
	a.registry.AddPane(nav.PaneMessages, &Action{
		Rune: 'o', Key: tcell.KeyRune, Description: "o:open media", Visible: true,
		Handler: func() { a.rec.OpenLastMedia(a.commandContext()) },
	})
	a.registry.AddPane(nav.PaneChats, &Action{
		Rune: 'o', Key: tcell.KeyRune,
		Handler: func() { a.rec.OpenLastMedia(a.commandContext()) },
	})
	a.registry.AddPane(nav.PaneChats, &Action{
		Key: tcell.KeyEnter,
		Handler: func() { a.nav.SetFocus(nav.PaneInput) },
	})
}

func (a *App) setupLayout() {
	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.input, 1, 0, false)

	a.mainFlex = tview.NewFlex().
		AddItem(a.chatList, 0, 1, true).
		AddItem(right, 0, 2, false).
		AddItem(a.members, 0, 0, false)

	a.pages.AddPage("main", a.mainFlex, true, true)
	a.pages.AddPage("qr", a.qrView, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyEscape {
		if a.nav.Escape() {
			a.app.Stop()
			return nil
		}
		a.render()
		return nil
	}

	// Text input gets every other key while focused, except focus cycling.
	if a.nav.Focus() == nav.PaneInput {
		if event.Key() == tcell.KeyTab || event.Key() == tcell.KeyBacktab {
			a.registry.HandleEvent(nav.PaneInput, event)
			a.render()
			return nil
		}
		return event
	}

	if a.registry.HandleEvent(a.nav.Focus(), event) {
		a.render()
		return nil
	}
	return event
}

// submit parses one input line. Navigation commands act on the nav machine;
// everything else goes through the reconciler.
func (a *App) submit(text string) {
	cmd, err := reconcile.ParseCommand(text)
	if err != nil {
		a.flash.Set(err.Error(), flashDuration)
		a.render()
		return
	}

	switch c := cmd.(type) {
	case reconcile.CmdSearch:
		a.nav.SetSearch(c.Query)
	case reconcile.CmdClear:
		a.nav.SetSearch("")
	default:
		replying := a.nav.Snapshot().ReplyTarget != nil
		a.rec.Dispatch(a.commandContext(), cmd)
		if replying {
			a.nav.ClearReply()
		}
	}
	a.render()
}

func (a *App) commandContext() reconcile.CommandContext {
	st := a.nav.Snapshot()
	return reconcile.CommandContext{
		SelectedChat: st.SelectedChat,
		ReplyTo:      st.ReplyTarget,
		SelectedMsg:  a.nav.SelectedMessage(),
		Generation:   st.Generation,
	}
}

// render re-reads the store and navigation state and redraws everything. Must
// run on the tview event loop.
func (a *App) render() {
	st := a.nav.Snapshot()
	cur := a.machine.Current()

	if qr := a.rec.QR(); qr != "" && cur == status.AwaitingQR {
		a.qrView.ShowQR(qr)
		a.pages.SwitchToPage("qr")
	} else {
		a.pages.SwitchToPage("main")
	}

	projection := a.nav.Projection()
	a.chatList.Update(projection, st.SelectedChat, st.ChatScroll, a.store.DisplayName)

	chatName := ""
	var meta *state.GroupMeta
	if chat, ok := a.store.Chat(st.SelectedChat); ok {
		chatName = a.store.DisplayName(chat)
		meta = chat.GroupMeta
	}
	window := a.store.Window(st.SelectedChat)
	a.msgView.Update(chatName, window, st.SelectedMessage, func(id string) string {
		return a.store.ResolveName(id, "", "")
	})

	if st.MembersVisible {
		a.members.Update(meta, func(id string) string {
			return a.store.ResolveName(id, "", "")
		})
	}
	a.resizeMembers(st.MembersVisible)

	a.input.SetReplying(st.ReplyTarget != nil)

	progress, syncing := a.rec.Progress()
	a.statusBar.Update(cur, progress, syncing, a.flash.Get(), a.registry.Hints(st.Focus))

	a.focusPane(st.Focus)
}

// resizeMembers shows or hides the members column. tview keeps zero-width
// flex items hidden, so toggling the proportion suffices.
func (a *App) resizeMembers(visible bool) {
	if visible {
		a.mainFlex.ResizeItem(a.members, 0, 1)
		return
	}
	a.mainFlex.ResizeItem(a.members, 0, 0)
}

func (a *App) focusPane(p nav.Pane) {
	switch p {
	case nav.PaneInput:
		a.app.SetFocus(a.input)
	case nav.PaneChats:
		a.app.SetFocus(a.chatList)
	case nav.PaneMessages:
		a.app.SetFocus(a.msgView)
	case nav.PaneMembers:
		a.app.SetFocus(a.members)
	}
}

// Run starts the TUI event loop and blocks until the application stops.
func (a *App) Run() error {
	ch, unsub := a.bus.Subscribe(bus.Everything, 128)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				switch evt.Kind {
				case bus.KindQuit:
					a.app.QueueUpdateDraw(func() {})
					a.app.Stop()
					return
				case bus.KindFlash:
					if msg, ok := evt.Payload.(string); ok {
						a.flash.Set(msg, flashDuration)
					}
					a.app.QueueUpdateDraw(a.render)
				case bus.KindStateChanged, bus.KindStatusChanged:
					a.app.QueueUpdateDraw(a.render)
				}
			case <-a.ctx.Done():
				return
			}
		}
	}()

	// Clock and flash expiry need a periodic redraw even without events.
	ticker := time.NewTicker(time.Second)
	go func() {
		for {
			select {
			case <-ticker.C:
				a.app.QueueUpdateDraw(a.render)
			case <-a.ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()

	a.render()
	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
