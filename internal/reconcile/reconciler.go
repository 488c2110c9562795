// Package reconcile turns the transport's event stream and the UI's command
// stream into state store merges and outbound transport calls. It is the
// only writer of the state store besides startup restore.
package reconcile

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"waview/internal/bus"
	"waview/internal/state"
	"waview/internal/status"
)

const (
	previewLen = 100
	// syncHoldTime keeps the completed indicator visible briefly before the
	// syncing flag clears.
	syncHoldTime = 2 * time.Second
)

// Connector is the piece of the transport that (re)establishes the session.
type Connector interface {
	Connect() error
}

// Reconciler consumes tagged transport events and UI commands, maintaining
// the state store and the lifecycle machine. Event handling is idempotent
// and replay-safe; no event is allowed to crash the loop.
type Reconciler struct {
	store     *state.Store
	machine   *status.Machine
	bus       *bus.Bus
	transport Transport
	connector Connector
	logger    *zap.Logger
	backoff   time.Duration

	mu             sync.Mutex
	qr             string
	progress       int
	syncing        bool
	fetched        map[string]bool // group metadata fetch issued, one-shot
	generation     int64           // bumped on every chat selection change
	reconnectTimer *time.Timer
	syncHoldTimer  *time.Timer
}

// New creates a reconciler. backoff is the fixed delay before an automatic
// reconnect after a non-terminal close.
func New(store *state.Store, machine *status.Machine, b *bus.Bus, transport Transport, connector Connector, backoff time.Duration, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:     store,
		machine:   machine,
		bus:       b,
		transport: transport,
		connector: connector,
		logger:    logger,
		backoff:   backoff,
		syncing:   true,
		fetched:   make(map[string]bool),
	}
}

// Run subscribes to transport events on the bus and processes them until ctx
// is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ch, unsub := r.bus.Subscribe(bus.Transport, 256)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				r.HandleEvent(evt.Payload)
			case <-ctx.Done():
				r.Shutdown()
				return
			}
		}
	}()
}

// HandleEvent dispatches one tagged transport event. Panics are contained at
// this boundary: they are logged and the loop continues with the next event.
func (r *Reconciler) HandleEvent(payload any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event handler panic", zap.Any("panic", rec))
		}
	}()

	switch ev := payload.(type) {
	case EvConnected:
		r.handleConnected()
	case EvDisconnected:
		r.handleDisconnected(ev)
	case EvQR:
		r.handleQR(ev)
	case EvHistory:
		r.handleHistory(ev)
	case EvChats:
		r.applyChats(ev.Chats)
		r.bus.Emit(bus.KindStateChanged, nil)
	case EvContacts:
		r.store.UpsertContacts(ev.Contacts)
		r.bus.Emit(bus.KindStateChanged, nil)
	case EvPresence:
		r.store.SetPresence(ev.ChatID, ev.Presence)
		r.bus.Emit(bus.KindStateChanged, nil)
	case EvMessages:
		r.handleMessages(ev)
	}
}

func (r *Reconciler) handleConnected() {
	r.mu.Lock()
	r.qr = ""
	r.mu.Unlock()

	cur := r.machine.Current()
	if cur == status.Reconnecting || cur == status.Disconnected {
		_ = r.machine.Transition(status.Connecting)
	}
	_ = r.machine.Transition(status.Connected)
	r.logger.Info("session connected")
	r.bus.Emit(bus.KindStateChanged, nil)
}

func (r *Reconciler) handleDisconnected(ev EvDisconnected) {
	if ev.Terminal {
		r.logger.Warn("session closed by logout", zap.String("reason", ev.Reason))
		r.Shutdown()
		_ = r.machine.Transition(status.LoggedOut)
		r.mu.Lock()
		r.qr = ""
		r.mu.Unlock()
		r.bus.Emit(bus.KindQuit, nil)
		return
	}

	r.logger.Warn("session closed, scheduling reconnect",
		zap.String("reason", ev.Reason),
		zap.Duration("backoff", r.backoff))
	_ = r.machine.Transition(status.Reconnecting)

	r.mu.Lock()
	if r.reconnectTimer != nil {
		r.reconnectTimer.Stop()
	}
	r.reconnectTimer = time.AfterFunc(r.backoff, func() {
		if r.machine.Terminal() {
			return
		}
		_ = r.machine.Transition(status.Connecting)
		if err := r.connector.Connect(); err != nil {
			r.logger.Error("reconnect failed", zap.Error(err))
		}
	})
	r.mu.Unlock()
	r.bus.Emit(bus.KindStateChanged, nil)
}

func (r *Reconciler) handleQR(ev EvQR) {
	if r.machine.Terminal() {
		return
	}
	_ = r.machine.Transition(status.AwaitingQR)

	// Each fresh challenge replaces the previous one for display.
	r.mu.Lock()
	r.qr = ev.Code
	r.mu.Unlock()
	r.bus.Emit(bus.KindStateChanged, nil)
}

func (r *Reconciler) handleHistory(ev EvHistory) {
	r.applyChats(ev.Chats)
	r.store.UpsertContacts(ev.Contacts)

	r.mu.Lock()
	if ev.IsLast {
		r.progress = 100
		if r.syncHoldTimer != nil {
			r.syncHoldTimer.Stop()
		}
		r.syncHoldTimer = time.AfterFunc(syncHoldTime, func() {
			r.mu.Lock()
			r.syncing = false
			r.mu.Unlock()
			r.bus.Emit(bus.KindStateChanged, nil)
		})
	} else if p := min(ev.Progress, 99); p > r.progress {
		// Monotone, capped below completion until the final batch arrives.
		r.progress = p
	}
	r.mu.Unlock()

	r.logger.Info("history batch applied",
		zap.Int("chats", len(ev.Chats)),
		zap.Int("contacts", len(ev.Contacts)),
		zap.Bool("last", ev.IsLast))
	r.bus.Emit(bus.KindStateChanged, nil)
}

func (r *Reconciler) applyChats(entries []ChatEntry) {
	for _, e := range entries {
		r.store.UpsertChat(e.ID, state.ChatDelta{
			Name:        e.Name,
			LastMessage: truncate(e.LastMessage, previewLen),
			UnreadCount: e.Unread,
			Timestamp:   e.Timestamp,
			IsGroup:     e.IsGroup,
		})
	}
}

func (r *Reconciler) handleMessages(ev EvMessages) {
	for _, im := range ev.Messages {
		// A sender-declared display name doubles as a contact notify and,
		// for first-contact chats, as the chat name.
		if im.Notify != "" && !im.Msg.IsMe {
			r.store.UpsertContacts([]state.Contact{{ID: im.Msg.From, Notify: im.Notify}})
			r.store.UpsertChat(im.ChatID, state.ChatDelta{Name: im.Notify})
		}

		r.store.AppendMessage(im.ChatID, im.Msg)
		r.store.UpsertChat(im.ChatID, state.ChatDelta{
			LastMessage: truncate(im.Msg.Text, previewLen),
			Timestamp:   im.Msg.Timestamp,
		})
		if !im.Msg.IsMe {
			r.store.IncrementUnread(im.ChatID)
		}
	}
	r.bus.Emit(bus.KindStateChanged, nil)
}

// ChatSelected reacts to a selection change in the navigation layer: mark
// the chat read (locally and on the transport) and lazily fetch group
// metadata exactly once per group. generation identifies the selection; a
// completing fetch re-checks it and discards a stale result instead of
// applying it.
func (r *Reconciler) ChatSelected(chatID string, generation int64) {
	r.mu.Lock()
	r.generation = generation
	r.mu.Unlock()

	if chatID == "" {
		return
	}

	r.store.MarkRead(chatID)
	window := r.store.Window(chatID)
	go func() {
		if err := r.transport.MarkRead(context.Background(), chatID, window); err != nil {
			r.logger.Debug("mark read failed", zap.String("chat", chatID), zap.Error(err))
		}
	}()

	chat, ok := r.store.Chat(chatID)
	if !ok || !chat.IsGroup || chat.GroupMeta != nil {
		return
	}

	r.mu.Lock()
	already := r.fetched[chat.ID]
	r.fetched[chat.ID] = true
	r.mu.Unlock()
	if already {
		return
	}

	go r.fetchGroupMeta(chat.ID, generation)
}

func (r *Reconciler) fetchGroupMeta(chatID string, generation int64) {
	meta, err := r.transport.GroupMetadata(context.Background(), chatID)
	if err != nil {
		if _, denied := err.(ErrNotAuthorized); denied {
			// Expected for groups we cannot inspect; no retry, no surfacing.
			return
		}
		r.logger.Warn("group metadata fetch failed", zap.String("chat", chatID), zap.Error(err))
		return
	}

	r.mu.Lock()
	stale := r.generation != generation
	if stale {
		// The result is tied to a selection that no longer exists. Re-arm the
		// one-shot guard so re-selecting the group fetches again.
		delete(r.fetched, chatID)
	}
	r.mu.Unlock()
	if stale {
		r.logger.Debug("discarding stale group metadata", zap.String("chat", chatID))
		return
	}

	r.store.UpsertChat(chatID, state.ChatDelta{
		Name:      meta.Subject,
		GroupMeta: &meta,
	})
	r.bus.Emit(bus.KindStateChanged, nil)
}

// Progress returns the sync-progress estimate and whether the initial sync
// indicator is still showing.
func (r *Reconciler) Progress() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress, r.syncing
}

// QR returns the QR challenge currently up for display, or empty once the
// session connected or terminally closed.
func (r *Reconciler) QR() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.qr
}

// Shutdown cancels the recurring timers so nothing fires after teardown.
func (r *Reconciler) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reconnectTimer != nil {
		r.reconnectTimer.Stop()
	}
	if r.syncHoldTimer != nil {
		r.syncHoldTimer.Stop()
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
