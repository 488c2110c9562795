package transport

import (
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"waview/internal/bus"
	"waview/internal/reconcile"
	"waview/internal/state"
)

// Handler translates whatsmeow events into the core's closed tagged event
// set and publishes them on the bus. It performs no state mutation itself;
// the reconciler subscribes independently.
type Handler struct {
	adapter *Adapter
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewHandler creates a transport event handler.
func NewHandler(adapter *Adapter, b *bus.Bus, logger *zap.Logger) *Handler {
	return &Handler{
		adapter: adapter,
		bus:     b,
		logger:  logger,
	}
}

// Handle is the whatsmeow event handler function.
func (h *Handler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.bus.Emit(bus.KindTransportMessages, reconcile.EvMessages{
			Messages: []reconcile.IncomingMessage{FormatMessage(evt)},
		})
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.Connected:
		h.bus.Emit(bus.KindTransportConnected, reconcile.EvConnected{})
		// The address book only becomes readable once connected.
		go h.adapter.PublishContacts()
	case *events.Disconnected:
		h.bus.Emit(bus.KindTransportDisconnected, reconcile.EvDisconnected{Reason: "connection closed"})
	case *events.StreamError:
		h.bus.Emit(bus.KindTransportDisconnected, reconcile.EvDisconnected{Reason: "stream error"})
	case *events.LoggedOut:
		h.bus.Emit(bus.KindTransportDisconnected, reconcile.EvDisconnected{
			Reason:   evt.Reason.String(),
			Terminal: true,
		})
	case *events.Presence:
		presence := "online"
		if evt.Unavailable {
			presence = "offline"
		}
		h.bus.Emit(bus.KindTransportPresence, reconcile.EvPresence{
			ChatID:   evt.From.String(),
			Presence: presence,
		})
	}
}

func (h *Handler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	ev := reconcile.EvHistory{
		Progress: int(data.GetProgress()),
		IsLast:   data.GetProgress() >= 100,
	}

	for _, conv := range data.GetConversations() {
		entry := reconcile.ChatEntry{
			ID:        conv.GetID(),
			Name:      conv.GetName(),
			Timestamp: int64(conv.GetConversationTimestamp()),
		}
		unread := int(conv.GetUnreadCount())
		entry.Unread = &unread
		if preview := newestPreview(conv); preview != "" {
			entry.LastMessage = preview
		}
		ev.Chats = append(ev.Chats, entry)
	}

	for _, pn := range data.GetPushnames() {
		ev.Contacts = append(ev.Contacts, state.Contact{
			ID:     pn.GetID(),
			Notify: pn.GetPushname(),
		})
	}

	h.logger.Info("history batch received",
		zap.Int("chats", len(ev.Chats)),
		zap.Int("pushnames", len(ev.Contacts)),
		zap.Int("progress", ev.Progress))
	h.bus.Emit(bus.KindTransportHistory, ev)
}

// newestPreview returns the display text of the newest message in a history
// conversation, for the chat list preview column.
func newestPreview(conv *waHistorySync.Conversation) string {
	msgs := conv.GetMessages()
	for i := len(msgs) - 1; i >= 0; i-- {
		wmsg := msgs[i].GetMessage()
		if wmsg == nil || wmsg.GetMessage() == nil {
			continue
		}
		return displayText(wmsg.GetMessage())
	}
	return ""
}
