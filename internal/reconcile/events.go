package reconcile

import (
	"context"

	"waview/internal/state"
)

// Tagged transport event payloads. This is the closed inbound contract with
// the transport adapter: one variant per event kind, each carrying only its
// relevant fields, dispatched by type rather than structural inspection.

// EvConnected signals the session reached the connected state.
type EvConnected struct{}

// EvDisconnected signals a connection close. Terminal closes (explicit
// logout) end the session; any other close triggers a reconnect after a
// fixed backoff.
type EvDisconnected struct {
	Reason   string
	Terminal bool
}

// EvQR carries a freshly issued QR challenge. Each one replaces the previous
// challenge for display.
type EvQR struct {
	Code string
}

// EvHistory is a history snapshot batch. Progress is the transport's rough
// estimate; IsLast marks the final batch.
type EvHistory struct {
	Chats    []ChatEntry
	Contacts []state.Contact
	Progress int
	IsLast   bool
}

// EvChats is a chat set/upsert/update batch.
type EvChats struct {
	Chats []ChatEntry
}

// EvContacts is a contact set/upsert/update batch.
type EvContacts struct {
	Contacts []state.Contact
}

// EvPresence is a presence update for a single chat.
type EvPresence struct {
	ChatID   string
	Presence string
}

// EvMessages is a new-message notification batch.
type EvMessages struct {
	Messages []IncomingMessage
}

// ChatEntry is one partial chat record inside a history or chat batch.
type ChatEntry struct {
	ID          string
	Name        string
	LastMessage string
	Unread      *int
	Timestamp   int64
	IsGroup     bool
}

// IncomingMessage is one formatted message plus its sender's self-declared
// display name, when the notification carried one.
type IncomingMessage struct {
	ChatID string
	Notify string
	Msg    state.Message
}

// Transport is the outbound contract with the messaging collaborator. All
// calls are issued fire-and-forget from the event loop's perspective.
type Transport interface {
	SendText(ctx context.Context, chatID, text string, quoted *state.Message) error
	SendMedia(ctx context.Context, chatID, path string) error
	SendReaction(ctx context.Context, chatID string, msg state.Message, emoji string) error
	MarkRead(ctx context.Context, chatID string, window []state.Message) error
	GroupMetadata(ctx context.Context, chatID string) (state.GroupMeta, error)
	Download(ctx context.Context, msg state.Message) (string, error)
	Logout(ctx context.Context) error
}

// ErrNotAuthorized is returned by Transport.GroupMetadata when the account
// lacks permission to view the group; the reconciler suppresses it.
type ErrNotAuthorized struct{ ChatID string }

func (e ErrNotAuthorized) Error() string {
	return "not authorized to view group " + e.ChatID
}
