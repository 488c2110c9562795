package state

// WindowSize is the per-chat message retention cap. Older messages fall out
// of memory, not out of the account history.
const WindowSize = 50

// Contact is address-book knowledge about a peer. Name comes from the local
// address book, Notify is the peer's self-reported push name. Upsert-only.
type Contact struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Notify string `json:"notify,omitempty"`
}

// Participant is a group member reference.
type Participant struct {
	ID    string `json:"id"`
	Admin bool   `json:"admin,omitempty"`
}

// GroupMeta is lazily fetched group metadata, cached on the chat and never
// proactively refreshed.
type GroupMeta struct {
	Subject      string        `json:"subject"`
	Participants []Participant `json:"participants"`
}

// ReplyRef describes the message a reply quotes.
type ReplyRef struct {
	Text        string `json:"text"`
	Participant string `json:"participant"`
}

// Message is one entry in a chat's sliding window. ID is unique within the
// chat only. Raw holds the transport payload for quoting, reacting, and
// media download; it is not persisted.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Text      string    `json:"text"`
	Kind      string    `json:"kind"`
	Timestamp int64     `json:"timestamp"`
	IsMe      bool      `json:"isMe"`
	Raw       any       `json:"-"`
	ReplyTo   *ReplyRef `json:"replyTo,omitempty"`
}

// Chat is one conversation. IsGroup is derived from the identifier suffix at
// creation and never contradicted by later updates.
type Chat struct {
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	LastMessage string     `json:"lastMessage,omitempty"`
	UnreadCount int        `json:"unreadCount"`
	IsGroup     bool       `json:"isGroup"`
	Presence    string     `json:"presence,omitempty"`
	GroupMeta   *GroupMeta `json:"groupMeta,omitempty"`
	Timestamp   int64      `json:"timestamp"`
}

// ChatDelta is a partial chat update. Zero-valued fields mean "no
// information"; pointer fields distinguish "unset" from an explicit zero.
type ChatDelta struct {
	Name        string
	LastMessage string
	UnreadCount *int
	Presence    *string
	GroupMeta   *GroupMeta
	IsGroup     bool // explicit group flag accompanying a Name update
	Timestamp   int64
}
