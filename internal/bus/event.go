package bus

import (
	"strings"
	"time"
)

// Kind identifies an event. Kinds are dot-namespaced so a subscriber can
// match one kind, a whole family, or everything.
type Kind string

// Namespaces subscribers commonly filter by.
const (
	Everything Kind = ""
	Transport  Kind = "transport."
)

const (
	KindTransportConnected    Kind = "transport.connected"
	KindTransportDisconnected Kind = "transport.disconnected"
	KindTransportQR           Kind = "transport.qr"
	KindTransportHistory      Kind = "transport.history"
	KindTransportChats        Kind = "transport.chats"
	KindTransportContacts     Kind = "transport.contacts"
	KindTransportPresence     Kind = "transport.presence"
	KindTransportMessages     Kind = "transport.messages"

	KindStateChanged  Kind = "state.changed"
	KindStatusChanged Kind = "status.changed"
	KindFlash         Kind = "ui.flash"
	KindQuit          Kind = "ui.quit"
)

// In reports whether the kind belongs to the given namespace.
func (k Kind) In(ns Kind) bool {
	return strings.HasPrefix(string(k), string(ns))
}

// Event is a domain event carried on the bus.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Payload   any
}
