package transport

import (
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"waview/internal/reconcile"
	"waview/internal/state"
)

// Raw carries the transport-level message references needed later for
// quoting, reacting, and media download. Stored on state.Message.Raw.
type Raw struct {
	Chat   types.JID
	Sender types.JID
	ID     types.MessageID
	FromMe bool
	Msg    *waE2E.Message
}

// FormatMessage normalizes a live message event into the core's shape:
// text kinds carry their text, every other kind a bracketed placeholder,
// and a quoted context becomes a reply reference.
func FormatMessage(evt *events.Message) reconcile.IncomingMessage {
	msg := evt.Message
	notify := ""
	if !evt.Info.IsFromMe {
		notify = evt.Info.PushName
	}

	return reconcile.IncomingMessage{
		ChatID: evt.Info.Chat.String(),
		Notify: notify,
		Msg: state.Message{
			ID:        evt.Info.ID,
			From:      evt.Info.Sender.String(),
			Text:      displayText(msg),
			Kind:      kindOf(msg),
			Timestamp: evt.Info.Timestamp.Unix(),
			IsMe:      evt.Info.IsFromMe,
			ReplyTo:   replyOf(msg),
			Raw: &Raw{
				Chat:   evt.Info.Chat,
				Sender: evt.Info.Sender,
				ID:     evt.Info.ID,
				FromMe: evt.Info.IsFromMe,
				Msg:    msg,
			},
		},
	}
}

// displayText returns the message body for text kinds and a bracketed
// placeholder naming the kind for everything else. The placeholder is also
// what the media-open action scans for.
func displayText(msg *waE2E.Message) string {
	if body := textBody(msg); body != "" {
		return body
	}
	return "[" + kindOf(msg) + "]"
}

func textBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

func kindOf(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return "text"
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	case msg.GetContactMessage() != nil:
		return "contact"
	case msg.GetLocationMessage() != nil:
		return "location"
	default:
		return "unknown"
	}
}

// replyOf extracts the quoted-message context, falling back to a media
// placeholder when the quote is not text.
func replyOf(msg *waE2E.Message) *state.ReplyRef {
	ext := msg.GetExtendedTextMessage()
	if ext == nil {
		return nil
	}
	ctx := ext.GetContextInfo()
	if ctx == nil || ctx.GetQuotedMessage() == nil {
		return nil
	}

	quoted := ctx.GetQuotedMessage()
	text := textBody(quoted)
	if text == "" {
		text = "[" + kindOf(quoted) + "]"
	}
	return &state.ReplyRef{
		Text:        text,
		Participant: ctx.GetParticipant(),
	}
}
