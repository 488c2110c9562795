// Package transport wraps the whatsmeow client: session storage, connect
// and QR pairing, and the outbound actions the core issues. Everything
// protocol-level stays behind this package; the rest of the program sees
// only the tagged event set and the Transport interface.
package transport

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"

	"waview/internal/bus"
	"waview/internal/reconcile"
	"waview/internal/state"
)

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
// It implements reconcile.Transport and reconcile.Connector.
type Adapter struct {
	client      *whatsmeow.Client
	container   *sqlstore.Container
	bus         *bus.Bus
	logger      *zap.Logger
	downloadDir string
}

// NewAdapter creates an adapter backed by the session database at dbPath.
// Downloaded media lands in downloadDir; empty means the system temp dir.
func NewAdapter(ctx context.Context, dbPath, downloadDir string, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("waview", [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	return &Adapter{
		client:      whatsmeow.NewClient(deviceStore, nil),
		container:   container,
		bus:         b,
		logger:      logger,
		downloadDir: downloadDir,
	}, nil
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Connect initiates the connection. Without credentials it first starts the
// QR pairing flow, publishing each fresh challenge until paired.
func (a *Adapter) Connect() error {
	if !a.IsLoggedIn() {
		ch, err := a.client.GetQRChannel(context.Background())
		if err != nil {
			return fmt.Errorf("get QR channel: %w", err)
		}
		go func() {
			for item := range ch {
				switch item.Event {
				case "code":
					a.bus.Emit(bus.KindTransportQR, reconcile.EvQR{Code: item.Code})
				case "timeout":
					a.bus.Emit(bus.KindTransportDisconnected, reconcile.EvDisconnected{Reason: "qr timeout"})
				}
			}
		}()
	}

	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect terminates the connection without invalidating credentials.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// PublishContacts reads the device store address book and publishes it as a
// contact set event.
func (a *Adapter) PublishContacts() {
	ctx := context.Background()
	all, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.logger.Warn("failed to read device store contacts", zap.Error(err))
		return
	}

	contacts := make([]state.Contact, 0, len(all))
	for j, info := range all {
		contacts = append(contacts, state.Contact{
			ID:     j.ToNonAD().String(),
			Name:   info.FullName,
			Notify: info.PushName,
		})
	}
	a.bus.Emit(bus.KindTransportContacts, reconcile.EvContacts{Contacts: contacts})
}

// SendText sends a text message, quoting another message when quoted is set.
func (a *Adapter) SendText(ctx context.Context, chatID, text string, quoted *state.Message) error {
	to, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("parse JID: %w", err)
	}

	var msg *waE2E.Message
	if quoted != nil {
		msg = &waE2E.Message{
			ExtendedTextMessage: &waE2E.ExtendedTextMessage{
				Text:        proto.String(text),
				ContextInfo: quoteContext(quoted),
			},
		}
	} else {
		msg = &waE2E.Message{Conversation: proto.String(text)}
	}

	if _, err := a.client.SendMessage(ctx, to, msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// quoteContext builds the quoted-message context for a reply, preferring the
// transport payload kept on the message and degrading to its display text.
func quoteContext(quoted *state.Message) *waE2E.ContextInfo {
	info := &waE2E.ContextInfo{
		StanzaID:    proto.String(quoted.ID),
		Participant: proto.String(quoted.From),
	}
	if raw, ok := quoted.Raw.(*Raw); ok && raw.Msg != nil {
		info.StanzaID = proto.String(string(raw.ID))
		info.Participant = proto.String(raw.Sender.String())
		info.QuotedMessage = raw.Msg
	} else {
		info.QuotedMessage = &waE2E.Message{Conversation: proto.String(quoted.Text)}
	}
	return info
}

// SendMedia uploads a file and sends it, choosing the message kind from the
// file's MIME type.
func (a *Adapter) SendMedia(ctx context.Context, chatID, path string) error {
	to, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("parse JID: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	var msg *waE2E.Message
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		up, err := a.client.Upload(ctx, data, whatsmeow.MediaImage)
		if err != nil {
			return fmt.Errorf("upload image: %w", err)
		}
		msg = &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(mimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}
	case strings.HasPrefix(mimeType, "video/"):
		up, err := a.client.Upload(ctx, data, whatsmeow.MediaVideo)
		if err != nil {
			return fmt.Errorf("upload video: %w", err)
		}
		msg = &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(mimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}
	default:
		up, err := a.client.Upload(ctx, data, whatsmeow.MediaDocument)
		if err != nil {
			return fmt.Errorf("upload document: %w", err)
		}
		msg = &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(mimeType),
			FileName:      proto.String(filepath.Base(path)),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		}}
	}

	if _, err := a.client.SendMessage(ctx, to, msg); err != nil {
		return fmt.Errorf("send media: %w", err)
	}
	return nil
}

// SendReaction reacts to a message with an emoji.
func (a *Adapter) SendReaction(ctx context.Context, chatID string, msg state.Message, emoji string) error {
	raw, ok := msg.Raw.(*Raw)
	if !ok {
		return fmt.Errorf("message has no transport payload")
	}
	reaction := a.client.BuildReaction(raw.Chat, raw.Sender, raw.ID, emoji)
	if _, err := a.client.SendMessage(ctx, raw.Chat, reaction); err != nil {
		return fmt.Errorf("send reaction: %w", err)
	}
	return nil
}

// MarkRead sends read receipts for the unread inbound messages of a chat.
func (a *Adapter) MarkRead(ctx context.Context, chatID string, window []state.Message) error {
	to, err := types.ParseJID(chatID)
	if err != nil {
		return fmt.Errorf("parse JID: %w", err)
	}

	var ids []types.MessageID
	sender := to
	for _, m := range window {
		raw, ok := m.Raw.(*Raw)
		if !ok || raw.FromMe {
			continue
		}
		ids = append(ids, raw.ID)
		sender = raw.Sender
	}
	if len(ids) == 0 {
		return nil
	}

	if err := a.client.MarkRead(ctx, ids, time.Now(), to, sender); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// GroupMetadata fetches group info once for the given chat. Permission
// failures are reported as reconcile.ErrNotAuthorized so the reconciler can
// suppress them.
func (a *Adapter) GroupMetadata(ctx context.Context, chatID string) (state.GroupMeta, error) {
	to, err := types.ParseJID(chatID)
	if err != nil {
		return state.GroupMeta{}, fmt.Errorf("parse JID: %w", err)
	}

	info, err := a.client.GetGroupInfo(ctx, to)
	if err != nil {
		if errors.Is(err, whatsmeow.ErrNotInGroup) || strings.Contains(err.Error(), "not-authorized") {
			return state.GroupMeta{}, reconcile.ErrNotAuthorized{ChatID: chatID}
		}
		return state.GroupMeta{}, fmt.Errorf("get group info: %w", err)
	}

	meta := state.GroupMeta{Subject: info.Name}
	for _, p := range info.Participants {
		meta.Participants = append(meta.Participants, state.Participant{
			ID:    p.JID.ToNonAD().String(),
			Admin: p.IsAdmin || p.IsSuperAdmin,
		})
	}
	return meta, nil
}

// Download fetches a media message's payload into a temp file and returns
// its path.
func (a *Adapter) Download(ctx context.Context, msg state.Message) (string, error) {
	raw, ok := msg.Raw.(*Raw)
	if !ok || raw.Msg == nil {
		return "", fmt.Errorf("message has no transport payload")
	}

	data, err := a.client.DownloadAny(ctx, raw.Msg)
	if err != nil {
		return "", fmt.Errorf("download media: %w", err)
	}

	dir := a.downloadDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "waview-"+uuid.NewString()+extFor(msg.Kind))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	return path, nil
}

func extFor(kind string) string {
	switch kind {
	case "image", "sticker":
		return ".jpg"
	case "video":
		return ".mp4"
	case "audio":
		return ".ogg"
	default:
		return ".bin"
	}
}
