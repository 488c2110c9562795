package reconcile

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"waview/internal/bus"
	"waview/internal/jid"
	"waview/internal/state"
	"waview/internal/status"
)

// Command is a parsed input-box action. Slash commands are part of the
// core's command surface; bare text is a send.
type Command interface{ isCommand() }

// CmdText sends text to the selected chat, quoting ReplyTo when set.
type CmdText struct{ Text string }

// CmdSearch sets the chat list filter (applied by the navigation layer).
type CmdSearch struct{ Query string }

// CmdSendFile sends a media file to the selected chat.
type CmdSendFile struct{ Path string }

// CmdAlias assigns a manual name override.
type CmdAlias struct{ ID, Name string }

// CmdUnalias removes a manual name override.
type CmdUnalias struct{ ID string }

// CmdReact sends a reaction to the selected message.
type CmdReact struct{ Emoji string }

// CmdClear clears the search filter (applied by the navigation layer).
type CmdClear struct{}

// CmdLogout terminates the session.
type CmdLogout struct{}

func (CmdText) isCommand()     {}
func (CmdSearch) isCommand()   {}
func (CmdSendFile) isCommand() {}
func (CmdAlias) isCommand()    {}
func (CmdUnalias) isCommand()  {}
func (CmdReact) isCommand()    {}
func (CmdClear) isCommand()    {}
func (CmdLogout) isCommand()   {}

// ParseCommand parses one line of input-box text. Unknown or malformed slash
// commands return an error and no command; anything not starting with "/" is
// a plain text send.
func ParseCommand(input string) (Command, error) {
	if !strings.HasPrefix(input, "/") {
		if strings.TrimSpace(input) == "" {
			return nil, fmt.Errorf("empty input")
		}
		return CmdText{Text: input}, nil
	}

	verb, rest, _ := strings.Cut(input[1:], " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "search":
		return CmdSearch{Query: rest}, nil
	case "send":
		if rest == "" {
			return nil, fmt.Errorf("usage: /send <path>")
		}
		return CmdSendFile{Path: rest}, nil
	case "alias":
		id, name, _ := strings.Cut(rest, " ")
		name = strings.TrimSpace(name)
		if id == "" || name == "" {
			return nil, fmt.Errorf("usage: /alias <id> <name>")
		}
		return CmdAlias{ID: expandID(id), Name: name}, nil
	case "unalias":
		if rest == "" {
			return nil, fmt.Errorf("usage: /unalias <id>")
		}
		return CmdUnalias{ID: expandID(rest)}, nil
	case "react":
		if rest == "" {
			return nil, fmt.Errorf("usage: /react <emoji>")
		}
		return CmdReact{Emoji: rest}, nil
	case "clear":
		return CmdClear{}, nil
	case "logout":
		return CmdLogout{}, nil
	default:
		return nil, fmt.Errorf("unknown command /%s", verb)
	}
}

// expandID turns a bare phone number into a full user identifier so that
// "/alias 15551234 Alice" matches messages arriving from the full jid.
func expandID(id string) string {
	if !strings.Contains(id, "@") {
		id += jid.UserSuffix
	}
	return jid.Normalize(id)
}

// CommandContext carries the navigation snapshot a command may act on.
type CommandContext struct {
	SelectedChat string
	ReplyTo      *state.Message
	SelectedMsg  *state.Message
	Generation   int64
}

// Dispatch executes a command against the store and the transport. Invalid
// commands surface an inline flash and mutate nothing. CmdSearch and
// CmdClear are navigation concerns and are reported unhandled.
func (r *Reconciler) Dispatch(cc CommandContext, cmd Command) (handled bool) {
	switch c := cmd.(type) {
	case CmdText:
		r.sendText(cc, c.Text)
	case CmdSendFile:
		r.sendFile(cc, c.Path)
	case CmdAlias:
		r.store.SetOverride(c.ID, c.Name)
		r.flash(fmt.Sprintf("alias set: %s = %s", jid.LocalPart(c.ID), c.Name))
		r.bus.Emit(bus.KindStateChanged, nil)
	case CmdUnalias:
		r.store.ClearOverride(c.ID)
		r.flash("alias removed: " + jid.LocalPart(c.ID))
		r.bus.Emit(bus.KindStateChanged, nil)
	case CmdReact:
		r.react(cc, c.Emoji)
	case CmdLogout:
		r.logout()
	default:
		return false
	}
	return true
}

func (r *Reconciler) sendText(cc CommandContext, text string) {
	if cc.SelectedChat == "" {
		r.flash("no chat selected")
		return
	}

	msg := state.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Kind:      "text",
		Timestamp: time.Now().Unix(),
		IsMe:      true,
	}
	if cc.ReplyTo != nil {
		msg.ReplyTo = &state.ReplyRef{Text: cc.ReplyTo.Text, Participant: cc.ReplyTo.From}
	}

	// Optimistic: show the message immediately, surface a flash on failure.
	r.store.AppendMessage(cc.SelectedChat, msg)
	r.store.UpsertChat(cc.SelectedChat, state.ChatDelta{
		LastMessage: truncate(text, previewLen),
		Timestamp:   msg.Timestamp,
	})
	r.bus.Emit(bus.KindStateChanged, nil)

	chatID, reply := cc.SelectedChat, cc.ReplyTo
	go func() {
		if err := r.transport.SendText(context.Background(), chatID, text, reply); err != nil {
			r.logger.Error("send failed", zap.String("chat", chatID), zap.Error(err))
			r.flash("send failed: " + err.Error())
		}
	}()
}

func (r *Reconciler) sendFile(cc CommandContext, path string) {
	if cc.SelectedChat == "" {
		r.flash("no chat selected")
		return
	}
	if _, err := os.Stat(path); err != nil {
		r.flash("cannot read file: " + path)
		return
	}

	chatID := cc.SelectedChat
	go func() {
		if err := r.transport.SendMedia(context.Background(), chatID, path); err != nil {
			r.logger.Error("send media failed", zap.String("chat", chatID), zap.Error(err))
			r.flash("send failed: " + err.Error())
			return
		}
		r.flash("file sent")
		r.bus.Emit(bus.KindStateChanged, nil)
	}()
}

func (r *Reconciler) react(cc CommandContext, emoji string) {
	if cc.SelectedChat == "" || cc.SelectedMsg == nil {
		r.flash("no message selected")
		return
	}

	chatID, msg := cc.SelectedChat, *cc.SelectedMsg
	go func() {
		if err := r.transport.SendReaction(context.Background(), chatID, msg, emoji); err != nil {
			r.logger.Error("reaction failed", zap.String("chat", chatID), zap.Error(err))
			r.flash("reaction failed: " + err.Error())
		}
	}()
}

func (r *Reconciler) logout() {
	r.Shutdown()
	if err := r.transport.Logout(context.Background()); err != nil {
		r.logger.Error("logout failed", zap.Error(err))
	}
	_ = r.machine.Transition(status.LoggedOut)
	r.bus.Emit(bus.KindQuit, nil)
}

// OpenLastMedia downloads the most recent media message of the selected
// chat. The download cannot be aborted; if the selection changed by the time
// it completes, the result is discarded instead of surfaced.
func (r *Reconciler) OpenLastMedia(cc CommandContext) {
	if cc.SelectedChat == "" {
		return
	}

	window := r.store.Window(cc.SelectedChat)
	var target *state.Message
	for i := len(window) - 1; i >= 0; i-- {
		if window[i].Kind != "text" && window[i].Kind != "" {
			target = &window[i]
			break
		}
	}
	if target == nil {
		r.flash("no media in this chat")
		return
	}

	msg, generation := *target, cc.Generation
	go func() {
		path, err := r.transport.Download(context.Background(), msg)
		if err != nil {
			r.logger.Warn("media download failed", zap.Error(err))
			r.flash("download failed: " + err.Error())
			return
		}
		r.mu.Lock()
		stale := r.generation != generation
		r.mu.Unlock()
		if stale {
			return
		}
		r.flash("saved " + path)
	}()
}

func (r *Reconciler) flash(msg string) {
	r.bus.Emit(bus.KindFlash, msg)
}
