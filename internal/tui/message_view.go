package tui

import (
	"fmt"
	"strconv"

	"github.com/rivo/tview"

	"waview/internal/state"
)

// MessageView displays the sliding message window of the selected chat.
type MessageView struct {
	*tview.TextView
}

// NewMessageView creates the message pane.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")
	return &MessageView{TextView: tv}
}

// Update renders the window oldest-first. A non-negative cursor highlights
// that message and scrolls it into view; otherwise the view sticks to the
// newest message. resolveSender maps a sender identifier to a display name.
func (mv *MessageView) Update(chatName string, window []state.Message, cursor int, resolveSender func(id string) string) {
	mv.Clear()
	mv.SetTitle(fmt.Sprintf(" %s ", chatName))

	for i, m := range window {
		sender := resolveSender(m.From)
		if m.IsMe {
			sender = "You"
		}

		if m.ReplyTo != nil {
			quoted := m.ReplyTo.Text
			if m.ReplyTo.Participant != "" {
				quoted = resolveSender(m.ReplyTo.Participant) + ": " + quoted
			}
			_, _ = fmt.Fprintf(mv, "[::d]  ┃ %s[-:-:-]\n", tview.Escape(quoted))
		}

		ts := formatTimestamp(m.Timestamp)
		_, _ = fmt.Fprintf(mv, `["%d"][::b]%s[-:-:-] [::d]%s[-:-:-]`+"\n%s\n\n",
			i, tview.Escape(sender), ts, tview.Escape(m.Text))
	}

	if cursor >= 0 && cursor < len(window) {
		mv.Highlight(strconv.Itoa(cursor))
		mv.ScrollToHighlight()
		return
	}
	mv.Highlight()
	mv.ScrollToEnd()
}
