package tui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"waview/internal/nav"
	"waview/internal/state"
)

// ChatList is the left-hand chat table. Selection and scrolling belong to the
// navigation machine; the table only renders its page of the projection.
type ChatList struct {
	*tview.Table
}

// NewChatList creates the chat list table.
func NewChatList() *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Chats ")
	return &ChatList{Table: table}
}

// Update renders the visible page of chats. displayName resolves each chat's
// presentation name.
func (cl *ChatList) Update(chats []state.Chat, selected string, scroll int, displayName func(state.Chat) string) {
	cl.Clear()

	end := scroll + nav.PageSize
	if end > len(chats) {
		end = len(chats)
	}
	if scroll > end {
		scroll = end
	}

	for i, chat := range chats[scroll:end] {
		name := displayName(chat)
		if chat.UnreadCount > 0 {
			name = fmt.Sprintf("* %s (%d)", name, chat.UnreadCount)
		}
		if chat.Presence == "online" {
			name += " ·"
		}

		cl.SetCell(i, 0, tview.NewTableCell(" "+name).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(i, 1, tview.NewTableCell(" "+chat.LastMessage).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(i, 2, tview.NewTableCell(" "+formatTimestamp(chat.Timestamp)).SetMaxWidth(12))

		if chat.ID == selected {
			cl.Select(i, 0)
		}
	}
}

func formatTimestamp(sec int64) string {
	if sec == 0 {
		return ""
	}
	t := time.Unix(sec, 0)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
