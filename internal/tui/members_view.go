package tui

import (
	"fmt"

	"github.com/rivo/tview"

	"waview/internal/state"
)

// MembersView is the group members overlay.
type MembersView struct {
	*tview.TextView
}

// NewMembersView creates the members overlay pane.
func NewMembersView() *MembersView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true).SetTitle(" Members ")
	return &MembersView{TextView: tv}
}

// Update renders the cached participant list, admins marked with a star.
func (mv *MembersView) Update(meta *state.GroupMeta, resolveName func(id string) string) {
	mv.Clear()
	if meta == nil {
		return
	}

	for _, p := range meta.Participants {
		marker := "  "
		if p.Admin {
			marker = " *"
		}
		_, _ = fmt.Fprintf(mv, "%s %s\n", marker, tview.Escape(resolveName(p.ID)))
	}
}
