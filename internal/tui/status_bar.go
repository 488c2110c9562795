package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"waview/internal/status"
)

// StatusBar displays the lifecycle state, sync progress, key hints, and the
// current flash message on a single line.
type StatusBar struct {
	*tview.TextView
}

// NewStatusBar creates the status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	return &StatusBar{TextView: tv}
}

// Update re-renders the bar.
func (sb *StatusBar) Update(st status.State, progress int, syncing bool, flash string, hints []string) {
	sb.Clear()

	line := fmt.Sprintf(" [::b]%s[-:-:-]", st)
	if syncing {
		line += fmt.Sprintf(" | [green]sync %d%%[-]", progress)
	}
	if len(hints) > 0 {
		line += " | " + strings.Join(hints, " ")
	}
	line += " | " + time.Now().Format("15:04")
	if flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", tview.Escape(flash))
	}

	_, _ = fmt.Fprint(sb, line)
}
