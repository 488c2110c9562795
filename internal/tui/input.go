package tui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Input is the command/composer line at the bottom of the main page.
type Input struct {
	*tview.InputField
	onSubmit func(text string)
}

// NewInput creates the input line.
func NewInput() *Input {
	field := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)

	in := &Input{InputField: field}

	field.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && in.onSubmit != nil {
			text := in.GetText()
			if text != "" {
				in.onSubmit(text)
				in.SetText("")
			}
		}
	})

	return in
}

// SetOnSubmit sets the callback invoked on Enter with non-empty text.
func (in *Input) SetOnSubmit(fn func(text string)) {
	in.onSubmit = fn
}

// SetReplying switches the prompt to indicate reply mode.
func (in *Input) SetReplying(replying bool) {
	if replying {
		in.SetLabel(" reply > ")
		return
	}
	in.SetLabel(" > ")
}
