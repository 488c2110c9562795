package tui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
	qrcode "github.com/skip2/go-qrcode"
)

// QRView displays the pairing QR challenge.
type QRView struct {
	*tview.TextView
}

// NewQRView creates the QR pane.
func NewQRView() *QRView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true).SetTitle(" Link Device ")
	return &QRView{TextView: tv}
}

// ShowQR renders a QR challenge as a scannable block. Each call replaces the
// previous challenge.
func (qv *QRView) ShowQR(content string) {
	qv.Clear()
	_, _ = fmt.Fprintf(qv, "\n  Scan this QR code with WhatsApp:\n\n%s\n  [::d]Waiting for authentication...", renderQR(content))
}

// ShowMessage displays a status message instead of a code.
func (qv *QRView) ShowMessage(msg string) {
	qv.Clear()
	_, _ = fmt.Fprintf(qv, "\n\n%s", msg)
}

// renderQR converts a string to a compact QR code using Unicode half-block
// characters, two modules per terminal row.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := 0; x < cols; x++ {
			top := bitmap[y][x]
			bot := false
			if y+1 < rows {
				bot = bitmap[y+1][x]
			}
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top && !bot:
				sb.WriteRune('▀')
			case !top && bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
