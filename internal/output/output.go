package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const defaultWidth = 80

// PrintRight rewrites the current terminal line with text aligned to the
// right edge of the terminal.
func PrintRight(w io.Writer, text string) {
	width := defaultWidth
	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = cols
		}
	}

	fmt.Fprintf(w, "\r%s%s", strings.Repeat(" ", max(width-len(text), 0)), text)
}

// ProgressBar renders percent (clamped to [0, 100]) as a bar of the given width.
func ProgressBar(percent int, width int) string {
	percent = min(max(percent, 0), 100)
	filled := (percent * width) / 100

	return strings.Repeat("█", filled) + strings.Repeat(" ", width-filled)
}
