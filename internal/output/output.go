package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const defaultWidth = 80

// PrintRight right-aligns text on the current line of w. The terminal
// width is used when w is a terminal.
func PrintRight(w io.Writer, text string) {
	width := defaultWidth
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = tw
		}
	}

	padding := width - len([]rune(text))
	if padding < 0 {
		padding = 0
	}

	fmt.Fprintf(w, "\r%s%s", strings.Repeat(" ", padding), text)
}

func ProgressBar(percent int, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := (percent * width) / 100
	return fmt.Sprintf("%s%s",
		strings.Repeat("█", filled),
		strings.Repeat(" ", width-filled),
	)
}
