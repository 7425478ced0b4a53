// Package console writes single-line progress output to terminals.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// clearLine erases the current terminal line and returns the cursor.
const clearLine = "\033[2K\r"

// Writer rewrites the current line on terminals and stays silent for
// transient updates elsewhere so logs and pipes are not flooded.
type Writer struct {
	mu    sync.Mutex
	out   io.Writer
	isTTY bool
}

// NewWriter wraps out. TTY detection only applies to *os.File writers.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out, isTTY: IsTerminal(out)}
}

// IsTerminal reports whether w is a terminal (including Cygwin/MSYS terminals).
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsTTY reports whether the writer rewrites lines in place.
func (w *Writer) IsTTY() bool {
	return w.isTTY
}

// Write replaces the current line with msg. It is a no-op on non-terminals.
func (w *Writer) Write(msg string) error {
	if !w.isTTY {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := io.WriteString(w.out, clearLine+msg)
	return err
}

// WriteLine writes msg as a full line. With keep the current line is
// preserved and msg starts below it; otherwise msg replaces it.
func (w *Writer) WriteLine(msg string, keep bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	switch {
	case keep:
		_, err = io.WriteString(w.out, "\n"+msg+"\n")
	case w.isTTY:
		_, err = io.WriteString(w.out, clearLine+msg+"\n")
	default:
		_, err = io.WriteString(w.out, msg+"\n")
	}
	return err
}

// DefaultBarStyle is left edge, fill, head, empty, right edge.
const DefaultBarStyle = "|=> |"

// ProgressBar renders a fixed width text progress bar.
type ProgressBar struct {
	// Percent is the completed fraction in [0, 1].
	Percent float64

	// Width is the number of cells between the edges.
	Width int

	// Style holds exactly five runes: left edge, fill, head, empty, right edge.
	Style string
}

// NewProgressBar returns an empty bar of width 10 in DefaultBarStyle.
func NewProgressBar() *ProgressBar {
	return &ProgressBar{Width: 10, Style: DefaultBarStyle}
}

// Render returns the bar text. The head is drawn until the bar is full.
func (p *ProgressBar) Render() (string, error) {
	if p.Percent < 0 || p.Percent > 1 {
		return "", fmt.Errorf("invalid progress bar percent %v: must be within [0, 1]", p.Percent)
	}
	if p.Width < 0 {
		return "", fmt.Errorf("invalid progress bar width %d: must not be negative", p.Width)
	}
	style := []rune(p.Style)
	if len(style) != 5 {
		return "", fmt.Errorf("invalid progress bar style %q: need 5 characters", p.Style)
	}

	filled := int(float64(p.Width) * p.Percent)

	var b strings.Builder
	b.WriteRune(style[0])
	b.WriteString(strings.Repeat(string(style[1]), filled))
	if filled != p.Width {
		b.WriteRune(style[2])
		b.WriteString(strings.Repeat(string(style[3]), p.Width-filled-1))
	}
	b.WriteRune(style[4])
	return b.String(), nil
}

// String renders the bar, or an empty string when it is invalid.
func (p *ProgressBar) String() string {
	s, err := p.Render()
	if err != nil {
		return ""
	}
	return s
}
