package app

import (
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"

	"gallery-go/internal/gallery"
)

// ConsoleNotifier prints notifications, successes in green and failures in
// red. Colour is used only when the writer is a terminal and color.NoColor
// is unset.
type ConsoleNotifier struct {
	mu      sync.Mutex
	w       io.Writer
	success *color.Color
	failure *color.Color
}

// NewConsoleNotifier creates a notifier writing to w.
func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	n := &ConsoleNotifier{
		w:       w,
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed, color.Bold),
	}
	if !isTerminal(w) {
		n.success.DisableColor()
		n.failure.DisableColor()
	}
	return n
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (n *ConsoleNotifier) Notify(note gallery.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if note.Level == gallery.LevelError {
		n.failure.Fprintf(n.w, "error: %s\n", note.Message)
		return
	}
	n.success.Fprintf(n.w, "%s\n", note.Message)
}

var _ gallery.Notifier = (*ConsoleNotifier)(nil)
