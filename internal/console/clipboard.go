package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"
)

// Clipboard receives text the operator asked to copy.
type Clipboard interface {
	Copy(text string) error
}

// OSC52 copies through the terminal's OSC 52 escape, so it works over SSH
// without a local clipboard tool. Out defaults to the controlling terminal.
type OSC52 struct {
	Out io.Writer
}

func (o OSC52) Copy(text string) error {
	seq := osc52.New(text)
	if os.Getenv("TMUX") != "" {
		seq = seq.Tmux()
	} else if strings.HasPrefix(os.Getenv("TERM"), "screen") {
		seq = seq.Screen()
	}

	out := o.Out
	if out == nil {
		tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
		if err != nil {
			return fmt.Errorf("open terminal: %w", err)
		}
		defer tty.Close()
		out = tty
	}
	_, err := seq.WriteTo(out)
	return err
}

// ClipboardFunc adapts a function, e.g. a test recorder.
type ClipboardFunc func(string) error

func (f ClipboardFunc) Copy(text string) error { return f(text) }
