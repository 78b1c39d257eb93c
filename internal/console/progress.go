// Package console renders load progress and query results for a terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"golang.org/x/term"
)

const defaultBarWidth = 40

// Progress draws a single-line progress bar that is redrawn in place on a
// terminal. On other writers it prints a line each time another tenth of the
// work completes.
type Progress struct {
	out         io.Writer
	label       string
	bar         progress.Model
	interactive bool

	mu       sync.Mutex
	lastStep int
	drawn    bool
}

// ProgressOption configures a Progress.
type ProgressOption func(*Progress)

// WithInteractive forces in-place redraws on or off.
func WithInteractive(interactive bool) ProgressOption {
	return func(p *Progress) { p.interactive = interactive }
}

// WithBarWidth sets the bar width in cells.
func WithBarWidth(width int) ProgressOption {
	return func(p *Progress) {
		if width > 0 {
			p.bar.Width = width
		}
	}
}

// NewProgress creates a Progress writing to out.
func NewProgress(out io.Writer, label string, opts ...ProgressOption) *Progress {
	p := &Progress{
		out:         out,
		label:       label,
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultBarWidth)),
		interactive: IsTerminal(out),
		lastStep:    -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Update records that done of total items are finished. It is safe for
// concurrent use.
func (p *Progress) Update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ratio := 1.0
	if total > 0 {
		ratio = float64(done) / float64(total)
	}
	ratio = min(max(ratio, 0), 1)

	if p.interactive {
		_, _ = fmt.Fprintf(p.out, "\r%s %s %d/%d", p.label, p.bar.ViewAs(ratio), done, total)
		p.drawn = true
		return
	}

	step := int(ratio * 10)
	if step == p.lastStep {
		return
	}
	p.lastStep = step
	_, _ = fmt.Fprintf(p.out, "%s %d/%d (%d%%)\n", p.label, done, total, step*10)
}

// Finish ends the in-place line so later output starts on a fresh line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.interactive && p.drawn {
		_, _ = fmt.Fprintln(p.out)
		p.drawn = false
	}
}
