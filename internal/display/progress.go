package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/dfu"
)

// Progress draws a single-line transfer progress bar, redrawn in place.
type Progress struct {
	mu       sync.Mutex
	out      io.Writer
	bar      progress.Model
	styles   Styles
	object   string
	lastDraw int
	active   bool
}

// NewProgress creates a progress bar writing to out.
func NewProgress(out io.Writer) *Progress {
	return &Progress{
		out: out,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
		),
		styles:   DefaultStyles(),
		lastDraw: -1,
	}
}

// Update is a dfu.ProgressFunc. It redraws only when the whole percentage
// changes or the object switches.
func (p *Progress) Update(u dfu.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	object := u.Object.String()
	pct := int(u.Percent() * 100)
	if object == p.object && pct == p.lastDraw {
		return
	}
	if object != p.object && p.active {
		fmt.Fprintln(p.out)
	}
	p.object = object
	p.lastDraw = pct
	p.active = true

	label := p.styles.Muted.Render(fmt.Sprintf("%-8s %6d/%-6d", object, u.Sent, u.Total))
	fmt.Fprintf(p.out, "\r%s %s", label, p.bar.ViewAs(u.Percent()))
}

// Done ends the progress line.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		fmt.Fprintln(p.out)
		p.active = false
	}
}
