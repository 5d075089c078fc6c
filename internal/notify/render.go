package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Renderer draws a toast.
type Renderer interface {
	Render(t Toast) error
}

// Sound plays the notification sound.
type Sound interface {
	Play()
}

// Discard drops toasts and sounds.
type Discard struct{}

func (Discard) Render(Toast) error { return nil }
func (Discard) Play()              {}

// Terminal prints toasts as coloured lines.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer

	title *color.Color
	link  *color.Color
	stamp *color.Color
}

// NewTerminal writes to w. noColor forces plain output.
func NewTerminal(w io.Writer, noColor bool) *Terminal {
	t := &Terminal{
		w:     w,
		title: color.New(color.FgHiCyan, color.Bold),
		link:  color.New(color.FgBlue, color.Underline),
		stamp: color.New(color.FgGreen),
	}
	if noColor {
		t.title.DisableColor()
		t.link.DisableColor()
		t.stamp.DisableColor()
	}
	return t
}

func (t *Terminal) Render(toast Toast) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	line := t.stamp.Sprint(toast.At.Format("15:04:05")) + " " + t.title.Sprint(toast.Title)
	if toast.Body != "" {
		line += " " + toast.Body
	}
	if toast.Link != "" {
		line += " " + t.link.Sprint(toast.Link)
	}
	_, err := fmt.Fprintln(t.w, line)
	return err
}

// Bell rings the terminal bell.
type Bell struct {
	W io.Writer
}

func (b Bell) Play() {
	_, _ = io.WriteString(b.W, "\a")
}
