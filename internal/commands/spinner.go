package commands

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/geminivoice/internal/tui"
)

const (
	frameInterval = 90 * time.Millisecond
	waveWidth     = 10

	hideCursor = "\033[?25l"
	showCursor = "\033[?25h"
	clearLine  = "\r\033[K"
)

// paint renders text in a foreground color of the active theme
func paint(color lipgloss.Color, text string) string {
	return lipgloss.NewStyle().Foreground(color).Render(text)
}

// spinner draws a moving sound wave, a label and the elapsed time on one
// terminal line until it is stopped.
type spinner struct {
	out     io.Writer
	label   string
	started time.Time

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newSpinner(out io.Writer, label string) *spinner {
	return &spinner{out: out, label: label, done: make(chan struct{})}
}

func (s *spinner) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.started = time.Now()
	go s.run(ctx)
}

func (s *spinner) run(ctx context.Context) {
	defer close(s.done)

	fmt.Fprint(s.out, hideCursor)
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for n := 0; ; n++ {
		select {
		case <-ctx.Done():
			fmt.Fprint(s.out, clearLine+showCursor)
			return
		case <-ticker.C:
			fmt.Fprint(s.out, clearLine+s.frame(n))
		}
	}
}

// frame builds animation frame n
func (s *spinner) frame(n int) string {
	theme := tui.CurrentTheme()
	elapsed := time.Since(s.started).Truncate(time.Second)
	return fmt.Sprintf("%s %s %s", tui.Wave(n, waveWidth), paint(theme.Text, s.label), paint(theme.TextMute, elapsed.String()))
}

// halt ends the animation and waits for the line to be cleared. Safe to
// call more than once, and before start.
func (s *spinner) halt() {
	s.once.Do(func() {
		if s.cancel == nil {
			close(s.done)
			return
		}
		s.cancel()
	})
	<-s.done
}

// stop clears the spinner line
func (s *spinner) stop() {
	s.halt()
}

// succeed replaces the spinner line with a success message
func (s *spinner) succeed(message string) {
	s.halt()
	fmt.Fprintln(s.out, successLine(message))
}
