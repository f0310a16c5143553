package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// SpinnerState represents the current state of a spinner.
type SpinnerState int

const (
	SpinnerPending SpinnerState = iota
	SpinnerInProgress
	SpinnerSuccess
	SpinnerFailed
	SpinnerSkipped
)

// Spinner animation frames, a braille scan pattern.
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Spinner displays an animated status indicator with a label. Commands
// use one per long-running step:
//
//	s := ui.NewSpinner("Generating deployment keypair")
//	s.Start()
//	// ... ssh-keygen runs ...
//	s.Success()
//
// SetLabel may be called while running, so a single spinner can walk
// through the machines being provisioned.
type Spinner struct {
	mu           sync.Mutex
	label        string
	state        SpinnerState
	frame        int
	startTime    time.Time
	stopChan     chan struct{}
	doneChan     chan struct{}
	output       func(string)
	running      bool
	lastRendered string
}

// NewSpinner creates a new spinner with the given label.
// Output defaults to fmt.Print; use SetOutput to redirect.
func NewSpinner(label string) *Spinner {
	return &Spinner{
		label:  label,
		state:  SpinnerPending,
		output: func(s string) { fmt.Print(s) },
	}
}

// SetOutput sets the output function for the spinner.
func (s *Spinner) SetOutput(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = fn
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.state = SpinnerInProgress
	s.startTime = time.Now()
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.mu.Unlock()

	s.render()

	go s.animate()
}

// Stop halts the spinner animation without changing state.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	<-s.doneChan
}

// Success stops the spinner and marks it as successful.
func (s *Spinner) Success() { s.finish(SpinnerSuccess) }

// Fail stops the spinner and marks it as failed.
func (s *Spinner) Fail() { s.finish(SpinnerFailed) }

// Skip stops the spinner and marks it as skipped.
func (s *Spinner) Skip() { s.finish(SpinnerSkipped) }

func (s *Spinner) finish(state SpinnerState) {
	s.Stop()
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.renderFinal()
}

// State returns the current spinner state.
func (s *Spinner) State() SpinnerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed returns the time since the spinner started.
func (s *Spinner) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startTime.IsZero() {
		return 0
	}
	return time.Since(s.startTime)
}

// Label returns the spinner's label.
func (s *Spinner) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label
}

// SetLabel updates the spinner's label while it runs.
func (s *Spinner) SetLabel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
}

func (s *Spinner) animate() {
	ticker := time.NewTicker(60 * time.Millisecond)
	defer ticker.Stop()
	defer close(s.doneChan)

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.frame = (s.frame + 1) % len(spinnerFrames)
			s.mu.Unlock()
			s.render()
		}
	}
}

// clearPrevious erases the last animated line. Callers hold mu.
func (s *Spinner) clearPrevious() {
	if s.lastRendered == "" {
		return
	}
	width := len([]rune(s.lastRendered))
	s.output("\r" + strings.Repeat(" ", width) + "\r")
}

func (s *Spinner) render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	glyph := spinnerFrames[s.frame]
	color := GradientColors[(s.frame/2)%len(GradientColors)]

	s.clearPrevious()
	line := fmt.Sprintf("\r%s %s...",
		lipgloss.NewStyle().Foreground(color).Render(glyph), s.label)
	s.output(line)
	s.lastRendered = line
}

func (s *Spinner) renderFinal() {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol, style := stateGlyph(s.state)
	timing := MutedStyle().Render(formatDuration(time.Since(s.startTime)))

	s.clearPrevious()
	s.output(fmt.Sprintf("%s %s %s\n", style.Render(symbol), s.label, timing))
	s.lastRendered = ""
}

// stateGlyph maps a settled spinner state to its symbol and color.
func stateGlyph(state SpinnerState) (string, lipgloss.Style) {
	switch state {
	case SpinnerSuccess:
		return SymbolComplete, lipgloss.NewStyle().Foreground(ColorSuccess)
	case SpinnerFailed:
		return SymbolFail, lipgloss.NewStyle().Foreground(ColorError)
	case SpinnerSkipped:
		return SymbolSkipped, lipgloss.NewStyle().Foreground(ColorWarning)
	default:
		return SymbolPending, lipgloss.NewStyle().Foreground(ColorMuted)
	}
}

// formatDuration formats a duration for display (e.g., "0.3s", "1.2s").
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}
