package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DividerWidth is the default width for divider lines.
const DividerWidth = 64

// PhaseDisplay renders the steps of a command as plain lines, one per
// finished step. It is the non-terminal counterpart to Spinner: when
// stdout is a pipe or a CI log, animating with carriage returns would
// garble the output, so provisioning prints through this instead:
//
//	pd := ui.NewPhaseDisplay(os.Stdout)
//	pd.RenderSubStatus(ui.SymbolProgress, "192.168.33.10", "installing the key (1/3)")
//	pd.RenderSuccess("Installed the deployment key", elapsed)
type PhaseDisplay struct {
	w io.Writer
}

// NewPhaseDisplay creates a phase display writing to w.
func NewPhaseDisplay(w io.Writer) *PhaseDisplay {
	return &PhaseDisplay{w: w}
}

// line writes one settled phase line: colored symbol, label, and an
// optional muted note after it.
func (pd *PhaseDisplay) line(symbol string, style lipgloss.Style, name, note string) {
	if note == "" {
		fmt.Fprintf(pd.w, "%s %s\n", style.Render(symbol), name)
		return
	}
	fmt.Fprintf(pd.w, "%s %s %s\n", style.Render(symbol), name, MutedStyle().Render(note))
}

// RenderSuccess renders a completed phase.
// Shows: ● Generated deployment keypair (0.3s)
func (pd *PhaseDisplay) RenderSuccess(name string, duration time.Duration) {
	pd.line(SymbolComplete, SuccessStyle(), name, formatDuration(duration))
}

// RenderFailed renders a failed phase.
// Shows: ✗ Authorizing key on 192.168.33.11 (2.3s)
func (pd *PhaseDisplay) RenderFailed(name string, duration time.Duration) {
	pd.line(SymbolFail, ErrorStyle(), name, formatDuration(duration))
}

// RenderSkipped renders a skipped phase.
// Shows: ⊘ Backing up old key (no existing key)
func (pd *PhaseDisplay) RenderSkipped(name string, reason string) {
	note := ""
	if reason != "" {
		note = "(" + reason + ")"
	}
	pd.line(SymbolSkipped, WarningStyle(), name, note)
}

// RenderSubStatus renders an indented sub-status line, for per-machine
// detail under a phase.
// Shows:   ✓ 192.168.33.10 authorized
func (pd *PhaseDisplay) RenderSubStatus(symbol string, name string, status string) {
	muted := MutedStyle()
	fmt.Fprintf(pd.w, "  %s %s %s\n", muted.Render(symbol), name, muted.Render(status))
}

// Divider renders a horizontal line separating phases from what follows.
func (pd *PhaseDisplay) Divider() {
	fmt.Fprintf(pd.w, "\n%s\n\n", MutedStyle().Render(strings.Repeat("━", DividerWidth)))
}

// Newline writes an empty line.
func (pd *PhaseDisplay) Newline() {
	fmt.Fprintln(pd.w)
}
