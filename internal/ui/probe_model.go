package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ProbeTarget is one machine to show in the probe view.
type ProbeTarget struct {
	Address string
	Roles   string
}

// ProbeOutcome is one machine's probe result, delivered as it finishes.
type ProbeOutcome struct {
	Address string
	Latency time.Duration
	Err     error
}

type probeResultMsg ProbeOutcome

type probesClosedMsg struct{}

// probeSpinnerFrames is the moon-phase animation (◐ ◓ ◑ ◒) shown next
// to machines whose probe is still running.
var probeSpinnerFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 10,
}

// ProbeModel is the Bubble Tea screen behind 'appscale nodes --probe'
// on a terminal: one line per machine, animated while its probe runs,
// settling to up/down as results arrive on the channel.
type ProbeModel struct {
	targets  []ProbeTarget
	results  <-chan ProbeOutcome
	outcomes map[string]ProbeOutcome
	spinner  spinner.Model
	done     int
	aborted  bool
}

// NewProbeModel creates the probe view. The caller runs the probes and
// sends one ProbeOutcome per target on the channel.
func NewProbeModel(targets []ProbeTarget, results <-chan ProbeOutcome) ProbeModel {
	sp := spinner.New()
	sp.Spinner = probeSpinnerFrames
	sp.Style = lipgloss.NewStyle().Foreground(ColorSecondary)

	return ProbeModel{
		targets:  targets,
		results:  results,
		outcomes: make(map[string]ProbeOutcome),
		spinner:  sp,
	}
}

func (m ProbeModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForResult())
}

// waitForResult blocks on the results channel as a tea command. Each
// delivery schedules the next wait until the channel closes.
func (m ProbeModel) waitForResult() tea.Cmd {
	return func() tea.Msg {
		r, ok := <-m.results
		if !ok {
			return probesClosedMsg{}
		}
		return probeResultMsg(r)
	}
}

func (m ProbeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done < len(m.targets) {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case probeResultMsg:
		m.outcomes[msg.Address] = ProbeOutcome(msg)
		m.done++
		if m.done >= len(m.targets) {
			return m, tea.Quit
		}
		return m, m.waitForResult()

	case probesClosedMsg:
		return m, tea.Quit
	}

	return m, nil
}

func (m ProbeModel) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	successStyle := lipgloss.NewStyle().Foreground(ColorSuccess)
	errorStyle := lipgloss.NewStyle().Foreground(ColorError)
	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("Probing %d machines", len(m.targets))))
	sb.WriteString("\n\n")

	for _, t := range m.targets {
		outcome, finished := m.outcomes[t.Address]
		switch {
		case !finished:
			sb.WriteString("  " + m.spinner.View() + " ")
			sb.WriteString(padRight(t.Address, 18))
			sb.WriteString(mutedStyle.Render(t.Roles))
		case outcome.Err != nil:
			sb.WriteString("  " + errorStyle.Render(SymbolFail) + " ")
			sb.WriteString(padRight(t.Address, 18))
			sb.WriteString(errorStyle.Render(outcome.Err.Error()))
		default:
			sb.WriteString("  " + successStyle.Render(SymbolSuccess) + " ")
			sb.WriteString(padRight(t.Address, 18))
			sb.WriteString(padRight(mutedStyle.Render(t.Roles), 28))
			sb.WriteString(mutedStyle.Render(FormatLatency(outcome.Latency)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n" + mutedStyle.Render("q to cancel") + "\n")
	return sb.String()
}

// Aborted reports whether the user quit before all probes finished.
func (m ProbeModel) Aborted() bool {
	return m.aborted
}

// Outcomes returns the results received so far, keyed by address.
func (m ProbeModel) Outcomes() map[string]ProbeOutcome {
	return m.outcomes
}

// FormatLatency renders a probe round-trip for display.
func FormatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
