package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/altoplano/appscale-tools/internal/util"
)

// HostFailure describes where a key distribution run stopped.
type HostFailure struct {
	Host    string // machine that failed
	Step    string // what was being done ("authorizing key", "copying private key")
	Message string // error detail, possibly multi-line stderr
}

// ProvisionSummary holds the outcome of a distribution run.
// Distribution stops at the first failure, so there is at most one.
type ProvisionSummary struct {
	Provisioned []string     // machines fully set up, in order
	Failure     *HostFailure // nil when everything succeeded
	NotReached  []string     // machines never attempted because of the failure
}

// SummaryRenderer formats provisioning summaries for terminal display.
type SummaryRenderer struct {
	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
	hostStyle    lipgloss.Style
	mutedStyle   lipgloss.Style
}

// NewSummaryRenderer creates a summary renderer with default styles.
func NewSummaryRenderer() *SummaryRenderer {
	return &SummaryRenderer{
		errorStyle:   lipgloss.NewStyle().Foreground(ColorError),
		successStyle: lipgloss.NewStyle().Foreground(ColorSuccess),
		hostStyle:    lipgloss.NewStyle().Foreground(ColorInfo),
		mutedStyle:   lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// RenderProvisionSummary formats a distribution outcome.
func RenderProvisionSummary(summary *ProvisionSummary) string {
	return NewSummaryRenderer().Render(summary)
}

// Render generates the formatted summary string.
func (r *SummaryRenderer) Render(summary *ProvisionSummary) string {
	if summary == nil {
		return ""
	}

	var sb strings.Builder

	if summary.Failure == nil {
		n := len(summary.Provisioned)
		sb.WriteString(r.successStyle.Render(
			fmt.Sprintf("%s Key installed on %d %s", SymbolSuccess, n,
				util.Pluralize(n, "machine", "machines"))))
		sb.WriteString("\n")
		return sb.String()
	}

	f := summary.Failure
	sb.WriteString(r.errorStyle.Render(
		fmt.Sprintf("%s Provisioning stopped at %s", SymbolFail, f.Host)))
	sb.WriteString("\n\n")

	sb.WriteString("  ")
	sb.WriteString(r.hostStyle.Render(f.Host))
	if f.Step != "" {
		sb.WriteString(r.mutedStyle.Render(" while " + f.Step))
	}
	sb.WriteString("\n")

	if f.Message != "" {
		// stderr lines can run long; keep the block scannable.
		for _, line := range strings.Split(f.Message, "\n") {
			sb.WriteString("    ")
			sb.WriteString(r.mutedStyle.Render(util.Truncate(line, 120)))
			sb.WriteString("\n")
		}
	}

	if len(summary.Provisioned) > 0 {
		sb.WriteString("\n")
		sb.WriteString("  ")
		sb.WriteString(fmt.Sprintf("Already set up: %s", strings.Join(summary.Provisioned, ", ")))
		sb.WriteString("\n")
	}
	if len(summary.NotReached) > 0 {
		sb.WriteString("  ")
		sb.WriteString(r.mutedStyle.Render(
			fmt.Sprintf("Not attempted: %s", strings.Join(summary.NotReached, ", "))))
		sb.WriteString("\n")
	}

	return sb.String()
}
