package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HeaderInfo contains information to display in the header.
type HeaderInfo struct {
	Version string // Version string (e.g., "v0.3.0")
	Tagline string // Optional tagline
	Detail  string // Optional detail line (config path, deployment name)
}

// HeaderWidth is the default width of the header divider
const HeaderWidth = 50

// RenderHeader renders the branded header. No ASCII art, just clean
// typography: a title line, optional tagline and detail lines, and a
// divider.
func RenderHeader(info HeaderInfo) string {
	title := lipgloss.NewStyle().Foreground(ColorInfo).Bold(true).Render("appscale")
	version := lipgloss.NewStyle().Foreground(ColorSecondary).Render(info.Version)

	lines := []string{title + " " + version}
	if info.Tagline != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(ColorSecondary).Render(info.Tagline))
	}
	if info.Detail != "" {
		lines = append(lines, MutedStyle().Render(info.Detail))
	}
	lines = append(lines, MutedStyle().Render(strings.Repeat("━", HeaderWidth)))

	return strings.Join(lines, "\n") + "\n"
}

// PrintHeader prints the styled header to stdout.
func PrintHeader(info HeaderInfo) {
	fmt.Print(RenderHeader(info))
}
