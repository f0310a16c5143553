package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a Bubbles table with the CLI's styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(string(ColorMuted))).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color(string(ColorPrimary)))
	styles.Cell = styles.Cell.
		Foreground(lipgloss.Color(string(ColorPrimary)))
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color(string(ColorPrimary))).
		Background(lipgloss.Color(string(ColorMuted))).
		Bold(false)

	cols := make([]table.Column, 0, len(columns))
	for _, c := range columns {
		cols = append(cols, table.Column{Title: c.Title, Width: c.Width})
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)
	t.SetStyles(styles)
	return t
}

// RenderSimpleTable renders a non-interactive table string for plain
// CLI output.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	converted := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		converted = append(converted, table.Row(row))
	}
	return NewTable(columns, converted).View()
}

// NodeRow is one machine in the 'appscale nodes' listing.
type NodeRow struct {
	Address string
	Roles   string
	Status  string // "", "ok", or an error word; empty when not probed
	Latency string
}

// RenderNodesTable renders the node layout, optionally with probe
// results in the STATUS and LATENCY columns.
func RenderNodesTable(rows []NodeRow, probed bool) string {
	if len(rows) == 0 {
		return "No machines in the layout"
	}

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(ColorMuted)

	var output strings.Builder

	header := "  " + padRight("ADDRESS", 18) + padRight("ROLES", 28)
	if probed {
		header += padRight("STATUS", 10) + "LATENCY"
	}
	output.WriteString(headerStyle.Render(header) + "\n")

	for _, row := range rows {
		line := "  " + padRight(row.Address, 18) + padRight(row.Roles, 28)
		if probed {
			if row.Status == "ok" {
				line += padRight(SuccessStyle().Render(SymbolSuccess+" up"), 10)
				line += MutedStyle().Render(row.Latency)
			} else {
				line += padRight(ErrorStyle().Render(SymbolFail+" down"), 10)
				line += ErrorStyle().Render(row.Latency)
			}
		}
		output.WriteString(line + "\n")
	}

	return output.String()
}

// DoctorCheckRow represents a row in the doctor diagnostic output.
type DoctorCheckRow struct {
	Status     string // "pass", "warn", "fail"
	Category   string
	Message    string
	Suggestion string
}

// doctorGroup holds one category's rows in input order.
type doctorGroup struct {
	category string
	rows     []DoctorCheckRow
}

// groupDoctorRows buckets rows by category, keeping first-seen order.
func groupDoctorRows(rows []DoctorCheckRow) []doctorGroup {
	index := make(map[string]int)
	var groups []doctorGroup

	for _, row := range rows {
		i, ok := index[row.Category]
		if !ok {
			i = len(groups)
			index[row.Category] = i
			groups = append(groups, doctorGroup{category: row.Category})
		}
		groups[i].rows = append(groups[i].rows, row)
	}
	return groups
}

// doctorStatusIcon returns the colored glyph for a check status.
func doctorStatusIcon(status string) string {
	switch status {
	case "pass":
		return SuccessStyle().Render(SymbolSuccess)
	case "warn":
		return WarningStyle().Render(SymbolWarning)
	case "fail":
		return ErrorStyle().Render(SymbolFail)
	}
	return MutedStyle().Render(SymbolPending)
}

// RenderDoctorTable renders doctor check results grouped by category.
func RenderDoctorTable(rows []DoctorCheckRow) string {
	if len(rows) == 0 {
		return "No checks to display"
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	muted := MutedStyle()

	var output strings.Builder
	for _, group := range groupDoctorRows(rows) {
		output.WriteString(headerStyle.Render(group.category) + "\n")

		for _, row := range group.rows {
			output.WriteString("  " + doctorStatusIcon(row.Status) + " " + row.Message + "\n")
			if row.Suggestion != "" && row.Status != "pass" {
				output.WriteString("    " + muted.Render(row.Suggestion) + "\n")
			}
		}
		output.WriteString("\n")
	}

	return output.String()
}

// padRight pads a string to the given visible width, ANSI codes aside.
func padRight(s string, width int) string {
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visibleLen)
}
