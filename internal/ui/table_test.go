package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/table"
	"github.com/stretchr/testify/assert"
)

func TestNewTable(t *testing.T) {
	columns := []TableColumn{
		{Title: "Address", Width: 20},
		{Title: "Roles", Width: 20},
	}
	rows := []table.Row{
		{"192.168.33.10", "controller"},
		{"192.168.33.11", "servers"},
	}

	view := NewTable(columns, rows).View()

	for _, want := range []string{"Address", "Roles", "192.168.33.10", "192.168.33.11"} {
		assert.Contains(t, view, want)
	}
}

func TestNewTableHeaderOnly(t *testing.T) {
	view := NewTable([]TableColumn{{Title: "Address", Width: 20}}, nil).View()

	assert.NotEmpty(t, view)
	assert.Contains(t, view, "Address")
}

func TestRenderSimpleTable(t *testing.T) {
	columns := []TableColumn{
		{Title: "Address", Width: 18},
		{Title: "Roles", Width: 20},
	}
	rows := [][]string{
		{"192.168.33.10", "controller"},
		{"192.168.33.11", "servers"},
	}

	output := RenderSimpleTable(columns, rows)

	assert.Contains(t, output, "Address")
	assert.Contains(t, output, "controller")
	assert.Contains(t, output, "192.168.33.11")
}

func TestRenderSimpleTableEmpty(t *testing.T) {
	assert.Empty(t, RenderSimpleTable([]TableColumn{{Title: "Address", Width: 18}}, nil))
}

func TestRenderNodesTable(t *testing.T) {
	rows := []NodeRow{
		{Address: "192.168.33.10", Roles: "controller"},
		{Address: "192.168.33.11", Roles: "servers"},
	}

	t.Run("layout only", func(t *testing.T) {
		output := RenderNodesTable(rows, false)

		assert.Contains(t, output, "ADDRESS")
		assert.Contains(t, output, "ROLES")
		assert.Contains(t, output, "192.168.33.10")
		assert.Contains(t, output, "controller")
		assert.NotContains(t, output, "STATUS")
		assert.NotContains(t, output, "LATENCY")
	})

	t.Run("with probe results", func(t *testing.T) {
		probed := []NodeRow{
			{Address: "192.168.33.10", Roles: "controller", Status: "ok", Latency: "12ms"},
			{Address: "192.168.33.11", Roles: "servers", Status: "down", Latency: "connection refused"},
		}

		output := RenderNodesTable(probed, true)

		assert.Contains(t, output, "STATUS")
		assert.Contains(t, output, "LATENCY")
		assert.Contains(t, output, "12ms")
		assert.Contains(t, output, "connection refused")
		assert.Contains(t, output, SymbolSuccess)
		assert.Contains(t, output, SymbolFail)
	})

	t.Run("empty layout", func(t *testing.T) {
		assert.Equal(t, "No machines in the layout", RenderNodesTable(nil, false))
	})
}

func TestRenderDoctorTable(t *testing.T) {
	rows := []DoctorCheckRow{
		{Status: "pass", Category: "TOOLS", Message: "ssh-keygen at /usr/bin/ssh-keygen"},
		{Status: "warn", Category: "SSH", Message: "SSH agent not running", Suggestion: "eval $(ssh-agent)"},
		{Status: "fail", Category: "KEYS", Message: "No deployment keypair", Suggestion: "Run 'appscale add-keypair'"},
	}

	output := RenderDoctorTable(rows)

	for _, want := range []string{
		"TOOLS", "SSH", "KEYS",
		"ssh-keygen at /usr/bin/ssh-keygen",
		"eval $(ssh-agent)",
		"Run 'appscale add-keypair'",
	} {
		assert.Contains(t, output, want)
	}
}

func TestRenderDoctorTableEmpty(t *testing.T) {
	assert.Equal(t, "No checks to display", RenderDoctorTable(nil))
}

func TestRenderDoctorTableSuppressesPassSuggestions(t *testing.T) {
	output := RenderDoctorTable([]DoctorCheckRow{
		{Status: "pass", Category: "Test", Message: "All good", Suggestion: "This should not appear"},
	})

	assert.Contains(t, output, "All good")
	assert.NotContains(t, output, "This should not appear")
}

func TestGroupDoctorRows(t *testing.T) {
	groups := groupDoctorRows([]DoctorCheckRow{
		{Category: "LOCAL", Message: "one"},
		{Category: "REMOTE", Message: "two"},
		{Category: "LOCAL", Message: "three"},
	})

	if assert.Len(t, groups, 2) {
		assert.Equal(t, "LOCAL", groups[0].category)
		assert.Len(t, groups[0].rows, 2)
		assert.Equal(t, "three", groups[0].rows[1].Message)
		assert.Equal(t, "REMOTE", groups[1].category)
	}
}

func TestRenderDoctorTableCategoryOrder(t *testing.T) {
	output := RenderDoctorTable([]DoctorCheckRow{
		{Status: "pass", Category: "Cat1", Message: "Check 1"},
		{Status: "pass", Category: "Cat2", Message: "Check 2"},
		{Status: "pass", Category: "Cat1", Message: "Check 3"},
	})

	assert.Less(t, strings.Index(output, "Cat1"), strings.Index(output, "Cat2"),
		"categories keep first-seen order")
}

func TestDoctorStatusIcon(t *testing.T) {
	assert.Contains(t, doctorStatusIcon("pass"), SymbolSuccess)
	assert.Contains(t, doctorStatusIcon("warn"), SymbolWarning)
	assert.Contains(t, doctorStatusIcon("fail"), SymbolFail)
	assert.Contains(t, doctorStatusIcon("mystery"), SymbolPending)
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  string
	}{
		{"shorter than width", "foo", 5, "foo  "},
		{"equal to width", "foobar", 6, "foobar"},
		{"longer than width", "foobar", 3, "foobar"},
		{"empty string", "", 3, "   "},
		{"zero width", "foo", 0, "foo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, padRight(tt.input, tt.width))
		})
	}

	t.Run("counts visible width, not ANSI bytes", func(t *testing.T) {
		styled := "\x1b[32mok\x1b[0m"
		assert.Equal(t, styled+"   ", padRight(styled, 5))
	})
}
