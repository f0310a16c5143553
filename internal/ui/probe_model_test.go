package ui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probeTestTargets() []ProbeTarget {
	return []ProbeTarget{
		{Address: "192.168.33.10", Roles: "controller"},
		{Address: "192.168.33.11", Roles: "servers"},
	}
}

func TestNewProbeModel(t *testing.T) {
	results := make(chan ProbeOutcome)
	m := NewProbeModel(probeTestTargets(), results)

	view := m.View()

	assert.Contains(t, view, "Probing 2 machines")
	assert.Contains(t, view, "192.168.33.10")
	assert.Contains(t, view, "192.168.33.11")
	assert.Contains(t, view, "q to cancel")
}

func TestProbeModelResultFlow(t *testing.T) {
	results := make(chan ProbeOutcome)
	m := NewProbeModel(probeTestTargets(), results)

	// First result arrives: model keeps waiting for the second
	updated, cmd := m.Update(probeResultMsg{Address: "192.168.33.10", Latency: 12 * time.Millisecond})
	m = updated.(ProbeModel)
	require.NotNil(t, cmd, "should schedule the next channel wait")
	assert.Len(t, m.Outcomes(), 1)

	// Second result arrives: all targets done, model quits
	updated, cmd = m.Update(probeResultMsg{Address: "192.168.33.11", Err: errors.New("connection refused")})
	m = updated.(ProbeModel)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Len(t, m.Outcomes(), 2)
	assert.False(t, m.Aborted())
}

func TestProbeModelViewStates(t *testing.T) {
	results := make(chan ProbeOutcome)
	m := NewProbeModel(probeTestTargets(), results)

	updated, _ := m.Update(probeResultMsg{Address: "192.168.33.10", Latency: 12 * time.Millisecond})
	m = updated.(ProbeModel)

	view := m.View()

	// Finished host settles to a check with its latency
	assert.Contains(t, view, SymbolSuccess)
	assert.Contains(t, view, "12ms")
	// Unfinished host still shows its roles, no fail mark yet
	assert.Contains(t, view, "servers")
	assert.NotContains(t, view, SymbolFail)

	updated, _ = m.Update(probeResultMsg{Address: "192.168.33.11", Err: errors.New("connection refused")})
	m = updated.(ProbeModel)

	view = m.View()
	assert.Contains(t, view, SymbolFail)
	assert.Contains(t, view, "connection refused")
}

func TestProbeModelQuitKeys(t *testing.T) {
	keys := []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	}

	for _, key := range keys {
		t.Run(key.String(), func(t *testing.T) {
			results := make(chan ProbeOutcome)
			m := NewProbeModel(probeTestTargets(), results)

			updated, cmd := m.Update(key)
			m = updated.(ProbeModel)

			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
			assert.True(t, m.Aborted())
		})
	}
}

func TestProbeModelChannelClosed(t *testing.T) {
	results := make(chan ProbeOutcome)
	close(results)
	m := NewProbeModel(probeTestTargets(), results)

	msg := m.waitForResult()()
	assert.IsType(t, probesClosedMsg{}, msg)

	_, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestProbeModelDeliversResultFromChannel(t *testing.T) {
	results := make(chan ProbeOutcome, 1)
	results <- ProbeOutcome{Address: "192.168.33.10", Latency: 3 * time.Millisecond}
	m := NewProbeModel(probeTestTargets(), results)

	msg := m.waitForResult()()

	result, ok := msg.(probeResultMsg)
	require.True(t, ok)
	assert.Equal(t, "192.168.33.10", result.Address)
}

func TestFormatLatency(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{500 * time.Microsecond, "500µs"},
		{12 * time.Millisecond, "12ms"},
		{1500 * time.Millisecond, "1.5s"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatLatency(tt.d))
	}
}
