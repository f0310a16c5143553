package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"dev build", "dev", "dev"},
		{"bare version gets v prefix", "1.2.3", "v1.2.3"},
		{"already prefixed", "v1.2.3", "v1.2.3"},
		{"prerelease", "1.2.3-rc.1", "v1.2.3-rc.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatVersion(tt.input))
		})
	}
}

func TestSetVersionInfo(t *testing.T) {
	// Save and restore so other tests see the defaults.
	origVersion, origCommit, origDate := version, commit, date
	defer func() {
		version, commit, date = origVersion, origCommit, origDate
	}()

	SetVersionInfo("1.0.0", "abc1234", "2026-08-01")

	assert.Equal(t, "1.0.0", version)
	assert.Equal(t, "abc1234", commit)
	assert.Equal(t, "2026-08-01", date)
}

func TestGetVersion(t *testing.T) {
	origVersion := version
	defer func() { version = origVersion }()

	version = "2.5.0"
	assert.Equal(t, "2.5.0", GetVersion())
}

func TestVersionCommandHasShortFlag(t *testing.T) {
	flag := versionCmd.Flags().Lookup("short")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestVersionCommandRegistered(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "version" {
			found = true
		}
	}
	assert.True(t, found)
}
