package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandFlags(t *testing.T) {
	for _, name := range []string{"config", "verbose", "json", "no-color"} {
		t.Run(name, func(t *testing.T) {
			assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name))
		})
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	want := []string{"init", "add-keypair", "nodes", "doctor", "fix", "clean", "version"}

	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, name := range want {
		assert.True(t, names[name], "missing subcommand %s", name)
	}
}

func TestConfigAccessor(t *testing.T) {
	orig := configFlag
	defer func() { configFlag = orig }()

	configFlag = "/tmp/AppScalefile"
	assert.Equal(t, "/tmp/AppScalefile", Config())
}

func TestVerboseAccessor(t *testing.T) {
	orig := verboseFlag
	defer func() { verboseFlag = orig }()

	verboseFlag = true
	assert.True(t, Verbose())
}

func TestMachineMode(t *testing.T) {
	orig := machineMode
	defer func() { machineMode = orig }()

	machineMode = true
	assert.True(t, MachineMode())
}

func TestRootCommandSilencesCobraNoise(t *testing.T) {
	// Errors render through our own formatting, not cobra's.
	assert.True(t, rootCmd.SilenceUsage)
	assert.True(t, rootCmd.SilenceErrors)
}
