package integration

import (
	"os"
	"os/exec"
	"testing"
)

// RequireTool skips the test when a command-line tool the flow shells
// out to is not installed on this machine.
func RequireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("Skipping: %s not found on PATH", name)
	}
}

// RequireSSHHost returns the machine configured for SSH integration
// tests and skips the test when none is set. The value is the
// machine's IPv4 address, since that is how layouts identify machines.
// Tests behind this gate install the deployment key on the machine's
// root account, so they only ever run against a host someone
// explicitly volunteered.
func RequireSSHHost(t *testing.T) string {
	t.Helper()
	host := os.Getenv("APPSCALE_TEST_SSH_HOST")
	if host == "" {
		t.Skip("Skipping: APPSCALE_TEST_SSH_HOST not set (no test machine available)")
	}
	return host
}

// GetTestSSHUser returns the login user for the test machine.
// Defaults to root, the user deployments normally provision as.
func GetTestSSHUser() string {
	user := os.Getenv("APPSCALE_TEST_SSH_USER")
	if user == "" {
		return "root"
	}
	return user
}
