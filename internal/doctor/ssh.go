package doctor

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"

	"github.com/altoplano/appscale-tools/internal/util"
	"github.com/altoplano/appscale-tools/pkg/sshutil"
)

// SSHAgentCheck reports on the SSH agent. The deployment key is read
// straight from disk, so a missing agent only matters for passphrase
// protected personal keys.
type SSHAgentCheck struct{}

func (c *SSHAgentCheck) Name() string     { return "ssh_agent" }
func (c *SSHAgentCheck) Category() string { return "SSH" }

func (c *SSHAgentCheck) Run() CheckResult {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent not running",
			Suggestion: "Only needed if your keys are passphrase protected: eval $(ssh-agent) && ssh-add",
		}
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "SSH agent socket not accessible",
			Suggestion: "Restart it: eval $(ssh-agent) && ssh-add",
		}
	}
	conn.Close()

	out, err := exec.Command("ssh-add", "-l").Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return CheckResult{
				Name:    c.Name(),
				Status:  StatusPass,
				Message: "SSH agent running (no keys loaded)",
			}
		}
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "Cannot query the SSH agent",
			Suggestion: "Check it by hand: ssh-add -l",
		}
	}

	keyCount := 0
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if strings.TrimSpace(line) != "" {
			keyCount++
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("SSH agent running with %d %s loaded", keyCount, util.Pluralize(keyCount, "key", "keys")),
	}
}

func (c *SSHAgentCheck) Fix() error {
	return nil // starting an agent needs the user's shell
}

// SSHConfigCheck looks for ~/.ssh/config entries that would change how
// we connect to cluster machines. An entry forcing another user or key
// on a node address breaks the root logins provisioning sets up.
type SSHConfigCheck struct {
	Addresses []string
}

func (c *SSHConfigCheck) Name() string     { return "ssh_config" }
func (c *SSHConfigCheck) Category() string { return "SSH" }

func (c *SSHConfigCheck) Run() CheckResult {
	if len(c.Addresses) == 0 {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: "No machines to check against ~/.ssh/config",
		}
	}

	entries, err := sshutil.ParseSSHConfig()
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Couldn't parse ~/.ssh/config: %v", err),
			Suggestion: "Fix the config syntax, or move the file aside.",
		}
	}

	var overriding []string
	for _, addr := range c.Addresses {
		entry, ok := sshutil.EntryFor(entries, addr)
		if !ok {
			continue
		}
		if entry.User != "" && entry.User != sshutil.DefaultUser {
			overriding = append(overriding, fmt.Sprintf("%s (user %s)", addr, entry.User))
		} else if entry.IdentityFile != "" {
			overriding = append(overriding, fmt.Sprintf("%s (identity %s)", addr, entry.IdentityFile))
		}
	}

	if len(overriding) > 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("~/.ssh/config overrides settings for: %s", strings.Join(overriding, ", ")),
			Suggestion: "Cluster machines are reached as root with the deployment key. Remove or adjust those entries if connections misbehave.",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "~/.ssh/config doesn't interfere with the cluster machines",
	}
}

func (c *SSHConfigCheck) Fix() error {
	return nil // editing the user's ssh config is too invasive
}

// NewSSHChecks creates the SSH environment checks.
func NewSSHChecks(addresses []string) []Check {
	return []Check{
		&SSHAgentCheck{},
		&SSHConfigCheck{Addresses: addresses},
	}
}
