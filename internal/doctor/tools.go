package doctor

import (
	"fmt"
	"os/exec"
)

// ToolCheck verifies a command-line tool is installed locally.
type ToolCheck struct {
	Tool     string
	Optional bool   // missing optional tools warn instead of fail
	Purpose  string // what the tool is needed for
	Install  string // how to get it
}

func (c *ToolCheck) Name() string     { return "tool_" + c.Tool }
func (c *ToolCheck) Category() string { return "TOOLS" }

func (c *ToolCheck) Run() CheckResult {
	path, err := exec.LookPath(c.Tool)
	if err != nil {
		status := StatusFail
		if c.Optional {
			status = StatusWarn
		}
		message := fmt.Sprintf("%s not found", c.Tool)
		if c.Purpose != "" {
			message = fmt.Sprintf("%s not found (%s)", c.Tool, c.Purpose)
		}
		return CheckResult{
			Name:       c.Name(),
			Status:     status,
			Message:    message,
			Suggestion: c.Install,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s at %s", c.Tool, path),
	}
}

func (c *ToolCheck) Fix() error {
	return nil // installing system packages is out of scope
}

// NewToolChecks creates checks for every tool key provisioning shells
// out to.
func NewToolChecks() []Check {
	return []Check{
		&ToolCheck{
			Tool:    "ssh-keygen",
			Purpose: "generates the deployment keypair",
			Install: "Install the OpenSSH client tools: apt install openssh-client (Linux) or xcode-select --install (macOS)",
		},
		&ToolCheck{
			Tool:    "ssh-copy-id",
			Purpose: "authorizes the key on cluster machines",
			Install: "Install the OpenSSH client tools: apt install openssh-client (Linux) or brew install ssh-copy-id (macOS)",
		},
		&ToolCheck{
			Tool:    "scp",
			Purpose: "copies the keypair to cluster machines",
			Install: "Install the OpenSSH client tools: apt install openssh-client",
		},
		&ToolCheck{
			Tool:     "expect",
			Optional: true,
			Purpose:  "only needed for add-keypair --auto",
			Install:  "Install expect if you plan to use automatic password entry: apt install expect",
		},
	}
}
