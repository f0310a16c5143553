package doctor

import (
	"fmt"
	"strings"

	"github.com/altoplano/appscale-tools/internal/probe"
	"github.com/altoplano/appscale-tools/pkg/sshutil"
)

// RemoteConnectionCheck reports whether a cluster machine could be
// dialed at all. The machine is dialed once up front and the other
// remote checks share the connection, so this check is the one that
// explains a dead machine instead of three "no connection" rows.
type RemoteConnectionCheck struct {
	Address string
	DialErr error
}

func (c *RemoteConnectionCheck) Name() string     { return fmt.Sprintf("remote_connect_%s", c.Address) }
func (c *RemoteConnectionCheck) Category() string { return "REMOTE" }

func (c *RemoteConnectionCheck) Run() CheckResult {
	if c.DialErr == nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: fmt.Sprintf("Connected to %s", c.Address),
		}
	}

	perr := probe.Categorize(c.Address, c.DialErr)
	return CheckResult{
		Name:       c.Name(),
		Status:     StatusFail,
		Message:    fmt.Sprintf("Can't connect to %s: %s", c.Address, perr.Reason),
		Suggestion: connectionSuggestion(perr.Reason),
	}
}

func (c *RemoteConnectionCheck) Fix() error {
	return nil
}

// connectionSuggestion maps a categorized dial failure to the most
// likely repair.
func connectionSuggestion(reason probe.FailReason) string {
	switch reason {
	case probe.FailAuth:
		return "Run 'appscale add-keypair' to restore key access."
	case probe.FailTimeout, probe.FailUnreachable:
		return "Check that the machine is powered on and reachable from here."
	case probe.FailRefused:
		return "Check that sshd is running on the machine."
	case probe.FailHostKey:
		return "If the machine was rebuilt, remove its old entry from ~/.ssh/known_hosts."
	default:
		return "Check the SSH connection."
	}
}

// RemoteKeyCheck verifies the deployment public key is authorized on a
// cluster machine, the state ssh-copy-id leaves behind.
type RemoteKeyCheck struct {
	Address   string
	Client    sshutil.SSHClient
	PublicKey string // content of the deployment public key
}

func (c *RemoteKeyCheck) Name() string     { return fmt.Sprintf("remote_key_%s", c.Address) }
func (c *RemoteKeyCheck) Category() string { return "REMOTE" }

func (c *RemoteKeyCheck) Run() CheckResult {
	if c.Client == nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusFail,
			Message: fmt.Sprintf("Authorized key (%s): no connection", c.Address),
		}
	}

	stdout, _, exitCode, err := c.Client.Exec("cat .ssh/authorized_keys")
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Can't read authorized_keys on %s: %v", c.Address, err),
			Suggestion: "Check the SSH connection.",
		}
	}

	key := strings.TrimSpace(c.PublicKey)
	if exitCode != 0 || key == "" || !strings.Contains(string(stdout), key) {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Deployment key not authorized on %s", c.Address),
			Suggestion: "Run 'appscale add-keypair' to install it.",
			Fixable:    true,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Deployment key authorized on %s", c.Address),
	}
}

// Fix appends the public key to the machine's authorized_keys. The
// connection in hand already works under some credential, so this is
// the same repair ssh-copy-id would make.
func (c *RemoteKeyCheck) Fix() error {
	if c.Client == nil {
		return fmt.Errorf("no connection to %s", c.Address)
	}
	key := strings.TrimSpace(c.PublicKey)
	if key == "" {
		return fmt.Errorf("no public key to install")
	}

	existing, _, _, err := c.Client.Exec("cat .ssh/authorized_keys")
	if err != nil {
		return err
	}

	content := strings.TrimRight(string(existing), "\n")
	if content != "" {
		content += "\n"
	}
	content += key

	if _, _, _, err := c.Client.Exec("mkdir -p .ssh"); err != nil {
		return err
	}

	cmd := fmt.Sprintf("cat > .ssh/authorized_keys << 'APPSCALEKEY'\n%s\nAPPSCALEKEY", content)
	_, stderr, exitCode, err := c.Client.Exec(cmd)
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("writing authorized_keys on %s failed: %s", c.Address, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// RemoteKeyFilesCheck verifies the keypair copies that provisioning
// places in the machine's .ssh directory, so cluster machines can
// reach each other.
type RemoteKeyFilesCheck struct {
	Address string
	Client  sshutil.SSHClient
}

func (c *RemoteKeyFilesCheck) Name() string     { return fmt.Sprintf("remote_keyfiles_%s", c.Address) }
func (c *RemoteKeyFilesCheck) Category() string { return "REMOTE" }

func (c *RemoteKeyFilesCheck) Run() CheckResult {
	if c.Client == nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusFail,
			Message: fmt.Sprintf("Key files (%s): no connection", c.Address),
		}
	}

	var missing []string
	for _, path := range []string{".ssh/id_rsa", ".ssh/id_rsa.pub"} {
		_, _, exitCode, err := c.Client.Exec("test -f " + path)
		if err != nil {
			return CheckResult{
				Name:       c.Name(),
				Status:     StatusFail,
				Message:    fmt.Sprintf("Can't check key files on %s: %v", c.Address, err),
				Suggestion: "Check the SSH connection.",
			}
		}
		if exitCode != 0 {
			missing = append(missing, path)
		}
	}

	if len(missing) > 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("%s is missing %s", c.Address, strings.Join(missing, " and ")),
			Suggestion: "Run 'appscale add-keypair' to copy the keypair over.",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("Keypair present on %s", c.Address),
	}
}

func (c *RemoteKeyFilesCheck) Fix() error {
	// add-keypair owns key distribution; doctor only reports.
	return nil
}

// RemotePlatformCheck reports the machine's operating system.
type RemotePlatformCheck struct {
	Address string
	Client  sshutil.SSHClient
}

func (c *RemotePlatformCheck) Name() string     { return fmt.Sprintf("remote_platform_%s", c.Address) }
func (c *RemotePlatformCheck) Category() string { return "REMOTE" }

func (c *RemotePlatformCheck) Run() CheckResult {
	if c.Client == nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusFail,
			Message: fmt.Sprintf("Platform (%s): no connection", c.Address),
		}
	}

	stdout, _, exitCode, err := c.Client.Exec("uname -s")
	if err != nil || exitCode != 0 {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusWarn,
			Message: fmt.Sprintf("Couldn't determine the platform of %s", c.Address),
		}
	}

	platform := strings.TrimSpace(string(stdout))
	if platform != "Linux" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("%s runs %s", c.Address, platform),
			Suggestion: "Cluster machines are expected to run Linux.",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s runs Linux", c.Address),
	}
}

func (c *RemotePlatformCheck) Fix() error {
	return nil
}

// NewRemoteChecks creates the checks run against one cluster machine.
// client is nil when the dial failed; dialErr carries why.
func NewRemoteChecks(address string, client sshutil.SSHClient, dialErr error, publicKey string) []Check {
	return []Check{
		&RemoteConnectionCheck{Address: address, DialErr: dialErr},
		&RemoteKeyCheck{Address: address, Client: client, PublicKey: publicKey},
		&RemoteKeyFilesCheck{Address: address, Client: client},
		&RemotePlatformCheck{Address: address, Client: client},
	}
}
