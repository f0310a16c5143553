package doctor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/altoplano/appscale-tools/internal/keys"
)

// DotDirCheck verifies the ~/.appscale directory exists with sane
// permissions.
type DotDirCheck struct {
	Dir string
}

func (c *DotDirCheck) Name() string     { return "keys_dir" }
func (c *DotDirCheck) Category() string { return "KEYS" }

func (c *DotDirCheck) Run() CheckResult {
	info, err := os.Stat(c.Dir)
	if os.IsNotExist(err) {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("%s doesn't exist yet", c.Dir),
			Suggestion: "add-keypair creates it on first run",
			Fixable:    true,
		}
	}
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Can't stat %s: %v", c.Dir, err),
			Suggestion: "Check the directory's permissions.",
		}
	}

	if !info.IsDir() {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("%s exists but isn't a directory", c.Dir),
			Suggestion: "Move it out of the way and run add-keypair again.",
		}
	}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("%s is readable by other users (%04o)", c.Dir, perm),
			Suggestion: fmt.Sprintf("Fix: chmod 700 %s", c.Dir),
			Fixable:    true,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("%s exists", c.Dir),
	}
}

func (c *DotDirCheck) Fix() error {
	info, err := os.Stat(c.Dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(c.Dir, 0o700)
	}
	if err != nil {
		return err
	}
	if info.IsDir() && info.Mode().Perm()&0o077 != 0 {
		return os.Chmod(c.Dir, 0o700)
	}
	return nil
}

// KeyPairCheck verifies the deployment keypair exists.
type KeyPairCheck struct {
	Paths keys.Paths
}

func (c *KeyPairCheck) Name() string     { return "keys_pair" }
func (c *KeyPairCheck) Category() string { return "KEYS" }

func (c *KeyPairCheck) Run() CheckResult {
	_, privErr := os.Stat(c.Paths.Private)
	_, pubErr := os.Stat(c.Paths.Public)

	switch {
	case privErr == nil && pubErr == nil:
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass,
			Message: fmt.Sprintf("Deployment keypair at %s", c.Paths.Private),
		}
	case privErr == nil && pubErr != nil:
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Private key exists but %s is missing", filepath.Base(c.Paths.Public)),
			Suggestion: fmt.Sprintf("Regenerate it: ssh-keygen -y -f %s > %s", c.Paths.Private, c.Paths.Public),
			Fixable:    true,
		}
	default:
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    "No deployment keypair",
			Suggestion: "Run 'appscale add-keypair' to create and distribute one.",
		}
	}
}

// Fix rebuilds a missing public key from the private one. A missing
// pair is left to add-keypair, which also installs it on the machines.
func (c *KeyPairCheck) Fix() error {
	if _, err := os.Stat(c.Paths.Private); err != nil {
		return nil
	}
	if _, err := os.Stat(c.Paths.Public); err == nil {
		return nil
	}

	data, err := os.ReadFile(c.Paths.Private)
	if err != nil {
		return err
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", c.Paths.Private, err)
	}

	pub := bytes.TrimRight(ssh.MarshalAuthorizedKey(signer.PublicKey()), "\n")
	line := fmt.Sprintf("%s %s\n", pub, keys.KeyName)
	return os.WriteFile(c.Paths.Public, []byte(line), 0o644)
}

// KeyPermissionsCheck verifies the private key isn't world readable.
// sshd on the cluster machines would refuse a sloppy key anyway.
type KeyPermissionsCheck struct {
	Paths keys.Paths
}

func (c *KeyPermissionsCheck) Name() string     { return "keys_permissions" }
func (c *KeyPermissionsCheck) Category() string { return "KEYS" }

func (c *KeyPermissionsCheck) Run() CheckResult {
	info, err := os.Stat(c.Paths.Private)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass, // KeyPairCheck reports the missing key
			Message: "No private key to check",
		}
	}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Private key permissions are %04o", perm),
			Suggestion: fmt.Sprintf("Fix: chmod 600 %s", c.Paths.Private),
			Fixable:    true,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "Private key permissions OK",
	}
}

func (c *KeyPermissionsCheck) Fix() error {
	info, err := os.Stat(c.Paths.Private)
	if err != nil {
		return nil
	}
	if info.Mode().Perm()&0o077 != 0 {
		return os.Chmod(c.Paths.Private, 0o600)
	}
	return nil
}

// NewKeyChecks creates the local keypair checks.
func NewKeyChecks(paths keys.Paths) []Check {
	return []Check{
		&DotDirCheck{Dir: filepath.Dir(paths.Private)},
		&KeyPairCheck{Paths: paths},
		&KeyPermissionsCheck{Paths: paths},
	}
}
