package doctor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSSHAgentCheck(t *testing.T) {
	t.Run("no agent warns", func(t *testing.T) {
		t.Setenv("SSH_AUTH_SOCK", "")

		result := (&SSHAgentCheck{}).Run()
		if result.Status != StatusWarn {
			t.Fatalf("expected warn, got %+v", result)
		}
		if !strings.Contains(result.Suggestion, "ssh-agent") {
			t.Errorf("expected an ssh-agent hint, got %q", result.Suggestion)
		}
	})

	t.Run("dead socket warns", func(t *testing.T) {
		t.Setenv("SSH_AUTH_SOCK", filepath.Join(t.TempDir(), "agent.sock"))

		result := (&SSHAgentCheck{}).Run()
		if result.Status != StatusWarn {
			t.Fatalf("expected warn, got %+v", result)
		}
		if !strings.Contains(result.Message, "not accessible") {
			t.Errorf("unexpected message %q", result.Message)
		}
	})
}

func TestSSHConfigCheck(t *testing.T) {
	t.Run("no machines passes", func(t *testing.T) {
		result := (&SSHConfigCheck{}).Run()
		if result.Status != StatusPass {
			t.Errorf("expected pass, got %+v", result)
		}
	})

	t.Run("no config file passes", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())

		result := (&SSHConfigCheck{Addresses: []string{"192.168.33.10"}}).Run()
		if result.Status != StatusPass {
			t.Errorf("expected pass, got %+v", result)
		}
	})

	t.Run("overriding entries warn", func(t *testing.T) {
		home := t.TempDir()
		writeUserSSHConfig(t, home, `
Host 192.168.33.10
    User deploy

Host 192.168.33.11
    IdentityFile ~/.ssh/personal_key
`)
		t.Setenv("HOME", home)

		check := &SSHConfigCheck{Addresses: []string{"192.168.33.10", "192.168.33.11", "192.168.33.12"}}
		result := check.Run()

		if result.Status != StatusWarn {
			t.Fatalf("expected warn, got %+v", result)
		}
		if !strings.Contains(result.Message, "192.168.33.10 (user deploy)") {
			t.Errorf("expected the user override, got %q", result.Message)
		}
		if !strings.Contains(result.Message, "192.168.33.11 (identity") {
			t.Errorf("expected the identity override, got %q", result.Message)
		}
		if strings.Contains(result.Message, "192.168.33.12") {
			t.Errorf("machine without an entry should not be flagged: %q", result.Message)
		}
	})

	t.Run("harmless entries pass", func(t *testing.T) {
		home := t.TempDir()
		writeUserSSHConfig(t, home, `
Host 192.168.33.10
    User root

Host head
    Hostname 192.168.33.11
`)
		t.Setenv("HOME", home)

		check := &SSHConfigCheck{Addresses: []string{"192.168.33.10", "192.168.33.11"}}
		result := check.Run()

		if result.Status != StatusPass {
			t.Errorf("expected pass, got %+v", result)
		}
	})
}

func TestNewSSHChecks(t *testing.T) {
	checks := NewSSHChecks([]string{"192.168.33.10"})
	if len(checks) != 2 {
		t.Fatalf("expected 2 SSH checks, got %d", len(checks))
	}
	for _, c := range checks {
		if c.Category() != "SSH" {
			t.Errorf("%s: expected category SSH, got %s", c.Name(), c.Category())
		}
	}
}

func writeUserSSHConfig(t *testing.T, home, content string) {
	t.Helper()
	dir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}
