package doctor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// chdir moves into dir for the test, isolating HOME and pinning the
// config search with a .git boundary so nothing leaks in from the
// machine running the tests.
func chdir(t *testing.T, dir string) {
	t.Helper()
	t.Setenv("HOME", filepath.Join(dir, "no-such-home"))
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })
}

func writeAppScalefile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "AppScalefile")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigFileCheck(t *testing.T) {
	t.Run("explicit path that doesn't exist fails", func(t *testing.T) {
		check := &ConfigFileCheck{ConfigPath: filepath.Join(t.TempDir(), "nope")}
		result := check.Run()
		if result.Status != StatusFail {
			t.Errorf("expected fail, got %+v", result)
		}
	})

	t.Run("no AppScalefile anywhere warns", func(t *testing.T) {
		dir := t.TempDir()
		nested := filepath.Join(dir, "work")
		if err := os.MkdirAll(nested, 0o755); err != nil {
			t.Fatal(err)
		}
		chdir(t, dir)
		if err := os.Chdir(nested); err != nil {
			t.Fatal(err)
		}

		result := (&ConfigFileCheck{}).Run()
		if result.Status != StatusWarn {
			t.Fatalf("expected warn, got %+v", result)
		}
		if !strings.Contains(result.Suggestion, "appscale init") {
			t.Errorf("expected an init suggestion, got %q", result.Suggestion)
		}
	})

	t.Run("AppScalefile found passes", func(t *testing.T) {
		dir := t.TempDir()
		path := writeAppScalefile(t, dir, "verbose: true\n")
		chdir(t, dir)

		result := (&ConfigFileCheck{}).Run()
		if result.Status != StatusPass {
			t.Fatalf("expected pass, got %+v", result)
		}
		if !strings.Contains(result.Message, path) {
			t.Errorf("expected the path in the message, got %q", result.Message)
		}
	})
}

func TestConfigParseCheck(t *testing.T) {
	t.Run("nothing to parse passes quietly", func(t *testing.T) {
		chdir(t, t.TempDir())

		result := (&ConfigParseCheck{}).Run()
		if result.Status != StatusPass {
			t.Errorf("expected pass, got %+v", result)
		}
	})

	t.Run("broken YAML fails", func(t *testing.T) {
		dir := t.TempDir()
		writeAppScalefile(t, dir, "ips: [unclosed\n")
		chdir(t, dir)

		result := (&ConfigParseCheck{}).Run()
		if result.Status != StatusFail {
			t.Fatalf("expected fail, got %+v", result)
		}
		if !strings.Contains(result.Message, "doesn't parse") {
			t.Errorf("unexpected message %q", result.Message)
		}
	})

	t.Run("valid AppScalefile passes", func(t *testing.T) {
		dir := t.TempDir()
		writeAppScalefile(t, dir, "ips:\n  controller: 192.168.33.10\n")
		chdir(t, dir)

		result := (&ConfigParseCheck{}).Run()
		if result.Status != StatusPass {
			t.Errorf("expected pass, got %+v", result)
		}
	})
}

func TestLayoutCheck(t *testing.T) {
	t.Run("resolved layout passes with a summary", func(t *testing.T) {
		dir := t.TempDir()
		writeAppScalefile(t, dir, `
ips:
  controller: 192.168.33.10
  servers:
    - 192.168.33.11
`)
		chdir(t, dir)

		result := (&LayoutCheck{}).Run()
		if result.Status != StatusPass {
			t.Fatalf("expected pass, got %+v", result)
		}
		if !strings.Contains(result.Message, "2 machines") {
			t.Errorf("expected the machine count, got %q", result.Message)
		}
		if !strings.Contains(result.Message, "192.168.33.10") {
			t.Errorf("expected the head node, got %q", result.Message)
		}
	})

	t.Run("no layout configured warns", func(t *testing.T) {
		chdir(t, t.TempDir())

		result := (&LayoutCheck{}).Run()
		if result.Status != StatusWarn {
			t.Fatalf("expected warn, got %+v", result)
		}
		if !strings.Contains(result.Suggestion, "ips") {
			t.Errorf("expected an ips suggestion, got %q", result.Suggestion)
		}
	})

	t.Run("broken ips file fails", func(t *testing.T) {
		dir := t.TempDir()
		ipsFile := filepath.Join(dir, "ips.yaml")
		if err := os.WriteFile(ipsFile, []byte("servers:\n  - 192.168.33.11\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		chdir(t, dir)

		result := (&LayoutCheck{IPsFile: ipsFile}).Run()
		if result.Status != StatusFail {
			t.Fatalf("expected fail, got %+v", result)
		}
		if !strings.Contains(result.Message, "layout problem") {
			t.Errorf("unexpected message %q", result.Message)
		}
	})
}

func TestNewConfigChecks(t *testing.T) {
	checks := NewConfigChecks("", "")
	if len(checks) != 3 {
		t.Fatalf("expected 3 config checks, got %d", len(checks))
	}
	for _, c := range checks {
		if c.Category() != "CONFIG" {
			t.Errorf("%s: expected category CONFIG, got %s", c.Name(), c.Category())
		}
	}
}
