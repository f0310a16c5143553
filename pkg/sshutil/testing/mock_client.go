package testing

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/altoplano/appscale-tools/pkg/sshutil"
)

// CommandResponse is a canned response for a command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// MockClient simulates an SSH connection to a cluster machine. It
// parses the shell commands the tools run against machines (mkdir,
// cat, rm, test, which, uname) and executes them against a virtual
// filesystem, so checks and fixes can be tested without a cluster.
type MockClient struct {
	mu       sync.Mutex
	host     string
	address  string
	fs       *MockFS
	closed   bool
	commands map[string]CommandResponse // pattern -> response
}

// NewMockClient creates a mock machine with an empty filesystem.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:     host,
		address:  host + ":22",
		fs:       NewMockFS(),
		commands: make(map[string]CommandResponse),
	}
}

// canned looks up a registered response, trying exact patterns before
// regular expressions. Callers hold mu.
func (m *MockClient) canned(cmd string) (CommandResponse, bool) {
	if resp, ok := m.commands[cmd]; ok {
		return resp, true
	}
	for pattern, resp := range m.commands {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			return resp, true
		}
	}
	return CommandResponse{}, false
}

// Exec runs a command against the virtual machine. Canned responses
// registered with SetCommandResponse win over the built-in parser.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, -1, errors.New("connection closed")
	}
	if resp, ok := m.canned(cmd); ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}
	return m.runShell(cmd)
}

// ExecStream runs a command and writes its output to the given
// writers.
func (m *MockClient) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	out, errOut, code, execErr := m.Exec(cmd)
	if execErr != nil {
		return -1, execErr
	}

	if stdout != nil && len(out) > 0 {
		stdout.Write(out)
	}
	if stderr != nil && len(errOut) > 0 {
		stderr.Write(errOut)
	}

	return code, nil
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string {
	return m.host
}

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string {
	return m.address
}

// SetCommandResponse registers a canned response for a command. The
// pattern can be an exact string or a regular expression.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[pattern] = resp
}

// GetFS returns the machine's filesystem for direct setup in tests.
func (m *MockClient) GetFS() *MockFS {
	return m.fs
}

// mockSession is a minimal session that just closes.
type mockSession struct{}

func (s *mockSession) Close() error { return nil }

// NewSession creates a mock session for liveness checks.
func (m *MockClient) NewSession() (sshutil.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New("connection closed")
	}
	return &mockSession{}, nil
}

// runShell interprets the shell commands the tools run on cluster
// machines. Unknown commands succeed quietly.
func (m *MockClient) runShell(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	cmd = strings.TrimSuffix(cmd, " 2>/dev/null")
	cmd = strings.TrimSuffix(cmd, " 2>&1")
	cmd = strings.TrimSpace(cmd)

	switch {
	case strings.HasPrefix(cmd, "mkdir "):
		return m.runMkdir(cmd)
	case strings.HasPrefix(cmd, "cat >"):
		return m.runCatWrite(cmd)
	case strings.HasPrefix(cmd, "cat "):
		return m.runCatRead(cmd)
	case strings.HasPrefix(cmd, "rm -rf "):
		return m.runRm(cmd)
	case strings.HasPrefix(cmd, "test -"), strings.HasPrefix(cmd, "[ -"):
		return m.runTest(cmd)
	case strings.HasPrefix(cmd, "which "):
		return m.runWhich(cmd)
	case strings.HasPrefix(cmd, "uname"):
		return m.runUname(cmd)
	}

	return nil, nil, 0, nil
}

// runMkdir processes: mkdir [-p] path
func (m *MockClient) runMkdir(cmd string) ([]byte, []byte, int, error) {
	args := strings.TrimSpace(strings.TrimPrefix(cmd, "mkdir "))
	withParents := strings.HasPrefix(args, "-p ")
	if withParents {
		args = strings.TrimSpace(strings.TrimPrefix(args, "-p "))
	}

	path := extractPath(args)
	switch {
	case path == "":
		return nil, []byte("mkdir: missing operand"), 1, nil

	case withParents:
		if err := m.fs.MkdirAll(path); err != nil {
			return nil, []byte("mkdir: cannot create directory: " + err.Error()), 1, nil
		}

	default:
		if parent := filepath.Dir(path); parent != "" && parent != "/" && parent != "." && !m.fs.IsDir(parent) {
			return nil, []byte(fmt.Sprintf("mkdir: cannot create directory '%s': No such file or directory", path)), 1, nil
		}
		if err := m.fs.Mkdir(path); err != nil {
			return nil, []byte("mkdir: cannot create directory: " + err.Error()), 1, nil
		}
	}
	return nil, nil, 0, nil
}

// runCatWrite processes: cat > path << 'MARKER' ... MARKER
// A bare redirect with no heredoc writes an empty file.
func (m *MockClient) runCatWrite(cmd string) ([]byte, []byte, int, error) {
	_, rest, _ := strings.Cut(cmd, ">")

	target, heredoc, hasHeredoc := strings.Cut(strings.TrimSpace(rest), "<<")
	path := extractPath(strings.TrimSpace(target))
	if path == "" {
		return nil, []byte("cat: missing output file"), 1, nil
	}

	if !hasHeredoc {
		_ = m.fs.WriteFile(path, nil)
		return nil, nil, 0, nil
	}

	_ = m.fs.WriteFile(path, []byte(heredocBody(heredoc)))
	return nil, nil, 0, nil
}

// heredocBody extracts the content from a heredoc tail such as
// " 'MARKER'\nline one\nline two\nMARKER".
func heredocBody(s string) string {
	s = strings.TrimSpace(s)

	var marker string
	if strings.HasPrefix(s, "'") {
		if end := strings.Index(s[1:], "'"); end != -1 {
			marker = s[1 : end+1]
			s = strings.TrimSpace(s[end+2:])
		}
	} else if fields := strings.Fields(s); len(fields) > 0 {
		marker = fields[0]
		s = strings.TrimSpace(strings.TrimPrefix(s, marker))
	}

	if marker != "" {
		if idx := strings.LastIndex(s, marker); idx != -1 {
			s = s[:idx]
		}
	}

	s = strings.TrimPrefix(s, "\n")
	return strings.TrimSuffix(s, "\n")
}

// runCatRead processes: cat path
func (m *MockClient) runCatRead(cmd string) ([]byte, []byte, int, error) {
	path := extractPath(strings.TrimPrefix(cmd, "cat "))
	if path == "" {
		return nil, []byte("cat: missing file operand"), 1, nil
	}

	content, err := m.fs.ReadFile(path)
	if err != nil {
		return nil, []byte("cat: " + path + ": No such file or directory"), 1, nil
	}
	return content, nil, 0, nil
}

// runRm processes: rm -rf path
func (m *MockClient) runRm(cmd string) ([]byte, []byte, int, error) {
	path := extractPath(strings.TrimPrefix(cmd, "rm -rf "))
	if path == "" {
		return nil, []byte("rm: missing operand"), 1, nil
	}

	_ = m.fs.Remove(path)
	return nil, nil, 0, nil
}

// runTest processes: test -d path, test -f path, and the bracket
// spellings [ -d path ] and [ -f path ].
func (m *MockClient) runTest(cmd string) ([]byte, []byte, int, error) {
	expr := cmd
	if strings.HasPrefix(expr, "[ ") {
		expr = strings.TrimSuffix(strings.TrimPrefix(expr, "[ "), " ]")
	} else {
		expr = strings.TrimPrefix(expr, "test ")
	}

	flag, arg, _ := strings.Cut(expr, " ")
	path := extractPath(arg)

	var ok bool
	switch flag {
	case "-d":
		ok = m.fs.IsDir(path)
	case "-f":
		ok = m.fs.IsFile(path)
	}

	if ok {
		return nil, nil, 0, nil
	}
	return nil, nil, 1, nil
}

// stockTools mirrors what a stock cluster machine image has on PATH.
var stockTools = map[string]string{
	"bash":   "/bin/bash",
	"sh":     "/bin/sh",
	"cat":    "/bin/cat",
	"mkdir":  "/bin/mkdir",
	"rm":     "/bin/rm",
	"ssh":    "/usr/bin/ssh",
	"scp":    "/usr/bin/scp",
	"python": "/usr/bin/python",
}

// runWhich processes: which <command>
func (m *MockClient) runWhich(cmd string) ([]byte, []byte, int, error) {
	name := strings.TrimSpace(strings.TrimPrefix(cmd, "which "))
	if path, ok := stockTools[name]; ok {
		return []byte(path + "\n"), nil, 0, nil
	}
	return nil, nil, 1, nil
}

// runUname processes: uname [-s|-r|-a]
func (m *MockClient) runUname(cmd string) ([]byte, []byte, int, error) {
	switch {
	case strings.Contains(cmd, "-a"):
		return []byte("Linux appscale-node 5.15.0-generic #1 SMP x86_64 GNU/Linux\n"), nil, 0, nil
	case strings.Contains(cmd, "-r"):
		return []byte("5.15.0-generic\n"), nil, 0, nil
	default:
		return []byte("Linux\n"), nil, 0, nil
	}
}

// extractPath pulls a path out of a command argument, quoted or not.
func extractPath(arg string) string {
	arg = strings.TrimSpace(arg)

	for _, quote := range []byte{'"', '\''} {
		if len(arg) > 0 && arg[0] == quote {
			if end := strings.IndexByte(arg[1:], quote); end != -1 {
				return arg[1 : end+1]
			}
		}
	}

	if fields := strings.Fields(arg); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
