// Package sshutil dials cluster machines over SSH. It resolves
// connection settings from ~/.ssh/config, authenticates with the
// deployment keypair, the SSH agent, or the user's default keys, and
// verifies host keys against known_hosts with errors a person can act
// on.
package sshutil

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/kevinburke/ssh_config"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// DefaultUser is the login user for cluster machines. Deployments
// install the keypair for root, so that is who we dial as unless the
// caller or ~/.ssh/config says otherwise.
const DefaultUser = "root"

// Options carries the connection parameters a caller resolves before
// dialing.
type Options struct {
	// User is the login user. Empty falls back to ~/.ssh/config, then
	// DefaultUser. An explicit user@host in the target wins over both.
	User string

	// IdentityFile is tried before the agent and the default keys.
	// Point it at the deployment's private key to verify the key that
	// provisioning installed.
	IdentityFile string

	// Timeout bounds the TCP dial. The SSH handshake carries its own
	// ten second limit.
	Timeout time.Duration
}

// Client wraps an SSH connection with the metadata callers report on.
type Client struct {
	*ssh.Client
	Host    string // the original target used to connect
	Address string // the resolved host:port
}

// StrictHostKeyChecking controls host key verification. When true
// (the default), host keys are checked against ~/.ssh/known_hosts.
// Turning it off is for automation against freshly imaged machines.
var StrictHostKeyChecking = true

// WarningHandler receives warning messages. When nil they go to
// log.Printf.
var WarningHandler func(message string)

var matchWarningOnce sync.Once

func emitWarning(message string) {
	if WarningHandler != nil {
		WarningHandler(message)
	} else {
		log.Printf("Warning: %s", message)
	}
}

// Dial connects to a cluster machine. The target can be an IP address,
// a hostname, an ~/.ssh/config alias, user@host, or host:port.
func Dial(target string, opts Options) (*Client, error) {
	t := resolveTarget(target, opts)

	config, err := clientConfig(t)
	if err != nil {
		var appErr *errors.Error
		if stderrors.As(err, &appErr) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't set up SSH for '%s'", target),
			"Check your keys are loaded: ssh-add -l")
	}

	address := t.address()
	conn, err := net.DialTimeout("tcp", address, opts.Timeout)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", target, address),
			dialSuggestion(err))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrSSH,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}

		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", target),
			handshakeSuggestion(err, t.encryptedKeys))
	}

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    target,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the original target used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// GetAddress returns the resolved host:port address.
func (c *Client) GetAddress() string {
	return c.Address
}

// NewSession creates a new SSH session. This satisfies the SSHClient
// interface; the exec methods use the concrete session directly.
func (c *Client) NewSession() (Session, error) {
	return c.Client.NewSession()
}

// target holds resolved connection parameters for one machine.
type target struct {
	hostname      string
	port          string
	user          string
	identityFile  string // from Options, tried first
	configKey     string // IdentityFile from ~/.ssh/config
	encryptedKeys []string
}

func (t *target) address() string {
	return net.JoinHostPort(t.hostname, t.port)
}

// resolveTarget parses the target string and layers ~/.ssh/config over
// the caller's options. Precedence for the user: explicit user@host,
// then Options.User, then the SSH config, then DefaultUser.
func resolveTarget(raw string, opts Options) *target {
	t := &target{
		port:         "22",
		user:         opts.User,
		identityFile: opts.IdentityFile,
	}

	host := raw
	explicitUser := false
	if at := strings.Index(host, "@"); at != -1 {
		t.user = host[:at]
		host = host[at+1:]
		explicitUser = true
	}

	// CI environments override the user when none was given.
	if !explicitUser && t.user == "" {
		t.user = os.Getenv("APPSCALE_TEST_SSH_USER")
	}

	if colon := strings.LastIndex(host, ":"); colon != -1 {
		if port := host[colon+1:]; isAllDigits(port) {
			t.port = port
			host = host[:colon]
		}
	}
	t.hostname = host

	applySSHConfig(t, host, explicitUser)

	if t.user == "" {
		t.user = DefaultUser
	}
	return t
}

// applySSHConfig fills in whatever ~/.ssh/config knows about the host.
// The kevinburke/ssh_config library doesn't understand Match blocks,
// so the config is cut off at the first one.
func applySSHConfig(t *target, host string, explicitUser bool) {
	path := filepath.Join(homeDir(), ".ssh", "config")
	content, matchLine, err := preprocessSSHConfig(path)
	if err != nil {
		// No config, nothing to apply.
		return
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return
	}

	found := false
	if hostname, _ := cfg.Get(host, "HostName"); hostname != "" {
		t.hostname = hostname
		found = true
	}
	if port, _ := cfg.Get(host, "Port"); port != "" {
		t.port = port
		found = true
	}
	if user, _ := cfg.Get(host, "User"); user != "" {
		if !explicitUser && t.user == "" {
			t.user = user
		}
		found = true
	}
	if identity, _ := cfg.Get(host, "IdentityFile"); identity != "" {
		t.configKey = expandPath(identity)
		found = true
	}

	if matchLine > 0 && !found {
		matchWarningOnce.Do(func() {
			emitWarning(fmt.Sprintf(
				"Host '%s' not found in SSH config (config has a Match block at line %d that may hide later entries). "+
					"If this host is defined after line %d, move it earlier in ~/.ssh/config.",
				host, matchLine, matchLine))
		})
	}
}

// clientConfig builds the SSH client config, collecting auth methods
// in the order they should be tried: the deployment key, the agent,
// the config's IdentityFile, then the user's default keys.
func clientConfig(t *target) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	tryKeyFile := func(keyPath string) {
		if keyPath == "" {
			return
		}
		auth, err := keyFileAuth(keyPath)
		if err != nil {
			var encErr *EncryptedKeyError
			if stderrors.As(err, &encErr) {
				t.encryptedKeys = append(t.encryptedKeys, keyPath)
			}
			// Missing or unreadable keys are skipped silently.
			return
		}
		authMethods = append(authMethods, auth)
	}

	tryKeyFile(t.identityFile)
	tryKeyFile(os.Getenv("APPSCALE_TEST_SSH_KEY"))

	if agentAuth := sshAgentAuth(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	tryKeyFile(t.configKey)
	for _, keyPath := range defaultKeyFiles() {
		if keyPath == t.identityFile || keyPath == t.configKey {
			continue
		}
		tryKeyFile(keyPath)
	}

	if len(authMethods) == 0 {
		msg := "No SSH auth methods available"
		suggestion := "Run 'appscale add-keypair' to provision a key, or load one: ssh-add -l"
		if len(t.encryptedKeys) > 0 {
			msg = fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(t.encryptedKeys, ", "))
			suggestion = encryptedKeySuggestion(t.encryptedKeys)
		}
		return nil, errors.New(errors.ErrSSH, msg, suggestion)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // explicit opt-out below
	if StrictHostKeyChecking {
		var err error
		hostKeyCallback, err = hostKeyChecker(filepath.Join(homeDir(), ".ssh", "known_hosts"))
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	}

	return &ssh.ClientConfig{
		User:            t.user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         10 * time.Second,
	}, nil
}

func defaultKeyFiles() []string {
	return []string{
		filepath.Join(homeDir(), ".ssh", "id_ed25519"),
		filepath.Join(homeDir(), ".ssh", "id_rsa"),
		filepath.Join(homeDir(), ".ssh", "id_ecdsa"),
	}
}

// The agent connection is shared across dials.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns agent-backed auth when the agent is reachable
// and actually holds keys. An empty agent placed before other methods
// just burns an auth attempt.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the shared SSH agent connection. Call it on the
// way out of the process.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// keyFileAuth loads a private key file. Returns EncryptedKeyError for
// keys that need a passphrase.
func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		if strings.Contains(err.Error(), "encrypted") ||
			strings.Contains(err.Error(), "passphrase") ||
			isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func dialSuggestion(err error) string {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return "Is SSH running on that machine? Try: ssh root@<addr>"
	case strings.Contains(errStr, "no route to host"),
		strings.Contains(errStr, "network is unreachable"):
		return "Can't route to the machine. Check your network connection."
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "i/o timeout"):
		return "Connection timed out. The machine might be off or firewalled."
	default:
		return "Make sure the machine is reachable: ping <addr>"
	}
}

func handshakeSuggestion(err error, encryptedKeys []string) string {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "unable to authenticate"),
		strings.Contains(errStr, "no supported methods"):
		if len(encryptedKeys) > 0 {
			return encryptedKeySuggestion(encryptedKeys)
		}
		return "Auth failed. Run 'appscale add-keypair' to install the key, or check: ssh-add -l"
	case strings.Contains(errStr, "host key"):
		return "Host key issue. Try connecting manually first: ssh root@<addr>"
	default:
		return "Something went wrong during SSH setup. Try: ssh root@<addr>"
	}
}

func encryptedKeySuggestion(keys []string) string {
	var sb strings.Builder
	sb.WriteString("Add your key(s) to the agent:\n")
	for _, key := range keys {
		if runtime.GOOS == "darwin" {
			sb.WriteString(fmt.Sprintf("  ssh-add --apple-use-keychain %s\n", key))
		} else {
			sb.WriteString(fmt.Sprintf("  ssh-add %s\n", key))
		}
	}
	sb.WriteString("\nNot sure which key? Check with: ssh -v <host>")
	return sb.String()
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError carries the context needed to explain a
// known_hosts verification failure.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
// Reimaged cluster machines hit this constantly.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The machine's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the machine was reimaged, remove the old entry:\n"+
			"    ssh-keygen -R %s\n\n"+
			"  Or update known_hosts with all key types:\n"+
			"    ssh-keyscan -t rsa,ecdsa,ed25519 %s >> %s",
		wantStr, e.ReceivedType, host, host, e.KnownHosts)
}

// preprocessSSHConfig reads the SSH config up to the first Match
// directive, returning the truncated content and the line the Match
// was on (0 when there is none).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED")) ||
		bytes.Contains(data, []byte("Proc-Type: 4,ENCRYPTED"))
}

// hostKeyChecker wraps the knownhosts callback so mismatches come back
// as HostKeyMismatchError. A missing known_hosts file is created empty
// rather than treated as an error.
func hostKeyChecker(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		dir := filepath.Dir(knownHostsPath)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0o600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err != nil {
			var keyErr *knownhosts.KeyError
			if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
				return &HostKeyMismatchError{
					Hostname:     hostname,
					ReceivedType: key.Type(),
					KnownHosts:   knownHostsPath,
					Want:         keyErr.Want,
				}
			}
		}
		return err
	}, nil
}
