package sshutil

import "io"

// SSHClient is the surface the rest of the tools program against.
// Both the real Client and the mock in pkg/sshutil/testing satisfy it,
// so code that checks cluster machines can run in tests without a
// network.
type SSHClient interface {
	// Exec runs a command and returns stdout, stderr, and exit code.
	// Exit code is -1 if the command couldn't be executed at all.
	// A non-zero exit code with nil error means the command ran but failed.
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)

	// ExecStream runs a command and streams output to the provided writers.
	// Returns the exit code and any error.
	ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error)

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the original target used to connect.
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string

	// NewSession creates a new SSH session for liveness checks.
	// The returned session should be closed after use.
	NewSession() (Session, error)
}

// Session is the minimal view of an SSH session. Opening one proves
// the connection is alive; callers close it and move on.
type Session interface {
	io.Closer
}
