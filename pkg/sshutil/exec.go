package sshutil

import (
	"bytes"
	"fmt"
	"io"

	"github.com/altoplano/appscale-tools/internal/errors"
	"golang.org/x/crypto/ssh"
)

// run opens a session, wires the writers, and executes cmd. A non-zero
// exit from the remote command comes back as the exit code with a nil
// error; -1 means the command never ran at all.
func (c *Client) run(cmd string, stdout, stderr io.Writer) (int, error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Run(cmd); err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			return exitErr.ExitStatus(), nil
		}
		return -1, errors.WrapWithCode(err, errors.ErrExec,
			fmt.Sprintf("Failed to execute command: %s", cmd),
			"Check if the command exists on the remote machine.")
	}
	return 0, nil
}

// Exec runs a command on the remote machine and returns its captured
// stdout and stderr alongside the exit code.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	var outBuf, errBuf bytes.Buffer
	exitCode, err = c.run(cmd, &outBuf, &errBuf)
	if err != nil {
		return nil, nil, exitCode, err
	}
	return outBuf.Bytes(), errBuf.Bytes(), exitCode, nil
}

// ExecStream runs a command with output delivered to the caller's
// writers as it arrives, for long-running remote work whose progress
// should be visible.
func (c *Client) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	return c.run(cmd, stdout, stderr)
}
