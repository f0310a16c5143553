// Package exec provides the process-execution and file-copy capabilities
// the provisioning code is built on. Callers depend on the Runner and
// FileCopier interfaces so tests can substitute fakes without spawning
// real processes.
package exec

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/altoplano/appscale-tools/internal/logger"
	"github.com/altoplano/appscale-tools/internal/util"
)

// Result carries the captured output of a completed command.
// A non-zero ExitCode is not an error at this layer; callers decide
// what a failed command means.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Local runs commands as real OS processes.
type Local struct {
	// Dir is the working directory for spawned commands. Empty means
	// inherit the current directory.
	Dir string

	log logger.Logger
}

// NewLocal creates a Runner that spawns real processes.
func NewLocal() *Local {
	return &Local{log: logger.NewEnvLogger("[exec]")}
}

// NewLocalWithLogger creates a Runner with a custom logger.
func NewLocalWithLogger(log logger.Logger) *Local {
	return &Local{log: log}
}

// Run executes name with args and captures its output.
// A command that starts but exits non-zero returns a Result with the
// exit code and a nil error. A command that cannot be started at all
// returns an EXEC-coded error.
func (l *Local) Run(ctx context.Context, name string, args ...string) (Result, error) {
	l.log.Debug("running: %s", FormatCommand(name, args))

	command := exec.CommandContext(ctx, name, args...)
	if l.Dir != "" {
		command.Dir = l.Dir
	}

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	runErr := command.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if runErr != nil {
		// Cancelled or timed out contexts surface as the context's error
		// so callers can tell interruption apart from command failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			result.ExitCode = -1
			return result, errors.WrapWithCode(ctxErr, errors.ErrExec,
				"Command interrupted: "+name,
				"The operation was cancelled before the command finished.")
		}

		// Check if it's an exit error (command ran but returned non-zero)
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}

		// Actual execution failure
		result.ExitCode = -1
		return result, errors.WrapWithCode(runErr, errors.ErrExec,
			"Couldn't run "+name,
			"Make sure the command exists and is executable.")
	}

	result.ExitCode = 0
	return result, nil
}

// FormatCommand renders a command line for display. Arguments containing
// whitespace or quotes are shell-quoted so the output can be pasted back
// into a shell.
func FormatCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, arg := range args {
		if strings.ContainsAny(arg, " \t'\"$") {
			parts = append(parts, util.ShellQuote(arg))
		} else {
			parts = append(parts, arg)
		}
	}
	return strings.Join(parts, " ")
}
