package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"strings"

	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/altoplano/appscale-tools/internal/probe"
)

// machineMode suppresses spinners, colors, and prose in favor of JSON
// envelopes on stdout. Set by the --json persistent flag.
var machineMode bool

// MachineMode returns true if machine-readable output is enabled
func MachineMode() bool {
	return machineMode
}

// JSONEnvelope is the outer structure of every --json response: either
// Data on success or Error on failure, never both.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// Error codes for machine-readable output.
// These map to specific actions an operator or automation can take.
const (
	ErrCodeConfigNotFound    = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid     = "CONFIG_INVALID"
	ErrCodeLayoutInvalid     = "LAYOUT_INVALID"
	ErrCodeSSHTimeout        = "SSH_TIMEOUT"
	ErrCodeSSHAuthFailed     = "SSH_AUTH_FAILED"
	ErrCodeSSHHostKey        = "SSH_HOST_KEY"
	ErrCodeSSHConnectionFail = "SSH_CONNECTION_FAILED"
	ErrCodeLockHeld          = "LOCK_HELD"
	ErrCodeCommandFailed     = "COMMAND_FAILED"
	ErrCodeDependencyMissing = "DEPENDENCY_MISSING"
	ErrCodeUnknown           = "UNKNOWN"
)

// provisioningTools lists the external commands key provisioning shells
// out to. A config error of the form "<tool> not found" naming one of
// these is a missing dependency, not a problem with the AppScalefile.
var provisioningTools = map[string]bool{
	"ssh-keygen":  true,
	"ssh-copy-id": true,
	"scp":         true,
	"expect":      true,
}

// writeEnvelope encodes one envelope, indented for readability in
// terminals and logs.
func writeEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	return writeEnvelope(w, JSONEnvelope{Success: true, Data: data})
}

// WriteJSONError writes an error response to the writer.
func WriteJSONError(w io.Writer, code, message, suggestion string, details interface{}) error {
	return writeEnvelope(w, JSONEnvelope{
		Error: &JSONError{
			Code:       code,
			Message:    message,
			Suggestion: suggestion,
			Details:    details,
		},
	})
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	return writeEnvelope(w, JSONEnvelope{Error: ErrorToJSON(err)})
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	// Probe failures carry their own code vocabulary. Check them first,
	// even when wrapped, so a timeout doesn't flatten into a generic
	// SSH failure.
	var probeErr *probe.Error
	if stderrors.As(err, &probeErr) {
		return probeErrorToJSON(probeErr)
	}

	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		return &JSONError{
			Code:       mapErrorCode(appErr.Code, appErr.Message),
			Message:    appErr.Message,
			Suggestion: appErr.Suggestion,
		}
	}

	return &JSONError{
		Code:    ErrCodeUnknown,
		Message: err.Error(),
	}
}

// mapErrorCode maps internal error codes to machine-readable codes.
func mapErrorCode(internalCode, message string) string {
	switch internalCode {
	case errors.ErrConfig:
		return configErrorCode(message)
	case errors.ErrLayout:
		return ErrCodeLayoutInvalid
	case errors.ErrSSH:
		return ErrCodeSSHConnectionFail
	case errors.ErrLock:
		return ErrCodeLockHeld
	case errors.ErrExec:
		return ErrCodeCommandFailed
	}
	return ErrCodeUnknown
}

// configErrorCode splits CONFIG errors into missing dependency, missing
// file, and invalid content.
func configErrorCode(message string) string {
	msg := strings.ToLower(message)

	if tool, ok := strings.CutSuffix(msg, " not found"); ok && provisioningTools[tool] {
		return ErrCodeDependencyMissing
	}
	if strings.Contains(msg, "not found") || strings.Contains(msg, "couldn't find") {
		return ErrCodeConfigNotFound
	}
	return ErrCodeConfigInvalid
}

// probeErrorToJSON converts a probe error to JSON with specific SSH error codes.
func probeErrorToJSON(probeErr *probe.Error) *JSONError {
	var suggestion string
	switch probeErr.Reason {
	case probe.FailTimeout:
		suggestion = "Check the machine is powered on and reachable: ping " + probeErr.Address
	case probe.FailAuth:
		suggestion = "Run 'appscale add-keypair' to install the deployment key on this machine"
	case probe.FailHostKey:
		suggestion = "Accept the host key: ssh -o StrictHostKeyChecking=accept-new root@" + probeErr.Address + " exit"
	case probe.FailRefused, probe.FailUnreachable:
		suggestion = "Check the machine is up and sshd is running"
	}

	return &JSONError{
		Code:       probeErr.Reason.Code(),
		Message:    probeErr.Error(),
		Suggestion: suggestion,
		Details: map[string]interface{}{
			"reason":  probeErr.Reason.String(),
			"address": probeErr.Address,
		},
	}
}
