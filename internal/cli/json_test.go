package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/altoplano/appscale-tools/internal/probe"
)

func TestWriteJSONSuccess(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSONSuccess(&buf, map[string]interface{}{
		"key_path": "/home/user/.appscale/appscale",
	})
	require.NoError(t, err)

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))

	assert.True(t, env.Success)
	assert.Nil(t, env.Error)

	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "/home/user/.appscale/appscale", data["key_path"])
}

func TestWriteJSONError(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSONError(&buf, ErrCodeLockHeld, "Another appscale command is running", "Wait for it to finish", nil)
	require.NoError(t, err)

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))

	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeLockHeld, env.Error.Code)
	assert.Equal(t, "Another appscale command is running", env.Error.Message)
	assert.Equal(t, "Wait for it to finish", env.Error.Suggestion)
}

func TestWriteJSONFromError(t *testing.T) {
	var buf bytes.Buffer
	srcErr := errors.New(errors.ErrLayout, "controller must be a single address", "Fix the ips section")
	require.NoError(t, WriteJSONFromError(&buf, srcErr))

	var env JSONEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))

	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeLayoutInvalid, env.Error.Code)
	assert.Equal(t, "controller must be a single address", env.Error.Message)
}

func TestWriteJSONEnvelope_Indented(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONSuccess(&buf, map[string]interface{}{"a": 1}))
	assert.Contains(t, buf.String(), "\n  ")
}

func TestErrorToJSON_Nil(t *testing.T) {
	assert.Nil(t, ErrorToJSON(nil))
}

func TestErrorToJSON_AllInternalErrorCodes(t *testing.T) {
	tests := []struct {
		name         string
		internalCode string
		message      string
		wantCode     string
	}{
		{"config invalid", errors.ErrConfig, "AppScalefile has a bad ips section", ErrCodeConfigInvalid},
		{"config not found", errors.ErrConfig, "Couldn't find an AppScalefile", ErrCodeConfigNotFound},
		{"layout", errors.ErrLayout, "controller must be a single address", ErrCodeLayoutInvalid},
		{"ssh", errors.ErrSSH, "Couldn't reach root@192.168.33.10", ErrCodeSSHConnectionFail},
		{"lock", errors.ErrLock, "Another appscale command is running", ErrCodeLockHeld},
		{"exec", errors.ErrExec, "ssh-keygen exited with status 1", ErrCodeCommandFailed},
		{"unknown internal code", "BOGUS", "something odd", ErrCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jsonErr := ErrorToJSON(errors.New(tt.internalCode, tt.message, ""))
			require.NotNil(t, jsonErr)
			assert.Equal(t, tt.wantCode, jsonErr.Code)
			assert.Equal(t, tt.message, jsonErr.Message)
		})
	}
}

func TestErrorToJSON_ConfigNotFoundVsInvalid(t *testing.T) {
	tests := []struct {
		message  string
		wantCode string
	}{
		{"AppScalefile not found", ErrCodeConfigNotFound},
		{"Couldn't find an AppScalefile", ErrCodeConfigNotFound},
		{"ips_file points to a file that was not found", ErrCodeConfigNotFound},
		{"AppScalefile has invalid YAML", ErrCodeConfigInvalid},
		{"replication must be a positive number", ErrCodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			jsonErr := ErrorToJSON(errors.New(errors.ErrConfig, tt.message, ""))
			require.NotNil(t, jsonErr)
			assert.Equal(t, tt.wantCode, jsonErr.Code)
		})
	}
}

func TestErrorToJSON_MissingToolIsDependency(t *testing.T) {
	// Tool-not-found is a missing dependency, not a config file problem,
	// even though both carry the CONFIG code internally.
	for _, tool := range []string{"ssh-keygen", "ssh-copy-id", "scp", "expect"} {
		t.Run(tool, func(t *testing.T) {
			jsonErr := ErrorToJSON(errors.NewMissingTool(tool))
			require.NotNil(t, jsonErr)
			assert.Equal(t, ErrCodeDependencyMissing, jsonErr.Code)
			assert.Contains(t, jsonErr.Suggestion, "Install")
		})
	}

	// An unrelated "not found" still reads as a missing config.
	jsonErr := ErrorToJSON(errors.New(errors.ErrConfig, "frobnicator not found", ""))
	require.NotNil(t, jsonErr)
	assert.Equal(t, ErrCodeConfigNotFound, jsonErr.Code)
}

func TestErrorToJSON_WrappedStructuredError(t *testing.T) {
	inner := errors.New(errors.ErrLock, "Another appscale command is running", "Wait for it to finish")
	wrapped := fmt.Errorf("add-keypair: %w", inner)

	jsonErr := ErrorToJSON(wrapped)
	require.NotNil(t, jsonErr)
	assert.Equal(t, ErrCodeLockHeld, jsonErr.Code)
	assert.Equal(t, "Another appscale command is running", jsonErr.Message)
	assert.Equal(t, "Wait for it to finish", jsonErr.Suggestion)
}

func TestErrorToJSON_WrappedProbeError(t *testing.T) {
	inner := &probe.Error{Address: "192.168.33.10", Reason: probe.FailTimeout}
	wrapped := fmt.Errorf("probing: %w", inner)

	jsonErr := ErrorToJSON(wrapped)
	require.NotNil(t, jsonErr)
	assert.Equal(t, ErrCodeSSHTimeout, jsonErr.Code)
}

func TestErrorToJSON_ProbeErrorInsideStructuredError(t *testing.T) {
	// The probe reason wins over the outer wrapper's generic SSH code.
	inner := &probe.Error{Address: "192.168.33.10", Reason: probe.FailAuth}
	outer := errors.WrapWithCode(inner, errors.ErrSSH, "Couldn't reach 192.168.33.10", "")

	jsonErr := ErrorToJSON(outer)
	require.NotNil(t, jsonErr)
	assert.Equal(t, ErrCodeSSHAuthFailed, jsonErr.Code)
}

func TestErrorToJSON_GenericError(t *testing.T) {
	jsonErr := ErrorToJSON(fmt.Errorf("something unexpected"))
	require.NotNil(t, jsonErr)
	assert.Equal(t, ErrCodeUnknown, jsonErr.Code)
	assert.Equal(t, "something unexpected", jsonErr.Message)
}

func TestProbeErrorToJSON_AllReasons(t *testing.T) {
	tests := []struct {
		reason   probe.FailReason
		wantCode string
	}{
		{probe.FailTimeout, ErrCodeSSHTimeout},
		{probe.FailAuth, ErrCodeSSHAuthFailed},
		{probe.FailHostKey, ErrCodeSSHHostKey},
		{probe.FailRefused, ErrCodeSSHConnectionFail},
		{probe.FailUnreachable, ErrCodeSSHConnectionFail},
		{probe.FailUnknown, ErrCodeSSHConnectionFail},
	}

	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			jsonErr := probeErrorToJSON(&probe.Error{Address: "192.168.33.10", Reason: tt.reason})
			require.NotNil(t, jsonErr)
			assert.Equal(t, tt.wantCode, jsonErr.Code)

			details, ok := jsonErr.Details.(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, "192.168.33.10", details["address"])
			assert.Equal(t, tt.reason.String(), details["reason"])
		})
	}
}

func TestProbeErrorToJSON_Suggestions(t *testing.T) {
	tests := []struct {
		reason       probe.FailReason
		wantContains string
	}{
		{probe.FailTimeout, "ping"},
		{probe.FailAuth, "add-keypair"},
		{probe.FailHostKey, "StrictHostKeyChecking"},
		{probe.FailRefused, "sshd"},
	}

	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			jsonErr := probeErrorToJSON(&probe.Error{Address: "192.168.33.10", Reason: tt.reason})
			require.NotNil(t, jsonErr)
			assert.Contains(t, jsonErr.Suggestion, tt.wantContains)
		})
	}
}

func TestErrorCodes_AreUnique(t *testing.T) {
	codes := []string{
		ErrCodeConfigNotFound,
		ErrCodeConfigInvalid,
		ErrCodeLayoutInvalid,
		ErrCodeSSHTimeout,
		ErrCodeSSHAuthFailed,
		ErrCodeSSHHostKey,
		ErrCodeSSHConnectionFail,
		ErrCodeLockHeld,
		ErrCodeCommandFailed,
		ErrCodeDependencyMissing,
		ErrCodeUnknown,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestErrorCodes_Format(t *testing.T) {
	upperSnake := regexp.MustCompile(`^[A-Z]+(_[A-Z]+)*$`)

	codes := []string{
		ErrCodeConfigNotFound,
		ErrCodeConfigInvalid,
		ErrCodeLayoutInvalid,
		ErrCodeSSHTimeout,
		ErrCodeSSHAuthFailed,
		ErrCodeSSHHostKey,
		ErrCodeSSHConnectionFail,
		ErrCodeLockHeld,
		ErrCodeCommandFailed,
		ErrCodeDependencyMissing,
		ErrCodeUnknown,
	}

	for _, code := range codes {
		assert.True(t, upperSnake.MatchString(code), "code %q is not UPPER_SNAKE", code)
	}
}
