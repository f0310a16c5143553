// Package probe checks whether cluster machines answer SSH. Failures
// come back categorized so callers can tell a machine that is off from
// one that rejects the deployment key.
package probe

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/altoplano/appscale-tools/pkg/sshutil"
)

// Error is a failed probe with a categorized reason.
type Error struct {
	Address string
	Reason  FailReason
	Cause   error
}

// FailReason categorizes why a probe failed.
type FailReason int

const (
	FailUnknown FailReason = iota
	FailTimeout
	FailRefused
	FailUnreachable
	FailAuth
	FailHostKey
)

// String returns a human-readable description of the failure reason.
func (r FailReason) String() string {
	switch r {
	case FailTimeout:
		return "connection timed out"
	case FailRefused:
		return "connection refused"
	case FailUnreachable:
		return "host unreachable"
	case FailAuth:
		return "authentication failed"
	case FailHostKey:
		return "host key verification failed"
	default:
		return "unknown error"
	}
}

// Code returns the stable machine-readable code for the failure,
// the vocabulary scripts consuming --json output match on.
func (r FailReason) Code() string {
	switch r {
	case FailTimeout:
		return "SSH_TIMEOUT"
	case FailAuth:
		return "SSH_AUTH_FAILED"
	case FailHostKey:
		return "SSH_HOST_KEY"
	default:
		return "SSH_CONNECTION_FAILED"
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("probe %s failed: %s (%v)", e.Address, e.Reason, e.Cause)
	}
	return fmt.Sprintf("probe %s failed: %s", e.Address, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Probe dials a machine over SSH with the given options and reports
// how long the connection took. The dial covers both the TCP connect
// and the handshake, so success means the machine is up and the key
// works.
func Probe(address string, opts sshutil.Options) (time.Duration, error) {
	start := time.Now()

	client, err := sshutil.Dial(address, opts)
	if err != nil {
		return 0, Categorize(address, err)
	}
	defer client.Close()

	return time.Since(start), nil
}

// ProbeTCP checks only that the SSH port answers, without a handshake.
// Cheaper than Probe when all that matters is whether the machine is
// up.
func ProbeTCP(address string, timeout time.Duration) (time.Duration, error) {
	start := time.Now()

	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return 0, Categorize(address, err)
	}
	defer conn.Close()

	return time.Since(start), nil
}

// Result is the outcome of probing one machine.
type Result struct {
	Address string
	Latency time.Duration
	Error   error
	Success bool
}

// ProbeAll probes machines one at a time, in the order given. Cluster
// layouts are small enough that sequential probing keeps the output
// deterministic without costing much.
func ProbeAll(addresses []string, opts sshutil.Options) []Result {
	results := make([]Result, len(addresses))

	for i, address := range addresses {
		latency, err := Probe(address, opts)
		results[i] = Result{
			Address: address,
			Latency: latency,
			Error:   err,
			Success: err == nil,
		}
	}

	return results
}

// Categorize converts a dial error into an Error with a reason. Exposed
// so callers holding a raw dial error, like doctor's remote checks, can
// classify it the same way a probe would.
func Categorize(address string, err error) *Error {
	if err == nil {
		return nil
	}

	probeErr := &Error{
		Address: address,
		Reason:  FailUnknown,
		Cause:   err,
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "i/o timeout"):
		probeErr.Reason = FailTimeout
	case strings.Contains(errStr, "connection refused"):
		probeErr.Reason = FailRefused
	case strings.Contains(errStr, "no route to host"),
		strings.Contains(errStr, "network is unreachable"),
		strings.Contains(errStr, "host is down"):
		probeErr.Reason = FailUnreachable
	case strings.Contains(errStr, "unable to authenticate"),
		strings.Contains(errStr, "no supported methods"),
		strings.Contains(errStr, "permission denied"),
		strings.Contains(errStr, "authentication failed"):
		probeErr.Reason = FailAuth
	case strings.Contains(errStr, "host key"):
		probeErr.Reason = FailHostKey
	}

	return probeErr
}
