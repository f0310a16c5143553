// Package testing provides test doubles for the exec package.
package testing

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/altoplano/appscale-tools/internal/exec"
)

// Call records one command the FakeRunner was asked to run.
type Call struct {
	Name string
	Args []string
}

// String renders the call the way it would appear on a shell command line.
func (c Call) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Response is a canned result for a command pattern.
type Response struct {
	Result exec.Result
	Err    error
}

type patternResponse struct {
	pattern string
	re      *regexp.Regexp
	resp    Response
}

// FakeRunner simulates command execution for testing.
// Commands are matched against registered patterns in registration order;
// the first match wins. Unmatched commands succeed with empty output.
type FakeRunner struct {
	mu        sync.Mutex
	responses []patternResponse

	// Calls records every command in the order it was run.
	Calls []Call
}

// NewFakeRunner creates a FakeRunner where every command succeeds
// until responses are registered.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// Respond registers a canned response for commands matching pattern.
// The pattern is a regular expression matched against the full rendered
// command line (name and arguments joined by spaces).
func (r *FakeRunner) Respond(pattern string, resp Response) *FakeRunner {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.responses = append(r.responses, patternResponse{
		pattern: pattern,
		re:      regexp.MustCompile(pattern),
		resp:    resp,
	})
	return r
}

// Fail registers a pattern whose commands exit with the given code and stderr.
func (r *FakeRunner) Fail(pattern string, exitCode int, stderr string) *FakeRunner {
	return r.Respond(pattern, Response{
		Result: exec.Result{Stderr: stderr, ExitCode: exitCode},
	})
}

// Run records the call and returns the first matching canned response.
func (r *FakeRunner) Run(_ context.Context, name string, args ...string) (exec.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call := Call{Name: name, Args: args}
	r.Calls = append(r.Calls, call)

	line := call.String()
	for _, pr := range r.responses {
		if pr.re.MatchString(line) {
			return pr.resp.Result, pr.resp.Err
		}
	}

	return exec.Result{ExitCode: 0}, nil
}

// CallLines returns every recorded call as a rendered command line.
func (r *FakeRunner) CallLines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		lines[i] = c.String()
	}
	return lines
}

// CallsMatching returns the recorded calls whose rendered line matches pattern.
func (r *FakeRunner) CallsMatching(pattern string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	re := regexp.MustCompile(pattern)
	var matched []Call
	for _, c := range r.Calls {
		if re.MatchString(c.String()) {
			matched = append(matched, c)
		}
	}
	return matched
}

// CountMatching returns how many recorded calls match pattern.
func (r *FakeRunner) CountMatching(pattern string) int {
	return len(r.CallsMatching(pattern))
}

// Reset clears recorded calls but keeps registered responses.
func (r *FakeRunner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = nil
}

// CopyCall records one file copy the FakeCopier performed.
type CopyCall struct {
	Src string
	Dst string
}

// FakeCopier simulates local file copies for testing.
type FakeCopier struct {
	mu sync.Mutex

	// Calls records every copy in order.
	Calls []CopyCall

	// Err, when set, is returned from every Copy.
	Err error
}

// NewFakeCopier creates a FakeCopier where every copy succeeds.
func NewFakeCopier() *FakeCopier {
	return &FakeCopier{}
}

// Copy records the call and returns the configured error, if any.
func (c *FakeCopier) Copy(src, dst string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls = append(c.Calls, CopyCall{Src: src, Dst: dst})
	return c.Err
}

// Reset clears recorded copies.
func (c *FakeCopier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = nil
}
