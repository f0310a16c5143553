// Package doctor diagnoses a deployment environment. Checks cover the
// local tools and keys add-keypair depends on, the AppScalefile and
// its layout, and optionally the cluster machines themselves.
package doctor

import (
	"fmt"

	"github.com/altoplano/appscale-tools/internal/util"
)

// CheckStatus represents the result status of a check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

var statusNames = map[CheckStatus]string{
	StatusPass: "pass",
	StatusWarn: "warn",
	StatusFail: "fail",
}

// String returns a human-readable status string.
func (s CheckStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON emits the status as its string form so --json consumers
// match on "pass"/"warn"/"fail" instead of enum ordinals.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// CheckResult contains the outcome of running a check.
type CheckResult struct {
	Name       string      `json:"name"`
	Status     CheckStatus `json:"status"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Fixable    bool        `json:"fixable,omitempty"` // whether 'appscale fix' can address this
}

// Check defines the interface for diagnostic checks.
type Check interface {
	// Name returns the check's identifier.
	Name() string

	// Category returns the check's category (e.g. "TOOLS", "KEYS").
	Category() string

	// Run executes the check and returns the result.
	Run() CheckResult

	// Fix attempts to automatically fix the issue (if supported).
	// Returns nil if the fix succeeded or there was nothing to do.
	Fix() error
}

// RunAll executes checks in order and returns their results.
func RunAll(checks []Check) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		results = append(results, check.Run())
	}
	return results
}

// FixResult records one fix attempt.
type FixResult struct {
	Name  string `json:"name"`
	Fixed bool   `json:"fixed"`
	Error error  `json:"-"`
}

// FixAll runs Fix on every fixable check that reported an issue, then
// re-runs the check to confirm. Checks that still report an issue
// after their fix come back with Fixed false.
func FixAll(checks []Check, results []CheckResult) []FixResult {
	var fixes []FixResult

	for i, check := range checks {
		if i >= len(results) {
			break
		}
		r := results[i]
		if !r.Fixable || r.Status == StatusPass {
			continue
		}

		if err := check.Fix(); err != nil {
			fixes = append(fixes, FixResult{Name: r.Name, Error: err})
			continue
		}

		after := check.Run()
		fixes = append(fixes, FixResult{
			Name:  r.Name,
			Fixed: after.Status == StatusPass,
		})
	}

	return fixes
}

// GroupByCategory organizes checks by their category, preserving the
// order within each group.
func GroupByCategory(checks []Check) map[string][]Check {
	grouped := make(map[string][]Check)
	for _, check := range checks {
		grouped[check.Category()] = append(grouped[check.Category()], check)
	}
	return grouped
}

// CountByStatus counts results by status.
func CountByStatus(results []CheckResult) map[CheckStatus]int {
	counts := make(map[CheckStatus]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

// HasFailures returns true if any result has a fail status.
func HasFailures(results []CheckResult) bool {
	return CountByStatus(results)[StatusFail] > 0
}

// HasIssues returns true if any result has a fail or warn status.
func HasIssues(results []CheckResult) bool {
	counts := CountByStatus(results)
	return counts[StatusFail]+counts[StatusWarn] > 0
}

// FixableCount returns the number of issues fixable automatically.
func FixableCount(results []CheckResult) int {
	count := 0
	for _, r := range results {
		if r.Fixable && r.Status != StatusPass {
			count++
		}
	}
	return count
}

// Summary returns a one-line summary of the check results.
func Summary(results []CheckResult) string {
	counts := CountByStatus(results)
	issues := counts[StatusWarn] + counts[StatusFail]
	if issues == 0 {
		return "Everything looks good"
	}
	return fmt.Sprintf("%d %s found", issues, util.Pluralize(issues, "issue", "issues"))
}
