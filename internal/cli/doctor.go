package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/altoplano/appscale-tools/internal/config"
	"github.com/altoplano/appscale-tools/internal/doctor"
	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/altoplano/appscale-tools/internal/keys"
	"github.com/altoplano/appscale-tools/internal/lock"
	"github.com/altoplano/appscale-tools/internal/ui"
	"github.com/altoplano/appscale-tools/pkg/sshutil"
)

// Flags for doctor
var doctorRemote bool

// doctorCmd diagnoses the local environment and, with --remote, the
// machines themselves.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check your environment for deployment problems",
	Long: `Run diagnostic checks against your environment.

Checks the provisioning tools, the deployment keypair, the
AppScalefile, SSH settings, and lock state. With --remote, each machine
in the layout is dialed and its key installation verified too.

Exits non-zero when any check fails, so it can gate scripts.

Examples:
  appscale doctor
  appscale doctor --remote
  appscale doctor --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doctorCommand(doctorRemote)
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorRemote, "remote", false, "also verify key installation on every machine over SSH")
}

// doctorCheckJSON is one check in the --json doctor output.
type doctorCheckJSON struct {
	doctor.CheckResult
	Category string `json:"category"`
}

// DoctorSummary is the summary block of the --json doctor output.
type DoctorSummary struct {
	Pass     int  `json:"pass"`
	Warn     int  `json:"warn"`
	Fail     int  `json:"fail"`
	Fixable  int  `json:"fixable"`
	AllClear bool `json:"all_clear"`
}

// doctorCommand implements the doctor command logic.
func doctorCommand(remote bool) error {
	checks, cleanup, err := collectChecks(remote)
	if err != nil {
		return err
	}
	defer cleanup()

	results := doctor.RunAll(checks)

	if machineMode {
		if err := outputDoctorJSON(checks, results); err != nil {
			return err
		}
	} else {
		outputDoctorText(checks, results)
	}

	if doctor.HasFailures(results) {
		return errors.NewExitError(1)
	}
	return nil
}

// collectChecks builds the full check list. The returned cleanup
// closes any SSH connections --remote opened.
func collectChecks(remote bool) ([]doctor.Check, func(), error) {
	paths, err := keys.DefaultPaths()
	if err != nil {
		return nil, nil, err
	}
	lockDir, err := lock.DefaultPath()
	if err != nil {
		return nil, nil, err
	}

	// The config checks load the configuration themselves so a broken
	// AppScalefile shows up as a finding, not a crash. Here it's only
	// needed for the lock policy and the machine addresses, with
	// defaults when it won't load.
	stale := config.DefaultConfig().Lock.Stale
	var addresses []string
	if cfg, cfgErr := config.LoadOrDefault(Config()); cfgErr == nil {
		stale = cfg.Lock.Stale
		if lay, _, layErr := cfg.Layout(""); layErr == nil {
			addresses = lay.Addresses()
		}
	}

	checks := doctor.NewToolChecks()
	checks = append(checks, doctor.NewKeyChecks(paths)...)
	checks = append(checks, doctor.NewConfigChecks(Config(), "")...)
	checks = append(checks, doctor.NewSSHChecks(addresses)...)
	checks = append(checks, doctor.NewLockChecks(lockDir, stale)...)

	cleanup := func() {}
	if remote {
		var clients []sshutil.SSHClient

		publicKey := ""
		if pub, readErr := os.ReadFile(paths.Public); readErr == nil {
			publicKey = strings.TrimSpace(string(pub))
		}

		for _, addr := range addresses {
			// client stays a nil interface when the dial fails, so the
			// checks' nil guards work. Assigning a nil *sshutil.Client
			// directly would give them a non-nil interface to trip over.
			var client sshutil.SSHClient
			conn, dialErr := sshutil.Dial(addr, sshutil.Options{
				User:         sshutil.DefaultUser,
				IdentityFile: paths.Private,
				Timeout:      probeTimeout,
			})
			if dialErr == nil {
				client = conn
				clients = append(clients, conn)
			}
			checks = append(checks, doctor.NewRemoteChecks(addr, client, dialErr, publicKey)...)
		}

		cleanup = func() {
			for _, c := range clients {
				c.Close()
			}
		}
	}

	return checks, cleanup, nil
}

// outputDoctorText renders the check table and summary for humans.
func outputDoctorText(checks []doctor.Check, results []doctor.CheckResult) {
	// Diagnostics start with the version banner because doctor output
	// is what ends up pasted into bug reports.
	ui.PrintHeader(ui.HeaderInfo{Version: formatVersion(GetVersion())})

	rows := make([]ui.DoctorCheckRow, len(results))
	for i, r := range results {
		rows[i] = ui.DoctorCheckRow{
			Status:     r.Status.String(),
			Category:   checks[i].Category(),
			Message:    r.Message,
			Suggestion: r.Suggestion,
		}
	}

	fmt.Print(ui.RenderDoctorTable(rows))
	fmt.Printf("\n%s\n", doctor.Summary(results))

	if doctor.HasIssues(results) && doctor.FixableCount(results) > 0 {
		fmt.Println("Run 'appscale fix' to apply automatic fixes.")
	}
}

// outputDoctorJSON emits every check result plus a summary block.
func outputDoctorJSON(checks []doctor.Check, results []doctor.CheckResult) error {
	out := make([]doctorCheckJSON, len(results))
	for i, r := range results {
		out[i] = doctorCheckJSON{CheckResult: r, Category: checks[i].Category()}
	}

	counts := doctor.CountByStatus(results)
	summary := DoctorSummary{
		Pass:     counts[doctor.StatusPass],
		Warn:     counts[doctor.StatusWarn],
		Fail:     counts[doctor.StatusFail],
		Fixable:  doctor.FixableCount(results),
		AllClear: !doctor.HasIssues(results),
	}

	return WriteJSONSuccess(os.Stdout, map[string]interface{}{
		"checks":  out,
		"summary": summary,
	})
}
