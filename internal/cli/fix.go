package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/altoplano/appscale-tools/internal/doctor"
	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/altoplano/appscale-tools/internal/ui"
	"github.com/altoplano/appscale-tools/internal/util"
)

// Flags for fix
var (
	fixYes    bool
	fixRemote bool
)

// fixCmd applies the automatic fixes doctor knows about.
var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Apply automatic fixes for doctor findings",
	Long: `Run the doctor checks and apply automatic fixes where possible.

Only a subset of problems can be fixed automatically: a missing
~/.appscale directory, key file permissions, a public key lost from an
existing private one, stale locks, and (with --remote) a deployment
key missing from a machine's authorized keys. Everything else still
needs a human.

Examples:
  appscale fix
  appscale fix --remote
  appscale fix --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return fixCommand(fixYes, fixRemote)
	},
}

func init() {
	rootCmd.AddCommand(fixCmd)
	fixCmd.Flags().BoolVarP(&fixYes, "yes", "y", false, "skip the confirmation prompt")
	fixCmd.Flags().BoolVar(&fixRemote, "remote", false, "also fix key installation on machines over SSH")
}

// fixResultJSON is one fix attempt in the --json output.
type fixResultJSON struct {
	Name  string `json:"name"`
	Fixed bool   `json:"fixed"`
	Error string `json:"error,omitempty"`
}

// fixCommand implements the fix command logic.
func fixCommand(autoYes, remote bool) error {
	checks, cleanup, err := collectChecks(remote)
	if err != nil {
		return err
	}
	defer cleanup()

	results := doctor.RunAll(checks)

	var findings []doctor.CheckResult
	for _, r := range results {
		if r.Fixable && r.Status != doctor.StatusPass {
			findings = append(findings, r)
		}
	}

	if len(findings) == 0 {
		if machineMode {
			return WriteJSONSuccess(os.Stdout, map[string]interface{}{
				"fixes": []fixResultJSON{},
			})
		}
		fmt.Println("Nothing to fix.")
		return nil
	}

	if !machineMode {
		fmt.Printf("Found %d fixable %s:\n\n", len(findings),
			util.Pluralize(len(findings), "problem", "problems"))
		for _, f := range findings {
			fmt.Printf("  %s %s\n", ui.WarningStyle().Render(ui.SymbolWarning), f.Message)
		}
		fmt.Println()

		if !autoYes && term.IsTerminal(int(os.Stdin.Fd())) {
			var proceed bool
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewConfirm().
						Title(fmt.Sprintf("Apply %d automatic %s?", len(findings),
							util.Pluralize(len(findings), "fix", "fixes"))).
						Value(&proceed),
				),
			)
			if err := form.Run(); err != nil || !proceed {
				fmt.Println("Cancelled.")
				return nil
			}
		}
	}

	fixes := doctor.FixAll(checks, results)

	if machineMode {
		out := make([]fixResultJSON, len(fixes))
		for i, f := range fixes {
			out[i] = fixResultJSON{Name: f.Name, Fixed: f.Fixed}
			if f.Error != nil {
				out[i].Error = f.Error.Error()
			}
		}
		if err := WriteJSONSuccess(os.Stdout, map[string]interface{}{"fixes": out}); err != nil {
			return err
		}
		if anyFixFailed(fixes) {
			return errors.NewExitError(1)
		}
		return nil
	}

	for _, f := range fixes {
		switch {
		case f.Error != nil:
			fmt.Printf("%s %s: %v\n", ui.ErrorStyle().Render(ui.SymbolFail), f.Name, f.Error)
		case f.Fixed:
			fmt.Printf("%s %s fixed\n", ui.SuccessStyle().Render(ui.SymbolSuccess), f.Name)
		default:
			fmt.Printf("%s %s still failing after fix\n", ui.WarningStyle().Render(ui.SymbolWarning), f.Name)
		}
	}

	if anyFixFailed(fixes) {
		fmt.Println("\nSome problems couldn't be fixed automatically. Run 'appscale doctor' for details.")
		return errors.NewExitError(1)
	}

	fmt.Printf("\n%s All fixable problems resolved\n", ui.SuccessStyle().Render(ui.SymbolSuccess))
	return nil
}

func anyFixFailed(fixes []doctor.FixResult) bool {
	for _, f := range fixes {
		if !f.Fixed {
			return true
		}
	}
	return false
}
