package cli

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/altoplano/appscale-tools/internal/ui"
)

// Global flags available on every command
var (
	configFlag  string
	verboseFlag bool
	noColorFlag bool
)

// rootCmd is the base command all subcommands hang off.
var rootCmd = &cobra.Command{
	Use:   "appscale",
	Short: "Set up and inspect the machines of an AppScale deployment",
	Long: `appscale manages the machines described in an AppScalefile.

The AppScalefile lists the cluster layout: which machine is the head
node, which run the database, and so on. Starting from that file, the
tool generates a deployment SSH keypair under ~/.appscale and installs
it on every machine so later deployment steps can log in as root
without a password.

Typical workflow:
  appscale init           # describe your machines
  appscale add-keypair    # set up SSH access to all of them
  appscale nodes --probe  # confirm every machine answers`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColorFlag || machineMode {
			ui.DisableColors()
		}
		if verboseFlag {
			os.Setenv("APPSCALE_DEBUG", "1")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to the AppScalefile")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "print debug output")
	rootCmd.PersistentFlags().BoolVar(&machineMode, "json", false, "machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")
}

// Config returns the AppScalefile path given with --config, or empty
// when discovery should walk up from the working directory.
func Config() string {
	return configFlag
}

// Verbose reports whether --verbose was given.
func Verbose() bool {
	return verboseFlag
}

// Execute runs the CLI. On failure it renders the error and exits the
// process with a non-zero status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := errors.GetExitCode(err); ok {
			// The command already reported its own failure.
			os.Exit(code)
		}
		if machineMode {
			_ = WriteJSONFromError(os.Stdout, err)
			os.Exit(1)
		}
		var appErr *errors.Error
		if stderrors.As(err, &appErr) {
			// Structured errors render their own symbol, cause, and
			// suggestion block.
			fmt.Fprintf(os.Stderr, "\n%s", appErr.Error())
		} else {
			fmt.Fprintf(os.Stderr, "\n%s %v\n", ui.ErrorStyle().Render(ui.SymbolFail), err)
		}
		os.Exit(1)
	}
}
