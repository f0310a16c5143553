package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/altoplano/appscale-tools/internal/config"
	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/altoplano/appscale-tools/internal/exec"
	"github.com/altoplano/appscale-tools/internal/keys"
	"github.com/altoplano/appscale-tools/internal/layout"
	"github.com/altoplano/appscale-tools/internal/lock"
	"github.com/altoplano/appscale-tools/internal/ui"
	"github.com/altoplano/appscale-tools/internal/util"
)

// Flags for add-keypair
var (
	keypairIPsFlag       string
	keypairAuto          bool
	keypairAddToExisting bool
	keypairYes           bool
)

// addKeypairCmd generates the deployment keypair and installs it on
// every machine in the layout.
var addKeypairCmd = &cobra.Command{
	Use:   "add-keypair",
	Short: "Set up passwordless SSH to every machine in the layout",
	Long: `Generate the deployment SSH keypair and install it on every machine.

The keypair lives under ~/.appscale. Each machine gets the public key
appended to root's authorized keys, plus a copy of the keypair itself
so machines can reach each other during deployment. You'll be asked
for each machine's root password once; after that, deployments run
without password prompts.

Examples:
  appscale add-keypair
  appscale add-keypair --ips ips.yaml
  appscale add-keypair --add-to-existing
  appscale add-keypair --auto   # unattended, requires expect`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return addKeypairCommand(addKeypairOptions{
			IPs:           keypairIPsFlag,
			Auto:          keypairAuto,
			AddToExisting: keypairAddToExisting,
			AutoYes:       keypairYes,
		})
	},
}

func init() {
	rootCmd.AddCommand(addKeypairCmd)
	addKeypairCmd.Flags().StringVar(&keypairIPsFlag, "ips", "", "path to a YAML file with the machine layout")
	addKeypairCmd.Flags().BoolVar(&keypairAuto, "auto", false, "unattended mode, requires expect on PATH")
	addKeypairCmd.Flags().BoolVar(&keypairAddToExisting, "add-to-existing", false, "extend a running deployment, backing up the current key first")
	addKeypairCmd.Flags().BoolVarP(&keypairYes, "yes", "y", false, "skip the confirmation prompt")
}

// addKeypairOptions configures one add-keypair run.
type addKeypairOptions struct {
	IPs           string
	Auto          bool
	AddToExisting bool
	AutoYes       bool
}

// addKeypairCommand implements the add-keypair command logic.
func addKeypairCommand(opts addKeypairOptions) error {
	cfg, err := config.LoadOrDefault(Config())
	if err != nil {
		return err
	}

	lay, origin, err := cfg.Layout(opts.IPs)
	if err != nil {
		return err
	}

	paths, err := keys.DefaultPaths()
	if err != nil {
		return err
	}

	lockDir, err := lock.DefaultPath()
	if err != nil {
		return err
	}
	held, err := lock.Acquire(lockDir, cfg.Lock, "add-keypair")
	if err != nil {
		return err
	}
	defer held.Release()

	addrs := lay.Addresses()

	// Confirm before touching machines, but only when a human is there
	// to answer.
	if !opts.AutoYes && !machineMode && term.IsTerminal(int(os.Stdin.Fd())) {
		if !confirmKeypairInstall(lay, origin) {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	var reached []string
	keyOpts := keys.Options{
		Layout:        lay,
		AddToExisting: opts.AddToExisting,
		Auto:          opts.Auto,
		OnHost: func(addr string, index, total int) {
			reached = append(reached, addr)
		},
	}

	// A terminal gets the animated spinner. Piped output gets static
	// phase lines instead, since the spinner repaints with carriage
	// returns and would garble a CI log.
	phase := "Preparing the deployment keypair"
	started := time.Now()
	var sp *ui.Spinner
	var pd *ui.PhaseDisplay
	if !machineMode {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			sp = ui.NewSpinner(phase)
			sp.Start()
		} else {
			pd = ui.NewPhaseDisplay(os.Stdout)
		}
		keyOpts.OnHost = func(addr string, index, total int) {
			reached = append(reached, addr)
			phase = fmt.Sprintf("Installing the key on %s (%d/%d)", addr, index+1, total)
			if sp != nil {
				sp.SetLabel(phase)
			} else {
				pd.RenderSubStatus(ui.SymbolProgress, addr,
					fmt.Sprintf("installing the key (%d/%d)", index+1, total))
			}
		}
	}

	p := keys.NewProvisioner(exec.NewLocal(), exec.NewOSCopier(), paths)
	result, err := p.Provision(context.Background(), keyOpts)

	if machineMode {
		if err != nil {
			_ = WriteJSONFromError(os.Stdout, err)
			return errors.NewExitError(1)
		}
		distributed := result.Distributed
		if distributed == nil {
			distributed = []string{}
		}
		return WriteJSONSuccess(os.Stdout, map[string]interface{}{
			"key_path":    result.KeyPath,
			"generated":   result.Generated,
			"backed_up":   result.BackedUp,
			"distributed": distributed,
		})
	}

	if err != nil {
		if sp != nil {
			sp.Fail()
		} else {
			pd.RenderFailed(phase, time.Since(started))
		}
		if len(reached) == 0 {
			// Failed before any machine was attempted (missing tool,
			// backup, keygen). The standard error rendering covers it.
			return err
		}
		fmt.Println()
		fmt.Println(ui.RenderProvisionSummary(provisionFailureSummary(addrs, reached, err)))
		var appErr *errors.Error
		if stderrors.As(err, &appErr) && appErr.Suggestion != "" {
			fmt.Printf("\n  %s\n", appErr.Suggestion)
		}
		return errors.NewExitError(1)
	}

	if sp != nil {
		sp.Success()
	} else {
		pd.RenderSuccess(phase, time.Since(started))
	}
	fmt.Println()
	if result.Generated {
		fmt.Printf("%s Generated a new RSA keypair at %s\n", ui.SymbolSuccess, result.KeyPath)
	}
	if result.BackedUp {
		fmt.Printf("%s Backed up the previous key to %s\n", ui.SymbolSuccess, paths.Backup)
	}
	fmt.Println(ui.RenderProvisionSummary(&ui.ProvisionSummary{Provisioned: result.Distributed}))
	return nil
}

// confirmKeypairInstall shows the machine list and asks to proceed.
func confirmKeypairInstall(lay *layout.Layout, origin string) bool {
	fmt.Printf("Machines from %s:\n", origin)
	for _, n := range lay.Nodes() {
		marker := ""
		if n.IsHead() {
			marker = " (head node)"
		}
		fmt.Printf("  %s  %s%s\n", n.Address, strings.Join(n.Roles(), ", "), marker)
	}
	fmt.Println()

	var proceed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Install the deployment key on %d %s?",
					lay.Len(), util.Pluralize(lay.Len(), "machine", "machines"))).
				Value(&proceed),
		),
	)
	if err := form.Run(); err != nil {
		return false
	}
	return proceed
}

// provisionFailureSummary reconstructs which machines were done, which
// one failed, and which were never attempted. Distribution stops at the
// first failure, so the failing machine is the last one reached.
func provisionFailureSummary(addrs, reached []string, err error) *ui.ProvisionSummary {
	message := err.Error()
	step := ""
	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		step = provisionStep(appErr.Message)
		if appErr.Cause != nil {
			message = appErr.Cause.Error()
		} else {
			message = appErr.Message
		}
	}

	return &ui.ProvisionSummary{
		Provisioned: reached[:len(reached)-1],
		NotReached:  addrs[len(reached):],
		Failure: &ui.HostFailure{
			Host:    reached[len(reached)-1],
			Step:    step,
			Message: message,
		},
	}
}

// provisionStep names the distribution step a failure message came from.
func provisionStep(message string) string {
	switch {
	case strings.HasPrefix(message, "Couldn't authorize"):
		return "authorizing key"
	case strings.HasPrefix(message, "Couldn't copy the private key"):
		return "copying private key"
	case strings.HasPrefix(message, "Couldn't copy the public key"):
		return "copying public key"
	}
	return ""
}
