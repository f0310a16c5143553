package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/altoplano/appscale-tools/internal/config"
	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/altoplano/appscale-tools/internal/keys"
	"github.com/altoplano/appscale-tools/internal/lock"
	"github.com/altoplano/appscale-tools/internal/ui"
)

// Flags for clean
var cleanForce bool

// cleanCmd removes the local deployment state.
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the deployment key material and stale locks",
	Long: `Remove the state appscale keeps under ~/.appscale.

Deletes the deployment keypair, its backup, and any stale lock. The
machines that already trust the key keep trusting it; clean only
resets local state so the next add-keypair starts fresh.

A lock held by a live run is left alone unless --force is given.

Examples:
  appscale clean
  appscale clean --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cleanCommand(cleanForce)
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVar(&cleanForce, "force", false, "skip confirmation and remove live locks too")
}

// cleanCommand implements the clean command logic.
func cleanCommand(force bool) error {
	paths, err := keys.DefaultPaths()
	if err != nil {
		return err
	}

	dotDir := filepath.Dir(paths.Private)
	if _, statErr := os.Stat(dotDir); os.IsNotExist(statErr) {
		return printNothingToClean()
	}

	// Without a terminal confirm, machine mode only proceeds when the
	// caller opted in explicitly.
	if machineMode && !force {
		return errors.New(errors.ErrConfig,
			"clean with --json requires --force",
			"Re-run with --force to confirm removal.")
	}

	var files []string
	for _, p := range []string{paths.Private, paths.Public, paths.Backup} {
		if _, statErr := os.Stat(p); statErr == nil {
			files = append(files, p)
		}
	}

	lockDir, err := lock.DefaultPath()
	if err != nil {
		return err
	}

	removeLock := false
	if lock.Held(lockDir) {
		stale := config.DefaultConfig().Lock.Stale
		if cfg, cfgErr := config.LoadOrDefault(Config()); cfgErr == nil {
			stale = cfg.Lock.Stale
		}
		age, known := lock.HeldFor(lockDir)
		if force || (known && age > stale) {
			removeLock = true
		} else if !machineMode {
			ui.PrintWarning(fmt.Sprintf("lock held by %s, leaving it alone (use --force to remove)",
				lock.Holder(lockDir)))
		}
	}

	if len(files) == 0 && !removeLock {
		return printNothingToClean()
	}

	if !force && !machineMode {
		fmt.Println("This removes:")
		for _, f := range files {
			fmt.Printf("  %s\n", f)
		}
		if removeLock {
			fmt.Printf("  %s (lock)\n", lockDir)
		}
		fmt.Println()

		var proceed bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Remove the deployment key material?").
					Description("This cannot be undone.").
					Value(&proceed),
			),
		)
		// A form error means no terminal to ask on; treat it as a no.
		if err := form.Run(); err != nil || !proceed {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	var removed []string
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Couldn't remove "+f,
				"Check the permissions on "+dotDir+".")
		}
		removed = append(removed, f)
	}
	if removeLock {
		if err := lock.ForceRelease(lockDir); err != nil {
			return err
		}
		removed = append(removed, lockDir)
	}

	if machineMode {
		return WriteJSONSuccess(os.Stdout, map[string]interface{}{"removed": removed})
	}

	for _, f := range removed {
		fmt.Printf("%s Removed %s\n", ui.SymbolSuccess, f)
	}
	return nil
}

func printNothingToClean() error {
	if machineMode {
		return WriteJSONSuccess(os.Stdout, map[string]interface{}{"removed": []string{}})
	}
	fmt.Println("Nothing to clean.")
	return nil
}
