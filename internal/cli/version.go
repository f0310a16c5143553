package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

// Build metadata, overridden via ldflags at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of appscale.`,
	Run: func(cmd *cobra.Command, args []string) {
		switch {
		case machineMode:
			_ = WriteJSONSuccess(os.Stdout, map[string]interface{}{
				"version": version,
				"commit":  commit,
				"date":    date,
				"go":      runtime.Version(),
				"os_arch": runtime.GOOS + "/" + runtime.GOARCH,
			})

		case versionShort:
			fmt.Println(version)

		default:
			fmt.Printf("appscale %s\n", formatVersion(version))
			fmt.Printf("commit: %s\n", commit)
			fmt.Printf("built: %s\n", date)
			fmt.Printf("go: %s\n", runtime.Version())
			fmt.Printf("os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}

// formatVersion adds the v prefix release tags carry. Empty and dev
// builds pass through untouched.
func formatVersion(v string) string {
	switch {
	case v == "" || v == "dev":
		return v
	case strings.HasPrefix(v, "v"):
		return v
	default:
		return "v" + v
	}
}

// SetVersionInfo records build metadata, called from main before
// Execute.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// GetVersion returns the current version string.
func GetVersion() string {
	return version
}
