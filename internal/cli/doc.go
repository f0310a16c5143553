// Package cli implements the appscale command-line interface.
//
// The package is organized around Cobra commands, with each command
// delegating to a small command function for the actual work. The
// general structure keeps a clean separation between:
//
//   - Command definitions (cobra.Command instances)
//   - Command functions (addKeypairCommand, doctorCommand, ...)
//   - Implementation details (in other internal packages)
//
// # Command Structure
//
// The root command is "appscale" with subcommands for different
// operations:
//
//	appscale init         - Create an AppScalefile
//	appscale add-keypair  - Install the deployment SSH key on every machine
//	appscale nodes        - Show the layout, optionally probing each machine
//	appscale doctor       - Diagnose environment problems
//	appscale fix          - Apply automatic fixes for doctor findings
//	appscale clean        - Remove local key material and stale locks
//	appscale version      - Print version information
//
// # Flag Handling
//
// Global flags (--config, --verbose, --json, --no-color) are defined on
// the root command and available to all subcommands. Command-specific
// flags like --ips and --auto are defined on individual commands.
//
// # Output Modes
//
// Every command supports two output modes. The default renders for
// humans with color and progress animation. With --json, output is a
// stable envelope (JSONEnvelope) on stdout with machine-readable error
// codes, and all prompts are suppressed.
package cli
