package cli

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/altoplano/appscale-tools/internal/config"
	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/altoplano/appscale-tools/internal/keys"
	"github.com/altoplano/appscale-tools/internal/layout"
	"github.com/altoplano/appscale-tools/internal/probe"
	"github.com/altoplano/appscale-tools/internal/ui"
	"github.com/altoplano/appscale-tools/pkg/sshutil"
)

// Flags for nodes
var (
	nodesIPsFlag string
	nodesProbe   bool
)

// probeTimeout bounds each SSH probe so one dead machine doesn't hang
// the whole listing.
const probeTimeout = 10 * time.Second

// nodesCmd lists the machines in the layout.
var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Show the machines in the layout",
	Long: `Show the machines in the AppScalefile layout and their roles.

With --probe, each machine is dialed over SSH using the deployment key
to confirm it's up and the key is authorized.

Examples:
  appscale nodes
  appscale nodes --probe
  appscale nodes --ips ips.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return nodesCommand(nodesIPsFlag, nodesProbe)
	},
}

func init() {
	rootCmd.AddCommand(nodesCmd)
	nodesCmd.Flags().StringVar(&nodesIPsFlag, "ips", "", "path to a YAML file with the machine layout")
	nodesCmd.Flags().BoolVar(&nodesProbe, "probe", false, "check each machine answers SSH with the deployment key")
}

// nodeJSON is one machine in the --json nodes output.
type nodeJSON struct {
	Address   string   `json:"address"`
	Roles     []string `json:"roles"`
	Head      bool     `json:"head"`
	Status    string   `json:"status,omitempty"`
	LatencyMS int64    `json:"latency_ms,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// nodesCommand implements the nodes command logic.
func nodesCommand(ipsFlag string, probeFlag bool) error {
	cfg, err := config.LoadOrDefault(Config())
	if err != nil {
		return err
	}

	lay, origin, err := cfg.Layout(ipsFlag)
	if err != nil {
		return err
	}

	if machineMode {
		return outputNodesJSON(lay, origin, probeFlag)
	}

	if !probeFlag {
		fmt.Printf("Machines from %s:\n\n", origin)
		fmt.Print(ui.RenderNodesTable(nodeRows(lay, nil), false))
		fmt.Println("\n  * head node")
		return nil
	}

	sshOpts, err := probeOptions()
	if err != nil {
		return err
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		return probeNodesInteractive(lay, sshOpts)
	}

	results := probe.ProbeAll(lay.Addresses(), sshOpts)
	fmt.Printf("Machines from %s:\n\n", origin)
	fmt.Print(ui.RenderNodesTable(nodeRows(lay, results), true))
	fmt.Println("\n  * head node")
	up := 0
	for _, r := range results {
		if r.Success {
			up++
		}
	}
	printReachableSummary(up, len(results))
	return nil
}

// probeOptions builds the SSH options probes run with: the deployment
// key as identity, root as user.
func probeOptions() (sshutil.Options, error) {
	paths, err := keys.DefaultPaths()
	if err != nil {
		return sshutil.Options{}, err
	}
	return sshutil.Options{
		User:         sshutil.DefaultUser,
		IdentityFile: paths.Private,
		Timeout:      probeTimeout,
	}, nil
}

// nodeRows converts the layout, plus probe results when present, into
// table rows. The head node's address is marked with an asterisk.
func nodeRows(lay *layout.Layout, results []probe.Result) []ui.NodeRow {
	byAddr := make(map[string]probe.Result, len(results))
	for _, r := range results {
		byAddr[r.Address] = r
	}

	nodes := lay.Nodes()
	rows := make([]ui.NodeRow, len(nodes))
	for i, n := range nodes {
		address := n.Address
		if n.IsHead() {
			address += " *"
		}
		row := ui.NodeRow{
			Address: address,
			Roles:   strings.Join(n.Roles(), ", "),
		}
		if r, ok := byAddr[n.Address]; ok {
			if r.Success {
				row.Status = "ok"
				row.Latency = ui.FormatLatency(r.Latency)
			} else {
				row.Status = "down"
				row.Latency = probeFailureText(r.Error)
			}
		}
		rows[i] = row
	}
	return rows
}

// probeNodesInteractive runs the animated probe view, streaming results
// into the screen as each machine answers.
func probeNodesInteractive(lay *layout.Layout, sshOpts sshutil.Options) error {
	nodes := lay.Nodes()
	targets := make([]ui.ProbeTarget, len(nodes))
	for i, n := range nodes {
		targets[i] = ui.ProbeTarget{
			Address: n.Address,
			Roles:   strings.Join(n.Roles(), ", "),
		}
	}

	// Buffered so the prober never blocks if the view quits early.
	results := make(chan ui.ProbeOutcome, len(nodes))
	go func() {
		for _, n := range nodes {
			latency, err := probe.Probe(n.Address, sshOpts)
			results <- ui.ProbeOutcome{Address: n.Address, Latency: latency, Err: err}
		}
		close(results)
	}()

	final, err := tea.NewProgram(ui.NewProbeModel(targets, results)).Run()
	if err != nil {
		return errors.Wrap(err, "Couldn't run the probe view")
	}

	model := final.(ui.ProbeModel)
	if model.Aborted() {
		fmt.Println("Probe cancelled.")
		return nil
	}

	up := 0
	for _, o := range model.Outcomes() {
		if o.Err == nil {
			up++
		}
	}
	printReachableSummary(up, len(nodes))
	return nil
}

// printReachableSummary prints the one-line reachability count.
func printReachableSummary(up, total int) {
	symbol := ui.SymbolSuccess
	if up < total {
		symbol = ui.SymbolFail
	}
	fmt.Printf("\n%s %d of %d machines reachable\n", symbol, up, total)
}

// probeFailureText gives the short reason shown in the table for a
// machine that didn't answer.
func probeFailureText(err error) string {
	var probeErr *probe.Error
	if stderrors.As(err, &probeErr) {
		return probeErr.Reason.String()
	}
	if err != nil {
		return err.Error()
	}
	return "unknown error"
}

// outputNodesJSON emits the layout, with probe results when requested,
// in the JSON envelope.
func outputNodesJSON(lay *layout.Layout, origin string, probeFlag bool) error {
	var results []probe.Result
	if probeFlag {
		sshOpts, err := probeOptions()
		if err != nil {
			return err
		}
		results = probe.ProbeAll(lay.Addresses(), sshOpts)
	}

	byAddr := make(map[string]probe.Result, len(results))
	for _, r := range results {
		byAddr[r.Address] = r
	}

	nodes := lay.Nodes()
	out := make([]nodeJSON, len(nodes))
	for i, n := range nodes {
		nj := nodeJSON{
			Address: n.Address,
			Roles:   n.Roles(),
			Head:    n.IsHead(),
		}
		if r, ok := byAddr[n.Address]; ok {
			if r.Success {
				nj.Status = "up"
				nj.LatencyMS = r.Latency.Milliseconds()
			} else {
				nj.Status = "down"
				nj.Error = probeFailureText(r.Error)
			}
		}
		out[i] = nj
	}

	return WriteJSONSuccess(os.Stdout, map[string]interface{}{
		"origin": origin,
		"nodes":  out,
	})
}
