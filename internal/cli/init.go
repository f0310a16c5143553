package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/altoplano/appscale-tools/internal/config"
	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/altoplano/appscale-tools/internal/layout"
	"github.com/altoplano/appscale-tools/internal/ui"
)

// Flags for init
var (
	initControllerFlag string
	initServersFlag    string
	initForce          bool
)

// initCmd writes a fresh AppScalefile.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an AppScalefile describing your machines",
	Long: `Create an AppScalefile in the current directory.

Interactively prompts for the deployment shape and machine addresses,
or takes them from flags for scripted use.

Examples:
  appscale init
  appscale init --controller 192.168.33.10 --servers 192.168.33.11,192.168.33.12
  appscale init --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(InitOptions{
			Controller: initControllerFlag,
			Servers:    initServersFlag,
			Overwrite:  initForce,
		})
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initControllerFlag, "controller", "", "controller address for a simple deployment (skips prompts)")
	initCmd.Flags().StringVar(&initServersFlag, "servers", "", "comma-separated server addresses")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing AppScalefile")
}

// InitOptions holds options for the init command.
type InitOptions struct {
	Controller string // Pre-specified controller address
	Servers    string // Pre-specified comma-separated servers
	Overwrite  bool   // Overwrite existing config without asking
}

// initCommand creates a new AppScalefile.
func initCommand(opts InitOptions) error {
	configPath := config.FileName
	if Config() != "" {
		configPath = config.ExpandPath(Config())
	}
	nonInteractive := opts.Controller != ""

	// Check for existing config
	if _, err := os.Stat(configPath); err == nil && !opts.Overwrite {
		var overwrite bool

		if nonInteractive || machineMode {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("%s already exists", configPath),
				"Use --force to overwrite")
		}

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(fmt.Sprintf("'%s' already exists. Overwrite?", configPath)).
					Value(&overwrite),
			),
		)

		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Try running with --force to overwrite")
		}

		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	var ips map[string]interface{}
	var replication int

	if nonInteractive {
		ips = simpleLayoutMap(opts.Controller, splitAddressList(opts.Servers))
	} else {
		var err error
		ips, replication, err = promptForLayout()
		if err != nil {
			return err
		}
	}

	// Parse what we're about to write so a typo fails here, not on the
	// next add-keypair.
	if _, err := layout.Parse(ips, layout.Options{Replication: replication}); err != nil {
		return err
	}

	doc := map[string]interface{}{"ips": ips}
	if replication > 0 {
		doc["replication"] = replication
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to generate the AppScalefile",
			"This shouldn't happen - please report this bug")
	}

	header := `# AppScalefile
# Describes the machines of this AppScale deployment.
# The head node (controller or master) coordinates the others.

`
	content := header + string(data)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Failed to write %s", configPath),
			"Check directory permissions")
	}

	fmt.Printf("%s Created %s\n\n", ui.SymbolSuccess, configPath)
	fmt.Println("Next steps:")
	fmt.Println("  appscale add-keypair   - Set up SSH access to the machines")
	fmt.Println("  appscale nodes         - Show the layout")
	fmt.Println("  appscale doctor        - Check your environment")

	return nil
}

// promptForLayout collects the deployment shape and addresses.
func promptForLayout() (map[string]interface{}, int, error) {
	var shape string
	shapeForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Deployment shape").
				Description("Simple puts the controller in charge of role placement. Advanced pins roles to machines.").
				Options(
					huh.NewOption("Simple (controller + servers)", "simple"),
					huh.NewOption("Advanced (master + per-role machines)", "advanced"),
				).
				Value(&shape),
		),
	)
	if err := shapeForm.Run(); err != nil {
		return nil, 0, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Use --controller and --servers for non-interactive setup")
	}

	var head, servers, replicationStr string
	headTitle := "Controller address"
	serversTitle := "Server addresses"
	serversDesc := "Comma-separated. Leave empty for a single-machine deployment."
	serversValidate := func(string) error { return nil }
	if shape == "advanced" {
		headTitle = "Master address"
		serversTitle = "App Engine server addresses"
		serversDesc = "Comma-separated. These machines also run the database."
		serversValidate = func(s string) error {
			if len(splitAddressList(s)) == 0 {
				return fmt.Errorf("at least one server is required")
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(headTitle).
				Placeholder("192.168.33.10").
				Value(&head).
				Validate(validateAddress),
		),
		huh.NewGroup(
			huh.NewInput().
				Title(serversTitle).
				Description(serversDesc).
				Placeholder("192.168.33.11, 192.168.33.12").
				Value(&servers).
				Validate(serversValidate),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Database replication (optional)").
				Description("How many copies of each record to keep. Empty picks a default from the layout.").
				Placeholder("1").
				Value(&replicationStr).
				Validate(validateOptionalCount),
		),
	)
	if err := form.Run(); err != nil {
		return nil, 0, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Use --controller and --servers for non-interactive setup")
	}

	replication := 0
	if strings.TrimSpace(replicationStr) != "" {
		replication, _ = strconv.Atoi(strings.TrimSpace(replicationStr))
	}

	serverList := splitAddressList(servers)
	if shape == "advanced" {
		return advancedLayoutMap(head, serverList), replication, nil
	}
	return simpleLayoutMap(head, serverList), replication, nil
}

// simpleLayoutMap builds the ips block for a controller/servers layout.
func simpleLayoutMap(controller string, servers []string) map[string]interface{} {
	ips := map[string]interface{}{
		"controller": controller,
	}
	if len(servers) > 0 {
		ips["servers"] = toInterfaceSlice(servers)
	}
	return ips
}

// advancedLayoutMap builds the ips block for a master/per-role layout.
// The servers carry both the app and database roles, and the master
// doubles as the ZooKeeper host.
func advancedLayoutMap(master string, servers []string) map[string]interface{} {
	return map[string]interface{}{
		"master":    master,
		"appengine": toInterfaceSlice(servers),
		"database":  toInterfaceSlice(servers),
		"zookeeper": []interface{}{master},
	}
}

// splitAddressList parses a comma or whitespace separated address list.
func splitAddressList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func toInterfaceSlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func validateAddress(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("an address is required")
	}
	if strings.ContainsAny(s, " \t\n") {
		return fmt.Errorf("address cannot contain whitespace")
	}
	return nil
}

func validateOptionalCount(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fmt.Errorf("enter a positive number or leave empty")
	}
	return nil
}
