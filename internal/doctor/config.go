package doctor

import (
	"fmt"

	"github.com/altoplano/appscale-tools/internal/config"
	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/altoplano/appscale-tools/internal/util"
)

// ConfigFileCheck verifies an AppScalefile can be found.
type ConfigFileCheck struct {
	ConfigPath string // explicit path, or empty to search
}

func (c *ConfigFileCheck) Name() string     { return "config_file" }
func (c *ConfigFileCheck) Category() string { return "CONFIG" }

func (c *ConfigFileCheck) Run() CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Error finding the AppScalefile: %v", err),
			Suggestion: "Check the path you passed with --config.",
		}
	}

	if path == "" {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    "No AppScalefile found",
			Suggestion: "Run 'appscale init' to create one.",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("AppScalefile at %s", path),
	}
}

func (c *ConfigFileCheck) Fix() error {
	// 'appscale init' owns config creation; doctor only reports.
	return nil
}

// ConfigParseCheck verifies the AppScalefile parses and validates.
type ConfigParseCheck struct {
	ConfigPath string
}

func (c *ConfigParseCheck) Name() string     { return "config_parse" }
func (c *ConfigParseCheck) Category() string { return "CONFIG" }

func (c *ConfigParseCheck) Run() CheckResult {
	path, err := config.Find(c.ConfigPath)
	if err != nil || path == "" {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass, // ConfigFileCheck reports the missing file
			Message: "No AppScalefile to parse",
		}
	}

	if _, err := config.Load(path); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("AppScalefile doesn't parse: %v", err),
			Suggestion: "Fix the YAML in " + path,
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: "AppScalefile parses",
	}
}

func (c *ConfigParseCheck) Fix() error {
	return nil
}

// LayoutCheck verifies a node layout resolves from the configuration.
type LayoutCheck struct {
	ConfigPath string
	IPsFile    string // --ips override, when given
}

func (c *LayoutCheck) Name() string     { return "config_layout" }
func (c *LayoutCheck) Category() string { return "CONFIG" }

func (c *LayoutCheck) Run() CheckResult {
	cfg, err := config.LoadOrDefault(c.ConfigPath)
	if err != nil {
		return CheckResult{
			Name:    c.Name(),
			Status:  StatusPass, // ConfigParseCheck reports the parse error
			Message: "No configuration to take a layout from",
		}
	}

	lay, origin, err := cfg.Layout(c.IPsFile)
	if err != nil {
		// Not having a layout yet is a softer problem than having a
		// broken one.
		if errors.IsCode(err, errors.ErrConfig) {
			return CheckResult{
				Name:       c.Name(),
				Status:     StatusWarn,
				Message:    "No node layout configured",
				Suggestion: "Add an ips section to your AppScalefile, set ips_file, or pass --ips.",
			}
		}
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Node layout problem: %v", err),
			Suggestion: "Fix the ips section (or ips_file) and run doctor again.",
		}
	}

	head := "none"
	if h := lay.HeadNode(); h != nil {
		head = h.Address
	}

	return CheckResult{
		Name:   c.Name(),
		Status: StatusPass,
		Message: fmt.Sprintf("%d %s in the layout (head %s, from %s)",
			lay.Len(), util.Pluralize(lay.Len(), "machine", "machines"), head, origin),
	}
}

func (c *LayoutCheck) Fix() error {
	return nil
}

// NewConfigChecks creates the configuration checks.
func NewConfigChecks(configPath, ipsFile string) []Check {
	return []Check{
		&ConfigFileCheck{ConfigPath: configPath},
		&ConfigParseCheck{ConfigPath: configPath},
		&LayoutCheck{ConfigPath: configPath, IPsFile: ipsFile},
	}
}
