package config

import (
	"fmt"

	"github.com/altoplano/appscale-tools/internal/errors"
)

// Validate checks an AppScalefile for mistakes the YAML parser can't
// catch. Layout contents get their own deeper validation when the
// layout is parsed.
func Validate(cfg *Config) error {
	if len(cfg.IPs) > 0 && cfg.IPsFile != "" {
		return errors.New(errors.ErrConfig,
			"Your AppScalefile sets both ips and ips_file",
			"Keep the layout in one place - inline under ips, or in the ips_file.")
	}

	if cfg.Replication < 0 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("A replication factor of %d doesn't make sense", cfg.Replication),
			"Use a small positive number, like 1 or 3.")
	}

	if cfg.Lock.Timeout < 0 || cfg.Lock.Stale < 0 {
		return errors.New(errors.ErrConfig,
			"Lock timeouts can't be negative",
			"Check the 'lock' section in your AppScalefile.")
	}

	return nil
}
