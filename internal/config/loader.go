package config

import (
	"os"
	"path/filepath"

	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/altoplano/appscale-tools/internal/layout"
	"github.com/spf13/viper"
)

// Load reads an AppScalefile from the given path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	// The AppScalefile carries no extension, so tell viper what it is.
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"No AppScalefile at "+path,
				"Run 'appscale init' to create one, or pass --config.")
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read "+path,
			"Check that the file exists and is valid YAML.")
	}

	setDefaults(v)

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid AppScalefile format",
			"Check the YAML syntax in "+path+".")
	}
	cfg.path = path
	cfg.IPsFile = ExpandPath(cfg.IPsFile)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find locates the AppScalefile using the search order:
//  1. Explicit path (from --config flag)
//  2. AppScalefile in the current directory
//  3. AppScalefile in parent directories (stops at git root or home)
//  4. ~/.appscale/AppScalefile
//
// Returns the path, or empty string when there is none.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"No AppScalefile at "+explicit,
					"Check that the path is correct.")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access "+explicit,
				"Check the file permissions.")
		}
		return explicit, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine the current directory",
			"Check the directory permissions.")
	}

	local := filepath.Join(cwd, FileName)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	home, _ := os.UserHomeDir()
	dir := cwd
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		if home != "" && parent == home {
			// Don't go above the home directory
			break
		}
		dir = parent

		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		// Stop at a repository boundary
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
	}

	if home != "" {
		global := filepath.Join(home, ".appscale", FileName)
		if _, err := os.Stat(global); err == nil {
			return global, nil
		}
	}

	return "", nil
}

// LoadOrDefault loads the AppScalefile Find locates, or returns the
// defaults when there is none. Commands that can run from flags alone
// (add-keypair --ips) use this so a missing AppScalefile isn't fatal.
func LoadOrDefault(explicit string) (*Config, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return DefaultConfig(), nil
	}
	return Load(path)
}

// Layout resolves the deployment's node layout. An explicit --ips file
// wins, then the AppScalefile's ips_file, then its inline ips block.
// The second return value names the source for display.
func (c *Config) Layout(flagPath string) (*layout.Layout, string, error) {
	opts := layout.Options{Replication: c.Replication}

	if flagPath != "" {
		path := ExpandPath(flagPath)
		l, err := layout.ParseFile(path, opts)
		return l, path, err
	}

	if c.IPsFile != "" {
		path := c.IPsFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.Dir(), path)
		}
		l, err := layout.ParseFile(path, opts)
		return l, path, err
	}

	if len(c.IPs) > 0 {
		origin := c.path
		if origin == "" {
			origin = FileName
		}
		l, err := layout.Parse(c.IPs, opts)
		return l, origin, err
	}

	return nil, "", errors.New(errors.ErrConfig,
		"No node layout was given",
		"Add an ips section to your AppScalefile, set ips_file, or pass --ips <file>.")
}

// setDefaults seeds viper with the values Validate expects when the
// file leaves them out.
func setDefaults(v *viper.Viper) {
	v.SetDefault("lock.timeout", "30s")
	v.SetDefault("lock.stale", "1h")
	v.SetDefault("replication", 0)
	v.SetDefault("verbose", false)
}
