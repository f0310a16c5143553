// Package config loads and validates the AppScalefile, the YAML file
// that describes a deployment: where its machines are, how the
// database replicates, and how the tool itself should behave.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// FileName is the deployment configuration file, looked up in the
// project directory and its parents, then under ~/.appscale.
const FileName = "AppScalefile"

// Config represents an AppScalefile.
type Config struct {
	// IPs is the inline node layout, role name to one address or a
	// list of addresses. Mutually exclusive with IPsFile.
	IPs map[string]interface{} `yaml:"ips" mapstructure:"ips"`

	// IPsFile points at a separate YAML layout file. Relative paths
	// resolve against the AppScalefile's directory; ~ and environment
	// variables expand.
	IPsFile string `yaml:"ips_file" mapstructure:"ips_file"`

	// Replication is the database replication factor. Zero picks a
	// default from the database node count.
	Replication int `yaml:"replication" mapstructure:"replication"`

	// Verbose turns on debug output, same as --verbose.
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`

	// Lock controls the deployment lock that keeps two invocations
	// from racing each other's key files.
	Lock LockConfig `yaml:"lock" mapstructure:"lock"`

	// path is where this config was loaded from, empty for defaults.
	path string
}

// LockConfig controls the deployment lock.
type LockConfig struct {
	// Timeout is how long to wait for the lock before giving up.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// Stale is the age past which a lock holder is presumed crashed.
	Stale time.Duration `yaml:"stale" mapstructure:"stale"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Lock: LockConfig{
			Timeout: 30 * time.Second,
			Stale:   time.Hour,
		},
	}
}

// Path returns where the config was loaded from, or "" when running on
// built-in defaults.
func (c *Config) Path() string {
	return c.path
}

// Dir returns the directory the config file lives in. Defaults fall
// back to the current directory.
func (c *Config) Dir() string {
	if c.path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "."
		}
		return cwd
	}
	return filepath.Dir(c.path)
}
