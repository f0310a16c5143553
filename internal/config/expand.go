package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands ~ and environment variables in a local path, so
// an AppScalefile can say ips_file: ~/clusters/ips.yaml or
// $HOME/ips.yaml and mean it.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	path = os.Expand(path, func(name string) string {
		switch name {
		case "HOME":
			return home()
		case "USER":
			return user()
		default:
			return os.Getenv(name)
		}
	})

	return expandTilde(path)
}

// expandTilde replaces ~ or ~/path with the user's home directory.
// ~username syntax is not supported.
func expandTilde(path string) string {
	if path == "~" {
		return home()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home(), path[2:])
	}
	return path
}

func home() string {
	if h, err := os.UserHomeDir(); err == nil {
		return h
	}
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	return "~"
}

func user() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	// POSIX fallback
	return os.Getenv("LOGNAME")
}
