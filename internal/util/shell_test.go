package util

import "testing"

func TestShellQuote(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain word", "appscale", "'appscale'"},
		{"empty", "", "''"},
		{"spaces", "my cluster key", "'my cluster key'"},
		{"key path", "/root/.appscale/appscale", "'/root/.appscale/appscale'"},
		{"embedded quote", "it's", `'it'\''s'`},
		{"dollar stays literal", "$HOME/.appscale", "'$HOME/.appscale'"},
		{"subshell stays literal", "$(reboot)", "'$(reboot)'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShellQuote(tt.in); got != tt.want {
				t.Errorf("ShellQuote(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
