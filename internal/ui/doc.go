// Package ui provides the terminal output components the appscale CLI
// shares across commands, styled with Lip Gloss.
//
// The building blocks:
//
//	Spinner       - Animated indicator for long operations (key generation,
//	                connecting to machines)
//	PhaseDisplay  - Step-by-step progress for add-keypair's phases
//	Tables        - Node layout and doctor check rendering
//	ProbeModel    - Bubble Tea screen for probing machines live
//	Header        - Branded header with version info
//
// Colors are ANSI codes for broad terminal compatibility; DisableColors
// switches everything to plain text for --no-color and non-terminals.
// Symbols (SymbolSuccess, SymbolFail, ...) are shared so every command
// marks status the same way.
package ui
