package util

import "strings"

// ShellQuote renders s as one shell word, so command lines echoed in
// debug output can be pasted back into a shell. Everything goes inside
// single quotes; an embedded quote closes the quoting, emits \', and
// reopens it.
func ShellQuote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			b.WriteString(`'\''`)
			continue
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('\'')
	return b.String()
}
