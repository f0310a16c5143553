// Package util provides common utility functions used across the codebase.
package util

import "strings"

// Pluralize returns singular if count is 1, otherwise plural.
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// Truncate shortens s to at most max runes, appending "…" when truncation
// happens. Used for keeping table cells and log lines readable.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

// LevenshteinDistance computes the edit distance between two strings.
// Used for "did you mean" suggestions on misspelled role names.
func LevenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// SuggestSimilar returns candidates within maxDistance edits of input,
// closest first. Comparison is case-insensitive. Returns nil when nothing
// is close enough.
func SuggestSimilar(input string, candidates []string, maxDistance int) []string {
	if input == "" || len(candidates) == 0 {
		return nil
	}

	lower := strings.ToLower(input)

	type scored struct {
		name string
		dist int
	}
	var matches []scored
	for _, c := range candidates {
		d := LevenshteinDistance(lower, strings.ToLower(c))
		if d <= maxDistance {
			matches = append(matches, scored{name: c, dist: d})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	// Stable by distance, preserving candidate order for ties
	sorted := make([]string, 0, len(matches))
	for d := 0; d <= maxDistance; d++ {
		for _, m := range matches {
			if m.dist == d {
				sorted = append(sorted, m.name)
			}
		}
	}
	return sorted
}
