// Package strings provides small list normalization helpers.
package strings

import "strings"

// DedupeAndTrim trims whitespace from each element and drops empties and
// duplicates, keeping first-seen order. Config values that arrive as
// comma-separated lists (broker addresses, for one) go through this before
// use.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
