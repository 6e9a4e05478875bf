// Package strings holds small list-cleaning helpers for configuration
// values.
package strings

import "strings"

// DedupeAndTrim trims each element, drops blanks, and removes repeats while
// preserving first-seen order. Config lists (broker addresses and the like)
// pass through here so a stray space or doubled entry is harmless.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
