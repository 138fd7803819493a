// Package strings normalizes free-form name lists.
package strings

import (
	"strings"
)

// DedupeTrimLower trims and lowercases each value, then drops blanks and
// repeats. First occurrences keep their order.
func DedupeTrimLower(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		norm := strings.ToLower(strings.TrimSpace(v))
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		result = append(result, norm)
	}
	return result
}
