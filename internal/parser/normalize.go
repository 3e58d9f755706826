package parser

import (
	"strings"
)

// NormalizeSkills lowercases, trims and deduplicates skills, preserving
// first-seen order. Matching downstream relies on this normalization and
// never repeats it.
func NormalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, skill := range skills {
		normalized := strings.ToLower(strings.Join(strings.Fields(skill), " "))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// NormalizeList trims and deduplicates case-insensitively while keeping the
// original casing of the first occurrence. Used for certifications and
// languages, where casing carries meaning for display.
func NormalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		trimmed := strings.Join(strings.Fields(item), " ")
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
