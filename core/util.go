package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanStrings applies CleanString on every item of `ss`, dropping empty ones.
func CleanStrings(ss []string, lower ...bool) []string {
	if ss == nil {
		return nil
	}
	cleaned := make([]string, 0, len(ss))
	for _, s := range ss {
		if s = CleanString(s, lower...); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

// ContainsFold reports whether substr is within s, case-insensitively.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
