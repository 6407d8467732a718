package auth

import (
	"sort"
	"strings"
)

const (
	defaultRoleClaim = "roles"
	legacyRoleClaim  = "role"
)

// claims reads the custom claims attached to a Firebase ID token.
type claims map[string]any

func (c claims) text(key string) string {
	s, _ := c[key].(string)
	return strings.TrimSpace(s)
}

// roles accepts "roles": "manager", "roles": ["manager", "sales"] and
// "roles": {"manager": true}. The result is normalised and free of duplicates.
func (c claims) roles(key string) []string {
	var raw []string
	switch v := c[key].(type) {
	case string:
		raw = []string{v}
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case map[string]any:
		for role, granted := range v {
			if on, _ := granted.(bool); on {
				raw = append(raw, role)
			}
		}
		sort.Strings(raw)
	}
	return uniqueRoles(raw)
}

func uniqueRoles(values []string) []string {
	var out []string
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		role := normaliseRole(v)
		if role == "" || seen[role] {
			continue
		}
		seen[role] = true
		out = append(out, role)
	}
	return out
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
