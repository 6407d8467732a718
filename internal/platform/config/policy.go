package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CalendarPolicyFile mirrors the YAML document referenced by API_CALENDAR_POLICY_FILE.
//
//	visibility:
//	  production: [admin, manager, technician]
//	shopFloorRoles: [technician, mechanic]
type CalendarPolicyFile struct {
	Visibility     map[string][]string `yaml:"visibility"`
	ShopFloorRoles []string            `yaml:"shopFloorRoles"`
	EditorRoles    []string            `yaml:"editorRoles"`
}

// ErrEmptyPolicyFile is returned when the policy document contains no settings.
var ErrEmptyPolicyFile = errors.New("config: calendar policy file is empty")

// LoadCalendarPolicy reads and decodes the calendar policy file. An empty path yields a
// zero policy so callers fall back to built-in defaults.
func LoadCalendarPolicy(path string) (CalendarPolicyFile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return CalendarPolicyFile{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return CalendarPolicyFile{}, fmt.Errorf("config: read calendar policy %s: %w", path, err)
	}
	return ParseCalendarPolicy(data)
}

// ParseCalendarPolicy decodes a YAML policy document, rejecting unknown keys.
func ParseCalendarPolicy(data []byte) (CalendarPolicyFile, error) {
	if strings.TrimSpace(string(data)) == "" {
		return CalendarPolicyFile{}, ErrEmptyPolicyFile
	}
	var policy CalendarPolicyFile
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&policy); err != nil {
		return CalendarPolicyFile{}, fmt.Errorf("config: decode calendar policy: %w", err)
	}

	visibility := make(map[string][]string, len(policy.Visibility))
	for category, roles := range policy.Visibility {
		key := strings.ToLower(strings.TrimSpace(category))
		if key == "" {
			return CalendarPolicyFile{}, errors.New("config: calendar policy has an empty category key")
		}
		visibility[key] = normaliseRoles(roles)
	}
	policy.Visibility = visibility
	policy.ShopFloorRoles = normaliseRoles(policy.ShopFloorRoles)
	policy.EditorRoles = normaliseRoles(policy.EditorRoles)
	return policy, nil
}

// Apply overlays the file settings onto the loaded configuration.
func (p CalendarPolicyFile) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if len(p.ShopFloorRoles) > 0 {
		cfg.Scheduling.ShopFloorRoles = append([]string(nil), p.ShopFloorRoles...)
	}
	if len(p.EditorRoles) > 0 {
		cfg.Calendar.EditorRoles = append([]string(nil), p.EditorRoles...)
	}
}

func normaliseRoles(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if role := strings.ToLower(strings.TrimSpace(value)); role != "" {
			out = append(out, role)
		}
	}
	return out
}
