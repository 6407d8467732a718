package calendar

import (
	"fmt"
	"sort"
	"strings"

	domain "github.com/workshop-planner/api/internal/domain"
)

// Role names understood by the default visibility policy.
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleTechnician = "technician"
	RoleReception  = "reception"
	RolePurchasing = "purchasing"
	RoleSales      = "sales"
)

// VisibilityPolicy maps each category to the roles that see its events by default.
type VisibilityPolicy struct {
	defaults map[domain.EventCategory][]string
}

// DefaultVisibilityPolicy returns the built-in category defaults. Admin sees everything.
func DefaultVisibilityPolicy() VisibilityPolicy {
	return VisibilityPolicy{defaults: map[domain.EventCategory][]string{
		domain.EventCategoryProduction:    {RoleAdmin, RoleManager, RoleTechnician},
		domain.EventCategoryClientVehicle: {RoleAdmin, RoleManager, RoleReception, RoleTechnician},
		domain.EventCategoryPurchasing:    {RoleAdmin, RoleManager, RolePurchasing},
		domain.EventCategoryQuoting:       {RoleAdmin, RoleManager, RoleSales},
		domain.EventCategoryGeneral:       {RoleAdmin, RoleManager, RoleTechnician, RoleReception, RolePurchasing, RoleSales},
	}}
}

// NewVisibilityPolicy overlays the supplied category defaults on top of the built-in ones.
// Every listed category must be known and carry at least one role.
func NewVisibilityPolicy(overrides map[string][]string) (VisibilityPolicy, error) {
	policy := DefaultVisibilityPolicy()
	for rawCategory, roles := range overrides {
		category := domain.EventCategory(strings.ToLower(strings.TrimSpace(rawCategory)))
		if !category.Valid() {
			return VisibilityPolicy{}, fmt.Errorf("calendar policy: unknown category %q", rawCategory)
		}
		normalized := NormalizeRoles(roles)
		if len(normalized) == 0 {
			return VisibilityPolicy{}, fmt.Errorf("calendar policy: category %q must list at least one role", category)
		}
		policy.defaults[category] = normalized
	}
	return policy, nil
}

// DefaultRoles returns a copy of the roles attached to category events without explicit roles.
func (p VisibilityPolicy) DefaultRoles(category domain.EventCategory) []string {
	roles := p.defaults[category]
	out := make([]string, len(roles))
	copy(out, roles)
	return out
}

// Apply normalises the event's roles and fills the category default when none are set.
func (p VisibilityPolicy) Apply(event domain.CalendarEvent) domain.CalendarEvent {
	roles := NormalizeRoles(event.VisibleRoles)
	if len(roles) == 0 {
		roles = p.DefaultRoles(event.Category)
	}
	event.VisibleRoles = roles
	return event
}

// NormalizeRoles returns the sorted set of trimmed lower-case role names.
func NormalizeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}
