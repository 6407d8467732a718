package scheduling

import (
	"math"
	"strings"
	"time"

	domain "github.com/workshop-planner/api/internal/domain"
)

const (
	// DefaultFallbackEmployees is the head count assumed when no shop-floor roster is available.
	DefaultFallbackEmployees = 3
	// DefaultFallbackDailyHours is the labour pool assumed when no shop-floor roster is available.
	DefaultFallbackDailyHours = 24
	// HoursPerWorkingDay converts an hour estimate into a day count.
	HoursPerWorkingDay = 8

	workingDaysPerWeek = 5
)

// DefaultShopFloorRoles lists the roster roles counted towards production capacity.
var DefaultShopFloorRoles = []string{"technician", "mechanic", "apprentice"}

// CapacityPolicy configures how the roster is turned into a daily labour pool.
type CapacityPolicy struct {
	// ShopFloorRoles restricts which roster roles count; empty counts every active entry.
	ShopFloorRoles     []string
	FallbackEmployees  int
	FallbackDailyHours float64
}

// DefaultCapacityPolicy returns the stock policy.
func DefaultCapacityPolicy() CapacityPolicy {
	return CapacityPolicy{
		ShopFloorRoles:     append([]string(nil), DefaultShopFloorRoles...),
		FallbackEmployees:  DefaultFallbackEmployees,
		FallbackDailyHours: DefaultFallbackDailyHours,
	}
}

// FallbackCapacity returns the degraded-mode capacity for the policy.
func FallbackCapacity(policy CapacityPolicy) domain.Capacity {
	employees := policy.FallbackEmployees
	if employees <= 0 {
		employees = DefaultFallbackEmployees
	}
	hours := policy.FallbackDailyHours
	if hours <= 0 {
		hours = DefaultFallbackDailyHours
	}
	return domain.Capacity{EmployeeCount: employees, DailyHours: hours, Fallback: true}
}

// DailyCapacity sums round(weeklyHours/5) over active shop-floor roster entries.
// An empty filtered roster yields the policy fallback.
func DailyCapacity(roster []domain.RosterEntry, policy CapacityPolicy) domain.Capacity {
	roles := make(map[string]struct{}, len(policy.ShopFloorRoles))
	for _, role := range policy.ShopFloorRoles {
		if normalized := normalizeRole(role); normalized != "" {
			roles[normalized] = struct{}{}
		}
	}

	var (
		employees int
		hours     float64
	)
	for _, entry := range roster {
		if !entry.Active {
			continue
		}
		if len(roles) > 0 {
			if _, ok := roles[normalizeRole(entry.Role)]; !ok {
				continue
			}
		}
		employees++
		hours += math.Round(entry.WeeklyHours / workingDaysPerWeek)
	}

	if employees == 0 {
		return FallbackCapacity(policy)
	}
	return domain.Capacity{EmployeeCount: employees, DailyHours: hours}
}

// DailyLoad spreads the hours of every other committed work item evenly across its own
// working days and accumulates the share falling on each of days, keyed by DayKey.
func DailyLoad(days []time.Time, scheduled []domain.WorkItem, excludeID string) map[string]float64 {
	load := make(map[string]float64, len(days))
	if len(days) == 0 {
		return load
	}

	spanStart := Normalize(days[0])
	spanEnd := spanStart
	for _, day := range days {
		normalized := Normalize(day)
		load[DayKey(normalized)] = 0
		if normalized.Before(spanStart) {
			spanStart = normalized
		}
		if normalized.After(spanEnd) {
			spanEnd = normalized
		}
	}

	excludeID = strings.TrimSpace(excludeID)
	for _, item := range scheduled {
		if excludeID != "" && item.ID == excludeID {
			continue
		}
		if !item.Status.Committed() || !item.HasDates() || item.Hours <= 0 {
			continue
		}
		itemStart := Normalize(*item.StartDate)
		itemEnd := Normalize(*item.EndDate)
		if itemEnd.Before(spanStart) || itemStart.After(spanEnd) {
			continue
		}
		itemDays := WorkingDaysBetween(itemStart, itemEnd)
		if len(itemDays) == 0 {
			continue
		}
		share := item.Hours / float64(len(itemDays))
		for _, day := range itemDays {
			key := DayKey(day)
			if _, ok := load[key]; ok {
				load[key] += share
			}
		}
	}
	return load
}

// NeededDays returns the explicit day count or ceil(hours/8), never less than one.
func NeededDays(item domain.WorkItem) int {
	if item.TotalDays > 0 {
		return item.TotalDays
	}
	days := int(math.Ceil(item.Hours / HoursPerWorkingDay))
	if days < 1 {
		return 1
	}
	return days
}

// HasDuration reports whether the item carries enough information to be planned.
func HasDuration(item domain.WorkItem) bool {
	return item.TotalDays > 0 || item.Hours > 0
}

// BuildCapacityWindow annotates the working days a candidate starting at start would
// occupy with the committed and projected labour figures.
func BuildCapacityWindow(start time.Time, item domain.WorkItem, scheduled []domain.WorkItem, capacity domain.Capacity) domain.CapacityWindow {
	needed := NeededDays(item)
	days := WorkingDaysFrom(start, needed)
	perDay := 0.0
	if item.Hours > 0 {
		perDay = item.Hours / float64(needed)
	}
	load := DailyLoad(days, scheduled, item.ID)

	window := domain.CapacityWindow{
		StartDate:     days[0],
		EndDate:       days[len(days)-1],
		WorkingDays:   len(days),
		DailyCapacity: capacity.DailyHours,
		EmployeeCount: capacity.EmployeeCount,
		CanFit:        true,
		HasCapacity:   true,
		Days:          make([]domain.CapacityDay, 0, len(days)),
	}

	total := capacity.DailyHours
	utilizationSum := 0
	for _, day := range days {
		committed := load[DayKey(day)]
		projected := committed + perDay
		free := math.Max(0, total-committed)
		utilization := utilizationPct(projected, total)

		window.Days = append(window.Days, domain.CapacityDay{
			Date:           day,
			TotalHours:     total,
			CommittedHours: committed,
			ProjectedHours: projected,
			FreeHours:      free,
			UtilizationPct: utilization,
		})

		utilizationSum += utilization
		if utilization > window.PeakUtilization {
			window.PeakUtilization = utilization
		}
		if free < perDay {
			window.CanFit = false
		}
		if free <= 0 {
			window.HasCapacity = false
		}
	}
	window.AvgUtilization = int(math.Round(float64(utilizationSum) / float64(len(days))))
	return window
}

// LoadOverview reports committed hours per working day in [from, to] against capacity.
func LoadOverview(from, to time.Time, scheduled []domain.WorkItem, capacity domain.Capacity) domain.CapacityOverview {
	days := WorkingDaysBetween(from, to)
	load := DailyLoad(days, scheduled, "")
	overview := domain.CapacityOverview{
		Capacity: capacity,
		From:     Normalize(from),
		To:       Normalize(to),
		Days:     make([]domain.DailyLoadEntry, 0, len(days)),
	}
	for _, day := range days {
		committed := load[DayKey(day)]
		overview.Days = append(overview.Days, domain.DailyLoadEntry{
			Date:           day,
			CommittedHours: committed,
			TotalHours:     capacity.DailyHours,
			UtilizationPct: utilizationPct(committed, capacity.DailyHours),
		})
	}
	return overview
}

func utilizationPct(projected, total float64) int {
	if total <= 0 {
		if projected > 0 {
			return 100
		}
		return 0
	}
	pct := int(math.Round(projected / total * 100))
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
