package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/workshop-planner/api/internal/domain"
)

func scheduledItem(t *testing.T, id string, start, end string, hours float64) domain.WorkItem {
	t.Helper()
	s := mustDay(t, start)
	e := mustDay(t, end)
	return domain.WorkItem{
		ID:        id,
		Title:     "Job " + id,
		Hours:     hours,
		Status:    domain.WorkItemStatusScheduled,
		StartDate: &s,
		EndDate:   &e,
	}
}

func TestDailyCapacityFallbackOnEmptyRoster(t *testing.T) {
	capacity := DailyCapacity(nil, DefaultCapacityPolicy())
	assert.Equal(t, 3, capacity.EmployeeCount)
	assert.Equal(t, 24.0, capacity.DailyHours)
	assert.True(t, capacity.Fallback)
}

func TestDailyCapacityFallbackWhenNoShopFloorRoles(t *testing.T) {
	roster := []domain.RosterEntry{
		{ID: "e1", Role: "manager", Active: true, WeeklyHours: 40},
		{ID: "e2", Role: "technician", Active: false, WeeklyHours: 40},
	}
	capacity := DailyCapacity(roster, DefaultCapacityPolicy())
	assert.Equal(t, domain.Capacity{EmployeeCount: 3, DailyHours: 24, Fallback: true}, capacity)
}

func TestDailyCapacitySumsRoundedDailyHours(t *testing.T) {
	roster := []domain.RosterEntry{
		{ID: "e1", Role: "technician", Active: true, WeeklyHours: 40},
		{ID: "e2", Role: " Mechanic ", Active: true, WeeklyHours: 38},
		{ID: "e3", Role: "apprentice", Active: false, WeeklyHours: 40},
		{ID: "e4", Role: "manager", Active: true, WeeklyHours: 40},
		{ID: "e5", Role: "technician", Active: true, WeeklyHours: 22},
	}
	capacity := DailyCapacity(roster, DefaultCapacityPolicy())
	assert.Equal(t, 3, capacity.EmployeeCount)
	assert.Equal(t, 20.0, capacity.DailyHours)
	assert.False(t, capacity.Fallback)
}

func TestDailyCapacityCustomFallbackAndOpenRoles(t *testing.T) {
	policy := CapacityPolicy{FallbackEmployees: 5, FallbackDailyHours: 40}
	assert.Equal(t, domain.Capacity{EmployeeCount: 5, DailyHours: 40, Fallback: true}, DailyCapacity(nil, policy))

	roster := []domain.RosterEntry{{ID: "e1", Role: "manager", Active: true, WeeklyHours: 30}}
	assert.Equal(t, domain.Capacity{EmployeeCount: 1, DailyHours: 6}, DailyCapacity(roster, policy))
}

func TestDailyLoadSpreadsHoursAcrossOwnWorkingDays(t *testing.T) {
	days := []time.Time{mustDay(t, "2024-03-07"), mustDay(t, "2024-03-08"), mustDay(t, "2024-03-11")}
	week := scheduledItem(t, "a", "2024-03-04", "2024-03-08", 40)
	acrossWeekend := scheduledItem(t, "b", "2024-03-08", "2024-03-11", 16)
	waiting := scheduledItem(t, "c", "2024-03-07", "2024-03-07", 8)
	waiting.Status = domain.WorkItemStatusWaiting
	noHours := scheduledItem(t, "d", "2024-03-07", "2024-03-07", 0)
	undated := domain.WorkItem{ID: "e", Hours: 8, Status: domain.WorkItemStatusScheduled}
	outside := scheduledItem(t, "f", "2024-03-18", "2024-03-19", 16)

	load := DailyLoad(days, []domain.WorkItem{week, acrossWeekend, waiting, noHours, undated, outside}, "")

	assert.Equal(t, map[string]float64{
		"2024-03-07": 8,
		"2024-03-08": 16,
		"2024-03-11": 8,
	}, load)
}

func TestDailyLoadExcludesItem(t *testing.T) {
	days := []time.Time{mustDay(t, "2024-03-04")}
	self := scheduledItem(t, "self", "2024-03-04", "2024-03-04", 8)
	other := scheduledItem(t, "other", "2024-03-04", "2024-03-04", 4)
	other.Status = domain.WorkItemStatusInProgress

	load := DailyLoad(days, []domain.WorkItem{self, other}, "self")
	assert.Equal(t, 4.0, load["2024-03-04"])
}

func TestDailyLoadEmptyDays(t *testing.T) {
	assert.Empty(t, DailyLoad(nil, []domain.WorkItem{scheduledItem(t, "a", "2024-03-04", "2024-03-04", 8)}, ""))
}

func TestNeededDays(t *testing.T) {
	assert.Equal(t, 3, NeededDays(domain.WorkItem{TotalDays: 3, Hours: 80}))
	assert.Equal(t, 4, NeededDays(domain.WorkItem{Hours: 32}))
	assert.Equal(t, 5, NeededDays(domain.WorkItem{Hours: 33}))
	assert.Equal(t, 1, NeededDays(domain.WorkItem{}))
}

func TestBuildCapacityWindow(t *testing.T) {
	item := domain.WorkItem{ID: "new", Hours: 32}
	capacity := domain.Capacity{EmployeeCount: 3, DailyHours: 24}
	scheduled := []domain.WorkItem{scheduledItem(t, "busy", "2024-03-07", "2024-03-08", 32)}

	window := BuildCapacityWindow(mustDay(t, "2024-03-07"), item, scheduled, capacity)

	assert.Equal(t, "2024-03-07", DayKey(window.StartDate))
	assert.Equal(t, "2024-03-12", DayKey(window.EndDate))
	assert.Equal(t, 4, window.WorkingDays)
	assert.Equal(t, 24.0, window.DailyCapacity)
	assert.Equal(t, 3, window.EmployeeCount)
	require.Len(t, window.Days, 4)

	thursday := window.Days[0]
	assert.Equal(t, 16.0, thursday.CommittedHours)
	assert.Equal(t, 24.0, thursday.ProjectedHours)
	assert.Equal(t, 8.0, thursday.FreeHours)
	assert.Equal(t, 100, thursday.UtilizationPct)

	monday := window.Days[2]
	assert.Equal(t, "2024-03-11", DayKey(monday.Date))
	assert.Equal(t, 0.0, monday.CommittedHours)
	assert.Equal(t, 33, monday.UtilizationPct)

	assert.Equal(t, 100, window.PeakUtilization)
	assert.Equal(t, 67, window.AvgUtilization)
	assert.True(t, window.CanFit)
	assert.True(t, window.HasCapacity)
}

func TestBuildCapacityWindowOverbooked(t *testing.T) {
	item := domain.WorkItem{ID: "new", TotalDays: 1, Hours: 8}
	capacity := domain.Capacity{EmployeeCount: 3, DailyHours: 24}
	scheduled := []domain.WorkItem{
		scheduledItem(t, "a", "2024-03-04", "2024-03-04", 20),
		scheduledItem(t, "b", "2024-03-04", "2024-03-04", 10),
		scheduledItem(t, "new", "2024-03-04", "2024-03-04", 50),
	}

	window := BuildCapacityWindow(mustDay(t, "2024-03-04"), item, scheduled, capacity)

	require.Len(t, window.Days, 1)
	day := window.Days[0]
	assert.Equal(t, 30.0, day.CommittedHours)
	assert.Equal(t, 0.0, day.FreeHours)
	assert.Equal(t, 100, day.UtilizationPct)
	assert.False(t, window.CanFit)
	assert.False(t, window.HasCapacity)
}

func TestCapacityDayInvariants(t *testing.T) {
	capacities := []domain.Capacity{{EmployeeCount: 1, DailyHours: 0}, {EmployeeCount: 3, DailyHours: 24}, {EmployeeCount: 1, DailyHours: 4}}
	loads := []float64{0, 5, 24, 90}
	for _, capacity := range capacities {
		for _, hours := range loads {
			scheduled := []domain.WorkItem{scheduledItem(t, "x", "2024-03-04", "2024-03-08", hours)}
			window := BuildCapacityWindow(mustDay(t, "2024-03-04"), domain.WorkItem{ID: "y", Hours: 12}, scheduled, capacity)
			for _, day := range window.Days {
				assert.GreaterOrEqual(t, day.UtilizationPct, 0)
				assert.LessOrEqual(t, day.UtilizationPct, 100)
				assert.GreaterOrEqual(t, day.FreeHours, 0.0)
			}
		}
	}
}

func TestLoadOverview(t *testing.T) {
	capacity := domain.Capacity{EmployeeCount: 2, DailyHours: 16}
	scheduled := []domain.WorkItem{scheduledItem(t, "a", "2024-03-08", "2024-03-11", 16)}

	overview := LoadOverview(mustDay(t, "2024-03-08"), mustDay(t, "2024-03-12"), scheduled, capacity)

	require.Len(t, overview.Days, 3)
	assert.Equal(t, 8.0, overview.Days[0].CommittedHours)
	assert.Equal(t, 50, overview.Days[0].UtilizationPct)
	assert.Equal(t, "2024-03-11", DayKey(overview.Days[1].Date))
	assert.Equal(t, 0.0, overview.Days[2].CommittedHours)
	assert.Equal(t, capacity, overview.Capacity)
}
