package scheduling

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/workshop-planner/api/internal/domain"
)

func TestProposeOptimalSlotWithoutConflicts(t *testing.T) {
	today := mustDay(t, "2024-03-04")
	item := domain.WorkItem{ID: "wi-1", TotalDays: 5, Priority: 5}

	suggestions := Propose(item, nil, nil, DefaultSuggestionPolicy(), today)

	require.Len(t, suggestions, 4)
	first := suggestions[0]
	assert.Equal(t, "2024-03-04", DayKey(first.StartDate))
	assert.Equal(t, "2024-03-08", DayKey(first.EndDate))
	assert.Equal(t, 100, first.Score)
	assert.Equal(t, ReasonOptimal, first.Reason)
	assert.False(t, first.HasConflicts)
	assert.Empty(t, first.ConflictingItems)
	assert.Nil(t, first.Capacity)

	scores := make([]int, 0, len(suggestions))
	starts := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		scores = append(scores, s.Score)
		starts = append(starts, DayKey(s.StartDate))
	}
	assert.Equal(t, []int{100, 100, 92, 90}, scores)
	assert.Equal(t, []string{"2024-03-04", "2024-03-11", "2024-03-18", "2024-03-25"}, starts)
}

func TestProposeConflictCostsTwentyPoints(t *testing.T) {
	today := mustDay(t, "2024-03-04")
	// Priority 1 keeps the raw score at the clamp boundary so the penalty is observable.
	item := domain.WorkItem{ID: "wi-1", TotalDays: 5, Priority: 1}
	blocking := scheduledItem(t, "wi-2", "2024-03-04", "2024-03-08", 40)

	baseline := Propose(item, nil, nil, DefaultSuggestionPolicy(), today)
	blocked := Propose(item, []domain.WorkItem{blocking}, nil, DefaultSuggestionPolicy(), today)

	findWeek := func(list []domain.ScheduleSuggestion, start string) domain.ScheduleSuggestion {
		for _, s := range list {
			if DayKey(s.StartDate) == start {
				return s
			}
		}
		t.Fatalf("no suggestion starting %s", start)
		return domain.ScheduleSuggestion{}
	}

	base := findWeek(baseline, "2024-03-04")
	conflicted := findWeek(blocked, "2024-03-04")
	assert.Equal(t, 100, base.Score)
	assert.Equal(t, base.Score-20, conflicted.Score)
	assert.True(t, conflicted.HasConflicts)
	assert.Equal(t, []domain.WorkItemRef{{ID: "wi-2", Title: "Job wi-2"}}, conflicted.ConflictingItems)

	// The following week does not overlap and is unaffected.
	assert.Equal(t, findWeek(baseline, "2024-03-11").Score, findWeek(blocked, "2024-03-11").Score)
}

func TestProposeReturnsEmptyWithoutDuration(t *testing.T) {
	suggestions := Propose(domain.WorkItem{ID: "wi-1", Priority: 5}, nil, nil, DefaultSuggestionPolicy(), mustDay(t, "2024-03-04"))
	assert.NotNil(t, suggestions)
	assert.Empty(t, suggestions)
}

func TestProposeDerivesDaysFromHours(t *testing.T) {
	item := domain.WorkItem{ID: "wi-1", Hours: 20, Priority: 5}
	suggestions := Propose(item, nil, nil, DefaultSuggestionPolicy(), mustDay(t, "2024-03-04"))
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "2024-03-04", DayKey(suggestions[0].StartDate))
	assert.Equal(t, "2024-03-06", DayKey(suggestions[0].EndDate))
}

func TestProposeAppliesMaterialsSafetyMargin(t *testing.T) {
	item := domain.WorkItem{ID: "wi-1", TotalDays: 2, Priority: 5, MaterialsRequired: true}

	suggestions := Propose(item, nil, nil, DefaultSuggestionPolicy(), mustDay(t, "2024-03-04"))
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "2024-03-06", DayKey(earliest(suggestions).StartDate))

	// A margin landing on the weekend rolls to Monday.
	suggestions = Propose(item, nil, nil, DefaultSuggestionPolicy(), mustDay(t, "2024-03-07"))
	assert.Equal(t, "2024-03-11", DayKey(earliest(suggestions).StartDate))

	item.MaterialsReady = true
	suggestions = Propose(item, nil, nil, DefaultSuggestionPolicy(), mustDay(t, "2024-03-04"))
	assert.Equal(t, "2024-03-04", DayKey(earliest(suggestions).StartDate))
}

func TestProposeIgnoresItself(t *testing.T) {
	self := scheduledItem(t, "wi-1", "2024-03-04", "2024-03-08", 40)
	self.TotalDays = 5
	self.Priority = 5

	suggestions := Propose(self, []domain.WorkItem{self}, nil, DefaultSuggestionPolicy(), mustDay(t, "2024-03-04"))
	for _, s := range suggestions {
		assert.False(t, s.HasConflicts)
	}
}

func TestProposeAttachesCapacityWindows(t *testing.T) {
	capacity := domain.Capacity{EmployeeCount: 3, DailyHours: 24}
	item := domain.WorkItem{ID: "wi-1", TotalDays: 5, Hours: 40, Priority: 5}

	suggestions := Propose(item, nil, &capacity, DefaultSuggestionPolicy(), mustDay(t, "2024-03-04"))

	for _, s := range suggestions {
		require.NotNil(t, s.Capacity)
		assert.Equal(t, s.StartDate, s.Capacity.StartDate)
		assert.Equal(t, s.EndDate, s.Capacity.EndDate)
		assert.Equal(t, 5, s.Capacity.WorkingDays)
		assert.True(t, s.Capacity.CanFit)
	}
}

func TestProposeHonoursCandidateCount(t *testing.T) {
	policy := SuggestionPolicy{MaterialsSafetyMarginDays: 2, WeeklyCandidates: 6}
	suggestions := Propose(domain.WorkItem{ID: "wi-1", TotalDays: 1, Priority: 5}, nil, nil, policy, mustDay(t, "2024-03-04"))
	assert.Len(t, suggestions, 6)
}

func TestProposeNeverStartsOrEndsOnWeekend(t *testing.T) {
	start := mustDay(t, "2024-03-01")
	scheduled := []domain.WorkItem{
		scheduledItem(t, "busy-1", "2024-03-05", "2024-03-12", 48),
		scheduledItem(t, "busy-2", "2024-03-18", "2024-03-19", 16),
	}
	for offset := 0; offset < 14; offset++ {
		today := start.AddDate(0, 0, offset)
		for days := 1; days <= 7; days++ {
			for _, materials := range []bool{false, true} {
				item := domain.WorkItem{ID: "wi", TotalDays: days, Priority: 5, MaterialsRequired: materials}
				for _, s := range Propose(item, scheduled, nil, DefaultSuggestionPolicy(), today) {
					assert.False(t, IsWeekend(s.StartDate), "start %s", DayKey(s.StartDate))
					assert.False(t, IsWeekend(s.EndDate), "end %s", DayKey(s.EndDate))
					assert.False(t, s.EndDate.Before(s.StartDate))
				}
			}
		}
	}
}

func TestProposeOrderingAndBounds(t *testing.T) {
	today := mustDay(t, "2024-03-04")
	scheduled := []domain.WorkItem{
		scheduledItem(t, "a", "2024-03-04", "2024-03-06", 24),
		scheduledItem(t, "b", "2024-03-05", "2024-03-15", 80),
		scheduledItem(t, "c", "2024-03-20", "2024-03-22", 24),
		scheduledItem(t, "d", "2024-03-25", "2024-03-29", 40),
	}
	for priority := 0; priority <= 10; priority++ {
		for _, design := range []bool{false, true} {
			item := domain.WorkItem{ID: fmt.Sprintf("wi-%d", priority), TotalDays: 3, Priority: priority, DesignRequired: design}
			suggestions := Propose(item, scheduled, nil, DefaultSuggestionPolicy(), today)
			require.Len(t, suggestions, 4)
			for i, s := range suggestions {
				assert.GreaterOrEqual(t, s.Score, 0)
				assert.LessOrEqual(t, s.Score, 100)
				if i == 0 {
					continue
				}
				prev := suggestions[i-1]
				assert.GreaterOrEqual(t, prev.Score, s.Score)
				if prev.Score == s.Score {
					assert.False(t, s.StartDate.Before(prev.StartDate))
				}
			}
		}
	}
}

func TestScoreClampsToBounds(t *testing.T) {
	for priority := 0; priority <= 10; priority++ {
		for conflicts := 0; conflicts <= 8; conflicts++ {
			for daysAway := 0; daysAway <= 40; daysAway += 5 {
				item := domain.WorkItem{Priority: priority, MaterialsRequired: conflicts%2 == 0, DesignRequired: daysAway%2 == 0}
				score := Score(item, conflicts, daysAway)
				assert.GreaterOrEqual(t, score, 0)
				assert.LessOrEqual(t, score, 100)
			}
		}
	}
	assert.Equal(t, 0, Score(domain.WorkItem{Priority: 0, MaterialsRequired: true, DesignRequired: true}, 5, 30))
}

func TestScoreDistancePenaltyIsCapped(t *testing.T) {
	item := domain.WorkItem{Priority: 1, MaterialsRequired: true, DesignRequired: true}
	assert.Equal(t, 60, Score(item, 0, 10))
	assert.Equal(t, 50, Score(item, 0, 15))
	assert.Equal(t, 50, Score(item, 0, 60))
}

func TestReason(t *testing.T) {
	tests := []struct {
		score, conflicts, week int
		want                   string
	}{
		{95, 0, 0, ReasonOptimal},
		{90, 1, 0, ReasonOptimal},
		{75, 1, 0, ReasonGood},
		{55, 2, 1, ReasonAcceptable},
		{40, 2, 0, "2 conflicts detected"},
		{40, 0, 3, ReasonDistantDate},
		{40, 0, 1, ReasonCheckAvailability},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Reason(tc.score, tc.conflicts, tc.week))
	}
}

func TestConflictsUseClosedIntervals(t *testing.T) {
	touchingStart := scheduledItem(t, "edge-start", "2024-03-01", "2024-03-04", 8)
	touchingEnd := scheduledItem(t, "edge-end", "2024-03-08", "2024-03-12", 8)
	before := scheduledItem(t, "before", "2024-02-26", "2024-03-01", 8)

	refs := Conflicts("self", mustDay(t, "2024-03-04"), mustDay(t, "2024-03-08"), []domain.WorkItem{touchingStart, touchingEnd, before})

	require.Len(t, refs, 2)
	assert.Equal(t, "edge-start", refs[0].ID)
	assert.Equal(t, "edge-end", refs[1].ID)
}

func earliest(list []domain.ScheduleSuggestion) domain.ScheduleSuggestion {
	best := list[0]
	for _, s := range list[1:] {
		if s.StartDate.Before(best.StartDate) {
			best = s
		}
	}
	return best
}
