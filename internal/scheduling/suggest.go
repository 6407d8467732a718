package scheduling

import (
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/workshop-planner/api/internal/domain"
)

// Scoring weights. Every candidate starts at scoreBase and is clamped to [scoreMin, scoreMax].
const (
	scoreBase          = 100
	scoreMin           = 0
	scoreMax           = 100
	conflictWeight     = 20
	distanceWeight     = 2
	distancePenaltyCap = 30
	materialsBonus     = 10
	designBonus        = 10
	priorityWeight     = 5
	neutralPriority    = 5
)

// Reason thresholds and labels.
const (
	optimalThreshold    = 90
	goodThreshold       = 70
	acceptableThreshold = 50
	distantWeek         = 3

	ReasonOptimal           = "Optimal, no conflicts"
	ReasonGood              = "Good, few conflicts"
	ReasonAcceptable        = "Acceptable, some conflicts"
	ReasonDistantDate       = "Distant date"
	ReasonCheckAvailability = "Check availability"
)

const (
	// DefaultMaterialsSafetyMarginDays delays the first candidate while materials are outstanding.
	DefaultMaterialsSafetyMarginDays = 2
	// DefaultWeeklyCandidates is the number of week-spaced candidates generated per proposal.
	DefaultWeeklyCandidates = 4
)

// SuggestionPolicy holds the tunable knobs of the suggestion engine.
type SuggestionPolicy struct {
	MaterialsSafetyMarginDays int
	WeeklyCandidates          int
}

// DefaultSuggestionPolicy returns the stock policy.
func DefaultSuggestionPolicy() SuggestionPolicy {
	return SuggestionPolicy{
		MaterialsSafetyMarginDays: DefaultMaterialsSafetyMarginDays,
		WeeklyCandidates:          DefaultWeeklyCandidates,
	}
}

// Propose generates week-spaced candidate slots for item, scores them against the
// already scheduled work and returns them best first. Items without any duration
// information yield an empty list so callers fall back to manual dates. When capacity
// is non-nil each suggestion carries the capacity window of its slot.
func Propose(item domain.WorkItem, scheduled []domain.WorkItem, capacity *domain.Capacity, policy SuggestionPolicy, today time.Time) []domain.ScheduleSuggestion {
	if !HasDuration(item) {
		return []domain.ScheduleSuggestion{}
	}

	candidates := policy.WeeklyCandidates
	if candidates <= 0 {
		candidates = DefaultWeeklyCandidates
	}
	margin := policy.MaterialsSafetyMarginDays
	if margin < 0 {
		margin = 0
	}

	today = Normalize(today)
	cursor := today
	if item.MaterialsRequired && !item.MaterialsReady {
		cursor = cursor.AddDate(0, 0, margin)
	}
	days := NeededDays(item)

	suggestions := make([]domain.ScheduleSuggestion, 0, candidates)
	for week := 0; week < candidates; week++ {
		start := NextWorkingDay(cursor.AddDate(0, 0, 7*week))
		end := AddWorkingDays(start, days-1)

		conflicts := Conflicts(item.ID, start, end, scheduled)
		daysAway := CalendarDaysBetween(today, start)
		if daysAway < 0 {
			daysAway = 0
		}
		score := Score(item, len(conflicts), daysAway)

		suggestion := domain.ScheduleSuggestion{
			StartDate:        start,
			EndDate:          end,
			HasConflicts:     len(conflicts) > 0,
			ConflictingItems: conflicts,
			Score:            score,
			Reason:           Reason(score, len(conflicts), week),
		}
		if capacity != nil {
			window := BuildCapacityWindow(start, item, scheduled, *capacity)
			suggestion.Capacity = &window
		}
		suggestions = append(suggestions, suggestion)
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	return suggestions
}

// Conflicts lists scheduled items whose closed [start, end] interval overlaps the
// candidate. Entries sharing selfID and entries without dates are ignored.
func Conflicts(selfID string, start, end time.Time, scheduled []domain.WorkItem) []domain.WorkItemRef {
	selfID = strings.TrimSpace(selfID)
	start = Normalize(start)
	end = Normalize(end)

	refs := make([]domain.WorkItemRef, 0)
	for _, other := range scheduled {
		if selfID != "" && other.ID == selfID {
			continue
		}
		if !other.HasDates() {
			continue
		}
		otherStart := Normalize(*other.StartDate)
		otherEnd := Normalize(*other.EndDate)
		if !otherStart.After(end) && !otherEnd.Before(start) {
			refs = append(refs, domain.WorkItemRef{ID: other.ID, Title: other.Title})
		}
	}
	return refs
}

// Score rates a candidate slot. daysAway counts calendar days from today.
func Score(item domain.WorkItem, conflicts, daysAway int) int {
	score := scoreBase
	score -= conflictWeight * conflicts
	score -= min(daysAway*distanceWeight, distancePenaltyCap)
	if item.MaterialsOK() {
		score += materialsBonus
	}
	if item.DesignOK() {
		score += designBonus
	}
	score += priorityWeight * (item.Priority - neutralPriority)
	return max(scoreMin, min(scoreMax, score))
}

// Reason classifies a scored candidate; the first matching rule wins.
func Reason(score, conflicts, week int) string {
	switch {
	case score >= optimalThreshold:
		return ReasonOptimal
	case score >= goodThreshold:
		return ReasonGood
	case score >= acceptableThreshold:
		return ReasonAcceptable
	case conflicts > 0:
		return fmt.Sprintf("%d conflicts detected", conflicts)
	case week >= distantWeek:
		return ReasonDistantDate
	default:
		return ReasonCheckAvailability
	}
}
