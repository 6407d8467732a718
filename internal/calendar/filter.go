package calendar

import (
	"strings"

	domain "github.com/workshop-planner/api/internal/domain"
)

// FilterByRole keeps the events visible to role.
func FilterByRole(events []domain.CalendarEvent, role string) []domain.CalendarEvent {
	return FilterByAnyRole(events, role)
}

// FilterByAnyRole keeps the events visible to at least one of roles.
func FilterByAnyRole(events []domain.CalendarEvent, roles ...string) []domain.CalendarEvent {
	wanted := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role != "" {
			wanted[role] = struct{}{}
		}
	}
	out := make([]domain.CalendarEvent, 0, len(events))
	if len(wanted) == 0 {
		return out
	}
	for _, event := range events {
		for _, role := range event.VisibleRoles {
			if _, ok := wanted[strings.ToLower(role)]; ok {
				out = append(out, event)
				break
			}
		}
	}
	return out
}

// FilterByCategory keeps events in any of the categories. No categories means no filtering.
func FilterByCategory(events []domain.CalendarEvent, categories ...domain.EventCategory) []domain.CalendarEvent {
	if len(categories) == 0 {
		out := make([]domain.CalendarEvent, len(events))
		copy(out, events)
		return out
	}
	out := make([]domain.CalendarEvent, 0, len(events))
	for _, event := range events {
		for _, category := range categories {
			if event.Category == category {
				out = append(out, event)
				break
			}
		}
	}
	return out
}

// EventsForDay keeps single-day events on day and multi-day events whose span contains it.
func EventsForDay(events []domain.CalendarEvent, day string) []domain.CalendarEvent {
	return EventsInRange(events, day, day)
}

// EventsInRange keeps events whose date span overlaps the inclusive [from, to] range.
// Canonical YYYY-MM-DD keys order lexically, so plain string comparison is used.
func EventsInRange(events []domain.CalendarEvent, from, to string) []domain.CalendarEvent {
	out := make([]domain.CalendarEvent, 0, len(events))
	if from > to {
		return out
	}
	for _, event := range events {
		end := event.Date
		if event.EndDate != "" && event.EndDate > event.Date {
			end = event.EndDate
		}
		if event.Date <= to && end >= from {
			out = append(out, event)
		}
	}
	return out
}
