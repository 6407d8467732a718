// Package scheduling implements the working-day calendar, the shop-floor capacity
// model and the schedule suggestion engine. Every function is pure: callers supply
// the roster, the already scheduled work and "today".
package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the canonical date form used for day keys and calendar events.
const DayLayout = "2006-01-02"

// Normalize truncates t to midnight UTC of its own calendar date.
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayKey renders the calendar date of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return Normalize(t).Format(DayLayout)
}

// ParseDay parses a YYYY-MM-DD value into midnight UTC.
func ParseDay(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("scheduling: empty date")
	}
	parsed, err := time.Parse(DayLayout, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduling: invalid date %q: %w", trimmed, err)
	}
	return parsed, nil
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

// NextWorkingDay returns t when it is a working day, otherwise the following Monday.
func NextWorkingDay(t time.Time) time.Time {
	day := Normalize(t)
	for IsWeekend(day) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// AddWorkingDays advances from start one day at a time, counting only working days,
// until n have been counted. Weekends are skipped and never counted, so a Friday plus
// one working day is the following Monday. n <= 0 returns start unchanged.
func AddWorkingDays(start time.Time, n int) time.Time {
	day := Normalize(start)
	for remaining := n; remaining > 0; {
		day = day.AddDate(0, 0, 1)
		if !IsWeekend(day) {
			remaining--
		}
	}
	return day
}

// WorkingDaysBetween lists the working days in the inclusive range [start, end].
func WorkingDaysBetween(start, end time.Time) []time.Time {
	from := Normalize(start)
	to := Normalize(end)
	if to.Before(from) {
		return nil
	}
	days := make([]time.Time, 0, int(to.Sub(from).Hours()/24)+1)
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if !IsWeekend(day) {
			days = append(days, day)
		}
	}
	return days
}

// WorkingDaysFrom collects n working days beginning at start, skipping weekends.
func WorkingDaysFrom(start time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	days := make([]time.Time, 0, n)
	for day := Normalize(start); len(days) < n; day = day.AddDate(0, 0, 1) {
		if !IsWeekend(day) {
			days = append(days, day)
		}
	}
	return days
}

// CalendarDaysBetween counts calendar days from one date to another; negative when to precedes from.
func CalendarDaysBetween(from, to time.Time) int {
	return int(Normalize(to).Sub(Normalize(from)).Hours() / 24)
}
