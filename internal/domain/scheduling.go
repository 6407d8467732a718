package domain

import (
	"time"
)

// WorkItemStatus enumerates lifecycle states of a production work item.
type WorkItemStatus string

const (
	// WorkItemStatusWaiting marks items that still need a production slot.
	WorkItemStatusWaiting WorkItemStatus = "waiting"
	// WorkItemStatusScheduled marks items whose start and end dates have been accepted.
	WorkItemStatusScheduled WorkItemStatus = "scheduled"
	// WorkItemStatusInProgress marks items currently on the shop floor.
	WorkItemStatusInProgress WorkItemStatus = "in_progress"
	// WorkItemStatusCompleted marks finished items.
	WorkItemStatusCompleted WorkItemStatus = "completed"
	// WorkItemStatusOnHold marks items paused by the workshop.
	WorkItemStatusOnHold WorkItemStatus = "on_hold"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s WorkItemStatus) Valid() bool {
	switch s {
	case WorkItemStatusWaiting, WorkItemStatusScheduled, WorkItemStatusInProgress, WorkItemStatusCompleted, WorkItemStatusOnHold:
		return true
	}
	return false
}

// Committed reports whether the item occupies shop-floor capacity.
func (s WorkItemStatus) Committed() bool {
	return s == WorkItemStatusScheduled || s == WorkItemStatusInProgress
}

// WorkItem is a production job awaiting or occupying a slot on the shop floor.
type WorkItem struct {
	ID                string
	Title             string
	Hours             float64
	TotalDays         int
	Status            WorkItemStatus
	Priority          int
	MaterialsRequired bool
	MaterialsReady    bool
	DesignRequired    bool
	DesignReady       bool
	StartDate         *time.Time
	EndDate           *time.Time
	VehicleArrival    *time.Time
	UpdatedAt         time.Time
}

// HasDates reports whether both schedule dates are set.
func (w WorkItem) HasDates() bool {
	return w.StartDate != nil && w.EndDate != nil && !w.StartDate.IsZero() && !w.EndDate.IsZero()
}

// MaterialsOK reports whether materials do not block production.
func (w WorkItem) MaterialsOK() bool {
	return !w.MaterialsRequired || w.MaterialsReady
}

// DesignOK reports whether design approval does not block production.
func (w WorkItem) DesignOK() bool {
	return !w.DesignRequired || w.DesignReady
}

// WorkItemRef is the compact reference embedded in suggestions.
type WorkItemRef struct {
	ID    string
	Title string
}

// RosterEntry describes one employee in the workforce roster.
type RosterEntry struct {
	ID          string
	Name        string
	Role        string
	Active      bool
	WeeklyHours float64
}

// Capacity summarises the shop-floor labour pool available per working day.
type Capacity struct {
	EmployeeCount int
	DailyHours    float64
	// Fallback is set when the roster was empty or unavailable and defaults were applied.
	Fallback bool
}

// CapacityDay captures the labour figures for a single working day.
type CapacityDay struct {
	Date           time.Time
	TotalHours     float64
	CommittedHours float64
	ProjectedHours float64
	FreeHours      float64
	UtilizationPct int
}

// CapacityWindow aggregates capacity over the working days a candidate would occupy.
type CapacityWindow struct {
	StartDate       time.Time
	EndDate         time.Time
	WorkingDays     int
	DailyCapacity   float64
	EmployeeCount   int
	PeakUtilization int
	AvgUtilization  int
	CanFit          bool
	HasCapacity     bool
	Days            []CapacityDay
}

// ScheduleSuggestion is a scored candidate slot for a work item.
type ScheduleSuggestion struct {
	StartDate        time.Time
	EndDate          time.Time
	HasConflicts     bool
	ConflictingItems []WorkItemRef
	Score            int
	Reason           string
	Capacity         *CapacityWindow
}

// DailyLoadEntry reports committed hours for one working day.
type DailyLoadEntry struct {
	Date           time.Time
	CommittedHours float64
	TotalHours     float64
	UtilizationPct int
}

// CapacityOverview is the capacity summary returned for a date range.
type CapacityOverview struct {
	Capacity Capacity
	From     time.Time
	To       time.Time
	Days     []DailyLoadEntry
}
