package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const fixturePath = "testdata/workshop.yaml"

func runPlanner(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestProposeJSON(t *testing.T) {
	out, err := runPlanner(t, "propose", "wi-2", "--fixture", fixturePath, "--json")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}

	var got proposeOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.Manual {
		t.Fatal("expected planned item, got manual")
	}
	if got.Capacity == nil || got.Capacity.EmployeeCount != 3 || got.Capacity.DailyHours != 24 {
		t.Fatalf("unexpected capacity %+v", got.Capacity)
	}
	if len(got.Suggestions) != 4 {
		t.Fatalf("expected 4 suggestions, got %d", len(got.Suggestions))
	}
	for i := 1; i < len(got.Suggestions); i++ {
		if got.Suggestions[i-1].Score < got.Suggestions[i].Score {
			t.Fatalf("suggestions not ordered by score: %+v", got.Suggestions)
		}
	}

	var first *suggestionOutput
	for i := range got.Suggestions {
		if got.Suggestions[i].StartDate == "2024-03-04" {
			first = &got.Suggestions[i]
		}
	}
	if first == nil {
		t.Fatalf("expected a candidate starting today, got %+v", got.Suggestions)
	}
	if first.EndDate != "2024-03-05" {
		t.Fatalf("expected two working days ending 2024-03-05, got %s", first.EndDate)
	}
	if !first.HasConflicts || len(first.ConflictingItems) != 1 || first.ConflictingItems[0] != "wi-1" {
		t.Fatalf("expected conflict with wi-1, got %+v", first)
	}
	if first.Window == nil || first.Window.WorkingDays != 2 {
		t.Fatalf("expected capacity window over 2 days, got %+v", first.Window)
	}
}

func TestProposeManualItem(t *testing.T) {
	out, err := runPlanner(t, "propose", "wi-3", "--fixture", fixturePath)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if !strings.Contains(out, "schedule it manually") {
		t.Fatalf("expected manual notice, got %q", out)
	}
}

func TestProposeWithoutCapacity(t *testing.T) {
	out, err := runPlanner(t, "propose", "wi-2", "--fixture", fixturePath, "--json", "--no-capacity")
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	var got proposeOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got.Capacity != nil {
		t.Fatalf("expected no capacity, got %+v", got.Capacity)
	}
	for _, s := range got.Suggestions {
		if s.Window != nil {
			t.Fatalf("expected no capacity window, got %+v", s.Window)
		}
	}
}

func TestProposeUnknownItem(t *testing.T) {
	_, err := runPlanner(t, "propose", "wi-404", "--fixture", fixturePath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestProposeRequiresFixture(t *testing.T) {
	_, err := runPlanner(t, "propose", "wi-2")
	if !errors.Is(err, errFixtureRequired) {
		t.Fatalf("expected errFixtureRequired, got %v", err)
	}
}

func TestCapacityJSON(t *testing.T) {
	out, err := runPlanner(t, "capacity", "--fixture", fixturePath, "--json", "--from", "2024-03-04", "--to", "2024-03-10")
	if err != nil {
		t.Fatalf("capacity: %v", err)
	}
	var got overviewOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(got.Days) != 5 {
		t.Fatalf("expected 5 working days, got %d", len(got.Days))
	}
	monday := got.Days[0]
	if monday.Date != "2024-03-04" || monday.CommittedHours != 8 || monday.UtilizationPct != 33 {
		t.Fatalf("unexpected monday load %+v", monday)
	}
	thursday := got.Days[3]
	if thursday.CommittedHours != 0 || thursday.UtilizationPct != 0 {
		t.Fatalf("expected idle thursday, got %+v", thursday)
	}
}

func TestCapacityRejectsInvertedRange(t *testing.T) {
	_, err := runPlanner(t, "capacity", "--fixture", fixturePath, "--from", "2024-03-10", "--to", "2024-03-04")
	if err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestCalendarFiltersByRole(t *testing.T) {
	out, err := runPlanner(t, "calendar", "--fixture", fixturePath, "--json", "--role", "technician")
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	var got calendarOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	ids := eventIDs(got)
	want := []string{"prod-span-wi-1", "vehicle-arrival-wi-2", "manual-ev-1"}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	if len(got.PartialSources) != 0 {
		t.Fatalf("expected no failed sources, got %v", got.PartialSources)
	}
}

func TestCalendarSalesSeesQuotes(t *testing.T) {
	out, err := runPlanner(t, "calendar", "--fixture", fixturePath, "--json", "-r", "sales", "--category", "quoting")
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	var got calendarOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(got.Events) != 1 {
		t.Fatalf("expected one quoting event, got %v", eventIDs(got))
	}
	event := got.Events[0]
	if event.ID != "quote-followup-q-1" || event.Date != "2024-03-08" {
		t.Fatalf("unexpected follow-up %+v", event)
	}
}

func TestCalendarDayFilter(t *testing.T) {
	out, err := runPlanner(t, "calendar", "--fixture", fixturePath, "--json", "-r", "admin", "--day", "2024-03-07")
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	var got calendarOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	ids := eventIDs(got)
	if len(ids) != 1 || ids[0] != "purchase-delivery-po-1" {
		t.Fatalf("expected only the delivery, got %v", ids)
	}
}

func TestCalendarRequiresRole(t *testing.T) {
	_, err := runPlanner(t, "calendar", "--fixture", fixturePath)
	if err == nil {
		t.Fatal("expected error without role")
	}
}

func TestParseWorkshopRejectsUnknownStatus(t *testing.T) {
	_, err := parseWorkshop([]byte("workItems:\n  - {id: x, status: parked}\n"), "2024-03-04")
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestParseWorkshopRejectsUnknownKeys(t *testing.T) {
	_, err := parseWorkshop([]byte("rooster: []\n"), "")
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParseWorkshopEmptyRosterFallsBack(t *testing.T) {
	ws, err := parseWorkshop([]byte("today: \"2024-03-04\"\n"), "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	capacity := ws.capacity()
	if !capacity.Fallback || capacity.EmployeeCount != 3 || capacity.DailyHours != 24 {
		t.Fatalf("expected fallback capacity, got %+v", capacity)
	}
}

func eventIDs(out calendarOutput) []string {
	ids := make([]string, 0, len(out.Events))
	for _, event := range out.Events {
		ids = append(ids, event.ID)
	}
	return ids
}
