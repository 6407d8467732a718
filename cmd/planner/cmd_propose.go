package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	domain "github.com/workshop-planner/api/internal/domain"
	"github.com/workshop-planner/api/internal/scheduling"
)

type proposeOutput struct {
	WorkItemID  string             `json:"workItemId"`
	Manual      bool               `json:"manual"`
	Capacity    *capacityOutput    `json:"capacity,omitempty"`
	Suggestions []suggestionOutput `json:"suggestions"`
}

type suggestionOutput struct {
	StartDate        string        `json:"startDate"`
	EndDate          string        `json:"endDate"`
	Score            int           `json:"score"`
	Reason           string        `json:"reason"`
	HasConflicts     bool          `json:"hasConflicts"`
	ConflictingItems []string      `json:"conflictingItems"`
	Window           *windowOutput `json:"capacityWindow,omitempty"`
}

type windowOutput struct {
	WorkingDays     int  `json:"workingDays"`
	PeakUtilization int  `json:"peakUtilization"`
	AvgUtilization  int  `json:"avgUtilization"`
	CanFit          bool `json:"canFit"`
	HasCapacity     bool `json:"hasCapacity"`
}

func newProposeCmd(opts *globalOptions) *cobra.Command {
	var noCapacity bool
	cmd := &cobra.Command{
		Use:   "propose <work-item-id>",
		Short: "Suggest start dates for a work item",
		Long:  "Generate week-spaced candidate slots for the work item, scored against the\nscheduled backlog. Items without hours or days are reported as manual.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.load()
			if err != nil {
				return fmt.Errorf("propose: %w", err)
			}
			item, ok := ws.workItem(args[0])
			if !ok {
				return fmt.Errorf("propose: work item %q not found", args[0])
			}

			var capacity *domain.Capacity
			if !noCapacity {
				c := ws.capacity()
				capacity = &c
			}
			suggestions := scheduling.Propose(item, ws.committed(), capacity, ws.SuggestionPolicy, ws.Today)
			out := newProposeOutput(item, capacity, suggestions)

			if opts.json {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			return writeProposeTable(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&noCapacity, "no-capacity", false, "skip capacity annotations")
	return cmd
}

func newProposeOutput(item domain.WorkItem, capacity *domain.Capacity, suggestions []domain.ScheduleSuggestion) proposeOutput {
	out := proposeOutput{
		WorkItemID:  item.ID,
		Manual:      !scheduling.HasDuration(item),
		Suggestions: make([]suggestionOutput, 0, len(suggestions)),
	}
	if capacity != nil {
		c := newCapacityOutput(*capacity)
		out.Capacity = &c
	}
	for _, suggestion := range suggestions {
		entry := suggestionOutput{
			StartDate:        scheduling.DayKey(suggestion.StartDate),
			EndDate:          scheduling.DayKey(suggestion.EndDate),
			Score:            suggestion.Score,
			Reason:           suggestion.Reason,
			HasConflicts:     suggestion.HasConflicts,
			ConflictingItems: make([]string, 0, len(suggestion.ConflictingItems)),
		}
		for _, ref := range suggestion.ConflictingItems {
			entry.ConflictingItems = append(entry.ConflictingItems, ref.ID)
		}
		if window := suggestion.Capacity; window != nil {
			entry.Window = &windowOutput{
				WorkingDays:     window.WorkingDays,
				PeakUtilization: window.PeakUtilization,
				AvgUtilization:  window.AvgUtilization,
				CanFit:          window.CanFit,
				HasCapacity:     window.HasCapacity,
			}
		}
		out.Suggestions = append(out.Suggestions, entry)
	}
	return out
}

func writeProposeTable(w io.Writer, out proposeOutput) error {
	if out.Manual {
		_, err := fmt.Fprintf(w, "%s has no hours or day estimate; schedule it manually\n", out.WorkItemID)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tSCORE\tPEAK\tFITS\tCONFLICTS\tREASON")
	for _, s := range out.Suggestions {
		peak, fits := "-", "-"
		if s.Window != nil {
			peak = fmt.Sprintf("%d%%", s.Window.PeakUtilization)
			fits = fmt.Sprintf("%t", s.Window.CanFit)
		}
		conflicts := "-"
		if len(s.ConflictingItems) > 0 {
			conflicts = strings.Join(s.ConflictingItems, ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n", s.StartDate, s.EndDate, s.Score, peak, fits, conflicts, s.Reason)
	}
	return tw.Flush()
}
