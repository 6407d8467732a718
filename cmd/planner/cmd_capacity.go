package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	domain "github.com/workshop-planner/api/internal/domain"
	"github.com/workshop-planner/api/internal/scheduling"
)

const defaultOverviewDays = 28

type capacityOutput struct {
	EmployeeCount int     `json:"employeeCount"`
	DailyHours    float64 `json:"dailyHours"`
	Fallback      bool    `json:"fallback"`
}

type overviewOutput struct {
	Capacity capacityOutput `json:"capacity"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	Days     []loadOutput   `json:"days"`
}

type loadOutput struct {
	Date           string  `json:"date"`
	CommittedHours float64 `json:"committedHours"`
	TotalHours     float64 `json:"totalHours"`
	UtilizationPct int     `json:"utilizationPct"`
}

func newCapacityOutput(capacity domain.Capacity) capacityOutput {
	return capacityOutput{
		EmployeeCount: capacity.EmployeeCount,
		DailyHours:    capacity.DailyHours,
		Fallback:      capacity.Fallback,
	}
}

func newCapacityCmd(opts *globalOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "capacity",
		Short: "Report committed load against daily capacity",
		Long:  "Print the shop-floor capacity and the hours already committed on each working\nday of the range. The range defaults to four weeks from today.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws, err := opts.load()
			if err != nil {
				return fmt.Errorf("capacity: %w", err)
			}
			start, end, err := overviewRange(ws, from, to)
			if err != nil {
				return fmt.Errorf("capacity: %w", err)
			}

			overview := scheduling.LoadOverview(start, end, ws.committed(), ws.capacity())
			if overview.Capacity.Fallback {
				opts.logger().Warn("roster empty; using fallback capacity",
					zap.Int("employees", overview.Capacity.EmployeeCount),
					zap.Float64("daily_hours", overview.Capacity.DailyHours),
				)
			}
			out := newOverviewOutput(overview)
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			return writeOverviewTable(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day YYYY-MM-DD (defaults to today)")
	cmd.Flags().StringVar(&to, "to", "", "last day YYYY-MM-DD")
	return cmd
}

func overviewRange(ws workshop, from, to string) (time.Time, time.Time, error) {
	start := ws.Today
	if from != "" {
		parsed, err := scheduling.ParseDay(from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("from: %w", err)
		}
		start = parsed
	}
	end := start.AddDate(0, 0, defaultOverviewDays-1)
	if to != "" {
		parsed, err := scheduling.ParseDay(to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("to: %w", err)
		}
		end = parsed
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("to must not be before from")
	}
	return start, end, nil
}

func newOverviewOutput(overview domain.CapacityOverview) overviewOutput {
	out := overviewOutput{
		Capacity: newCapacityOutput(overview.Capacity),
		From:     scheduling.DayKey(overview.From),
		To:       scheduling.DayKey(overview.To),
		Days:     make([]loadOutput, 0, len(overview.Days)),
	}
	for _, day := range overview.Days {
		out.Days = append(out.Days, loadOutput{
			Date:           scheduling.DayKey(day.Date),
			CommittedHours: day.CommittedHours,
			TotalHours:     day.TotalHours,
			UtilizationPct: day.UtilizationPct,
		})
	}
	return out
}

func writeOverviewTable(w io.Writer, out overviewOutput) error {
	suffix := ""
	if out.Capacity.Fallback {
		suffix = " (fallback)"
	}
	fmt.Fprintf(w, "capacity: %d employees, %.1f h/day%s\n", out.Capacity.EmployeeCount, out.Capacity.DailyHours, suffix)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tCOMMITTED\tTOTAL\tUTIL")
	for _, day := range out.Days {
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%d%%\n", day.Date, day.CommittedHours, day.TotalHours, day.UtilizationPct)
	}
	return tw.Flush()
}
