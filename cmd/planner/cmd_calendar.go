package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/workshop-planner/api/internal/calendar"
	domain "github.com/workshop-planner/api/internal/domain"
)

// Bounds for half-open --from/--to ranges; day keys compare lexically.
const (
	openRangeStart = "0000-01-01"
	openRangeEnd   = "9999-12-31"
)

type calendarOutput struct {
	Events         []eventOutput `json:"events"`
	PartialSources []string      `json:"partialSources"`
}

type eventOutput struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Date         string   `json:"date"`
	EndDate      string   `json:"endDate,omitempty"`
	Time         string   `json:"time,omitempty"`
	Category     string   `json:"category"`
	EventType    string   `json:"eventType"`
	SourceID     string   `json:"sourceId,omitempty"`
	VisibleRoles []string `json:"visibleRoles"`
}

func newCalendarCmd(opts *globalOptions) *cobra.Command {
	var (
		roles      []string
		categories []string
		day        string
		from       string
		to         string
	)
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Print the unified calendar for a set of roles",
		Long:  "Aggregate production spans, vehicle arrivals, supplier deliveries, quote\nfollow-ups and manual events, then keep only what the given roles may see.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(roles) == 0 {
				return errors.New("calendar: at least one --role is required")
			}
			ws, err := opts.load()
			if err != nil {
				return fmt.Errorf("calendar: %w", err)
			}

			registry, err := calendar.NewDefaultRegistry(calendar.Sources{
				WorkItems:         ws.WorkItems,
				PurchaseOrders:    ws.PurchaseOrders,
				Quotes:            ws.Quotes,
				ManualEvents:      ws.Events,
				Clock:             func() time.Time { return ws.Today },
				QuoteFollowUpDays: ws.QuoteFollowUp,
			})
			if err != nil {
				return fmt.Errorf("calendar: %w", err)
			}
			aggregator, err := calendar.NewAggregator(registry,
				calendar.WithVisibilityPolicy(ws.Visibility),
				calendar.WithLogger(opts.logger()),
			)
			if err != nil {
				return fmt.Errorf("calendar: %w", err)
			}

			result := aggregator.All(cmd.Context())
			events := calendar.FilterByAnyRole(result.Events, roles...)
			if len(categories) > 0 {
				wanted := make([]domain.EventCategory, 0, len(categories))
				for _, category := range categories {
					wanted = append(wanted, domain.EventCategory(strings.ToLower(strings.TrimSpace(category))))
				}
				events = calendar.FilterByCategory(events, wanted...)
			}
			switch {
			case day != "":
				events = calendar.EventsForDay(events, day)
			case from != "" || to != "":
				events = calendar.EventsInRange(events, firstNonEmpty(from, openRangeStart), firstNonEmpty(to, openRangeEnd))
			}

			out := newCalendarOutput(events, result.FailedSources())
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			return writeCalendarTable(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringSliceVarP(&roles, "role", "r", nil, "caller role (repeatable or comma separated)")
	cmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "restrict to categories")
	cmd.Flags().StringVar(&day, "day", "", "events touching a single day YYYY-MM-DD")
	cmd.Flags().StringVar(&from, "from", "", "range start YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "range end YYYY-MM-DD")
	return cmd
}

func newCalendarOutput(events []domain.CalendarEvent, failed []string) calendarOutput {
	out := calendarOutput{
		Events:         make([]eventOutput, 0, len(events)),
		PartialSources: append([]string{}, failed...),
	}
	for _, event := range events {
		out.Events = append(out.Events, eventOutput{
			ID:           event.ID,
			Title:        event.Title,
			Date:         event.Date,
			EndDate:      event.EndDate,
			Time:         event.Time,
			Category:     string(event.Category),
			EventType:    event.EventType,
			SourceID:     event.SourceID,
			VisibleRoles: event.VisibleRoles,
		})
	}
	return out
}

func writeCalendarTable(w io.Writer, out calendarOutput) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tEND\tTIME\tCATEGORY\tTYPE\tTITLE")
	for _, event := range out.Events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			event.Date, dash(event.EndDate), dash(event.Time), event.Category, event.EventType, event.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(out.PartialSources) > 0 {
		_, err := fmt.Fprintf(w, "unavailable sources: %s\n", strings.Join(out.PartialSources, ", "))
		return err
	}
	return nil
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
