package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/workshop-planner/api/internal/platform/observability"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	fixture  string
	today    string
	json     bool
	logLevel string
}

func (o *globalOptions) load() (workshop, error) {
	return loadWorkshop(o.fixture, o.today)
}

// logger writes structured diagnostics to stderr so stdout stays machine readable.
func (o *globalOptions) logger() *zap.Logger {
	logger, err := observability.NewLoggerWithLevel(o.logLevel, "stderr")
	if err != nil {
		return zap.NewNop()
	}
	return logger.Named("planner")
}

// newRootCmd creates the planner command with all subcommands attached.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "planner",
		Short:         "Offline workshop scheduling and calendar tool",
		Long:          "planner runs the scheduling engine against a YAML workshop snapshot.\nIt proposes slots, reports capacity and prints the role-filtered calendar.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.fixture, "fixture", "f", "", "workshop snapshot (YAML)")
	flags.StringVar(&opts.today, "today", "", "reference day YYYY-MM-DD (defaults to the fixture's today)")
	flags.BoolVar(&opts.json, "json", false, "emit JSON instead of a table")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "diagnostic log level")

	cmd.AddCommand(
		newProposeCmd(opts),
		newCapacityCmd(opts),
		newCalendarCmd(opts),
	)
	return cmd
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
