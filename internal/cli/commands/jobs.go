package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/app"
	"github.com/portfolio-egg/egg/internal/cli/ui"
)

func errNotFound(kind, name string) error {
	return fmt.Errorf("%s not found: %s", kind, name)
}

// NewJobsCommand creates the jobs command
func NewJobsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and run background jobs",
		Long: `Background jobs run on a schedule inside "egg serve". These commands
list them or run one immediately, for example from an external cron.`,
	}

	cmd.AddCommand(newJobsListCommand(opts))
	cmd.AddCommand(newJobsRunCommand(opts))
	return cmd
}

// withApp builds the application for a one-off task and closes it after
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(a *app.App) error) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()
	return fn(a)
}

func newJobsListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app.App) error {
				table := ui.NewTable(cmd.OutOrStdout(), []string{"NAME", "SCHEDULE", "RUNS"}, &ui.TableOptions{NoColor: opts.noColor})
				for _, info := range a.Scheduler().Jobs() {
					table.AddRow(info.Name, info.Schedule, strconv.Itoa(info.Runs))
				}
				table.Render()
				return nil
			})
		},
	}
}

func newJobsRunCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "Run a job now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return withApp(cmd, opts, func(a *app.App) error {
				var names []string
				found := false
				for _, info := range a.Scheduler().Jobs() {
					names = append(names, info.Name)
					found = found || info.Name == name
				}
				if !found {
					cmd.PrintErr(ui.NotFoundError("job", name, names, "egg jobs list", opts.noColor))
					return errNotFound("job", name)
				}

				started := time.Now()
				err := ui.WithSpinner(cmd.OutOrStdout(), "Running "+name, opts.noColor, func() error {
					return a.Scheduler().RunNow(name)
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Finished in %s\n", time.Since(started).Round(time.Millisecond))
				return nil
			})
		},
	}
}
