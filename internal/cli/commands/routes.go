package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/portfolio-egg/egg/internal/app"
	"github.com/portfolio-egg/egg/internal/cli/ui"
)

// NewRoutesCommand creates the routes command
func NewRoutesCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes [name]",
		Short: "List the API routes",
		Long:  "List every route with its method, path, name and per-route middleware, or a single route by name.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			routes := app.Routes()

			if len(args) == 1 {
				for _, r := range routes {
					if r.Name == args[0] {
						table := ui.NewKeyValueTable(cmd.OutOrStdout(), opts.noColor)
						table.AddRow("Name", r.Name)
						table.AddRow("Method", r.Method)
						table.AddRow("Path", r.Pattern)
						table.AddRow("Middleware", strings.Join(r.Middleware, ", "))
						table.Render()
						return nil
					}
				}
				names := make([]string, 0, len(routes))
				for _, r := range routes {
					if r.Name != "" {
						names = append(names, r.Name)
					}
				}
				cmd.PrintErr(ui.NotFoundError("route", args[0], names, "egg routes", opts.noColor))
				return errNotFound("route", args[0])
			}

			table := ui.NewTable(cmd.OutOrStdout(), []string{"METHOD", "PATH", "NAME", "MIDDLEWARE"}, &ui.TableOptions{NoColor: opts.noColor})
			for _, r := range routes {
				table.AddRow(r.Method, r.Pattern, r.Name, strings.Join(r.Middleware, ","))
			}
			table.Render()
			return nil
		},
	}
}
