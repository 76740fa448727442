package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/cli/ui"
	"github.com/portfolio-egg/egg/internal/seed"
	"github.com/portfolio-egg/egg/internal/store"
)

// NewSeedCommand creates the seed command
func NewSeedCommand(opts *globalOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo accounts",
		Long: `Create the demo users. Users whose email already exists are skipped, so
the command can be run repeatedly. Run "egg migrate up" first.`,
		Example: `  # Load the built-in demo accounts
  egg seed

  # Load accounts from a YAML file
  egg seed --file seeds.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := seed.Default()
			if file != "" {
				var raw []byte
				if raw, err = os.ReadFile(file); err == nil {
					data, err = seed.Parse(raw)
				}
			}
			if err != nil {
				return err
			}

			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			db, _, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			s, err := store.New(db)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var result seed.Result
			err = ui.WithSpinner(out, "Seeding users", opts.noColor, func() error {
				result, err = seed.Run(cmd.Context(), s, data, zap.NewNop())
				return err
			})
			if err != nil {
				return err
			}

			table := ui.NewTable(out, []string{"USERNAME", "NAME", "EMAIL", "PASSWORD"}, &ui.TableOptions{NoColor: opts.noColor})
			for _, u := range data.Users {
				table.AddRow(u.Username, u.Name, u.Email(), u.Password())
			}
			table.Render()
			fmt.Fprintf(out, "\n%d created, %d already present\n", result.Created, result.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with users to seed instead of the demo accounts")
	return cmd
}
