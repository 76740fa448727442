package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/portfolio-egg/egg/internal/app"
)

// NewServeCommand creates the serve command
func NewServeCommand(opts *globalOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Long: `Run the HTTP API, the feedback websocket hub and the background jobs
until interrupted. SIGINT or SIGTERM drains in-flight requests before exiting.`,
		Example: `  # Serve with egg.yml in the working directory
  egg serve

  # Apply pending migrations first
  egg serve --migrate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := opts.logger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if migrate {
				applied, err := a.Migrate(ctx)
				if err != nil {
					_ = a.Close(context.Background())
					return err
				}
				logger.Info("migrations applied", zap.Int("count", applied))
			}

			logger.Info("starting egg",
				zap.String("env", cfg.Env), zap.String("addr", cfg.Address()), zap.String("version", Version))
			return a.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before serving")
	return cmd
}
