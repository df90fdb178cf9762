package commands

import (
	"github.com/spf13/cobra"

	"github.com/xrplstats/richlist/app/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve snapshots and statistics over HTTP",
		Long: `Serve the snapshots in DATA_DIR on ADDR (default :3002). When CRON_SPEC is set
the last closed ledger is snapshotted and analyzed on that schedule; POST /runs
starts a run on demand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := rt.logger()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			app, closeRedis, err := server.Initialize(ctx, logger)
			if err != nil {
				return err
			}
			defer closeRedis()
			if rt.Dialer != nil {
				app.Fetcher.Dialer = rt.Dialer
			}

			app.StartCron()
			app.Start(ctx)
			return nil
		},
	}
}
