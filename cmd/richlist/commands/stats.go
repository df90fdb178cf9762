package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/xrplstats/richlist/app/stats"
	"github.com/xrplstats/richlist/pkg/analyzer"
	"github.com/xrplstats/richlist/pkg/redis"
	"github.com/xrplstats/richlist/pkg/report"
	"github.com/xrplstats/richlist/pkg/snapshot"
	"github.com/xrplstats/richlist/pkg/utils"
)

var errMissingLedger = errors.New("please provide the ledger number as an argument\n" +
	"Example: " + binaryName + " stats 32570\n\n" +
	"If the ledger data is not fetched yet, run:\n  " + binaryName + " fetch")

// NewStatsCommand creates the stats command.
func NewStatsCommand(rt *Runtime) *cobra.Command {
	dataDir := utils.Env("DATA_DIR", "data")

	cmd := &cobra.Command{
		Use:   "stats <ledger_index>",
		Short: "Compute distribution statistics of a snapshot",
		Long: `Read <data-dir>/<ledger_index>.json, print the percentile and balance-range
tables and write them to <data-dir>/<ledger_index>.stats.json.`,
		Example: "  richlist stats 32570",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errMissingLedger
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := snapshot.ParseIndex(args[0])
			if err != nil {
				return errMissingLedger
			}
			logger, err := rt.logger()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			notifier, closeRedis := redis.NewNotifierFromEnv(ctx, logger)
			defer closeRedis()

			app := &stats.App{DataDir: dataDir, Options: analyzer.DefaultOptions(), Logger: logger, Notifier: notifier}
			res, err := app.Run(ctx, index, "")
			if err != nil {
				return err
			}
			printer := report.NewPrinter(rt.out(), binaryName)
			printer.Stats(res.Stats)
			printer.StatsWritten(res.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", dataDir, "directory holding snapshot files")
	return cmd
}
