package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xrplstats/richlist/app/fetcher"
	"github.com/xrplstats/richlist/pkg/fetch"
	"github.com/xrplstats/richlist/pkg/redis"
	"github.com/xrplstats/richlist/pkg/report"
	"github.com/xrplstats/richlist/pkg/rpc"
)

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rt *Runtime) *cobra.Command {
	cfg := fetcher.ConfigFromEnv()

	cmd := &cobra.Command{
		Use:   "fetch [ledger_index] [endpoint]",
		Short: "Snapshot every account balance of a ledger",
		Long: `Fetch the account balances of one ledger from rippled and stream them to
<data-dir>/<ledger_index>.json. Without a ledger index (or with "closed") the last
closed ledger is used. The endpoint defaults to WS_ENDPOINT; a bare host gets wss://.`,
		Example: `  richlist fetch
  richlist fetch 32570
  richlist fetch closed s2.ripple.com`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseLedgerArg(args)
			if err != nil {
				return err
			}
			if len(args) > 1 {
				cfg.Endpoint = args[1]
			}
			cfg.Endpoint = rpc.NormalizeEndpoint(cfg.Endpoint)
			return runFetch(cmd, rt, cfg, req)
		},
	}

	cmd.Flags().StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "rippled websocket endpoint")
	cmd.Flags().StringVarP(&cfg.DataDir, "data-dir", "d", cfg.DataDir, "directory for snapshot files")
	cmd.Flags().IntVar(&cfg.PageLimit, "limit", cfg.PageLimit, "accounts requested per ledger_data page")

	return cmd
}

func parseLedgerArg(args []string) (fetch.Request, error) {
	if len(args) == 0 {
		return fetch.Request{}, nil
	}
	arg := strings.TrimSpace(args[0])
	if arg == "" || strings.EqualFold(arg, "closed") {
		return fetch.Request{}, nil
	}
	index, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return fetch.Request{}, fmt.Errorf("invalid ledger index %q", arg)
	}
	return fetch.Request{LedgerIndex: &index}, nil
}

func runFetch(cmd *cobra.Command, rt *Runtime, cfg fetcher.Config, req fetch.Request) error {
	logger, err := rt.logger()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	notifier, closeRedis := redis.NewNotifierFromEnv(ctx, logger)
	defer closeRedis()

	printer := report.NewPrinter(rt.out(), binaryName)
	printer.Connecting(cfg.Endpoint)

	app := &fetcher.App{Config: cfg, Logger: logger, Notifier: notifier, Dialer: rt.Dialer}
	res, err := app.Run(ctx, req, "", printer.Progress())
	if err != nil {
		return err
	}
	printer.FetchDone(res)
	return nil
}
