// Package commands implements the richlist CLI commands.
package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xrplstats/richlist/pkg/logging"
	"github.com/xrplstats/richlist/pkg/rpc"
)

const binaryName = "richlist"

// Runtime carries the process dependencies of the commands. Zero fields take process defaults.
type Runtime struct {
	Out    io.Writer
	Dialer rpc.Dialer  // nil dials rippled over websocket
	Logger *zap.Logger // nil builds one from LOG_LEVEL and LOG_ENCODING
}

func (rt *Runtime) out() io.Writer {
	if rt.Out == nil {
		return os.Stdout
	}
	return rt.Out
}

func (rt *Runtime) logger() (*zap.Logger, error) {
	if rt.Logger != nil {
		return rt.Logger, nil
	}
	l, err := logging.New()
	if err != nil {
		return nil, err
	}
	rt.Logger = l
	return l, nil
}

// NewRootCommand returns the richlist command tree.
func NewRootCommand(rt *Runtime) *cobra.Command {
	root := &cobra.Command{
		Use:   binaryName,
		Short: "Snapshot XRP ledger account balances and report their distribution",
		Long: `richlist captures every account balance of an XRP ledger and computes
wealth-distribution statistics over the snapshot.

Commands:
  fetch     Snapshot a ledger into <data-dir>/<index>.json
  stats     Analyze a snapshot into <data-dir>/<index>.stats.json
  serve     Serve snapshots over HTTP and snapshot on a schedule`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(NewFetchCommand(rt))
	root.AddCommand(NewStatsCommand(rt))
	root.AddCommand(NewServeCommand(rt))
	return root
}
