package fetcher

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/xrplstats/richlist/pkg/fetch"
	"github.com/xrplstats/richlist/pkg/metrics"
	"github.com/xrplstats/richlist/pkg/redis"
	"github.com/xrplstats/richlist/pkg/rpc"
	"github.com/xrplstats/richlist/pkg/utils"
)

// Config holds the fetch settings.
type Config struct {
	Endpoint  string
	DataDir   string
	PageLimit int
}

// ConfigFromEnv reads WS_ENDPOINT, DATA_DIR and PAGE_LIMIT.
func ConfigFromEnv() Config {
	return Config{
		Endpoint:  rpc.NormalizeEndpoint(utils.Env("WS_ENDPOINT", rpc.DefaultEndpoint)),
		DataDir:   utils.Env("DATA_DIR", "data"),
		PageLimit: utils.EnvInt("PAGE_LIMIT", rpc.DefaultPageLimit),
	}
}

// App snapshots ledgers into Config.DataDir and announces finished snapshots.
type App struct {
	Config   Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics // optional
	Notifier *redis.Notifier  // optional
	Dialer   rpc.Dialer       // nil dials rippled over websocket
}

// Run snapshots one ledger. runID ties the published event to the rest of the run; empty picks a new one.
func (a *App) Run(ctx context.Context, req fetch.Request, runID string, onProgress func(fetch.Progress)) (*fetch.Result, error) {
	if err := os.MkdirAll(a.Config.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	orch := fetch.NewOrchestrator(fetch.Config{
		Endpoint:   a.Config.Endpoint,
		DataDir:    a.Config.DataDir,
		PageLimit:  a.Config.PageLimit,
		Dialer:     a.Dialer,
		Logger:     a.Logger,
		Metrics:    a.Metrics,
		OnProgress: onProgress,
	})
	res, err := orch.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	a.Notifier.Notify(ctx, redis.Event{
		RunID:       runID,
		Type:        redis.EventSnapshotWritten,
		LedgerIndex: res.Header.Index,
		LedgerHash:  res.Header.Hash,
		Path:        res.Path,
		Accounts:    res.Records,
	})
	return res, nil
}
