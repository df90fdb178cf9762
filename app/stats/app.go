package stats

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xrplstats/richlist/pkg/analyzer"
	"github.com/xrplstats/richlist/pkg/metrics"
	"github.com/xrplstats/richlist/pkg/redis"
	"github.com/xrplstats/richlist/pkg/snapshot"
)

// App computes the statistics document of snapshots stored in DataDir.
type App struct {
	DataDir  string
	Options  analyzer.Options
	Logger   *zap.Logger
	Metrics  *metrics.Metrics // optional
	Notifier *redis.Notifier  // optional
}

// Result is a written statistics document.
type Result struct {
	Stats *analyzer.Stats
	Path  string
}

// Run analyzes the snapshot of ledger index. On failure the error is logged and returned,
// and no statistics file is written.
func (a *App) Run(ctx context.Context, index uint64, runID string) (*Result, error) {
	start := time.Now()
	res, err := a.run(index)
	if err != nil {
		a.Metrics.ObserveStats(0, err)
		a.Logger.Error("Processing ledger stats failed", zap.Uint64("ledger_index", index), zap.Error(err))
		return nil, err
	}
	a.Metrics.ObserveStats(res.Stats.Meta.NumberAccounts, nil)
	a.Logger.Info("Stats written",
		zap.Uint64("ledger_index", index),
		zap.String("path", res.Path),
		zap.Int("accounts", res.Stats.Meta.NumberAccounts),
		zap.Duration("duration", time.Since(start)))

	a.Notifier.Notify(ctx, redis.Event{
		RunID:       runID,
		Type:        redis.EventStatsWritten,
		LedgerIndex: res.Stats.Meta.LedgerIndex,
		LedgerHash:  res.Stats.Meta.LedgerHash,
		Path:        res.Path,
		Accounts:    res.Stats.Meta.NumberAccounts,
	})
	return res, nil
}

func (a *App) run(index uint64) (*Result, error) {
	opts := a.Options
	if opts.Percentiles == nil && opts.Boundaries == nil {
		opts = analyzer.DefaultOptions()
	}

	path := snapshot.Path(a.DataDir, index)
	a.Logger.Debug("Reading ledger snapshot", zap.String("path", path))
	snap, err := snapshot.ReadFile(path)
	if err != nil {
		return nil, err
	}
	st, err := analyzer.Analyze(snap, opts)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", path, err)
	}
	out := snapshot.StatsPath(path)
	if err := analyzer.WriteFile(out, st); err != nil {
		return nil, err
	}
	return &Result{Stats: st, Path: out}, nil
}
