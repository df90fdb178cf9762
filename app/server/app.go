package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xrplstats/richlist/app/fetcher"
	"github.com/xrplstats/richlist/app/stats"
	"github.com/xrplstats/richlist/pkg/fetch"
	"github.com/xrplstats/richlist/pkg/redis"
)

// ErrRunInProgress is returned when a run is requested while another one is still going.
var ErrRunInProgress = errors.New("a snapshot run is already in progress")

// App serves the snapshots in the data directory over HTTP and, when CronSpec is set,
// snapshots and analyzes the last closed ledger on that schedule.
type App struct {
	Fetcher *fetcher.App
	Stats   *stats.App

	// Cron is the scheduler that triggers snapshot runs, according to CronSpec. Nil when CronSpec is empty.
	Cron       *cron.Cron
	CronSpec   string
	RunTimeout time.Duration

	// Registry backs the /metrics endpoint.
	Registry *prometheus.Registry

	Logger *zap.Logger

	// Server is the HTTP server that serves the API.
	Server *http.Server

	running atomic.Bool
	lastRun atomic.Pointer[RunStatus]
}

// RunStatus describes the outcome of the most recent scheduled or manual run.
type RunStatus struct {
	RunID       string    `json:"runId"`
	LedgerIndex uint64    `json:"ledgerIndex,omitempty"`
	Accounts    int       `json:"accounts,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Error       string    `json:"error,omitempty"`
}

// SetupScheduler sets up the cron scheduler. An empty spec leaves scheduling disabled.
func (a *App) SetupScheduler(ctx context.Context, spec string) error {
	a.CronSpec = spec
	if spec == "" {
		return nil
	}

	logger := cronLogger{a.Logger.Named("cron")}
	// Seconds field, optional
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	a.Cron = cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(logger)))

	_, err := a.Cron.AddFunc(spec, func() {
		if _, err := a.RunOnce(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
			a.Logger.Warn("Scheduled run failed", zap.Error(err))
		}
	})
	return err
}

// StartCron starts the cron scheduler if one is configured.
func (a *App) StartCron() {
	if a.Cron == nil {
		a.Logger.Info("Scheduling disabled, set CRON_SPEC to snapshot periodically")
		return
	}
	a.Cron.Start()
	a.Logger.Info("Cron started", zap.String("cronSpec", a.CronSpec))
}

// StopCron stops the cron scheduler and waits for a running job.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
}

// RunOnce snapshots the last closed ledger and writes its statistics. Runs never overlap.
func (a *App) RunOnce(ctx context.Context) (*RunStatus, error) {
	if !a.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer a.running.Store(false)

	if a.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.RunTimeout)
		defer cancel()
	}

	status := &RunStatus{RunID: redis.NewRunID(), StartedAt: time.Now().UTC()}
	err := a.run(ctx, status)
	status.FinishedAt = time.Now().UTC()
	if err != nil {
		status.Error = err.Error()
	}
	a.lastRun.Store(status)
	return status, err
}

func (a *App) run(ctx context.Context, status *RunStatus) error {
	res, err := a.Fetcher.Run(ctx, fetch.Request{}, status.RunID, nil)
	if err != nil {
		return err
	}
	status.LedgerIndex = res.Header.Index
	status.Accounts = res.Records

	_, err = a.Stats.Run(ctx, res.Header.Index, status.RunID)
	return err
}

// LastRun returns the most recent run, or nil before the first one finished.
func (a *App) LastRun() *RunStatus {
	return a.lastRun.Load()
}

// Running reports whether a run is in progress.
func (a *App) Running() bool {
	return a.running.Load()
}

// Start serves until ctx is done, then shuts the server and the scheduler down.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	a.Logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)
	a.StopCron()
	a.Logger.Info("Bye")
}

// cronLogger routes cron's logging through zap.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
