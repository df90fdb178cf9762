package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/xrplstats/richlist/app/fetcher"
	"github.com/xrplstats/richlist/app/stats"
	"github.com/xrplstats/richlist/pkg/analyzer"
	"github.com/xrplstats/richlist/pkg/metrics"
	"github.com/xrplstats/richlist/pkg/redis"
	"github.com/xrplstats/richlist/pkg/utils"
)

// Initialize builds the server from the environment (see fetcher.ConfigFromEnv, ADDR, CRON_SPEC,
// RUN_TIMEOUT_MINUTES, METRICS_NAMESPACE and the REDIS_* variables). The returned func releases
// the Redis connection.
func Initialize(ctx context.Context, logger *zap.Logger) (*App, func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, utils.Env("METRICS_NAMESPACE", "richlist"))

	notifier, closeRedis := redis.NewNotifierFromEnv(ctx, logger)

	cfg := fetcher.ConfigFromEnv()
	app := &App{
		Fetcher: &fetcher.App{
			Config:   cfg,
			Logger:   logger.Named("fetch"),
			Metrics:  m,
			Notifier: notifier,
		},
		Stats: &stats.App{
			DataDir:  cfg.DataDir,
			Options:  analyzer.DefaultOptions(),
			Logger:   logger.Named("stats"),
			Metrics:  m,
			Notifier: notifier,
		},
		RunTimeout: time.Duration(utils.EnvInt("RUN_TIMEOUT_MINUTES", 30)) * time.Minute,
		Registry:   reg,
		Logger:     logger,
	}

	if err := app.SetupScheduler(ctx, utils.Env("CRON_SPEC", "")); err != nil {
		closeRedis()
		return nil, nil, err
	}
	app.SetupServer(utils.Env("ADDR", ":3002"))
	return app, closeRedis, nil
}

// SetupServer sets up the HTTP server.
func (a *App) SetupServer(addr string) {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	a.Server = &http.Server{
		Addr:              addr,
		Handler:           a.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.Logger.Info("Starting server", zap.String("addr", addr))
}
