package fetch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xrplstats/richlist/pkg/ledger"
	"github.com/xrplstats/richlist/pkg/metrics"
	"github.com/xrplstats/richlist/pkg/rpc"
	"github.com/xrplstats/richlist/pkg/snapshot"
)

// Config configures an Orchestrator.
type Config struct {
	Endpoint  string
	DataDir   string
	PageLimit int
	Dialer    rpc.Dialer
	Logger    *zap.Logger
	Metrics   *metrics.Metrics // optional
	// OnProgress, when set, is called after the header and every page, e.g. for a console line.
	OnProgress func(Progress)
}

// Request selects the ledger to snapshot.
type Request struct {
	LedgerIndex *uint64 // nil selects the last closed ledger
}

// Result describes a completed snapshot.
type Result struct {
	Header   ledger.Header
	Path     string
	Records  int
	Calls    int
	Duration time.Duration
}

// Orchestrator runs a Session against rippled and streams its output into a snapshot file.
type Orchestrator struct {
	cfg    Config
	logger *zap.Logger
}

// NewOrchestrator returns an orchestrator writing snapshots into cfg.DataDir.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = rpc.NewWSDialer(rpc.Opts{Logger: cfg.Logger})
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = rpc.DefaultEndpoint
	}
	return &Orchestrator{cfg: cfg, logger: cfg.Logger}
}

// Run snapshots one ledger. On failure nothing is published at the snapshot path.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	sink := &fileSink{dir: o.cfg.DataDir, logger: o.logger}

	var lastCalls, lastRecords int
	sess := NewSession(SessionConfig{
		Endpoint:    o.cfg.Endpoint,
		Dialer:      o.cfg.Dialer,
		LedgerIndex: req.LedgerIndex,
		PageLimit:   o.cfg.PageLimit,
		Logger:      o.logger,
		OnProgress: func(p Progress) {
			o.cfg.Metrics.ObservePage(p.Calls-lastCalls, p.Records-lastRecords)
			lastCalls, lastRecords = p.Calls, p.Records
			o.logger.Debug("Retrieved accounts", zap.Int("records", p.Records), zap.Int("calls", p.Calls), zap.Int("page", p.Page))
			if o.cfg.OnProgress != nil {
				o.cfg.OnProgress(p)
			}
		},
	})

	o.logger.Info("Connecting to rippled", zap.String("endpoint", o.cfg.Endpoint))
	err := sess.Run(ctx, sink)
	elapsed := time.Since(start)
	o.cfg.Metrics.ObservePage(sess.Calls()-lastCalls, 0)
	o.cfg.Metrics.ObserveFetch(sess.Header().Index, elapsed.Seconds(), err)
	if err != nil {
		o.logger.Error("Snapshot failed",
			zap.Stringer("state", sess.State()),
			zap.Int("calls", sess.Calls()),
			zap.Int("records", sess.Records()),
			zap.Error(err))
		return nil, fmt.Errorf("snapshot ledger: %w", err)
	}

	res := &Result{
		Header:   sess.Header(),
		Path:     sink.result.Path,
		Records:  sink.result.Records,
		Calls:    sess.Calls(),
		Duration: elapsed,
	}
	o.logger.Info("Snapshot written",
		zap.Uint64("ledger_index", res.Header.Index),
		zap.String("path", res.Path),
		zap.Int("records", res.Records),
		zap.Int("calls", res.Calls),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// fileSink creates the snapshot file once the header, and with it the file name, is known.
type fileSink struct {
	dir    string
	logger *zap.Logger
	writer *snapshot.Writer
	result snapshot.Result
}

func (s *fileSink) Begin(header ledger.Header) error {
	w, err := snapshot.Create(snapshot.Path(s.dir, header.Index), header)
	if err != nil {
		return err
	}
	s.writer = w
	return nil
}

func (s *fileSink) Append(batch []ledger.AccountBalance) error {
	return s.writer.Append(batch)
}

func (s *fileSink) Finalize() error {
	res, err := s.writer.Finalize()
	if err != nil {
		return err
	}
	s.result = res
	return nil
}

func (s *fileSink) Abort() {
	if s.writer == nil {
		return
	}
	if err := s.writer.Abort(); err != nil {
		s.logger.Warn("Discarding partial snapshot failed", zap.Error(err))
	}
}
