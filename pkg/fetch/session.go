package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/xrplstats/richlist/pkg/ledger"
	"github.com/xrplstats/richlist/pkg/rpc"
)

// State is a step of the snapshot exchange with rippled.
type State int

const (
	StateConnecting State = iota
	StateAwaitingHeader
	StatePaginating
	StateDraining
	StateClosed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingHeader:
		return "awaiting_header"
	case StatePaginating:
		return "paginating"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const accountRootType = "AccountRoot"

// Sink receives the snapshot as the session produces it.
// Begin is called once with the header, Append once per page, then exactly one of Finalize or Abort.
type Sink interface {
	Begin(header ledger.Header) error
	Append(batch []ledger.AccountBalance) error
	Finalize() error
	Abort()
}

// Progress is reported after the header and after every page.
type Progress struct {
	State   State
	Header  ledger.Header
	Calls   int // Requests issued so far
	Records int // Accounts appended so far
	Page    int // Accounts in the page just appended
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Endpoint    string
	Dialer      rpc.Dialer
	LedgerIndex *uint64 // nil selects the last closed ledger
	PageLimit   int
	Logger      *zap.Logger
	OnProgress  func(Progress)
}

// Session enumerates every account of one ledger. It keeps exactly one request in flight and
// only accepts, in each state, the reply that state is waiting for.
type Session struct {
	cfg    SessionConfig
	logger *zap.Logger
	client rpc.Client

	state   State
	begun   bool
	header  ledger.Header
	marker  json.RawMessage // Marker sent with the request in flight
	calls   int
	records int
	err     error
}

// NewSession returns a session in the Connecting state.
func NewSession(cfg SessionConfig) *Session {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = rpc.DefaultPageLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Session{cfg: cfg, logger: cfg.Logger, state: StateConnecting}
}

// Run drives the session to a terminal state. It returns nil once the sink has been finalized
// and the error that aborted the session otherwise.
func (s *Session) Run(ctx context.Context, sink Sink) error {
	defer s.closeClient()

	for {
		var err error
		switch s.state {
		case StateConnecting:
			err = s.connect(ctx)
		case StateAwaitingHeader:
			err = s.awaitHeader(ctx, sink)
		case StatePaginating:
			err = s.paginate(ctx, sink)
		case StateDraining:
			err = s.drain(sink)
		case StateClosed:
			return nil
		case StateAborted:
			return s.err
		default:
			err = fmt.Errorf("invalid session state %s", s.state)
		}
		if err != nil {
			s.abort(sink, err)
		}
	}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Calls returns the number of requests issued.
func (s *Session) Calls() int { return s.calls }

// Records returns the number of accounts appended to the sink.
func (s *Session) Records() int { return s.records }

// Header returns the ledger header, valid once the session left AwaitingHeader.
func (s *Session) Header() ledger.Header { return s.header }

func (s *Session) connect(ctx context.Context) error {
	client, err := s.cfg.Dialer.Dial(ctx, s.cfg.Endpoint)
	if err != nil {
		return err
	}
	s.client = client
	s.transition(StateAwaitingHeader)
	return nil
}

func (s *Session) awaitHeader(ctx context.Context, sink Sink) error {
	s.calls++
	res, err := s.client.Ledger(ctx, s.cfg.LedgerIndex)
	if err != nil {
		return err
	}

	supply, err := ledger.DropsToXRP(res.Ledger.TotalCoins.String())
	if err != nil {
		return &rpc.ProtocolError{Command: "ledger", Message: fmt.Sprintf("total_coins: %v", err)}
	}
	s.header = ledger.Header{
		Hash:        res.BlockHash(),
		Index:       res.Index(),
		CloseTime:   res.Ledger.CloseTimeHuman,
		TotalSupply: supply,
	}
	s.logger.Info("Fetching ledger",
		zap.Uint64("ledger_index", s.header.Index),
		zap.String("close_time", s.header.CloseTime),
		zap.String("hash", s.header.Hash),
		zap.String("total_xrp", s.header.TotalSupply.String()))

	if err := sink.Begin(s.header); err != nil {
		return err
	}
	s.begun = true
	s.marker = nil
	s.transition(StatePaginating)
	s.report(0)
	return nil
}

func (s *Session) paginate(ctx context.Context, sink Sink) error {
	s.calls++
	page, err := s.client.LedgerData(ctx, s.header.Hash, s.cfg.PageLimit, s.marker)
	if err != nil {
		return err
	}

	batch, err := toBalances(page.State)
	if err != nil {
		return err
	}
	if err := sink.Append(batch); err != nil {
		return err
	}
	s.records += len(batch)
	s.report(len(batch))

	switch {
	case !page.HasMarker():
		s.transition(StateDraining)
	case s.marker != nil && bytes.Equal(bytes.TrimSpace(page.Marker), bytes.TrimSpace(s.marker)):
		// A repeated marker would loop forever; treat it as the end of the data.
		s.logger.Warn("rippled repeated the pagination marker, stopping",
			zap.String("marker", string(page.Marker)),
			zap.Int("records", s.records))
		s.transition(StateDraining)
	default:
		s.marker = append(json.RawMessage(nil), page.Marker...)
	}
	return nil
}

func (s *Session) drain(sink Sink) error {
	if err := sink.Finalize(); err != nil {
		return err
	}
	s.transition(StateClosed)
	return nil
}

func (s *Session) abort(sink Sink, err error) {
	s.logger.Debug("Session aborted", zap.Stringer("state", s.state), zap.Error(err))
	if s.begun {
		sink.Abort()
	}
	s.err = err
	s.state = StateAborted
}

func (s *Session) transition(next State) {
	s.logger.Debug("Session transition", zap.Stringer("from", s.state), zap.Stringer("to", next))
	s.state = next
}

func (s *Session) report(page int) {
	if s.cfg.OnProgress == nil {
		return
	}
	s.cfg.OnProgress(Progress{State: s.state, Header: s.header, Calls: s.calls, Records: s.records, Page: page})
}

func (s *Session) closeClient() {
	if s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		s.logger.Debug("Closing rippled connection failed", zap.Error(err))
	}
	s.client = nil
}

func toBalances(entries []rpc.StateEntry) ([]ledger.AccountBalance, error) {
	batch := make([]ledger.AccountBalance, 0, len(entries))
	for _, e := range entries {
		if e.LedgerEntryType != "" && e.LedgerEntryType != accountRootType {
			return nil, &rpc.ProtocolError{Command: "ledger_data", Message: fmt.Sprintf("unexpected %s entry %s", e.LedgerEntryType, e.Index)}
		}
		if e.Account == "" {
			return nil, &rpc.ProtocolError{Command: "ledger_data", Message: fmt.Sprintf("account root %s has no Account", e.Index)}
		}
		amount, err := ledger.DropsToXRP(e.Balance)
		if err != nil {
			return nil, &rpc.ProtocolError{Command: "ledger_data", Message: fmt.Sprintf("account %s balance: %v", e.Account, err)}
		}
		batch = append(batch, ledger.AccountBalance{Account: e.Account, Balance: amount})
	}
	return batch, nil
}
