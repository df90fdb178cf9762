package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xrplstats/richlist/pkg/ledger"
	"github.com/xrplstats/richlist/pkg/rpc"
)

type fakePage struct {
	result *rpc.LedgerDataResult
	err    error
}

// fakeClient replays a scripted header and pages and records what was asked for.
type fakeClient struct {
	t         *testing.T
	header    *rpc.LedgerResult
	headerErr error
	pages     []fakePage

	indexes []*uint64
	markers []string
	closed  bool
}

func (f *fakeClient) Ledger(_ context.Context, index *uint64) (*rpc.LedgerResult, error) {
	f.indexes = append(f.indexes, index)
	return f.header, f.headerErr
}

func (f *fakeClient) LedgerData(_ context.Context, hash string, limit int, marker json.RawMessage) (*rpc.LedgerDataResult, error) {
	assert.Equal(f.t, f.header.BlockHash(), hash)
	assert.Equal(f.t, 2, limit)
	f.markers = append(f.markers, string(marker))
	n := len(f.markers)
	if n > len(f.pages) {
		f.t.Fatalf("unexpected page request #%d with marker %s", n, marker)
	}
	p := f.pages[n-1]
	return p.result, p.err
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func (f *fakeClient) dialer() rpc.Dialer {
	return rpc.DialerFunc(func(context.Context, string) (rpc.Client, error) { return f, nil })
}

type memSink struct {
	header    *ledger.Header
	records   []ledger.AccountBalance
	finalized bool
	aborted   bool

	beginErr    error
	finalizeErr error
}

func (m *memSink) Begin(h ledger.Header) error {
	if m.beginErr != nil {
		return m.beginErr
	}
	m.header = &h
	return nil
}

func (m *memSink) Append(batch []ledger.AccountBalance) error {
	m.records = append(m.records, batch...)
	return nil
}

func (m *memSink) Finalize() error {
	if m.finalizeErr != nil {
		return m.finalizeErr
	}
	m.finalized = true
	return nil
}

func (m *memSink) Abort() { m.aborted = true }

func header() *rpc.LedgerResult {
	return &rpc.LedgerResult{Ledger: rpc.LedgerHeader{
		Hash:           "LEDGERHASH",
		LedgerIndex:    32570,
		CloseTimeHuman: "2013-Jan-01 03:21:10.000000000 UTC",
		TotalCoins:     99999999999996320,
	}}
}

func page(marker string, accounts ...string) fakePage {
	res := &rpc.LedgerDataResult{LedgerHash: "LEDGERHASH"}
	for i, a := range accounts {
		res.State = append(res.State, rpc.StateEntry{
			Account:         a,
			Balance:         fmt.Sprintf("%d000000", i+1),
			LedgerEntryType: "AccountRoot",
		})
	}
	if marker != "" {
		res.Marker = json.RawMessage(`"` + marker + `"`)
	}
	return fakePage{result: res}
}

func newTestSession(t *testing.T, f *fakeClient, progress *[]Progress) *Session {
	return NewSession(SessionConfig{
		Endpoint:  "wss://fake",
		Dialer:    f.dialer(),
		PageLimit: 2,
		Logger:    zaptest.NewLogger(t),
		OnProgress: func(p Progress) {
			if progress != nil {
				*progress = append(*progress, p)
			}
		},
	})
}

func TestSession_PaginatesUntilMarkerAbsent(t *testing.T) {
	f := &fakeClient{t: t, header: header(), pages: []fakePage{
		page("M1", "rA", "rB"),
		page("M2", "rC", "rD"),
		page("", "rE"),
	}}
	var progress []Progress
	sess := newTestSession(t, f, &progress)
	sink := &memSink{}

	require.NoError(t, sess.Run(context.Background(), sink))

	assert.Equal(t, StateClosed, sess.State())
	assert.Equal(t, 4, sess.Calls())
	assert.Equal(t, 5, sess.Records())
	assert.Len(t, sink.records, 5)
	assert.True(t, sink.finalized)
	assert.False(t, sink.aborted)
	assert.True(t, f.closed)
	assert.Equal(t, []string{"", `"M1"`, `"M2"`}, f.markers)
	assert.Nil(t, f.indexes[0])

	require.NotNil(t, sink.header)
	assert.Equal(t, "LEDGERHASH", sink.header.Hash)
	assert.Equal(t, uint64(32570), sink.header.Index)
	assert.Equal(t, "99999999999.99632", sink.header.TotalSupply.String())
	assert.Equal(t, "2", sink.records[1].Balance.String())

	require.Len(t, progress, 4)
	assert.Equal(t, StatePaginating, progress[0].State)
	assert.Equal(t, 1, progress[0].Calls)
	assert.Equal(t, 0, progress[0].Records)
	assert.Equal(t, "LEDGERHASH", progress[0].Header.Hash)
	assert.Equal(t, 5, progress[3].Records)
	assert.Equal(t, 1, progress[3].Page)
}

func TestSession_EmptyFirstPage(t *testing.T) {
	f := &fakeClient{t: t, header: header(), pages: []fakePage{page("")}}
	sess := newTestSession(t, f, nil)
	sink := &memSink{}

	require.NoError(t, sess.Run(context.Background(), sink))
	assert.Equal(t, 0, sess.Records())
	assert.Equal(t, 2, sess.Calls())
	assert.True(t, sink.finalized)
}

func TestSession_DuplicateMarkerEndsPagination(t *testing.T) {
	// The third page would exist, but a repeated marker must stop the session first.
	f := &fakeClient{t: t, header: header(), pages: []fakePage{
		page("M1", "rA", "rB"),
		page("M1", "rC", "rD"),
	}}
	sess := newTestSession(t, f, nil)
	sink := &memSink{}

	require.NoError(t, sess.Run(context.Background(), sink))
	assert.Equal(t, StateClosed, sess.State())
	assert.Equal(t, 4, sess.Records())
	assert.Equal(t, []string{"", `"M1"`}, f.markers)
	assert.True(t, sink.finalized)
}

func TestSession_ObjectMarkers(t *testing.T) {
	p1 := page("", "rA")
	p1.result.Marker = json.RawMessage(`{"ledger":5,"seq":1}`)
	p2 := page("", "rB")
	f := &fakeClient{t: t, header: header(), pages: []fakePage{p1, p2}}
	sess := newTestSession(t, f, nil)

	require.NoError(t, sess.Run(context.Background(), &memSink{}))
	assert.Equal(t, []string{"", `{"ledger":5,"seq":1}`}, f.markers)
}

func TestSession_SelectsLedgerIndex(t *testing.T) {
	f := &fakeClient{t: t, header: header(), pages: []fakePage{page("")}}
	idx := uint64(32570)
	sess := NewSession(SessionConfig{Dialer: f.dialer(), LedgerIndex: &idx, PageLimit: 2, Logger: zaptest.NewLogger(t)})

	require.NoError(t, sess.Run(context.Background(), &memSink{}))
	require.Len(t, f.indexes, 1)
	require.NotNil(t, f.indexes[0])
	assert.Equal(t, idx, *f.indexes[0])
}

func TestSession_HeaderErrorAborts(t *testing.T) {
	perr := &rpc.ProtocolError{Command: "ledger", Code: "lgrNotFound", Message: "ledgerNotFound"}
	f := &fakeClient{t: t, header: header(), headerErr: perr}
	sess := newTestSession(t, f, nil)
	sink := &memSink{}

	err := sess.Run(context.Background(), sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, perr)
	assert.Equal(t, StateAborted, sess.State())
	assert.Nil(t, sink.header)
	assert.False(t, sink.aborted, "nothing was begun")
	assert.Empty(t, f.markers)
	assert.True(t, f.closed)
}

func TestSession_PageErrorAbortsSink(t *testing.T) {
	terr := &rpc.TransportError{Op: "read", Endpoint: "wss://fake", Err: errors.New("connection reset")}
	f := &fakeClient{t: t, header: header(), pages: []fakePage{
		page("M1", "rA", "rB"),
		{err: terr},
	}}
	sess := newTestSession(t, f, nil)
	sink := &memSink{}

	err := sess.Run(context.Background(), sink)
	var got *rpc.TransportError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, StateAborted, sess.State())
	assert.True(t, sink.aborted)
	assert.False(t, sink.finalized)
	assert.Equal(t, 3, sess.Calls())
	assert.Equal(t, 2, sess.Records())
}

func TestSession_MalformedEntriesAbort(t *testing.T) {
	cases := map[string]rpc.StateEntry{
		"bad balance":  {Account: "rA", Balance: "12.5", LedgerEntryType: "AccountRoot"},
		"no account":   {Balance: "1", LedgerEntryType: "AccountRoot"},
		"wrong type":   {Account: "rA", Balance: "1", LedgerEntryType: "RippleState"},
		"empty amount": {Account: "rA", LedgerEntryType: "AccountRoot"},
	}
	for name, entry := range cases {
		t.Run(name, func(t *testing.T) {
			p := page("")
			p.result.State = []rpc.StateEntry{entry}
			f := &fakeClient{t: t, header: header(), pages: []fakePage{p}}
			sink := &memSink{}

			err := newTestSession(t, f, nil).Run(context.Background(), sink)
			var perr *rpc.ProtocolError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.True(t, sink.aborted)
			assert.Empty(t, sink.records)
		})
	}
}

func TestSession_DialErrorAborts(t *testing.T) {
	dialErr := &rpc.TransportError{Op: "dial", Endpoint: "wss://fake", Err: errors.New("refused")}
	sess := NewSession(SessionConfig{
		Dialer: rpc.DialerFunc(func(context.Context, string) (rpc.Client, error) { return nil, dialErr }),
		Logger: zaptest.NewLogger(t),
	})
	err := sess.Run(context.Background(), &memSink{})
	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, StateAborted, sess.State())
	assert.Equal(t, 0, sess.Calls())
}

func TestSession_SinkFailures(t *testing.T) {
	beginErr := errors.New("cannot create file")
	f := &fakeClient{t: t, header: header()}
	err := newTestSession(t, f, nil).Run(context.Background(), &memSink{beginErr: beginErr})
	assert.ErrorIs(t, err, beginErr)

	finalizeErr := errors.New("disk full")
	f = &fakeClient{t: t, header: header(), pages: []fakePage{page("", "rA")}}
	sink := &memSink{finalizeErr: finalizeErr}
	sess := newTestSession(t, f, nil)
	err = sess.Run(context.Background(), sink)
	assert.ErrorIs(t, err, finalizeErr)
	assert.Equal(t, StateAborted, sess.State())
	assert.True(t, sink.aborted)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "paginating", StatePaginating.String())
	assert.Equal(t, "aborted", StateAborted.String())
	assert.Equal(t, "state(42)", State(42).String())
}
