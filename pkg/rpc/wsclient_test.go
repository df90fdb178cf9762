package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// replyFunc builds the reply to one decoded request. Returning nil closes the connection.
type replyFunc func(req map[string]any) any

func newFakeRippled(t *testing.T, reply replyFunc) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req map[string]any
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			out := reply(req)
			if out == nil {
				return
			}
			if err := conn.WriteJSON(out); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func success(req map[string]any, result any) map[string]any {
	return map[string]any{"id": req["id"], "type": "response", "status": "success", "result": result}
}

func dialTest(t *testing.T, endpoint string) *WSClient {
	t.Helper()
	c, err := DialWS(context.Background(), endpoint, Opts{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestWSClient_LedgerClosed(t *testing.T) {
	endpoint := newFakeRippled(t, func(req map[string]any) any {
		assert.Equal(t, "ledger", req["command"])
		assert.Equal(t, "closed", req["ledger_index"])
		return success(req, map[string]any{
			"ledger": map[string]any{
				"hash":             "4BC50C9B0D8515D3EAAE1E74B29A95804346C491EE1A95BF25E4AAB854A6A652",
				"ledger_index":     "32570",
				"close_time_human": "2013-Jan-01 03:21:10.000000000 UTC",
				"total_coins":      "99999999999996320",
			},
			"validated": true,
		})
	})
	c := dialTest(t, endpoint)

	res, err := c.Ledger(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "4BC50C9B0D8515D3EAAE1E74B29A95804346C491EE1A95BF25E4AAB854A6A652", res.BlockHash())
	assert.Equal(t, uint64(32570), res.Index())
	assert.Equal(t, "99999999999996320", res.Ledger.TotalCoins.String())
}

func TestWSClient_LedgerByIndexNumericFields(t *testing.T) {
	endpoint := newFakeRippled(t, func(req map[string]any) any {
		assert.Equal(t, float64(90000000), req["ledger_index"])
		return success(req, map[string]any{
			"ledger": map[string]any{
				"ledger_hash":      "ABC",
				"ledger_index":     90000000,
				"close_time_human": "2024-Jul-01 00:00:00.000000000 UTC",
				"total_coins":      "99987000000000000",
			},
		})
	})
	c := dialTest(t, endpoint)

	idx := uint64(90000000)
	res, err := c.Ledger(context.Background(), &idx)
	require.NoError(t, err)
	assert.Equal(t, "ABC", res.BlockHash())
	assert.Equal(t, idx, res.Index())
}

func TestWSClient_LedgerErrorResponse(t *testing.T) {
	endpoint := newFakeRippled(t, func(req map[string]any) any {
		return map[string]any{
			"id":            req["id"],
			"type":          "response",
			"status":        "error",
			"error":         "lgrNotFound",
			"error_message": "ledgerNotFound",
		}
	})
	c := dialTest(t, endpoint)

	_, err := c.Ledger(context.Background(), nil)
	require.Error(t, err)
	var perr *ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "lgrNotFound", perr.Code)
	assert.Equal(t, "ledgerNotFound", perr.Message)
	assert.Contains(t, err.Error(), "ledgerNotFound")
}

func TestWSClient_LedgerDataPaging(t *testing.T) {
	endpoint := newFakeRippled(t, func(req map[string]any) any {
		assert.Equal(t, "ledger_data", req["command"])
		assert.Equal(t, "HASH", req["ledger"])
		assert.Equal(t, "account", req["type"])
		assert.Equal(t, float64(2), req["limit"])
		if _, ok := req["marker"]; !ok {
			return success(req, map[string]any{
				"ledger_hash": "HASH",
				"state": []map[string]any{
					{"Account": "rA", "Balance": "500000000", "LedgerEntryType": "AccountRoot"},
					{"Account": "rB", "Balance": "300000000", "LedgerEntryType": "AccountRoot"},
				},
				"marker": "M1",
			})
		}
		assert.Equal(t, "M1", req["marker"])
		return success(req, map[string]any{
			"ledger_hash": "HASH",
			"state":       []map[string]any{{"Account": "rC", "Balance": "1", "LedgerEntryType": "AccountRoot"}},
		})
	})
	c := dialTest(t, endpoint)

	first, err := c.LedgerData(context.Background(), "HASH", 2, nil)
	require.NoError(t, err)
	require.Len(t, first.State, 2)
	assert.True(t, first.HasMarker())
	assert.JSONEq(t, `"M1"`, string(first.Marker))

	second, err := c.LedgerData(context.Background(), "HASH", 2, first.Marker)
	require.NoError(t, err)
	require.Len(t, second.State, 1)
	assert.Equal(t, "rC", second.State[0].Account)
	assert.False(t, second.HasMarker())
}

func TestWSClient_ReadFailureIsTransportError(t *testing.T) {
	endpoint := newFakeRippled(t, func(map[string]any) any { return nil })
	c := dialTest(t, endpoint)

	_, err := c.Ledger(context.Background(), nil)
	require.Error(t, err)
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "read", terr.Op)
}

func TestWSClient_DialFailureIsTransportError(t *testing.T) {
	_, err := DialWS(context.Background(), "ws://127.0.0.1:1", Opts{HandshakeTimeout: time.Second})
	require.Error(t, err)
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "dial", terr.Op)
}

func TestWSClient_CancelUnblocksRead(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	endpoint := newFakeRippled(t, func(map[string]any) any {
		<-block
		return nil
	})
	c := dialTest(t, endpoint)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := c.Ledger(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{name: "ok", raw: `{"id":1,"type":"response","status":"success","result":{"ledger_hash":"H","state":[]}}`},
		{name: "not json", raw: `not json`, wantErr: "malformed response"},
		{name: "wrong type", raw: `{"id":1,"type":"ledgerClosed","status":"success","result":{}}`, wantErr: "unexpected response"},
		{name: "missing status", raw: `{"id":1,"type":"response","result":{}}`, wantErr: "unexpected response"},
		{name: "id mismatch", raw: `{"id":7,"type":"response","status":"success","result":{}}`, wantErr: "does not match"},
		{name: "no result", raw: `{"id":1,"type":"response","status":"success"}`, wantErr: "no result"},
		{name: "nested error", raw: `{"id":1,"type":"response","status":"error","result":{"error":"tooBusy","error_message":"The server is too busy"}}`, wantErr: "too busy"},
		{name: "bad result shape", raw: `{"id":1,"type":"response","status":"success","result":{"state":"nope"}}`, wantErr: "malformed result"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out LedgerDataResult
			err := decodeResponse(ledgerDataCommand, 1, []byte(tt.raw), &out)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var perr *ProtocolError
			require.True(t, errors.As(err, &perr))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLedgerDataResult_HasMarker(t *testing.T) {
	assert.False(t, (&LedgerDataResult{}).HasMarker())
	assert.False(t, (&LedgerDataResult{Marker: json.RawMessage("null")}).HasMarker())
	assert.False(t, (&LedgerDataResult{Marker: json.RawMessage(`""`)}).HasMarker())
	assert.True(t, (&LedgerDataResult{Marker: json.RawMessage(`"A1B2"`)}).HasMarker())
	assert.True(t, (&LedgerDataResult{Marker: json.RawMessage(`{"ledger":1,"seq":2}`)}).HasMarker())
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, DefaultEndpoint, NormalizeEndpoint(""))
	assert.Equal(t, "wss://s2.ripple.com", NormalizeEndpoint("s2.ripple.com"))
	assert.Equal(t, "ws://localhost:6006", NormalizeEndpoint("ws://localhost:6006"))
	assert.Equal(t, "wss://xrplcluster.com", NormalizeEndpoint("wss://xrplcluster.com"))
}
