package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var errClosed = errors.New("connection closed")

// WSClient talks to rippled over a single websocket connection.
// Requests are strictly sequential: each call writes one request and reads exactly one reply.
type WSClient struct {
	endpoint string
	logger   *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
}

// Opts is the set of options for dialing a WSClient.
type Opts struct {
	HandshakeTimeout time.Duration
	Dialer           *websocket.Dialer
	Logger           *zap.Logger
}

// NewWSDialer returns a Dialer producing WSClients with shared options.
func NewWSDialer(o Opts) Dialer {
	return DialerFunc(func(ctx context.Context, endpoint string) (Client, error) {
		return DialWS(ctx, endpoint, o)
	})
}

// DialWS connects to a rippled websocket endpoint.
func DialWS(ctx context.Context, endpoint string, o Opts) (*WSClient, error) {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 15 * time.Second
	}
	dialer := o.Dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		d.HandshakeTimeout = o.HandshakeTimeout
		dialer = &d
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Op: "dial", Endpoint: endpoint, Err: err}
	}
	o.Logger.Debug("websocket connected", zap.String("endpoint", endpoint))

	return &WSClient{
		endpoint: endpoint,
		logger:   o.Logger,
		conn:     conn,
	}, nil
}

// Ledger fetches a ledger header. A nil index selects the last closed ledger.
func (c *WSClient) Ledger(ctx context.Context, index *uint64) (*LedgerResult, error) {
	req := NewLedgerRequest(index)
	var out LedgerResult
	if err := c.call(ctx, ledgerCommand, &req, &out); err != nil {
		return nil, err
	}
	if out.BlockHash() == "" {
		return nil, &ProtocolError{Command: ledgerCommand, Message: "ledger header has no hash"}
	}
	return &out, nil
}

// LedgerData fetches one page of AccountRoot entries.
func (c *WSClient) LedgerData(ctx context.Context, hash string, limit int, marker json.RawMessage) (*LedgerDataResult, error) {
	req := NewLedgerDataRequest(hash, limit, marker)
	var out LedgerDataResult
	if err := c.call(ctx, ledgerDataCommand, &req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Close sends a normal-closure frame and closes the connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	err := c.conn.Close()
	c.conn = nil
	c.logger.Debug("websocket closed", zap.String("endpoint", c.endpoint))
	return err
}

type request interface {
	setID(id uint64)
}

func (r *LedgerRequest) setID(id uint64)     { r.ID = id }
func (r *LedgerDataRequest) setID(id uint64) { r.ID = id }

// call writes req and reads a single reply into out.
// Cancelling ctx closes the socket so a blocked read returns.
func (c *WSClient) call(ctx context.Context, command string, req request, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return &TransportError{Op: "write", Endpoint: c.endpoint, Err: errClosed}
	}
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "write", Endpoint: c.endpoint, Err: err}
	}

	c.nextID++
	id := c.nextID
	req.setID(id)

	conn := c.conn
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.WriteJSON(req); err != nil {
		return c.transportErr(ctx, "write", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return c.transportErr(ctx, "read", err)
	}
	return decodeResponse(command, id, data, out)
}

func (c *WSClient) transportErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return &TransportError{Op: op, Endpoint: c.endpoint, Err: err}
}

// decodeResponse validates the rippled envelope and unmarshals its result into out.
func decodeResponse(command string, id uint64, data []byte, out any) error {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return &ProtocolError{Command: command, Message: fmt.Sprintf("malformed response: %v", err), Raw: excerpt(data)}
	}

	if resp.Status == "error" || resp.Error != "" || resp.ErrorMessage != "" {
		code, msg := resp.Error, resp.ErrorMessage
		// Some rippled versions nest the error fields inside result.
		if code == "" && msg == "" && len(resp.Result) > 0 {
			var inner struct {
				Error        string `json:"error"`
				ErrorMessage string `json:"error_message"`
			}
			if json.Unmarshal(resp.Result, &inner) == nil {
				code, msg = inner.Error, inner.ErrorMessage
			}
		}
		if msg == "" {
			msg = code
		}
		if msg == "" {
			msg = "error response"
		}
		return &ProtocolError{Command: command, Code: code, Message: msg}
	}

	if resp.Type != responseType || resp.Status != statusSuccess {
		return &ProtocolError{Command: command, Message: "unexpected response", Raw: excerpt(data)}
	}
	if resp.ID != nil && *resp.ID != id {
		return &ProtocolError{Command: command, Message: fmt.Sprintf("response id %d does not match request id %d", *resp.ID, id)}
	}
	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return &ProtocolError{Command: command, Message: "response has no result", Raw: excerpt(data)}
	}
	if err := json.Unmarshal(result, out); err != nil {
		return &ProtocolError{Command: command, Message: fmt.Sprintf("malformed result: %v", err), Raw: excerpt(data)}
	}
	return nil
}
