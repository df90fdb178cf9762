package rpc

import (
	"context"
	"encoding/json"
)

// Client captures the rippled calls used to snapshot account balances.
// Implementations must allow a single outstanding request at a time; callers issue the next
// request only after the previous response has been fully consumed.
type Client interface {
	// Ledger fetches the header of a ledger. A nil index selects the most recently closed ledger.
	Ledger(ctx context.Context, index *uint64) (*LedgerResult, error)
	// LedgerData fetches one page of AccountRoot entries of the ledger identified by hash.
	// A nil marker requests the first page.
	LedgerData(ctx context.Context, hash string, limit int, marker json.RawMessage) (*LedgerDataResult, error)
	// Close releases the underlying connection.
	Close() error
}

// Dialer opens a Client against a rippled endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Client, error)
}

// DialerFunc adapts a function into a Dialer.
type DialerFunc func(ctx context.Context, endpoint string) (Client, error)

// Dial calls f(ctx, endpoint).
func (f DialerFunc) Dial(ctx context.Context, endpoint string) (Client, error) {
	return f(ctx, endpoint)
}
