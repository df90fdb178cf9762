package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// --- Request types

// LedgerRequest asks for the header of one ledger.
type LedgerRequest struct {
	ID          uint64 `json:"id"`
	Command     string `json:"command"`
	LedgerIndex any    `json:"ledger_index"` // uint64 or "closed"
}

// NewLedgerRequest builds a ledger request. A nil index selects the last closed ledger.
func NewLedgerRequest(index *uint64) LedgerRequest {
	req := LedgerRequest{Command: ledgerCommand, LedgerIndex: closedLedger}
	if index != nil {
		req.LedgerIndex = *index
	}
	return req
}

// LedgerDataRequest asks for one page of ledger state, scoped to a ledger hash.
type LedgerDataRequest struct {
	ID      uint64          `json:"id"`
	Command string          `json:"command"`
	Ledger  string          `json:"ledger"`
	Type    string          `json:"type"`
	Limit   int             `json:"limit"`
	Marker  json.RawMessage `json:"marker,omitempty"`
}

// NewLedgerDataRequest builds a ledger_data request restricted to AccountRoot entries.
func NewLedgerDataRequest(hash string, limit int, marker json.RawMessage) LedgerDataRequest {
	return LedgerDataRequest{
		Command: ledgerDataCommand,
		Ledger:  hash,
		Type:    accountType,
		Limit:   limit,
		Marker:  marker,
	}
}

// --- Response types

// Response is the envelope rippled wraps around every websocket reply.
type Response struct {
	ID           *uint64         `json:"id"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Error        string          `json:"error"`         // Error code, e.g. "lgrNotFound"
	ErrorMessage string          `json:"error_message"` // Human-readable error text
	Result       json.RawMessage `json:"result"`
}

// LedgerHeader is the subset of the rippled ledger object needed for a snapshot.
type LedgerHeader struct {
	Hash           string   `json:"hash"`
	LedgerHash     string   `json:"ledger_hash"`
	LedgerIndex    FlexUint `json:"ledger_index"`
	CloseTimeHuman string   `json:"close_time_human"`
	TotalCoins     FlexUint `json:"total_coins"` // Drops
}

// LedgerResult is the result body of a ledger command.
type LedgerResult struct {
	Ledger      LedgerHeader `json:"ledger"`
	LedgerHash  string       `json:"ledger_hash"`
	LedgerIndex FlexUint     `json:"ledger_index"`
	Validated   bool         `json:"validated"`
}

// BlockHash returns the ledger hash, whichever field rippled populated.
func (r *LedgerResult) BlockHash() string {
	switch {
	case r.Ledger.Hash != "":
		return r.Ledger.Hash
	case r.Ledger.LedgerHash != "":
		return r.Ledger.LedgerHash
	default:
		return r.LedgerHash
	}
}

// Index returns the ledger sequence, whichever field rippled populated.
func (r *LedgerResult) Index() uint64 {
	if r.Ledger.LedgerIndex != 0 {
		return uint64(r.Ledger.LedgerIndex)
	}
	return uint64(r.LedgerIndex)
}

// StateEntry is an AccountRoot ledger entry as returned by ledger_data.
type StateEntry struct {
	Account         string `json:"Account"`
	Balance         string `json:"Balance"` // Drops
	LedgerEntryType string `json:"LedgerEntryType"`
	Index           string `json:"index"`
}

// LedgerDataResult is one page of ledger_data results.
type LedgerDataResult struct {
	LedgerHash  string          `json:"ledger_hash"`
	LedgerIndex FlexUint        `json:"ledger_index"`
	State       []StateEntry    `json:"state"`
	Marker      json.RawMessage `json:"marker,omitempty"`
}

// HasMarker reports whether the page carries a continuation marker.
func (r *LedgerDataResult) HasMarker() bool {
	m := bytes.TrimSpace(r.Marker)
	return len(m) > 0 && !bytes.Equal(m, []byte("null")) && !bytes.Equal(m, []byte(`""`))
}

// FlexUint decodes an unsigned integer rippled may encode either as a JSON number or a string.
type FlexUint uint64

// UnmarshalJSON accepts 123, "123" and null.
func (f *FlexUint) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid unsigned integer %q: %w", s, err)
	}
	*f = FlexUint(n)
	return nil
}

// String returns the decimal representation, the form rippled uses for drop amounts.
func (f FlexUint) String() string {
	return strconv.FormatUint(uint64(f), 10)
}
