package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DropsPerXRP is the number of drops (the protocol's smallest unit) in one XRP.
const DropsPerXRP = 1_000_000

// dropsExp shifts a drop amount into XRP (10^-6).
const dropsExp = -6

// Header is the metadata of the ledger a snapshot was taken from.
type Header struct {
	Hash        string          `json:"hash"`             // Ledger hash (hex)
	Index       uint64          `json:"ledger_index"`     // Ledger sequence number
	CloseTime   string          `json:"close_time_human"` // Human-readable close time as reported by rippled
	TotalSupply decimal.Decimal `json:"total_coins"`      // XRP in existence, already converted from drops
}

// MarshalJSON writes total_coins as a bare JSON number rather than decimal's quoted default.
func (h Header) MarshalJSON() ([]byte, error) {
	hash, err := json.Marshal(h.Hash)
	if err != nil {
		return nil, err
	}
	closeTime, err := json.Marshal(h.CloseTime)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(`{"hash":%s,"ledger_index":%d,"close_time_human":%s,"total_coins":%s}`,
		hash, h.Index, closeTime, h.TotalSupply.String())), nil
}

// AccountBalance is the XRP balance of a single account root.
type AccountBalance struct {
	Account string
	Balance decimal.Decimal
}

type accountBalanceJSON struct {
	A string          `json:"a"`
	B decimal.Decimal `json:"b"`
}

// MarshalJSON encodes the compact {"a": account, "b": balance} record used by snapshot files.
func (a AccountBalance) MarshalJSON() ([]byte, error) {
	account, err := json.Marshal(a.Account)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.Grow(len(account) + 32)
	sb.WriteString(`{"a":`)
	sb.Write(account)
	sb.WriteString(`,"b":`)
	sb.WriteString(a.Balance.String())
	sb.WriteByte('}')
	return []byte(sb.String()), nil
}

// UnmarshalJSON accepts the balance either as a JSON number or a quoted string.
func (a *AccountBalance) UnmarshalJSON(data []byte) error {
	var raw accountBalanceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.B.IsNegative() {
		return fmt.Errorf("account %s: negative balance %s", raw.A, raw.B)
	}
	a.Account = raw.A
	a.Balance = raw.B
	return nil
}

// Snapshot is a ledger header plus the balance of every account in that ledger.
type Snapshot struct {
	Header   Header           `json:"stats"`
	Balances []AccountBalance `json:"balances"`
}

// DropsToXRP converts an integer drop amount, as rippled encodes it, into XRP.
func DropsToXRP(drops string) (decimal.Decimal, error) {
	drops = strings.TrimSpace(drops)
	if drops == "" {
		return decimal.Zero, fmt.Errorf("empty drops amount")
	}
	d, err := decimal.NewFromString(drops)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse drops %q: %w", drops, err)
	}
	if !d.IsInteger() {
		return decimal.Zero, fmt.Errorf("drops amount %q is not an integer", drops)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("drops amount %q is negative", drops)
	}
	return d.Shift(dropsExp), nil
}
