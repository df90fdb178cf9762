package analyzer

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// infinity is how an unbounded upper limit is written in the statistics document.
const infinity = "∞"

// Amount is a decimal that encodes as a bare JSON number instead of decimal's quoted default.
type Amount struct {
	decimal.Decimal
}

// MarshalJSON writes the exact decimal digits as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// Meta echoes the ledger header of the analyzed snapshot.
type Meta struct {
	NumberAccounts     int             `json:"numberAccounts"`
	LedgerClosedAt     string          `json:"ledgerClosedAt"`
	LedgerHash         string          `json:"ledgerHash"`
	LedgerIndex        uint64          `json:"ledgerIndex"`
	ExistingXRP        decimal.Decimal `json:"existingXRP"`
	AccountsBalanceSum decimal.Decimal `json:"accountsBalanceSum"`
}

func (m Meta) MarshalJSON() ([]byte, error) {
	type wire Meta
	return json.Marshal(struct {
		wire
		ExistingXRP        Amount `json:"existingXRP"`
		AccountsBalanceSum Amount `json:"accountsBalanceSum"`
	}{wire(m), Amount{m.ExistingXRP}, Amount{m.AccountsBalanceSum}})
}

// PercentileBucket is the balance threshold of the richest Percentile percent of accounts.
// Buckets are independent prefixes of the ranking, not a partition.
type PercentileBucket struct {
	Percentile       decimal.Decimal
	AccountCount     int
	ThresholdBalance decimal.Decimal // Balance of the last account inside the prefix, 0 if empty
}

func (b PercentileBucket) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Percentage     Amount `json:"percentage"`
		NumberAccounts int    `json:"numberAccounts"`
		BalanceEqGt    Amount `json:"balanceEqGt"`
	}{Amount{b.Percentile}, b.AccountCount, Amount{b.ThresholdBalance}})
}

// RangeBucket counts the accounts whose balance lies in [LowerBound, UpperBound).
type RangeBucket struct {
	LowerBound   decimal.Decimal
	UpperBound   *decimal.Decimal // nil for the unbounded top bucket
	AccountCount int
	BalanceSum   decimal.Decimal
}

func (b RangeBucket) MarshalJSON() ([]byte, error) {
	var to any = infinity
	if b.UpperBound != nil {
		to = Amount{*b.UpperBound}
	}
	return json.Marshal(struct {
		NumberAccounts int    `json:"numberAccounts"`
		BalanceFrom    Amount `json:"balanceFrom"`
		BalanceTo      any    `json:"balanceTo"`
		BalanceSum     Amount `json:"balanceSum"`
	}{b.AccountCount, Amount{b.LowerBound}, to, Amount{b.BalanceSum}})
}

// Stats is the statistics document produced for one snapshot.
type Stats struct {
	Meta                      Meta               `json:"meta"`
	Top100Balance             decimal.Decimal    `json:"top100Balance"`
	Top100Percentage          decimal.Decimal    `json:"top100Percentage"`
	AccountPercentageBalance  []PercentileBucket `json:"accountPercentageBalance"`
	AccountNumberBalanceRange []RangeBucket      `json:"accountNumberBalanceRange"`
}

func (s Stats) MarshalJSON() ([]byte, error) {
	type wire Stats
	return json.Marshal(struct {
		wire
		Top100Balance    Amount `json:"top100Balance"`
		Top100Percentage Amount `json:"top100Percentage"`
	}{wire(s), Amount{s.Top100Balance}, Amount{s.Top100Percentage}})
}
