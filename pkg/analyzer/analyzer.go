package analyzer

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xrplstats/richlist/pkg/ledger"
)

// TopN is the size of the "richest accounts" group whose combined balance is reported.
const TopN = 100

// percentagePrecision is the number of decimals kept for the top-N share of total supply.
const percentagePrecision = 8

var hundred = decimal.NewFromInt(100)

// DefaultPercentiles are the account-population percentages reported by default.
var DefaultPercentiles = []float64{0.01, 0.1, 0.2, 0.5, 1, 2, 3, 4, 5, 10}

// DefaultBoundaries are the XRP balance floors of the magnitude buckets, richest first.
var DefaultBoundaries = []int64{
	1_000_000_000, 500_000_000, 100_000_000, 20_000_000, 10_000_000, 5_000_000,
	1_000_000, 500_000, 100_000, 75_000, 50_000, 25_000, 10_000, 5_000, 1_000,
	500, 20, 0,
}

// Options selects the buckets computed by Analyze.
type Options struct {
	Percentiles []float64 // Ascending, each in (0, 100]
	Boundaries  []int64   // Strictly descending, last one 0
}

// DefaultOptions returns the bucket layout used by the rich-list reports.
func DefaultOptions() Options {
	return Options{Percentiles: DefaultPercentiles, Boundaries: DefaultBoundaries}
}

// Validate checks the bucket layout before any work is done.
func (o Options) Validate() error {
	for i, p := range o.Percentiles {
		if p <= 0 || p > 100 {
			return fmt.Errorf("percentile %v out of range (0, 100]", p)
		}
		if i > 0 && p <= o.Percentiles[i-1] {
			return fmt.Errorf("percentiles must be ascending: %v after %v", p, o.Percentiles[i-1])
		}
	}
	if len(o.Boundaries) == 0 {
		return fmt.Errorf("no balance boundaries")
	}
	for i, b := range o.Boundaries {
		if i > 0 && b >= o.Boundaries[i-1] {
			return fmt.Errorf("balance boundaries must be strictly descending: %d after %d", b, o.Boundaries[i-1])
		}
	}
	if last := o.Boundaries[len(o.Boundaries)-1]; last != 0 {
		return fmt.Errorf("last balance boundary must be 0, got %d", last)
	}
	return nil
}

// Analyze computes distribution statistics over snap. It sorts snap.Balances in place,
// richest first, so the caller must hand over a snapshot it no longer needs in fetch order.
func Analyze(snap *ledger.Snapshot, opts Options) (*Stats, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	balances := snap.Balances
	// Stable, so equal balances keep file order and reruns are reproducible.
	sort.SliceStable(balances, func(i, j int) bool {
		return balances[i].Balance.GreaterThan(balances[j].Balance)
	})

	total := sumBalances(balances)
	top := sumBalances(balances[:min(TopN, len(balances))])

	share := decimal.Zero
	if snap.Header.TotalSupply.IsPositive() {
		share = top.Div(snap.Header.TotalSupply).Mul(hundred).Round(percentagePrecision)
	}

	ranges, err := rangeBuckets(balances, opts.Boundaries)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Meta: Meta{
			NumberAccounts:     len(balances),
			LedgerClosedAt:     snap.Header.CloseTime,
			LedgerHash:         snap.Header.Hash,
			LedgerIndex:        snap.Header.Index,
			ExistingXRP:        snap.Header.TotalSupply,
			AccountsBalanceSum: total,
		},
		Top100Balance:             top,
		Top100Percentage:          share,
		AccountPercentageBalance:  percentileBuckets(balances, opts.Percentiles),
		AccountNumberBalanceRange: ranges,
	}, nil
}

// percentileBuckets reports, for each percentage p, how many accounts make up the richest p
// percent (rounded half up) and the balance of the poorest account among them.
func percentileBuckets(sorted []ledger.AccountBalance, percentiles []float64) []PercentileBucket {
	n := decimal.NewFromInt(int64(len(sorted)))
	out := make([]PercentileBucket, 0, len(percentiles))
	for _, p := range percentiles {
		pct := decimal.NewFromFloat(p)
		count := int(n.Mul(pct).Div(hundred).Round(0).IntPart())

		threshold := decimal.Zero
		if count > 0 {
			threshold = sorted[count-1].Balance
		}
		out = append(out, PercentileBucket{
			Percentile:       pct,
			AccountCount:     count,
			ThresholdBalance: threshold,
		})
	}
	return out
}

// rangeBuckets partitions the sorted accounts in a single pass. The cursor only moves forward:
// each boundary takes every remaining account at or above it, and the next boundary resumes
// where this one stopped.
func rangeBuckets(sorted []ledger.AccountBalance, boundaries []int64) ([]RangeBucket, error) {
	out := make([]RangeBucket, 0, len(boundaries))
	cursor := 0
	var upper *decimal.Decimal
	for _, b := range boundaries {
		floor := decimal.NewFromInt(b)
		bucket := RangeBucket{LowerBound: floor, UpperBound: upper, BalanceSum: decimal.Zero}
		for cursor < len(sorted) && sorted[cursor].Balance.GreaterThanOrEqual(floor) {
			bucket.AccountCount++
			bucket.BalanceSum = bucket.BalanceSum.Add(sorted[cursor].Balance)
			cursor++
		}
		out = append(out, bucket)
		upper = &floor
	}
	if cursor != len(sorted) {
		return nil, fmt.Errorf("%d accounts fall below the lowest balance boundary", len(sorted)-cursor)
	}
	return out, nil
}

func sumBalances(balances []ledger.AccountBalance) decimal.Decimal {
	sum := decimal.Zero
	for i := range balances {
		sum = sum.Add(balances[i].Balance)
	}
	return sum
}
