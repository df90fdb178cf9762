package report

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const xrpDecimals = 6

// XRP formats an amount with thousands separators and six decimals, e.g. 1,234.500000.
// It never goes through float64, so large supplies keep their exact digits.
func XRP(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(xrpDecimals)
	intPart, frac, _ := strings.Cut(fixed, ".")
	whole := decimal.RequireFromString(intPart)
	return sign + humanize.BigComma(whole.BigInt()) + "." + frac
}

// Whole formats an integral amount with thousands separators, dropping any fraction.
func Whole(d decimal.Decimal) string {
	return humanize.BigComma(d.Truncate(0).BigInt())
}

// Count formats an account or call count, e.g. 20,000.
func Count(n int) string {
	return humanize.Comma(int64(n))
}

// Percent formats a percentage with two decimals.
func Percent(d decimal.Decimal) string {
	return d.StringFixed(2) + " %"
}
