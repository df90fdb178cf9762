package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/xrplstats/richlist/pkg/analyzer"
	"github.com/xrplstats/richlist/pkg/fetch"
	"github.com/xrplstats/richlist/pkg/ledger"
)

const infinity = "∞"

// Printer writes the human-readable console output of the fetch and stats commands.
type Printer struct {
	w   io.Writer
	cmd string // Command name used in hints, e.g. "richlist"
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer, cmd string) *Printer {
	return &Printer{w: w, cmd: cmd}
}

// Connecting announces the endpoint a fetch is about to use.
func (p *Printer) Connecting(endpoint string) {
	fmt.Fprintf(p.w, "Connecting to rippled running at: %s\n\n", endpoint)
}

// LedgerHeader prints the header of the ledger being fetched.
func (p *Printer) LedgerHeader(h ledger.Header) {
	fmt.Fprintf(p.w, "Now fetching XRP ledger %d\n\n", h.Index)
	fmt.Fprintf(p.w, " -- Ledger close time:  %s\n", h.CloseTime)
	fmt.Fprintf(p.w, " -- Ledger hash:        %s\n", h.Hash)
	fmt.Fprintf(p.w, " -- Total XRP existing: %s\n\n", XRP(h.TotalSupply))
}

// Progress returns a callback that prints the ledger header once and then rewrites a single progress line.
func (p *Printer) Progress() func(fetch.Progress) {
	announced := false
	return func(pr fetch.Progress) {
		if !announced {
			announced = true
			p.LedgerHeader(pr.Header)
			return
		}
		fmt.Fprintf(p.w, "  > Retrieved %s accounts in %s calls to rippled...\r", Count(pr.Records), Count(pr.Calls))
	}
}

// FetchDone prints where the snapshot went and how to analyze it.
func (p *Printer) FetchDone(res *fetch.Result) {
	fmt.Fprintf(p.w, "\n\nDone! Wrote %s records to: %s\n\n", Count(res.Records), res.Path)
	fmt.Fprintf(p.w, "Now you can retrieve the stats for this ledger by running:\n  %s stats %d\n\n", p.cmd, res.Header.Index)
}

// Stats prints the summary and both bucket tables of a statistics document.
func (p *Printer) Stats(s *analyzer.Stats) {
	m := s.Meta
	fmt.Fprintf(p.w, " -- Accounts:             %s\n", Count(m.NumberAccounts))
	fmt.Fprintf(p.w, " -- Ledger close time:    %s\n", m.LedgerClosedAt)
	fmt.Fprintf(p.w, " -- Ledger hash:          %s\n", m.LedgerHash)
	fmt.Fprintf(p.w, " -- Ledger index:         %d\n", m.LedgerIndex)
	fmt.Fprintf(p.w, " -- Total XRP existing:   %s\n\n", XRP(m.ExistingXRP))
	fmt.Fprintf(p.w, " -- Accounts balance sum: %s\n\n", XRP(m.AccountsBalanceSum))

	fmt.Fprintln(p.w, "Stats")
	fmt.Fprintf(p.w, "  > Top %d Balance Sum:  %s\n", analyzer.TopN, XRP(s.Top100Balance))
	fmt.Fprintf(p.w, "  > Percentage of Total XRP: %s\n\n", Percent(s.Top100Percentage))

	fmt.Fprintln(p.w, " -- Percentage of accounts with balance starting at...")
	fmt.Fprintln(p.w, PercentileTable(s.AccountPercentageBalance))
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, " -- Accounts and sum of balance ranges...")
	fmt.Fprintln(p.w, RangeTable(s.AccountNumberBalanceRange))
}

// StatsWritten prints where the statistics document went.
func (p *Printer) StatsWritten(path string) {
	fmt.Fprintf(p.w, "\nStats written to: %s\n", path)
}

// PercentileTable renders the percentile buckets.
func PercentileTable(buckets []analyzer.PercentileBucket) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Percentage", "# Accounts", "Balance >="})
	for _, b := range buckets {
		tbl.AppendRow(table.Row{b.Percentile.String() + " %", Count(b.AccountCount), XRP(b.ThresholdBalance) + " XRP"})
	}
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return tbl.Render()
}

// RangeTable renders the magnitude buckets.
func RangeTable(buckets []analyzer.RangeBucket) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"# Accounts", "From", "To", "Sum (XRP)"})
	total := 0
	for _, b := range buckets {
		to := infinity
		if b.UpperBound != nil {
			to = Whole(*b.UpperBound)
		}
		tbl.AppendRow(table.Row{Count(b.AccountCount), Whole(b.LowerBound), to, XRP(b.BalanceSum)})
		total += b.AccountCount
	}
	tbl.AppendFooter(table.Row{Count(total), "", "", ""})
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return tbl.Render()
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	return tbl
}
