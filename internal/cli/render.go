package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
	"github.com/alanyoungcy/settlement/internal/notify"
)

// OrderMarkdown renders one order as a key/value table.
func OrderMarkdown(o domain.OrderView, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Order %d\n\n", o.ID)
	b.WriteString("| Field | Value |\n|:---|:---|\n")
	fmt.Fprintf(&b, "| Status | **%s** |\n", o.Status)
	fmt.Fprintf(&b, "| User | %d |\n", o.UserID)
	fmt.Fprintf(&b, "| Instrument | %d |\n", o.InstrumentID)
	fmt.Fprintf(&b, "| Side | %s |\n", o.Side)
	fmt.Fprintf(&b, "| Type | %s |\n", o.Type)
	fmt.Fprintf(&b, "| Quantity | %s |\n", o.Quantity.String())
	fmt.Fprintf(&b, "| Price | %s |\n", notify.FormatAmount(o.Price, currency))
	fmt.Fprintf(&b, "| Notional | %s |\n", notify.FormatAmount(o.Quantity.Mul(o.Price).Round(domain.PriceScale), currency))
	fmt.Fprintf(&b, "| Time | %s |\n", o.Datetime.UTC().Format(time.RFC3339))
	return b.String()
}

// PortfolioMarkdown renders a valuation with one row per position.
func PortfolioMarkdown(userID int64, p domain.Portfolio, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Portfolio of user %d\n\n", userID)
	fmt.Fprintf(&b, "- Total account value: **%s**\n", notify.FormatAmount(p.TotalAccountValue, currency))
	fmt.Fprintf(&b, "- Available cash: %s\n\n", notify.FormatAmount(p.AvailableCash, currency))

	if len(p.Positions) == 0 {
		b.WriteString("_No open positions._\n")
		return b.String()
	}

	b.WriteString("| Ticker | Name | Quantity | Cost | Value | Return |\n")
	b.WriteString("|:---|:---|---:|---:|---:|---:|\n")
	for _, pos := range p.Positions {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			pos.Ticker,
			escapeCell(pos.Name),
			pos.Quantity.String(),
			notify.FormatAmount(pos.TotalValue, currency),
			notify.FormatAmount(pos.CurrentValue, currency),
			formatPercent(pos.TotalReturn),
		)
	}
	return b.String()
}

// EventsMarkdown renders a page of the order event stream.
func EventsMarkdown(page EventPage) string {
	var b strings.Builder
	b.WriteString("# Order events\n\n")
	if len(page.Events) == 0 {
		b.WriteString("_No new events._\n")
		return b.String()
	}
	b.WriteString("| Stream ID | Event | Order | Status | At |\n")
	b.WriteString("|:---|:---|---:|:---|:---|\n")
	for _, e := range page.Events {
		fmt.Fprintf(&b, "| %s | %s | %d | %s | %s |\n",
			e.ID, e.Event.Type, e.Event.Order.ID, e.Event.Order.Status,
			e.Event.At.UTC().Format(time.RFC3339),
		)
	}
	fmt.Fprintf(&b, "\nResume with `-after %s`.\n", page.Next)
	return b.String()
}

// ArchiveMarkdown renders the orders of one archived month.
func ArchiveMarkdown(month time.Time, orders []domain.OrderView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Archived orders %s\n\n", month.Format("2006-01"))
	if len(orders) == 0 {
		b.WriteString("_Archive is empty._\n")
		return b.String()
	}
	b.WriteString("| ID | User | Instrument | Side | Type | Quantity | Price | Status | At |\n")
	b.WriteString("|---:|---:|---:|:---|:---|---:|---:|:---|:---|\n")
	for _, o := range orders {
		fmt.Fprintf(&b, "| %d | %d | %d | %s | %s | %s | %s | %s | %s |\n",
			o.ID, o.UserID, o.InstrumentID, o.Side, o.Type,
			o.Quantity.String(), o.Price.StringFixed(domain.PriceScale), o.Status,
			o.Datetime.UTC().Format(time.RFC3339),
		)
	}
	return b.String()
}

func formatPercent(d decimal.Decimal) string {
	s := d.StringFixed(2) + "%"
	if d.IsPositive() {
		return "+" + s
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// printMarkdown renders md for the terminal, falling back to the raw text
// when rendering fails.
func printMarkdown(w io.Writer, md string) {
	out, err := glamour.Render(md, "auto")
	if err != nil {
		fmt.Fprint(w, md)
		return
	}
	fmt.Fprint(w, out)
}
