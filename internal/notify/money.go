package notify

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatAmount renders amount in the currency's display format, e.g.
// "$1,234.50" for USD. Unknown codes fall back to the plain decimal.
func FormatAmount(amount decimal.Decimal, code string) string {
	if money.GetCurrency(code) == nil {
		return amount.StringFixed(2) + " " + code
	}
	cur := money.New(0, code).Currency()
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}
