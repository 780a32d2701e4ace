package domain

// CashKind marks the cash-equivalent instrument.
const CashKind = "MONEDA"

// Instrument is a tradable asset or the cash-equivalent.
type Instrument struct {
	ID     int64  `json:"id"`
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
	Kind   string `json:"type"`
}

// IsCash reports whether the instrument is the cash-equivalent.
func (i Instrument) IsCash() bool {
	return i.Kind == CashKind
}
