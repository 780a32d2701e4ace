package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

func TestValuatePerPosition(t *testing.T) {
	positions := Positions(history())
	prices := map[int64]decimal.Decimal{ggal.ID: d("250"), pamp.ID: d("800")}

	v := NewValuator(PriceModePerPosition)
	total, got := v.Valuate(positions, prices, d("994800"))

	// 994800 + 6*250 + 5*800
	if !total.Equal(d("1000300")) {
		t.Fatalf("total = %s, want 1000300", total)
	}
	if !got[0].CurrentValue.Equal(d("1500")) || !got[0].TotalReturn.Equal(d("114.29")) {
		t.Fatalf("GGAL = %s / %s%%, want 1500 / 114.29%%", got[0].CurrentValue, got[0].TotalReturn)
	}
	if !got[1].CurrentValue.Equal(d("4000")) || !got[1].TotalReturn.Equal(d("-11.11")) {
		t.Fatalf("PAMP = %s / %s%%, want 4000 / -11.11%%", got[1].CurrentValue, got[1].TotalReturn)
	}
	if !positions[0].CurrentValue.IsZero() {
		t.Fatal("Valuate mutated its input")
	}
}

func TestValuateFirstPosition(t *testing.T) {
	positions := Positions(history())
	prices := map[int64]decimal.Decimal{ggal.ID: d("250"), pamp.ID: d("800")}

	v := NewValuator(PriceModeFirstPosition)
	if refs := v.References(positions); len(refs) != 1 || refs[0] != ggal.ID {
		t.Fatalf("References() = %v, want [%d]", refs, ggal.ID)
	}
	total, got := v.Valuate(positions, prices, d("994800"))

	// PAMP is valued at GGAL's close: 994800 + 6*250 + 5*250
	if !total.Equal(d("997550")) {
		t.Fatalf("total = %s, want 997550", total)
	}
	if !got[1].CurrentValue.Equal(d("1250")) {
		t.Fatalf("PAMP current = %s, want 1250", got[1].CurrentValue)
	}
}

func TestValuateZeroCostBasis(t *testing.T) {
	positions := Positions([]domain.Order{
		fill(ggal, domain.OrderSideBuy, "2", "100"),
		fill(ggal, domain.OrderSideSell, "2", "100"),
	})
	total, got := NewValuator(PriceModePerPosition).Valuate(positions, map[int64]decimal.Decimal{ggal.ID: d("120")}, d("50"))
	if !got[0].TotalReturn.IsZero() {
		t.Fatalf("TotalReturn = %s, want 0", got[0].TotalReturn)
	}
	if !total.Equal(d("50")) {
		t.Fatalf("total = %s, want 50", total)
	}
}

func TestValuateNoPositions(t *testing.T) {
	for _, mode := range []PriceMode{PriceModePerPosition, PriceModeFirstPosition} {
		v := NewValuator(mode)
		if refs := v.References(nil); len(refs) != 0 {
			t.Fatalf("%s: References(nil) = %v", mode, refs)
		}
		total, got := v.Valuate(nil, nil, d("1234.56"))
		if !total.Equal(d("1234.56")) || len(got) != 0 {
			t.Fatalf("%s: Valuate(nil) = %s, %d positions", mode, total, len(got))
		}
	}
}

func TestValuateMissingPrice(t *testing.T) {
	positions := Positions([]domain.Order{fill(pamp, domain.OrderSideBuy, "1", "10")})
	total, got := NewValuator(PriceModePerPosition).Valuate(positions, map[int64]decimal.Decimal{}, d("5"))
	if !total.Equal(d("5")) || !got[0].TotalReturn.Equal(d("-100")) {
		t.Fatalf("Valuate() = %s, return %s; want 5, -100", total, got[0].TotalReturn)
	}
}

func TestNewValuatorDefaultsUnknownMode(t *testing.T) {
	if v := NewValuator("bogus"); v.Mode != PriceModePerPosition {
		t.Fatalf("Mode = %q, want %q", v.Mode, PriceModePerPosition)
	}
}
