package ledger

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

var (
	cashInst = domain.Instrument{ID: 66, Ticker: "ARS", Name: "PESOS", Kind: domain.CashKind}
	ggal     = domain.Instrument{ID: 47, Ticker: "GGAL", Name: "Grupo Financiero Galicia", Kind: "ACCIONES"}
	pamp     = domain.Instrument{ID: 31, Ticker: "PAMP", Name: "Pampa Holding", Kind: "ACCIONES"}
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fill(inst domain.Instrument, side domain.OrderSide, size, price string) domain.Order {
	return domain.Order{
		UserID:     1,
		Instrument: inst,
		Side:       side,
		Kind:       domain.OrderKindMarket,
		Size:       d(size),
		Price:      d(price),
		Status:     domain.OrderStatusFilled,
	}
}

func history() []domain.Order {
	return []domain.Order{
		fill(cashInst, domain.OrderSideCashIn, "1000000", "1"),
		fill(ggal, domain.OrderSideBuy, "10", "150"),
		fill(cashInst, domain.OrderSideCashOut, "1500", "1"),
		fill(pamp, domain.OrderSideBuy, "5", "900"),
		fill(cashInst, domain.OrderSideCashOut, "4500", "1"),
		fill(ggal, domain.OrderSideSell, "4", "200"),
		fill(cashInst, domain.OrderSideCashIn, "800", "1"),
	}
}

func TestAvailableCash(t *testing.T) {
	tests := []struct {
		name   string
		orders []domain.Order
		want   string
	}{
		{"empty", nil, "0"},
		{"deposits only", []domain.Order{fill(cashInst, domain.OrderSideCashIn, "250.50", "1")}, "250.50"},
		{"mixed history", history(), "994800"},
		{"trades ignored", []domain.Order{fill(ggal, domain.OrderSideBuy, "3", "100")}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AvailableCash(tt.orders)
			if !got.Equal(d(tt.want)) {
				t.Fatalf("AvailableCash() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAvailableCashOrderIndependent(t *testing.T) {
	orders := history()
	want := AvailableCash(orders)
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]domain.Order(nil), orders...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if got := AvailableCash(shuffled); !got.Equal(want) {
			t.Fatalf("shuffle %d: AvailableCash() = %s, want %s", i, got, want)
		}
	}
}

func TestPositions(t *testing.T) {
	got := Positions(history())
	if len(got) != 2 {
		t.Fatalf("len(Positions()) = %d, want 2", len(got))
	}
	if got[0].InstrumentID != ggal.ID || got[1].InstrumentID != pamp.ID {
		t.Fatalf("order = [%d %d], want first-occurrence [%d %d]", got[0].InstrumentID, got[1].InstrumentID, ggal.ID, pamp.ID)
	}
	if !got[0].Quantity.Equal(d("6")) || !got[0].TotalValue.Equal(d("700")) {
		t.Fatalf("GGAL = %s @ %s, want 6 @ 700", got[0].Quantity, got[0].TotalValue)
	}
	if got[0].Ticker != "GGAL" || got[0].Name != ggal.Name {
		t.Fatalf("GGAL metadata = %q %q", got[0].Ticker, got[0].Name)
	}
	if !got[1].Quantity.Equal(d("5")) || !got[1].TotalValue.Equal(d("4500")) {
		t.Fatalf("PAMP = %s @ %s, want 5 @ 4500", got[1].Quantity, got[1].TotalValue)
	}
}

func TestPositionsKeepsFlat(t *testing.T) {
	got := Positions([]domain.Order{
		fill(ggal, domain.OrderSideBuy, "2", "100"),
		fill(ggal, domain.OrderSideSell, "2", "100"),
	})
	if len(got) != 1 {
		t.Fatalf("len(Positions()) = %d, want 1", len(got))
	}
	if !got[0].Quantity.IsZero() || !got[0].TotalValue.IsZero() {
		t.Fatalf("flat position = %s @ %s, want 0 @ 0", got[0].Quantity, got[0].TotalValue)
	}
}

func TestPositionQuantityMatchesNetSizes(t *testing.T) {
	orders := history()
	for _, inst := range []domain.Instrument{ggal, pamp} {
		want := decimal.Zero
		for _, o := range orders {
			if o.Instrument.ID != inst.ID {
				continue
			}
			if o.Side == domain.OrderSideBuy {
				want = want.Add(o.Size)
			} else {
				want = want.Sub(o.Size)
			}
		}
		got := decimal.Zero
		for _, p := range Positions(orders) {
			if p.InstrumentID == inst.ID {
				got = got.Add(p.Quantity)
			}
		}
		if !got.Equal(want) {
			t.Fatalf("%s quantity = %s, want %s", inst.Ticker, got, want)
		}
		if nq := NetQuantity(orders, inst.ID); !nq.Equal(want) {
			t.Fatalf("NetQuantity(%s) = %s, want %s", inst.Ticker, nq, want)
		}
	}
}
