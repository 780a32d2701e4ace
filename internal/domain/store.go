package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// UserStore resolves account holders.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (User, error)
}

// InstrumentStore resolves instruments.
type InstrumentStore interface {
	GetByID(ctx context.Context, id int64) (Instrument, error)
	// GetByKind returns the first instrument of the given kind, or
	// ErrNotFound when there is none.
	GetByKind(ctx context.Context, kind string) (Instrument, error)
}

// OrderStore persists orders.
type OrderStore interface {
	// Create persists order and returns it with its assigned ID.
	Create(ctx context.Context, order Order) (Order, error)
	GetByID(ctx context.Context, id int64) (Order, error)
	// ListFilled returns the user's FILLED orders joined with their
	// instrument, in creation order.
	ListFilled(ctx context.Context, userID int64) ([]Order, error)
	// Transition moves the order from one status to another only if it is
	// still in from, stamping at as its new timestamp. It reports whether
	// the write happened.
	Transition(ctx context.Context, id int64, from, to OrderStatus, at time.Time) (bool, error)
	// ListBetween returns orders whose latest timestamp falls in
	// from <= timestamp < to. A cancelled order is listed under the time of
	// its cancellation, not its creation.
	ListBetween(ctx context.Context, from, to time.Time) ([]Order, error)
}

// MarketDataStore resolves prices.
type MarketDataStore interface {
	// LatestClose returns the most recent row by date, or ErrNotFound.
	LatestClose(ctx context.Context, instrumentID int64) (MarketData, error)
	Insert(ctx context.Context, md MarketData) (MarketData, error)
}

// Repos bundles the stores that participate in a unit of work.
type Repos struct {
	Users       UserStore
	Instruments InstrumentStore
	Orders      OrderStore
	MarketData  MarketDataStore
}

// TxManager runs fn as one atomic unit serialized against every other
// unit for the same user. Writes made through tx are committed only when fn
// returns nil.
type TxManager interface {
	WithinUser(ctx context.Context, userID int64, fn func(ctx context.Context, tx Repos) error) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// PriceSource returns the reference price used for valuation.
type PriceSource interface {
	LatestPrice(ctx context.Context, instrumentID int64) (decimal.Decimal, error)
}
