package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	q querier
}

var _ domain.OrderStore = (*OrderStore)(nil)

const orderColumns = `
	o.id, o.userid, o.instrumentid, i.ticker, i.name, i.type,
	o.side, o.type, o.size::text, o.price::text, o.status, o.datetime`

const orderFrom = `FROM orders o JOIN instruments i ON i.id = o.instrumentid`

// Create inserts order and returns it with its assigned ID.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) (domain.Order, error) {
	const query = `
		INSERT INTO orders (instrumentid, userid, size, price, type, side, status, datetime)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7, $8)
		RETURNING id`

	err := s.q.QueryRow(ctx, query,
		o.Instrument.ID, o.UserID,
		o.Size.String(), o.Price.String(),
		string(o.Kind), string(o.Side), string(o.Status),
		o.Timestamp,
	).Scan(&o.ID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("postgres: create order for user %d: %w", o.UserID, err)
	}
	return o, nil
}

// GetByID retrieves an order joined with its instrument.
func (s *OrderStore) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` ` + orderFrom + ` WHERE o.id = $1`

	o, err := scanOrder(s.q.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Order{}, fmt.Errorf("postgres: get order: %w", notFound(err, "Order", id))
	}
	return o, nil
}

// ListFilled returns the user's FILLED orders in creation order.
func (s *OrderStore) ListFilled(ctx context.Context, userID int64) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` ` + orderFrom + `
		WHERE o.userid = $1 AND o.status = $2
		ORDER BY o.datetime, o.id`

	rows, err := s.q.Query(ctx, query, userID, string(domain.OrderStatusFilled))
	if err != nil {
		return nil, fmt.Errorf("postgres: list filled orders for user %d: %w", userID, err)
	}
	return collectOrders(rows)
}

// Transition performs a conditional status update and reports whether the
// row was still in from.
func (s *OrderStore) Transition(ctx context.Context, id int64, from, to domain.OrderStatus, at time.Time) (bool, error) {
	const query = `UPDATE orders SET status = $1, datetime = $2 WHERE id = $3 AND status = $4`

	tag, err := s.q.Exec(ctx, query, string(to), at, id, string(from))
	if err != nil {
		return false, fmt.Errorf("postgres: transition order %d %s->%s: %w", id, from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListBetween returns orders with from <= datetime < to.
func (s *OrderStore) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` ` + orderFrom + `
		WHERE o.datetime >= $1 AND o.datetime < $2
		ORDER BY o.datetime, o.id`

	rows, err := s.q.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders between: %w", err)
	}
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: orders rows: %w", err)
	}
	return orders, nil
}

// scanOrder scans a single order row from any pgx.Row-compatible source.
func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o                domain.Order
		side, kind, st   string
		sizeStr, priceSt string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Instrument.ID, &o.Instrument.Ticker, &o.Instrument.Name, &o.Instrument.Kind,
		&side, &kind, &sizeStr, &priceSt, &st, &o.Timestamp,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Side = domain.OrderSide(side)
	o.Kind = domain.OrderKind(kind)
	o.Status = domain.OrderStatus(st)

	if o.Size, err = parseDecimal(&sizeStr); err != nil {
		return domain.Order{}, err
	}
	if o.Price, err = parseDecimal(&priceSt); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}
