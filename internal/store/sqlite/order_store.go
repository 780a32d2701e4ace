package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// OrderStore implements domain.OrderStore using SQLite.
type OrderStore struct {
	q querier
}

var _ domain.OrderStore = (*OrderStore)(nil)

const orderColumns = `
	o.id, o.userid, o.instrumentid, i.ticker, i.name, i.type,
	o.side, o.type, o.size, o.price, o.status, o.datetime`

const orderFrom = `FROM orders o JOIN instruments i ON i.id = o.instrumentid`

// Create inserts order and returns it with its assigned ID.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) (domain.Order, error) {
	const query = `
		INSERT INTO orders (instrumentid, userid, size, price, type, side, status, datetime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.q.ExecContext(ctx, query,
		o.Instrument.ID, o.UserID,
		o.Size.String(), o.Price.String(),
		string(o.Kind), string(o.Side), string(o.Status),
		o.Timestamp.UTC().UnixNano(),
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("sqlite: create order for user %d: %w", o.UserID, err)
	}
	if o.ID, err = res.LastInsertId(); err != nil {
		return domain.Order{}, fmt.Errorf("sqlite: create order for user %d: %w", o.UserID, err)
	}
	return o, nil
}

// GetByID retrieves an order joined with its instrument.
func (s *OrderStore) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` ` + orderFrom + ` WHERE o.id = ?`

	o, err := scanOrder(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return domain.Order{}, fmt.Errorf("sqlite: get order: %w", notFound(err, "Order", id))
	}
	return o, nil
}

// ListFilled returns the user's FILLED orders in creation order.
func (s *OrderStore) ListFilled(ctx context.Context, userID int64) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` ` + orderFrom + `
		WHERE o.userid = ? AND o.status = ?
		ORDER BY o.datetime, o.id`

	rows, err := s.q.QueryContext(ctx, query, userID, string(domain.OrderStatusFilled))
	if err != nil {
		return nil, fmt.Errorf("sqlite: list filled orders for user %d: %w", userID, err)
	}
	return collectOrders(rows)
}

// Transition performs a conditional status update and reports whether the
// row was still in from.
func (s *OrderStore) Transition(ctx context.Context, id int64, from, to domain.OrderStatus, at time.Time) (bool, error) {
	const query = `UPDATE orders SET status = ?, datetime = ? WHERE id = ? AND status = ?`

	res, err := s.q.ExecContext(ctx, query, string(to), at.UTC().UnixNano(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("sqlite: transition order %d %s->%s: %w", id, from, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: transition order %d: %w", id, err)
	}
	return n == 1, nil
}

// ListBetween returns orders with from <= datetime < to.
func (s *OrderStore) ListBetween(ctx context.Context, from, to time.Time) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` ` + orderFrom + `
		WHERE o.datetime >= ? AND o.datetime < ?
		ORDER BY o.datetime, o.id`

	rows, err := s.q.QueryContext(ctx, query, from.UTC().UnixNano(), to.UTC().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("sqlite: list orders between: %w", err)
	}
	return collectOrders(rows)
}

func collectOrders(rows *sql.Rows) ([]domain.Order, error) {
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: orders rows: %w", err)
	}
	return orders, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o              domain.Order
		side, kind, st string
		size, price    sql.NullString
		datetime       int64
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Instrument.ID, &o.Instrument.Ticker, &o.Instrument.Name, &o.Instrument.Kind,
		&side, &kind, &size, &price, &st, &datetime,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Side = domain.OrderSide(side)
	o.Kind = domain.OrderKind(kind)
	o.Status = domain.OrderStatus(st)
	o.Timestamp = unixNano(datetime)

	if o.Size, err = parseDecimal(size); err != nil {
		return domain.Order{}, err
	}
	if o.Price, err = parseDecimal(price); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}
