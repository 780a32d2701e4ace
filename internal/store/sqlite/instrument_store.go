package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// InstrumentStore implements domain.InstrumentStore using SQLite.
type InstrumentStore struct {
	q querier
}

var _ domain.InstrumentStore = (*InstrumentStore)(nil)

// GetByID retrieves an instrument by primary key.
func (s *InstrumentStore) GetByID(ctx context.Context, id int64) (domain.Instrument, error) {
	var i domain.Instrument
	err := s.q.QueryRowContext(ctx,
		`SELECT id, ticker, name, type FROM instruments WHERE id = ?`, id,
	).Scan(&i.ID, &i.Ticker, &i.Name, &i.Kind)
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("sqlite: get instrument: %w", notFound(err, "Instrument", id))
	}
	return i, nil
}

// GetByKind returns the lowest-id instrument of kind.
func (s *InstrumentStore) GetByKind(ctx context.Context, kind string) (domain.Instrument, error) {
	var i domain.Instrument
	err := s.q.QueryRowContext(ctx,
		`SELECT id, ticker, name, type FROM instruments WHERE type = ? ORDER BY id LIMIT 1`, kind,
	).Scan(&i.ID, &i.Ticker, &i.Name, &i.Kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Instrument{}, fmt.Errorf("sqlite: instrument kind %s: %w", kind, domain.ErrNotFound)
		}
		return domain.Instrument{}, fmt.Errorf("sqlite: instrument kind %s: %w", kind, err)
	}
	return i, nil
}

// Insert adds an instrument. A zero ID is assigned by the database.
func (s *InstrumentStore) Insert(ctx context.Context, inst domain.Instrument) (domain.Instrument, error) {
	var id any
	if inst.ID != 0 {
		id = inst.ID
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO instruments (id, ticker, name, type) VALUES (?, ?, ?, ?)`,
		id, inst.Ticker, inst.Name, inst.Kind,
	)
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("sqlite: insert instrument %s: %w", inst.Ticker, err)
	}
	if inst.ID, err = res.LastInsertId(); err != nil {
		return domain.Instrument{}, fmt.Errorf("sqlite: insert instrument %s: %w", inst.Ticker, err)
	}
	return inst, nil
}
