package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// InstrumentStore implements domain.InstrumentStore using PostgreSQL.
type InstrumentStore struct {
	q querier
}

var _ domain.InstrumentStore = (*InstrumentStore)(nil)

// GetByID retrieves an instrument by primary key.
func (s *InstrumentStore) GetByID(ctx context.Context, id int64) (domain.Instrument, error) {
	var i domain.Instrument
	err := s.q.QueryRow(ctx,
		`SELECT id, ticker, name, type FROM instruments WHERE id = $1`, id,
	).Scan(&i.ID, &i.Ticker, &i.Name, &i.Kind)
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("postgres: get instrument: %w", notFound(err, "Instrument", id))
	}
	return i, nil
}

// GetByKind returns the lowest-id instrument of kind.
func (s *InstrumentStore) GetByKind(ctx context.Context, kind string) (domain.Instrument, error) {
	var i domain.Instrument
	err := s.q.QueryRow(ctx,
		`SELECT id, ticker, name, type FROM instruments WHERE type = $1 ORDER BY id LIMIT 1`, kind,
	).Scan(&i.ID, &i.Ticker, &i.Name, &i.Kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Instrument{}, fmt.Errorf("postgres: instrument kind %s: %w", kind, domain.ErrNotFound)
		}
		return domain.Instrument{}, fmt.Errorf("postgres: instrument kind %s: %w", kind, err)
	}
	return i, nil
}
