package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// MarketDataStore implements domain.MarketDataStore using PostgreSQL.
type MarketDataStore struct {
	q querier
}

var _ domain.MarketDataStore = (*MarketDataStore)(nil)

// LatestClose returns the newest row by date for the instrument.
func (s *MarketDataStore) LatestClose(ctx context.Context, instrumentID int64) (domain.MarketData, error) {
	const query = `
		SELECT id, instrumentid, high::text, low::text, open::text, close::text, previousclose::text, date
		FROM marketdata
		WHERE instrumentid = $1
		ORDER BY date DESC, id DESC
		LIMIT 1`

	var (
		md                                 domain.MarketData
		high, low, open, closeStr, prevStr *string
	)
	err := s.q.QueryRow(ctx, query, instrumentID).Scan(
		&md.ID, &md.InstrumentID, &high, &low, &open, &closeStr, &prevStr, &md.Date,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MarketData{}, fmt.Errorf("postgres: market data for %d: %w", instrumentID, domain.ErrNotFound)
		}
		return domain.MarketData{}, fmt.Errorf("postgres: market data for %d: %w", instrumentID, err)
	}

	if err := parseDecimals(
		[]*string{high, low, open, closeStr, prevStr},
		[]*decimal.Decimal{&md.High, &md.Low, &md.Open, &md.Close, &md.PreviousClose},
	); err != nil {
		return domain.MarketData{}, fmt.Errorf("postgres: market data for %d: %w", instrumentID, err)
	}
	return md, nil
}

// Insert stores a new market data row.
func (s *MarketDataStore) Insert(ctx context.Context, md domain.MarketData) (domain.MarketData, error) {
	const query = `
		INSERT INTO marketdata (instrumentid, high, low, open, close, previousclose, date)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7)
		RETURNING id`

	err := s.q.QueryRow(ctx, query,
		md.InstrumentID,
		md.High.String(), md.Low.String(), md.Open.String(),
		md.Close.String(), md.PreviousClose.String(),
		md.Date,
	).Scan(&md.ID)
	if err != nil {
		return domain.MarketData{}, fmt.Errorf("postgres: insert market data for %d: %w", md.InstrumentID, err)
	}
	return md, nil
}
