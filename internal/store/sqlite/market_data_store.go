package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// MarketDataStore implements domain.MarketDataStore using SQLite.
type MarketDataStore struct {
	q querier
}

var _ domain.MarketDataStore = (*MarketDataStore)(nil)

// LatestClose returns the newest row by date for the instrument.
func (s *MarketDataStore) LatestClose(ctx context.Context, instrumentID int64) (domain.MarketData, error) {
	const query = `
		SELECT id, instrumentid, high, low, open, close, previousclose, date
		FROM marketdata
		WHERE instrumentid = ?
		ORDER BY date DESC, id DESC
		LIMIT 1`

	var (
		md    domain.MarketData
		cols  [5]sql.NullString
		dateN int64
	)
	err := s.q.QueryRowContext(ctx, query, instrumentID).Scan(
		&md.ID, &md.InstrumentID, &cols[0], &cols[1], &cols[2], &cols[3], &cols[4], &dateN,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.MarketData{}, fmt.Errorf("sqlite: market data for %d: %w", instrumentID, domain.ErrNotFound)
		}
		return domain.MarketData{}, fmt.Errorf("sqlite: market data for %d: %w", instrumentID, err)
	}

	dst := []*decimal.Decimal{&md.High, &md.Low, &md.Open, &md.Close, &md.PreviousClose}
	for i := range dst {
		if *dst[i], err = parseDecimal(cols[i]); err != nil {
			return domain.MarketData{}, fmt.Errorf("sqlite: market data for %d: %w", instrumentID, err)
		}
	}
	md.Date = unixNano(dateN)
	return md, nil
}

// Insert stores a new market data row.
func (s *MarketDataStore) Insert(ctx context.Context, md domain.MarketData) (domain.MarketData, error) {
	const query = `
		INSERT INTO marketdata (instrumentid, high, low, open, close, previousclose, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	res, err := s.q.ExecContext(ctx, query,
		md.InstrumentID,
		md.High.String(), md.Low.String(), md.Open.String(),
		md.Close.String(), md.PreviousClose.String(),
		md.Date.UTC().UnixNano(),
	)
	if err != nil {
		return domain.MarketData{}, fmt.Errorf("sqlite: insert market data for %d: %w", md.InstrumentID, err)
	}
	if md.ID, err = res.LastInsertId(); err != nil {
		return domain.MarketData{}, fmt.Errorf("sqlite: insert market data for %d: %w", md.InstrumentID, err)
	}
	return md, nil
}
