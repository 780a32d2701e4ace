package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// parseDecimal parses a TEXT decimal column; NULL is zero.
func parseDecimal(s sql.NullString) (decimal.Decimal, error) {
	if !s.Valid {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal %q: %w", s.String, err)
	}
	return d, nil
}

func unixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// notFound maps sql.ErrNoRows to a *domain.NotFoundError.
func notFound(err error, entity string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(entity, id)
	}
	return err
}
