package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// NUMERIC columns are selected as ::text and parsed here so no float64 is
// ever involved.
func parseDecimal(s *string) (decimal.Decimal, error) {
	if s == nil {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", *s, err)
	}
	return d, nil
}

// parseDecimals parses src[i] into dst[i].
func parseDecimals(src []*string, dst []*decimal.Decimal) error {
	for i := range src {
		d, err := parseDecimal(src[i])
		if err != nil {
			return err
		}
		*dst[i] = d
	}
	return nil
}

// notFound maps pgx.ErrNoRows to a *domain.NotFoundError.
func notFound(err error, entity string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound(entity, id)
	}
	return err
}
