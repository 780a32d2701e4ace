package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/settlement/internal/domain"
)

// DefaultPriceTTL bounds how long a cached close survives without a write.
const DefaultPriceTTL = 5 * time.Minute

// PriceCache implements domain.PriceCache. Each close is stored as its
// decimal string at "price:close:{instrumentID}".
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ domain.PriceCache = (*PriceCache)(nil)

// NewPriceCache creates a PriceCache. A non-positive ttl uses DefaultPriceTTL.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(instrumentID int64) string {
	return "price:close:" + strconv.FormatInt(instrumentID, 10)
}

// SetClose stores the close for an instrument.
func (pc *PriceCache) SetClose(ctx context.Context, instrumentID int64, close decimal.Decimal) error {
	if err := pc.rdb.Set(ctx, priceKey(instrumentID), close.String(), pc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set close %d: %w", instrumentID, err)
	}
	return nil
}

// GetClose returns domain.ErrNotFound when nothing is cached.
func (pc *PriceCache) GetClose(ctx context.Context, instrumentID int64) (decimal.Decimal, error) {
	s, err := pc.rdb.Get(ctx, priceKey(instrumentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, domain.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("redis: get close %d: %w", instrumentID, err)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("redis: parse close %d: %w", instrumentID, err)
	}
	return d, nil
}

// Invalidate drops the cached close.
func (pc *PriceCache) Invalidate(ctx context.Context, instrumentID int64) error {
	if err := pc.rdb.Del(ctx, priceKey(instrumentID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate close %d: %w", instrumentID, err)
	}
	return nil
}
