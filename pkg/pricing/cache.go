package pricing

import (
	"context"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"github.com/redis/go-redis/v9"
)

const (
	PricesKey = "exchange:stock:prices"
	RatiosKey = "exchange:stock:ratios"
)

// PriceCache mirrors the reference price of stocks for readers outside the exchange.
type PriceCache interface {
	StorePrice(ctx context.Context, stock *model.Stock) error
}

type RedisPriceCache struct {
	client redis.Cmdable
}

func NewRedisPriceCache(client redis.Cmdable) *RedisPriceCache {
	return &RedisPriceCache{client: client}
}

func (c *RedisPriceCache) StorePrice(ctx context.Context, stock *model.Stock) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, PricesKey, stock.ID, stock.CurrentPrice.String())
		pipe.HSet(ctx, RatiosKey, stock.ID, stock.PriceChangeRatio)
		return nil
	})
	return err
}

// Price reads back a cached price; found is false when the stock was never cached.
func (c *RedisPriceCache) Price(ctx context.Context, stockID string) (price string, found bool, err error) {
	price, err = c.client.HGet(ctx, PricesKey, stockID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return price, true, nil
}
