package repo

import (
	"context"
	"time"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"github.com/shopspring/decimal"
)

type IOrder interface {
	CreateOrder(ctx context.Context, record *model.Order) (*model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)

	// FetchActiveBuyOrders returns every open, unexpired buy order across all stocks.
	FetchActiveBuyOrders(ctx context.Context, now time.Time) ([]*model.Order, error)
	// FetchActiveSellOrders returns open, unexpired sell orders of one stock priced at or below maxPrice.
	FetchActiveSellOrders(ctx context.Context, stockID string, maxPrice decimal.Decimal, now time.Time) ([]*model.Order, error)
}

type ITransaction interface {
	// RecordTrade atomically stores the trade and applies amount to both orders.
	// ErrTradeConflict is returned when either order can no longer absorb amount.
	RecordTrade(ctx context.Context, buy, sell *model.Order, amount int64, unitPrice decimal.Decimal, executedAt time.Time) (*model.Transaction, error)
	// FetchRecentTradesForPricing returns the newest trades of a stock until their cumulative
	// amount reaches maxUnits; the trade that reaches it is included. maxUnits <= 0 disables the bound.
	FetchRecentTradesForPricing(ctx context.Context, stockID string, maxUnits int64) ([]*model.Transaction, error)
}

type IStock interface {
	CreateStock(ctx context.Context, record *model.Stock) (*model.Stock, error)
	GetStock(ctx context.Context, id string) (*model.Stock, error)
	FetchAllStocks(ctx context.Context) ([]*model.Stock, error)
	// PersistStock writes the fixed price together with its ratio.
	PersistStock(ctx context.Context, stock *model.Stock) error
	// PersistPriceChangeRatio writes only the ratio and only while the stored price still
	// equals stock.CurrentPrice; otherwise ErrStalePrice is returned.
	PersistPriceChangeRatio(ctx context.Context, stock *model.Stock) error
}

type IPriceHistory interface {
	FetchPriceSampleBefore(ctx context.Context, stockID string, before time.Time) (*model.PriceSample, bool, error)
	RecordPriceSample(ctx context.Context, sample *model.PriceSample) error
}
