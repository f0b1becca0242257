package pricing

import (
	"context"
	"runtime"
	"time"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"github.com/joripage/stock-exchange/pkg/logging"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type StockStore interface {
	GetStock(ctx context.Context, id string) (*model.Stock, error)
	FetchAllStocks(ctx context.Context) ([]*model.Stock, error)
	PersistStock(ctx context.Context, stock *model.Stock) error
	PersistPriceChangeRatio(ctx context.Context, stock *model.Stock) error
}

type TradeSource interface {
	FetchRecentTradesForPricing(ctx context.Context, stockID string, maxUnits int64) ([]*model.Transaction, error)
}

type PriceHistory interface {
	FetchPriceSampleBefore(ctx context.Context, stockID string, before time.Time) (*model.PriceSample, bool, error)
	RecordPriceSample(ctx context.Context, sample *model.PriceSample) error
}

// jobRuntime is what both pricing jobs share: clock, logger, cache and fan-out width.
type jobRuntime struct {
	now     func() time.Time
	logger  *logging.Logger
	cache   PriceCache
	workers int
}

type Option func(*jobRuntime)

func WithClock(now func() time.Time) Option {
	return func(r *jobRuntime) { r.now = now }
}

func WithLogger(logger *logging.Logger) Option {
	return func(r *jobRuntime) { r.logger = logger }
}

func WithPriceCache(cache PriceCache) Option {
	return func(r *jobRuntime) { r.cache = cache }
}

// WithWorkers bounds how many stocks are priced at once; <= 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(r *jobRuntime) { r.workers = n }
}

func newJobRuntime(name string, opts []Option) jobRuntime {
	r := jobRuntime{
		now:    time.Now,
		logger: logging.Wrap(zap.L()),
	}
	for _, opt := range opts {
		opt(&r)
	}
	if r.workers <= 0 {
		r.workers = runtime.GOMAXPROCS(0)
	}
	r.logger = r.logger.Named(name)
	return r
}

func (r *jobRuntime) refreshCache(ctx context.Context, stock *model.Stock) {
	if r.cache == nil {
		return
	}
	if err := r.cache.StorePrice(ctx, stock); err != nil {
		r.logger.Warn(ctx, "refresh price cache", zap.String("stock_id", stock.ID), zap.Error(err))
	}
}

// Report summarises one run of a pricing job.
type Report struct {
	StartedAt time.Time
	Stocks    int
	// Updated holds the persisted state of every stock the run changed.
	Updated   []*model.Stock
	Unchanged int
	Failed    int
}

type stockOutcome int

const (
	outcomeUnchanged stockOutcome = iota
	outcomeUpdated
	outcomeFailed
)

func newReport(startedAt time.Time, stocks []*model.Stock, outcomes []stockOutcome) *Report {
	report := &Report{StartedAt: startedAt, Stocks: len(stocks)}
	for i, o := range outcomes {
		switch o {
		case outcomeUpdated:
			report.Updated = append(report.Updated, stocks[i])
		case outcomeUnchanged:
			report.Unchanged++
		case outcomeFailed:
			report.Failed++
		}
	}
	return report
}

func (r *Report) Stock(id string) (*model.Stock, bool) {
	for _, s := range r.Updated {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

func priceField(key string, d decimal.Decimal) zap.Field {
	return zap.String(key, d.String())
}
