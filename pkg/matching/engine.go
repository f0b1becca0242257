package matching

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"github.com/joripage/stock-exchange/pkg/logging"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const JobName = "matching"

type OrderSource interface {
	FetchActiveBuyOrders(ctx context.Context, now time.Time) ([]*model.Order, error)
	FetchActiveSellOrders(ctx context.Context, stockID string, maxPrice decimal.Decimal, now time.Time) ([]*model.Order, error)
}

type TradeSink interface {
	RecordTrade(ctx context.Context, buy, sell *model.Order, amount int64, unitPrice decimal.Decimal, executedAt time.Time) (*model.Transaction, error)
}

// TradeListener is handed every persisted trade of a run once all stocks are matched.
type TradeListener interface {
	PublishTrades(ctx context.Context, trades []*model.Transaction) error
}

const defaultPublishTimeout = 5 * time.Second

type Config struct {
	// Workers bounds how many stocks are matched at once; <= 0 means GOMAXPROCS.
	Workers     int
	BuyOrdering BuyOrdering
	// PublishTimeout bounds the hand-off to the TradeListener; <= 0 means 5s.
	PublishTimeout time.Duration
}

type Engine struct {
	orders   OrderSource
	sink     TradeSink
	listener TradeListener

	workers        int
	ordering       BuyOrdering
	publishTimeout time.Duration
	now            func() time.Time
	logger   *logging.Logger
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger *logging.Logger) Option {
	return func(e *Engine) { e.logger = logger.Named(JobName) }
}

func WithTradeListener(listener TradeListener) Option {
	return func(e *Engine) { e.listener = listener }
}

func NewEngine(cfg *Config, orders OrderSource, sink TradeSink, opts ...Option) *Engine {
	e := &Engine{
		orders:   orders,
		sink:     sink,
		workers:        cfg.Workers,
		ordering:       cfg.BuyOrdering,
		publishTimeout: cfg.PublishTimeout,
		now:            time.Now,
		logger:         logging.Wrap(zap.L()).Named(JobName),
	}
	if e.publishTimeout <= 0 {
		e.publishTimeout = defaultPublishTimeout
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	if e.ordering == "" {
		e.ordering = AscendingLimitPrice
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string {
	return JobName
}

// Run performs one scheduled matching tick.
func (e *Engine) Run(ctx context.Context) error {
	report, err := e.MatchRun(ctx)
	if err != nil {
		return err
	}

	e.logger.Info(ctx, "matching run finished",
		zap.Int("stocks", report.Stocks),
		zap.Int("trades", len(report.Trades)),
		zap.Int64("traded_amount", report.TradedAmount()),
		zap.Int("withdrawn", report.Withdrawn),
		zap.Int("failed_trades", report.FailedTrades),
		zap.Int("failed_stocks", report.FailedStocks),
		zap.Int("skipped_orders", report.SkippedOrders),
		zap.Duration("took", e.now().Sub(report.StartedAt)),
	)
	return nil
}

// MatchRun matches every eligible active order once. Only a failure to load the buy side
// aborts the run; everything else is contained to a single trade or stock.
func (e *Engine) MatchRun(ctx context.Context) (*RunReport, error) {
	startedAt := e.now()

	buys, err := e.orders.FetchActiveBuyOrders(ctx, startedAt)
	if err != nil {
		return nil, fmt.Errorf("fetch active buy orders: %w", err)
	}

	partitions, skipped := e.partition(ctx, buys)

	results := make([]*stockResult, len(partitions))
	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for i, p := range partitions {
		i, p := i, p
		g.Go(func() error {
			results[i] = e.matchStock(ctx, p, startedAt)
			return nil
		})
	}
	_ = g.Wait()

	report := newRunReport(startedAt, results)
	report.SkippedOrders += skipped
	e.publish(ctx, report.Trades)
	return report, nil
}

type partition struct {
	stockID string
	buys    []*model.Order
}

// maxBuyPrice is the highest limit among the partition's buy orders.
func (p *partition) maxBuyPrice() decimal.Decimal {
	maxPrice := p.buys[0].LimitPrice
	for _, b := range p.buys[1:] {
		if b.LimitPrice.GreaterThan(maxPrice) {
			maxPrice = b.LimitPrice
		}
	}
	return maxPrice
}

// partition groups valid buy orders by stock and sorts each group by the buy ordering.
func (e *Engine) partition(ctx context.Context, buys []*model.Order) ([]*partition, int) {
	byStock := make(map[string]*partition)
	skipped := 0
	for _, b := range buys {
		if err := b.Validate(); err != nil || b.Side != model.OrderSideBuying {
			e.logger.Warn(ctx, "skip inconsistent buy order", zap.String("order_id", b.ID), zap.Error(err))
			skipped++
			continue
		}
		p, ok := byStock[b.StockID]
		if !ok {
			p = &partition{stockID: b.StockID}
			byStock[b.StockID] = p
		}
		p.buys = append(p.buys, b)
	}

	partitions := make([]*partition, 0, len(byStock))
	for _, p := range byStock {
		sort.SliceStable(p.buys, func(i, j int) bool {
			return e.ordering.Less(p.buys[i], p.buys[j])
		})
		partitions = append(partitions, p)
	}
	sort.Slice(partitions, func(i, j int) bool {
		return partitions[i].stockID < partitions[j].stockID
	})
	return partitions, skipped
}

// matchStock runs the sequential matching loop of one stock. It owns every order in p
// and in the fetched sell list, so nothing here is shared with other stocks.
func (e *Engine) matchStock(ctx context.Context, p *partition, now time.Time) *stockResult {
	res := newStockResult(p.stockID)
	logger := e.logger

	fetched, err := e.orders.FetchActiveSellOrders(ctx, p.stockID, p.maxBuyPrice(), now)
	if err != nil {
		logger.Error(ctx, "fetch active sell orders", zap.String("stock_id", p.stockID), zap.Error(err))
		res.failed = true
		return res
	}

	sells := make([]*model.Order, 0, len(fetched))
	for _, s := range fetched {
		err := s.Validate()
		if err == nil && s.StockID != p.stockID {
			err = errForeignOrder
		}
		if err != nil || s.Side != model.OrderSideSelling {
			logger.Warn(ctx, "skip inconsistent sell order", zap.String("order_id", s.ID), zap.Error(err))
			res.skipped++
			continue
		}
		sells = append(sells, s)
	}

	buyQueue, sellQueue := newOrderQueue(p.buys), newOrderQueue(sells)
	for buyQueue.Len() > 0 && sellQueue.Len() > 0 {
		buy, sell := buyQueue.Front(), sellQueue.Front()

		if !Crosses(buy, sell) {
			buyQueue.Drop()
			res.withdrawn++
			continue
		}

		amount := min(buy.RemainingAmount, sell.RemainingAmount)
		price := TradePrice(buy, sell)
		executedAt := e.now()

		trade, err := e.sink.RecordTrade(ctx, buy, sell, amount, price, executedAt)
		if err != nil {
			logger.Warn(ctx, "record trade failed, pair dropped for this run",
				zap.String("stock_id", p.stockID),
				zap.String("buy_order_id", buy.ID),
				zap.String("sell_order_id", sell.ID),
				zap.Int64("amount", amount),
				zap.Error(err),
			)
			buyQueue.Drop()
			res.failedTrades++
			continue
		}

		buy.Fill(amount, executedAt)
		sell.Fill(amount, executedAt)
		res.record(trade, buy, sell)

		if buy.IsClosed() {
			buyQueue.Drop()
		}
		if sell.IsClosed() {
			sellQueue.Drop()
		}
	}

	return res
}

// publish hands the run's trades to the listener in one call. The trades are already
// persisted, so a slow or failing listener only costs the events.
func (e *Engine) publish(ctx context.Context, trades []*model.Transaction) {
	if e.listener == nil || len(trades) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.publishTimeout)
	defer cancel()
	if err := e.listener.PublishTrades(ctx, trades); err != nil {
		e.logger.Warn(ctx, "publish trades", zap.Int("trades", len(trades)), zap.Error(err))
	}
}
