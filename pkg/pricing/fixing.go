package pricing

import (
	"context"
	"fmt"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const FixingJobName = "price_fixing"

// FixingJob recomputes every stock's reference price from its most recent trades.
type FixingJob struct {
	jobRuntime

	stocks  StockStore
	trades  TradeSource
	history PriceHistory
	formula Formula
}

func NewFixingJob(formula Formula, stocks StockStore, trades TradeSource, history PriceHistory, opts ...Option) *FixingJob {
	if formula == "" {
		formula = TradeAmountMean
	}
	return &FixingJob{
		jobRuntime: newJobRuntime(FixingJobName, opts),
		stocks:     stocks,
		trades:     trades,
		history:    history,
		formula:    formula,
	}
}

func (j *FixingJob) Name() string {
	return FixingJobName
}

func (j *FixingJob) Run(ctx context.Context) error {
	report, err := j.FixPrices(ctx)
	if err != nil {
		return err
	}
	j.logger.Info(ctx, "price fixing finished",
		zap.Int("stocks", report.Stocks),
		zap.Int("updated", len(report.Updated)),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("failed", report.Failed),
	)
	return nil
}

// FixPrices prices every stock independently; a stock that fails is logged and counted,
// never propagated.
func (j *FixingJob) FixPrices(ctx context.Context) (*Report, error) {
	startedAt := j.now()

	stocks, err := j.stocks.FetchAllStocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stocks: %w", err)
	}

	outcomes := make([]stockOutcome, len(stocks))
	g := new(errgroup.Group)
	g.SetLimit(j.workers)
	for i, stock := range stocks {
		i, stock := i, stock
		g.Go(func() error {
			updated, err := j.fixStock(ctx, stock)
			switch {
			case err != nil:
				j.logger.Error(ctx, "fix stock price", zap.String("stock_id", stock.ID), zap.Error(err))
				outcomes[i] = outcomeFailed
			case updated:
				outcomes[i] = outcomeUpdated
			}
			return nil
		})
	}
	_ = g.Wait()

	return newReport(startedAt, stocks, outcomes), nil
}

func (j *FixingJob) fixStock(ctx context.Context, stock *model.Stock) (bool, error) {
	trades, err := j.trades.FetchRecentTradesForPricing(ctx, stock.ID, stock.OutstandingAmount)
	if err != nil {
		return false, fmt.Errorf("fetch recent trades: %w", err)
	}
	if len(trades) == 0 {
		return false, nil
	}

	price, err := j.formula.Price(trades)
	if err != nil {
		return false, err
	}

	oldPrice := stock.CurrentPrice
	now := j.now()
	stock.CurrentPrice = price
	stock.PriceChangeRatio = ChangeRatio(price, oldPrice)
	stock.UpdatedAt = now

	if err := j.stocks.PersistStock(ctx, stock); err != nil {
		return false, fmt.Errorf("persist stock: %w", err)
	}

	if !price.Equal(oldPrice) {
		sample := &model.PriceSample{StockID: stock.ID, Price: price, SampledAt: now}
		if err := j.history.RecordPriceSample(ctx, sample); err != nil {
			j.logger.Warn(ctx, "record price sample", zap.String("stock_id", stock.ID), zap.Error(err))
		}
	}
	j.refreshCache(ctx, stock)

	j.logger.Debug(ctx, "stock price fixed",
		zap.String("stock_id", stock.ID),
		priceField("old_price", oldPrice),
		priceField("new_price", price),
		zap.Int("trades", len(trades)),
	)
	return true, nil
}
