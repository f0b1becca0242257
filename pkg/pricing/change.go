package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"github.com/joripage/stock-exchange/pkg/exchange/repo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const ChangeJobName = "price_change"

// maxRatioAttempts bounds how often a ratio is recomputed when the fixing job moves the
// price underneath it.
const maxRatioAttempts = 3

// ChangeJob measures how far each stock's price moved since lookback ago.
type ChangeJob struct {
	jobRuntime

	stocks   StockStore
	history  PriceHistory
	lookback time.Duration
}

func NewChangeJob(lookback time.Duration, stocks StockStore, history PriceHistory, opts ...Option) (*ChangeJob, error) {
	if lookback <= 0 {
		return nil, errInvalidLookback
	}
	return &ChangeJob{
		jobRuntime: newJobRuntime(ChangeJobName, opts),
		stocks:     stocks,
		history:    history,
		lookback:   lookback,
	}, nil
}

func (j *ChangeJob) Name() string {
	return ChangeJobName
}

func (j *ChangeJob) Run(ctx context.Context) error {
	report, err := j.UpdateRatios(ctx)
	if err != nil {
		return err
	}
	j.logger.Info(ctx, "price change finished",
		zap.Int("stocks", report.Stocks),
		zap.Int("updated", len(report.Updated)),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("failed", report.Failed),
		zap.Duration("lookback", j.lookback),
	)
	return nil
}

func (j *ChangeJob) UpdateRatios(ctx context.Context) (*Report, error) {
	startedAt := j.now()

	stocks, err := j.stocks.FetchAllStocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stocks: %w", err)
	}

	since := startedAt.Add(-j.lookback)
	outcomes := make([]stockOutcome, len(stocks))
	g := new(errgroup.Group)
	g.SetLimit(j.workers)
	for i, stock := range stocks {
		i, stock := i, stock
		g.Go(func() error {
			updated, err := j.updateStock(ctx, stock, since)
			switch {
			case err != nil:
				j.logger.Error(ctx, "update price change ratio", zap.String("stock_id", stock.ID), zap.Error(err))
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

func (j *ChangeJob) updateStock(ctx context.Context, stock *model.Stock, since time.Time) (bool, error) {
	sample, found, err := j.history.FetchPriceSampleBefore(ctx, stock.ID, since)
	if err != nil {
		return false, fmt.Errorf("fetch price sample: %w", err)
	}
	if !found || sample.Price.LessThanOrEqual(Epsilon) {
		return false, nil
	}

	for attempt := 1; ; attempt++ {
		stock.PriceChangeRatio = ChangeRatio(stock.CurrentPrice, sample.Price)
		stock.UpdatedAt = j.now()
		err = j.stocks.PersistPriceChangeRatio(ctx, stock)
		if err == nil {
			break
		}
		if !errors.Is(err, repo.ErrStalePrice) || attempt == maxRatioAttempts {
			return false, fmt.Errorf("persist price change ratio: %w", err)
		}

		fresh, err := j.stocks.GetStock(ctx, stock.ID)
		if err != nil {
			return false, fmt.Errorf("reload stock: %w", err)
		}
		*stock = *fresh
	}
	j.refreshCache(ctx, stock)
	return true, nil
}
