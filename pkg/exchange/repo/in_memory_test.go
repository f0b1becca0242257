package repo

import (
	"context"
	"testing"
	"time"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func testOrder(id, owner, stock string, side model.OrderSide, price, amount int64) *model.Order {
	return &model.Order{
		ID:              id,
		OwnerID:         owner,
		StockID:         stock,
		Side:            side,
		PriceType:       model.PriceTypeGreaterOrEqual,
		LimitPrice:      decimal.NewFromInt(price),
		TotalAmount:     amount,
		RemainingAmount: amount,
		CreatedAt:       baseTime,
		ExpiresAt:       baseTime.Add(24 * time.Hour),
	}
}

// storeSuite runs the same behavior checks against every IRepo implementation.
func storeSuite(t *testing.T, newRepo func(t *testing.T) IRepo) {
	ctx := context.Background()

	t.Run("active order filters", func(t *testing.T) {
		r := newRepo(t)
		expired := testOrder("B-expired", "U1", "S1", model.OrderSideBuying, 10, 5)
		expired.ExpiresAt = baseTime.Add(-time.Hour)
		for _, o := range []*model.Order{
			testOrder("B1", "U1", "S1", model.OrderSideBuying, 10, 5),
			expired,
			testOrder("A1", "U2", "S1", model.OrderSideSelling, 9, 5),
			testOrder("A2", "U2", "S1", model.OrderSideSelling, 11, 5),
			testOrder("A3", "U2", "S2", model.OrderSideSelling, 5, 5),
		} {
			_, err := r.Order().CreateOrder(ctx, o)
			require.NoError(t, err)
		}

		buys, err := r.Order().FetchActiveBuyOrders(ctx, baseTime)
		require.NoError(t, err)
		require.Len(t, buys, 1)
		assert.Equal(t, "B1", buys[0].ID)

		sells, err := r.Order().FetchActiveSellOrders(ctx, "S1", decimal.NewFromInt(10), baseTime)
		require.NoError(t, err)
		require.Len(t, sells, 1)
		assert.Equal(t, "A1", sells[0].ID)
	})

	t.Run("record trade fills and closes", func(t *testing.T) {
		r := newRepo(t)
		buy := testOrder("B1", "U1", "S1", model.OrderSideBuying, 10, 100)
		sell := testOrder("A1", "U2", "S1", model.OrderSideSelling, 10, 30)
		_, _ = r.Order().CreateOrder(ctx, buy)
		_, _ = r.Order().CreateOrder(ctx, sell)

		trade, err := r.Transaction().RecordTrade(ctx, buy, sell, 30, decimal.NewFromInt(10), baseTime)
		require.NoError(t, err)
		assert.Equal(t, "S1", trade.StockID)
		assert.Equal(t, int64(30), trade.Amount)

		storedBuy, err := r.Order().GetOrder(ctx, "B1")
		require.NoError(t, err)
		assert.Equal(t, int64(70), storedBuy.RemainingAmount)
		assert.Nil(t, storedBuy.ClosedAt)

		storedSell, err := r.Order().GetOrder(ctx, "A1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), storedSell.RemainingAmount)
		require.NotNil(t, storedSell.ClosedAt)
		assert.True(t, baseTime.Equal(*storedSell.ClosedAt))

		_, err = r.Transaction().RecordTrade(ctx, buy, sell, 1, decimal.NewFromInt(10), baseTime)
		assert.ErrorIs(t, err, ErrTradeConflict)

		storedBuy, _ = r.Order().GetOrder(ctx, "B1")
		assert.Equal(t, int64(70), storedBuy.RemainingAmount)
	})

	t.Run("recent trades bounded by units", func(t *testing.T) {
		r := newRepo(t)
		buy := testOrder("B1", "U1", "S1", model.OrderSideBuying, 10, 1000)
		sell := testOrder("A1", "U2", "S1", model.OrderSideSelling, 10, 1000)
		_, _ = r.Order().CreateOrder(ctx, buy)
		_, _ = r.Order().CreateOrder(ctx, sell)

		for i, amount := range []int64{40, 10, 20, 5} {
			_, err := r.Transaction().RecordTrade(ctx, buy, sell, amount, decimal.NewFromInt(10), baseTime.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
		}

		trades, err := r.Transaction().FetchRecentTradesForPricing(ctx, "S1", 35)
		require.NoError(t, err)
		var amounts []int64
		for _, tr := range trades {
			amounts = append(amounts, tr.Amount)
		}
		assert.Equal(t, []int64{5, 20, 10}, amounts)

		// the trade that crosses the bound still counts
		trades, err = r.Transaction().FetchRecentTradesForPricing(ctx, "S1", 30)
		require.NoError(t, err)
		require.Len(t, trades, 3)

		trades, err = r.Transaction().FetchRecentTradesForPricing(ctx, "S1", 3)
		require.NoError(t, err)
		require.Len(t, trades, 1)
		assert.Equal(t, int64(5), trades[0].Amount)

		trades, err = r.Transaction().FetchRecentTradesForPricing(ctx, "S1", 0)
		require.NoError(t, err)
		assert.Len(t, trades, 4)

		trades, err = r.Transaction().FetchRecentTradesForPricing(ctx, "S2", 100)
		require.NoError(t, err)
		assert.Empty(t, trades)
	})

	t.Run("stock persistence and price samples", func(t *testing.T) {
		r := newRepo(t)
		_, err := r.Stock().CreateStock(ctx, &model.Stock{ID: "S1", Symbol: "ACME", CurrentPrice: decimal.NewFromInt(10), OutstandingAmount: 1000})
		require.NoError(t, err)

		err = r.Stock().PersistStock(ctx, &model.Stock{ID: "S1", CurrentPrice: decimal.NewFromInt(12), PriceChangeRatio: 0.2, UpdatedAt: baseTime})
		require.NoError(t, err)

		stocks, err := r.Stock().FetchAllStocks(ctx)
		require.NoError(t, err)
		require.Len(t, stocks, 1)
		assert.True(t, decimal.NewFromInt(12).Equal(stocks[0].CurrentPrice))
		assert.InDelta(t, 0.2, stocks[0].PriceChangeRatio, 1e-12)
		assert.Equal(t, "ACME", stocks[0].Symbol)

		assert.ErrorIs(t, r.Stock().PersistStock(ctx, &model.Stock{ID: "missing"}), ErrNotFound)

		stock, err := r.Stock().GetStock(ctx, "S1")
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(12).Equal(stock.CurrentPrice))
		_, err = r.Stock().GetStock(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)

		// a ratio computed from an outdated price is rejected and leaves the row alone
		stale := &model.Stock{ID: "S1", CurrentPrice: decimal.NewFromInt(10), PriceChangeRatio: 0.5, UpdatedAt: baseTime.Add(time.Minute)}
		assert.ErrorIs(t, r.Stock().PersistPriceChangeRatio(ctx, stale), ErrStalePrice)
		stock, err = r.Stock().GetStock(ctx, "S1")
		require.NoError(t, err)
		assert.InDelta(t, 0.2, stock.PriceChangeRatio, 1e-12)

		fresh := &model.Stock{ID: "S1", CurrentPrice: decimal.NewFromInt(12), PriceChangeRatio: 0.5, UpdatedAt: baseTime.Add(time.Minute)}
		require.NoError(t, r.Stock().PersistPriceChangeRatio(ctx, fresh))
		stock, err = r.Stock().GetStock(ctx, "S1")
		require.NoError(t, err)
		assert.InDelta(t, 0.5, stock.PriceChangeRatio, 1e-12)
		assert.True(t, decimal.NewFromInt(12).Equal(stock.CurrentPrice))

		assert.ErrorIs(t, r.Stock().PersistPriceChangeRatio(ctx, &model.Stock{ID: "missing"}), ErrNotFound)

		for i, price := range []int64{8, 9, 11} {
			require.NoError(t, r.PriceHistory().RecordPriceSample(ctx, &model.PriceSample{
				StockID:   "S1",
				Price:     decimal.NewFromInt(price),
				SampledAt: baseTime.Add(time.Duration(i) * time.Minute),
			}))
		}

		sample, ok, err := r.PriceHistory().FetchPriceSampleBefore(ctx, "S1", baseTime.Add(90*time.Second))
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, decimal.NewFromInt(9).Equal(sample.Price))

		_, ok, err = r.PriceHistory().FetchPriceSampleBefore(ctx, "S1", baseTime)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestInMemoryStore(t *testing.T) {
	storeSuite(t, func(t *testing.T) IRepo {
		return NewInMemoryStore()
	})
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	_, _ = s.CreateOrder(ctx, testOrder("B1", "U1", "S1", model.OrderSideBuying, 10, 5))

	buys, _ := s.FetchActiveBuyOrders(ctx, baseTime)
	buys[0].RemainingAmount = 0

	stored, _ := s.GetOrder(ctx, "B1")
	assert.Equal(t, int64(5), stored.RemainingAmount)
}
