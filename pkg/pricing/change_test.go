package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"github.com/joripage/stock-exchange/pkg/exchange/repo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addSample(t *testing.T, store *repo.InMemoryStore, stockID string, price int64, at time.Time) {
	err := store.RecordPriceSample(context.Background(), &model.PriceSample{
		StockID:   stockID,
		Price:     decimal.NewFromInt(price),
		SampledAt: at,
	})
	require.NoError(t, err)
}

func TestUpdateRatiosAgainstSampleBeforeLookback(t *testing.T) {
	store := repo.NewInMemoryStore()
	addStock(t, store, "S1", 110, 100)
	addSample(t, store, "S1", 100, now.Add(-20*time.Minute))
	addSample(t, store, "S1", 105, now.Add(-5*time.Minute))

	job, err := NewChangeJob(15*time.Minute, store, store, testOptions(t)...)
	require.NoError(t, err)

	report, err := job.UpdateRatios(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Updated, 1)

	s := storedStock(t, store, "S1")
	assert.InDelta(t, 0.1, s.PriceChangeRatio, 1e-12)
	assert.Equal(t, "110", s.CurrentPrice.String())
}

func TestUpdateRatiosWithoutUsableSample(t *testing.T) {
	store := repo.NewInMemoryStore()
	addStock(t, store, "S1", 110, 100)
	addStock(t, store, "S2", 110, 100)
	addSample(t, store, "S1", 100, now.Add(-time.Minute))
	addSample(t, store, "S2", 0, now.Add(-time.Hour))

	job, err := NewChangeJob(15*time.Minute, store, store, testOptions(t)...)
	require.NoError(t, err)

	report, err := job.UpdateRatios(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Updated)
	assert.Equal(t, 2, report.Unchanged)
	assert.Zero(t, storedStock(t, store, "S1").PriceChangeRatio)
	assert.Zero(t, storedStock(t, store, "S2").PriceChangeRatio)
}

func TestNewChangeJobRejectsLookback(t *testing.T) {
	store := repo.NewInMemoryStore()
	_, err := NewChangeJob(0, store, store)
	assert.ErrorIs(t, err, errInvalidLookback)
}

// fixAfterRead lets the fixing job move prices right after the change job has read the stocks.
type fixAfterRead struct {
	*repo.InMemoryStore
	fix func()
}

func (f *fixAfterRead) FetchAllStocks(ctx context.Context) ([]*model.Stock, error) {
	stocks, err := f.InMemoryStore.FetchAllStocks(ctx)
	if f.fix != nil {
		f.fix()
		f.fix = nil
	}
	return stocks, err
}

func TestUpdateRatiosKeepsPriceFixedMeanwhile(t *testing.T) {
	store := repo.NewInMemoryStore()
	addStock(t, store, "S1", 100, 1000)
	addSample(t, store, "S1", 50, now.Add(-time.Hour))

	stocks := &fixAfterRead{InMemoryStore: store, fix: func() {
		addTrades(t, store, "S1", 9, 40)
		fixing := NewFixingJob(TradeAmountMean, store, store, store, testOptions(t)...)
		_, err := fixing.FixPrices(context.Background())
		require.NoError(t, err)
	}}

	job, err := NewChangeJob(15*time.Minute, stocks, store, testOptions(t)...)
	require.NoError(t, err)

	report, err := job.UpdateRatios(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Updated, 1)

	s := storedStock(t, store, "S1")
	assert.Equal(t, "40", s.CurrentPrice.String())
	assert.InDelta(t, -0.2, s.PriceChangeRatio, 1e-12)
}

// movingPrice reports the stored price as changed on every ratio write.
type movingPrice struct {
	*repo.InMemoryStore
	writes int
}

func (m *movingPrice) PersistPriceChangeRatio(context.Context, *model.Stock) error {
	m.writes++
	return repo.ErrStalePrice
}

func TestUpdateRatiosGivesUpOnChurningPrice(t *testing.T) {
	store := repo.NewInMemoryStore()
	addStock(t, store, "S1", 100, 1000)
	addSample(t, store, "S1", 50, now.Add(-time.Hour))

	stocks := &movingPrice{InMemoryStore: store}
	job, err := NewChangeJob(15*time.Minute, stocks, store, testOptions(t)...)
	require.NoError(t, err)

	report, err := job.UpdateRatios(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, maxRatioAttempts, stocks.writes)
	assert.Zero(t, storedStock(t, store, "S1").PriceChangeRatio)
}

type missingStock struct{ *repo.InMemoryStore }

func (missingStock) PersistPriceChangeRatio(context.Context, *model.Stock) error {
	return repo.ErrNotFound
}

func TestUpdateRatiosMissingStockFails(t *testing.T) {
	store := repo.NewInMemoryStore()
	addStock(t, store, "S1", 100, 1000)
	addSample(t, store, "S1", 50, now.Add(-time.Hour))

	job, err := NewChangeJob(15*time.Minute, missingStock{store}, store, testOptions(t)...)
	require.NoError(t, err)

	report, err := job.UpdateRatios(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, report.Updated)
}
