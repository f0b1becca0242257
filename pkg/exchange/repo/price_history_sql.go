package repo

import (
	"context"
	"time"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"gorm.io/gorm"
)

type PriceHistorySQLRepo struct {
	db *gorm.DB
}

func NewPriceHistorySQLRepo(db *gorm.DB) *PriceHistorySQLRepo {
	return &PriceHistorySQLRepo{
		db: db,
	}
}

func (s *PriceHistorySQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (r *PriceHistorySQLRepo) FetchPriceSampleBefore(ctx context.Context, stockID string, before time.Time) (*model.PriceSample, bool, error) {
	var samples []*model.PriceSample
	err := r.dbWithContext(ctx).
		Where("stock_id = ? AND sampled_at < ?", stockID, before).
		Order("sampled_at desc").
		Limit(1).
		Find(&samples).Error
	if err != nil || len(samples) == 0 {
		return nil, false, err
	}
	return samples[0], true, nil
}

func (r *PriceHistorySQLRepo) RecordPriceSample(ctx context.Context, sample *model.PriceSample) error {
	return r.dbWithContext(ctx).Create(sample).Error
}
