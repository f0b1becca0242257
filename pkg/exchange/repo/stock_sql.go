package repo

import (
	"context"
	"errors"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"gorm.io/gorm"
)

type StockSQLRepo struct {
	db *gorm.DB
}

func NewStockSQLRepo(db *gorm.DB) *StockSQLRepo {
	return &StockSQLRepo{
		db: db,
	}
}

func (s *StockSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (r *StockSQLRepo) CreateStock(ctx context.Context, record *model.Stock) (*model.Stock, error) {
	return record, r.dbWithContext(ctx).Create(record).Error
}

func (r *StockSQLRepo) GetStock(ctx context.Context, id string) (*model.Stock, error) {
	stock := &model.Stock{}
	err := r.dbWithContext(ctx).Where("id = ?", id).Take(stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return stock, err
}

func (r *StockSQLRepo) FetchAllStocks(ctx context.Context) ([]*model.Stock, error) {
	var stocks []*model.Stock
	err := r.dbWithContext(ctx).Order("id").Find(&stocks).Error
	return stocks, err
}

// PersistStock writes only the price columns owned by the pricing jobs.
func (r *StockSQLRepo) PersistStock(ctx context.Context, stock *model.Stock) error {
	res := r.dbWithContext(ctx).
		Model(stock).
		Select("current_price", "price_change_ratio", "updated_at").
		Updates(stock)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *StockSQLRepo) PersistPriceChangeRatio(ctx context.Context, stock *model.Stock) error {
	res := r.dbWithContext(ctx).
		Model(&model.Stock{}).
		Where("id = ? AND current_price = ?", stock.ID, stock.CurrentPrice).
		Updates(map[string]interface{}{
			"price_change_ratio": stock.PriceChangeRatio,
			"updated_at":         stock.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// mysql reports zero rows when the values were already in place
	stored, err := r.GetStock(ctx, stock.ID)
	if err != nil {
		return err
	}
	if !stored.CurrentPrice.Equal(stock.CurrentPrice) {
		return ErrStalePrice
	}
	return nil
}
