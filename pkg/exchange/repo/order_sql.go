package repo

import (
	"context"
	"errors"
	"time"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderSQLRepo struct {
	db *gorm.DB
}

func NewOrderSQLRepo(db *gorm.DB) *OrderSQLRepo {
	return &OrderSQLRepo{
		db: db,
	}
}

func (s *OrderSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (r *OrderSQLRepo) CreateOrder(ctx context.Context, record *model.Order) (*model.Order, error) {
	return record, r.dbWithContext(ctx).Create(record).Error
}

func (r *OrderSQLRepo) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	order := &model.Order{}
	err := r.dbWithContext(ctx).Where("id = ?", id).First(order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return order, err
}

func (r *OrderSQLRepo) active(ctx context.Context, side model.OrderSide, now time.Time) *gorm.DB {
	return r.dbWithContext(ctx).
		Where("side = ?", side).
		Where("remaining_amount > 0 AND closed_at IS NULL AND expires_at > ?", now).
		Order("created_at").
		Order("id")
}

func (r *OrderSQLRepo) FetchActiveBuyOrders(ctx context.Context, now time.Time) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.active(ctx, model.OrderSideBuying, now).Find(&orders).Error
	return orders, err
}

func (r *OrderSQLRepo) FetchActiveSellOrders(ctx context.Context, stockID string, maxPrice decimal.Decimal, now time.Time) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.active(ctx, model.OrderSideSelling, now).
		Where("stock_id = ? AND limit_price <= ?", stockID, maxPrice).
		Find(&orders).Error
	return orders, err
}
