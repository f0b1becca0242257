package repo

import (
	"context"
	"time"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionSQLRepo struct {
	db *gorm.DB
}

func NewTransactionSQLRepo(db *gorm.DB) *TransactionSQLRepo {
	return &TransactionSQLRepo{
		db: db,
	}
}

func (s *TransactionSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (r *TransactionSQLRepo) RecordTrade(ctx context.Context, buy, sell *model.Order, amount int64, unitPrice decimal.Decimal, executedAt time.Time) (*model.Transaction, error) {
	record := model.NewTransaction(buy, sell, amount, unitPrice, executedAt)

	err := r.dbWithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, orderID := range []string{buy.ID, sell.ID} {
			if err := fillOrder(tx, orderID, amount, executedAt); err != nil {
				return err
			}
		}
		return tx.Create(record).Error
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// fillOrder decrements an open order guarded on its current remaining amount and
// stamps closed_at in the same statement when the fill empties it. The CASE reads the
// pre-update remaining amount; gorm emits closed_at first, which MySQL needs for that.
func fillOrder(tx *gorm.DB, orderID string, amount int64, executedAt time.Time) error {
	res := tx.Model(&model.Order{}).
		Where("id = ? AND closed_at IS NULL AND remaining_amount >= ?", orderID, amount).
		Updates(map[string]interface{}{
			"closed_at":        gorm.Expr("CASE WHEN remaining_amount = ? THEN ? ELSE closed_at END", amount, executedAt),
			"remaining_amount": gorm.Expr("remaining_amount - ?", amount),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTradeConflict
	}
	return nil
}

func (r *TransactionSQLRepo) FetchRecentTradesForPricing(ctx context.Context, stockID string, maxUnits int64) ([]*model.Transaction, error) {
	db := r.dbWithContext(ctx)
	rows, err := db.Model(&model.Transaction{}).
		Where("stock_id = ?", stockID).
		Order("executed_at desc").
		Order("id desc").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		trades []*model.Transaction
		units  int64
	)
	for rows.Next() {
		trade := &model.Transaction{}
		if err := db.ScanRows(rows, trade); err != nil {
			return nil, err
		}
		units += trade.Amount
		trades = append(trades, trade)
		if maxUnits > 0 && units >= maxUnits {
			break
		}
	}

	return trades, rows.Err()
}
