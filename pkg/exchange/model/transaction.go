package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction records one crossing of a buy and a sell order. Never updated after creation.
type Transaction struct {
	ID          string          `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	StockID     string          `gorm:"column:stock_id;type:varchar(36);not null;index:idx_transactions_stock_time" json:"stock_id"`
	BuyOrderID  string          `gorm:"column:buy_order_id;type:varchar(36);not null" json:"buy_order_id"`
	SellOrderID string          `gorm:"column:sell_order_id;type:varchar(36);not null" json:"sell_order_id"`
	Amount      int64           `gorm:"column:amount;not null" json:"amount"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(20,4);not null" json:"unit_price"`
	Timestamp   time.Time       `gorm:"column:executed_at;not null;index:idx_transactions_stock_time" json:"timestamp"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func NewTransaction(buy, sell *Order, amount int64, unitPrice decimal.Decimal, ts time.Time) *Transaction {
	return &Transaction{
		ID:          uuid.NewString(),
		StockID:     buy.StockID,
		BuyOrderID:  buy.ID,
		SellOrderID: sell.ID,
		Amount:      amount,
		UnitPrice:   unitPrice,
		Timestamp:   ts,
	}
}
