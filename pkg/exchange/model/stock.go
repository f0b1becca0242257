package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock is a traded instrument. CurrentPrice is written only by the price fixing job.
type Stock struct {
	ID                string          `gorm:"column:id;type:varchar(36);primaryKey"`
	Symbol            string          `gorm:"column:symbol;type:varchar(16);uniqueIndex;not null"`
	Name              string          `gorm:"column:name;type:varchar(128)"`
	CurrentPrice      decimal.Decimal `gorm:"column:current_price;type:numeric(20,4);not null"`
	PriceChangeRatio  float64         `gorm:"column:price_change_ratio;not null;default:0"`
	OutstandingAmount int64           `gorm:"column:outstanding_amount;not null"`
	UpdatedAt         time.Time       `gorm:"column:updated_at"`
}

func (Stock) TableName() string {
	return "stocks"
}

// PriceSample is a historical reference price of a stock.
type PriceSample struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	StockID   string          `gorm:"column:stock_id;type:varchar(36);not null;index:idx_price_history_stock_time"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(20,4);not null"`
	SampledAt time.Time       `gorm:"column:sampled_at;not null;index:idx_price_history_stock_time"`
}

func (PriceSample) TableName() string {
	return "stock_price_history"
}
