package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuying  OrderSide = "BUYING"
	OrderSideSelling OrderSide = "SELLING"
)

// PriceType is the policy an order uses to accept a counter-party price.
type PriceType string

const (
	PriceTypeEqual          PriceType = "EQUAL"
	PriceTypeGreaterOrEqual PriceType = "GREATER_OR_EQUAL"
	PriceTypeLessOrEqual    PriceType = "LESS_OR_EQUAL"
)

type Order struct {
	ID      string `gorm:"column:id;type:varchar(36);primaryKey"`
	OwnerID string `gorm:"column:owner_id;type:varchar(36);not null;index"`
	StockID string `gorm:"column:stock_id;type:varchar(36);not null;index:idx_orders_active"`

	Side       OrderSide       `gorm:"column:side;type:varchar(16);not null;index:idx_orders_active"`
	PriceType  PriceType       `gorm:"column:price_type;type:varchar(32);not null"`
	LimitPrice decimal.Decimal `gorm:"column:limit_price;type:numeric(20,4);not null"`

	TotalAmount     int64 `gorm:"column:total_amount;not null"`
	RemainingAmount int64 `gorm:"column:remaining_amount;not null"`

	CreatedAt time.Time  `gorm:"column:created_at"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null"`
	ClosedAt  *time.Time `gorm:"column:closed_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) IsClosed() bool {
	return o.ClosedAt != nil
}

// IsActive reports whether the order can still be matched at now.
func (o *Order) IsActive(now time.Time) bool {
	return o.RemainingAmount > 0 && o.ClosedAt == nil && now.Before(o.ExpiresAt)
}

// Validate checks the references and amount invariants the matching engine relies on.
func (o *Order) Validate() error {
	switch {
	case o.ID == "":
		return errMissingOrderID
	case o.OwnerID == "":
		return errMissingOwner
	case o.StockID == "":
		return errMissingStock
	case o.Side != OrderSideBuying && o.Side != OrderSideSelling:
		return errInvalidSide
	case o.PriceType != PriceTypeEqual && o.PriceType != PriceTypeGreaterOrEqual && o.PriceType != PriceTypeLessOrEqual:
		return errInvalidPriceType
	case !o.LimitPrice.IsPositive():
		return errInvalidLimitPrice
	case o.RemainingAmount < 0 || o.RemainingAmount > o.TotalAmount:
		return errInvalidAmount
	}
	return nil
}

// Fill applies a traded amount to the order, closing it at ts once nothing remains.
func (o *Order) Fill(amount int64, ts time.Time) {
	o.RemainingAmount -= amount
	if o.RemainingAmount == 0 && o.ClosedAt == nil {
		closedAt := ts
		o.ClosedAt = &closedAt
	}
}

func (o *Order) Clone() *Order {
	c := *o
	if o.ClosedAt != nil {
		closedAt := *o.ClosedAt
		c.ClosedAt = &closedAt
	}
	return &c
}
