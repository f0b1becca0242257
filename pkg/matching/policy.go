package matching

import (
	"fmt"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"github.com/shopspring/decimal"
)

// Crosses reports whether buy and sell may trade with each other.
func Crosses(buy, sell *model.Order) bool {
	if buy.StockID != sell.StockID {
		return false
	}
	if buy.OwnerID == sell.OwnerID {
		return false
	}
	if buy.LimitPrice.LessThan(sell.LimitPrice) {
		return false
	}
	if buy.PriceType == model.PriceTypeEqual && sell.PriceType == model.PriceTypeEqual {
		return buy.LimitPrice.Equal(sell.LimitPrice)
	}
	return true
}

// TradePrice is the seller's limit when the buyer insists on an exact price,
// otherwise the buyer's limit.
func TradePrice(buy, sell *model.Order) decimal.Decimal {
	if buy.PriceType == model.PriceTypeEqual {
		return sell.LimitPrice
	}
	return buy.LimitPrice
}

// BuyOrdering decides which buy order of a stock is evaluated first.
type BuyOrdering string

const (
	// AscendingLimitPrice evaluates the cheapest buyer first.
	AscendingLimitPrice BuyOrdering = "ascending_limit_price"
	// DescendingLimitPrice is conventional price priority: highest bid first.
	DescendingLimitPrice BuyOrdering = "descending_limit_price"
)

func ParseBuyOrdering(s string) (BuyOrdering, error) {
	switch BuyOrdering(s) {
	case "", AscendingLimitPrice:
		return AscendingLimitPrice, nil
	case DescendingLimitPrice:
		return DescendingLimitPrice, nil
	}
	return "", fmt.Errorf("%w: %q", errUnknownOrdering, s)
}

// Less orders two buy orders; ties keep their fetch order.
func (o BuyOrdering) Less(a, b *model.Order) bool {
	if o == DescendingLimitPrice {
		return a.LimitPrice.GreaterThan(b.LimitPrice)
	}
	return a.LimitPrice.LessThan(b.LimitPrice)
}
