package pricing

import (
	"fmt"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"github.com/shopspring/decimal"
)

// pricePrecision matches the numeric(20,4) price columns.
const pricePrecision = 4

// Epsilon is the old price at or below which a change ratio is reported as 0.
var Epsilon = decimal.New(1, -9)

// Formula turns a window of recent trades into a reference price.
type Formula string

const (
	// TradeAmountMean is the arithmetic mean of the traded amounts.
	TradeAmountMean Formula = "trade_amount_mean"
	// VolumeWeightedPrice is sum(amount*unitPrice) / sum(amount).
	VolumeWeightedPrice Formula = "volume_weighted_price"
)

func ParseFormula(s string) (Formula, error) {
	switch Formula(s) {
	case "", TradeAmountMean:
		return TradeAmountMean, nil
	case VolumeWeightedPrice:
		return VolumeWeightedPrice, nil
	}
	return "", fmt.Errorf("%w: %q", errUnknownFormula, s)
}

func (f Formula) Price(trades []*model.Transaction) (decimal.Decimal, error) {
	if len(trades) == 0 {
		return decimal.Zero, errNoTrades
	}

	var units int64
	notional := decimal.Zero
	for _, t := range trades {
		units += t.Amount
		notional = notional.Add(t.UnitPrice.Mul(decimal.NewFromInt(t.Amount)))
	}

	switch f {
	case TradeAmountMean:
		return decimal.NewFromInt(units).DivRound(decimal.NewFromInt(int64(len(trades))), pricePrecision), nil
	case VolumeWeightedPrice:
		if units == 0 {
			return decimal.Zero, errNoTrades
		}
		return notional.DivRound(decimal.NewFromInt(units), pricePrecision), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %q", errUnknownFormula, string(f))
}

// ChangeRatio is (current - base) / base, or 0 when base is negligible.
func ChangeRatio(current, base decimal.Decimal) float64 {
	if base.LessThanOrEqual(Epsilon) {
		return 0
	}
	return current.Sub(base).Div(base).InexactFloat64()
}
