package events

import (
	"context"
	"time"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"github.com/shopspring/decimal"
)

// Publisher fans executed trades out to downstream consumers. Trades of one stock are
// passed in execution order.
type Publisher interface {
	PublishTrades(ctx context.Context, trades []*model.Transaction) error
	Close() error
}

// TradeEvent is the wire shape of an executed trade.
type TradeEvent struct {
	TransactionID string          `json:"transaction_id"`
	StockID       string          `json:"stock_id"`
	BuyOrderID    string          `json:"buy_order_id"`
	SellOrderID   string          `json:"sell_order_id"`
	Amount        int64           `json:"amount"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	ExecutedAt    time.Time       `json:"executed_at"`
}

func NewTradeEvent(t *model.Transaction) TradeEvent {
	return TradeEvent{
		TransactionID: t.ID,
		StockID:       t.StockID,
		BuyOrderID:    t.BuyOrderID,
		SellOrderID:   t.SellOrderID,
		Amount:        t.Amount,
		UnitPrice:     t.UnitPrice,
		ExecutedAt:    t.Timestamp,
	}
}

type noop struct{}

func NewNoop() Publisher { return noop{} }

func (noop) PublishTrades(context.Context, []*model.Transaction) error { return nil }
func (noop) Close() error                                            { return nil }
