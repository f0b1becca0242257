package events

import (
	"context"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	kafkawrapper "github.com/joripage/stock-exchange/pkg/kafka_wrapper"
)

const eventTypeHeader = "event_type"

type tradeProducer interface {
	PublishJSONBatch(ctx context.Context, topic string, records []kafkawrapper.JSONRecord, headers map[string]string) error
	Close() error
}

// KafkaPublisher writes one JSON message per trade, keyed by stock so a stock's trades
// stay ordered within a partition. A call's trades go out as one batch.
type KafkaPublisher struct {
	producer tradeProducer
	topic    string
}

func NewKafkaPublisher(producer *kafkawrapper.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishTrades(ctx context.Context, trades []*model.Transaction) error {
	records := make([]kafkawrapper.JSONRecord, 0, len(trades))
	for _, t := range trades {
		records = append(records, kafkawrapper.JSONRecord{Key: t.StockID, Value: NewTradeEvent(t)})
	}
	return p.producer.PublishJSONBatch(ctx, p.topic, records, map[string]string{
		eventTypeHeader: "trade",
	})
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
