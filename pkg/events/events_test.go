package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	kafkawrapper "github.com/joripage/stock-exchange/pkg/kafka_wrapper"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTrade = &model.Transaction{
	ID:          "T1",
	StockID:     "S1",
	BuyOrderID:  "B1",
	SellOrderID: "A1",
	Amount:      30,
	UnitPrice:   decimal.RequireFromString("12.5"),
	Timestamp:   time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
}

type sentMessage struct {
	topic   string
	key     string
	value   any
	headers map[string]string
}

type fakeProducer struct {
	sent    []sentMessage
	batches int
	closed  bool
}

func (p *fakeProducer) PublishJSONBatch(_ context.Context, topic string, records []kafkawrapper.JSONRecord, headers map[string]string) error {
	p.batches++
	for _, r := range records {
		p.sent = append(p.sent, sentMessage{topic: topic, key: r.Key, value: r.Value, headers: headers})
	}
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

func TestKafkaPublisher(t *testing.T) {
	producer := &fakeProducer{}
	pub := &KafkaPublisher{producer: producer, topic: "exchange.trades"}

	second := *testTrade
	second.ID, second.StockID = "T2", "S2"
	require.NoError(t, pub.PublishTrades(context.Background(), []*model.Transaction{testTrade, &second}))
	assert.Equal(t, 1, producer.batches)
	require.Len(t, producer.sent, 2)
	assert.Equal(t, "S2", producer.sent[1].key)

	msg := producer.sent[0]
	assert.Equal(t, "exchange.trades", msg.topic)
	assert.Equal(t, "S1", msg.key)
	assert.Equal(t, "trade", msg.headers[eventTypeHeader])
	assert.Equal(t, NewTradeEvent(testTrade), msg.value)

	require.NoError(t, pub.Close())
	assert.True(t, producer.closed)
}

type fakeJetStream struct {
	subject string
	data    []byte
	opts    int
	err     error
}

func (js *fakeJetStream) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	if js.err != nil {
		return nil, js.err
	}
	js.subject, js.data, js.opts = subj, data, len(opts)
	return &nats.PubAck{Stream: "EXCHANGE_TRADES", Sequence: 1}, nil
}

func TestNatsPublisher(t *testing.T) {
	js := &fakeJetStream{}
	pub := &NatsPublisher{js: js, prefix: "exchange.trades"}

	require.NoError(t, pub.PublishTrades(context.Background(), []*model.Transaction{testTrade}))
	assert.Equal(t, "exchange.trades.S1", js.subject)
	assert.Equal(t, 2, js.opts)

	var ev TradeEvent
	require.NoError(t, json.Unmarshal(js.data, &ev))
	assert.Equal(t, "T1", ev.TransactionID)
	assert.Equal(t, int64(30), ev.Amount)
	assert.True(t, decimal.RequireFromString("12.5").Equal(ev.UnitPrice))
	assert.True(t, testTrade.Timestamp.Equal(ev.ExecutedAt))

	js.err = errors.New("no responders")
	assert.Error(t, pub.PublishTrades(context.Background(), []*model.Transaction{testTrade}))
	assert.NoError(t, pub.Close())
}

func TestNewPublisher(t *testing.T) {
	pub, err := NewPublisher(nil)
	require.NoError(t, err)
	assert.NoError(t, pub.PublishTrades(context.Background(), []*model.Transaction{testTrade}))

	pub, err = NewPublisher(&Config{Driver: DriverKafka, Topic: "exchange.trades"})
	require.NoError(t, err)
	assert.IsType(t, &KafkaPublisher{}, pub)

	_, err = NewPublisher(&Config{Driver: DriverKafka})
	assert.ErrorIs(t, err, errMissingTopic)

	_, err = NewPublisher(&Config{Driver: "rabbitmq"})
	assert.ErrorIs(t, err, errUnknownDriver)
}
