package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joripage/stock-exchange/pkg/exchange/model"
	"github.com/nats-io/nats.go"
)

type jetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NatsPublisher publishes trades on <prefix>.<stock id> through JetStream. The transaction
// id is the message id, so a retried publish is deduplicated by the stream.
type NatsPublisher struct {
	js     jetStreamPublisher
	prefix string
	conn   *nats.Conn
}

func NewNatsPublisher(url, stream, prefix string) (*NatsPublisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     stream,
		Subjects: []string{prefix + ".*"},
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		nc.Close()
		return nil, err
	}

	return &NatsPublisher{js: js, prefix: prefix, conn: nc}, nil
}

// PublishTrades stops at the first failed publish; the stream deduplicates the trades
// already sent if the caller retries.
func (p *NatsPublisher) PublishTrades(ctx context.Context, trades []*model.Transaction) error {
	for _, trade := range trades {
		data, err := json.Marshal(NewTradeEvent(trade))
		if err != nil {
			return err
		}
		_, err = p.js.Publish(p.prefix+"."+trade.StockID, data, nats.MsgId(trade.ID), nats.Context(ctx))
		if err != nil {
			return fmt.Errorf("publish trade %s: %w", trade.ID, err)
		}
	}
	return nil
}

func (p *NatsPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
