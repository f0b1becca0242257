package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/joripage/stock-exchange/pkg/logging"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const natsFetchBatch = 10

type TradeHandler func(ctx context.Context, ev TradeEvent) error

type pullSubscription interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
}

// ConsumeNatsTrades pulls trade events from a durable JetStream consumer until ctx is done.
func ConsumeNatsTrades(ctx context.Context, cfg NatsConfig, subject, durable string, logger *logging.Logger, handle TradeHandler) error {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return err
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		return err
	}
	sub, err := js.PullSubscribe(subject, durable)
	if err != nil {
		return err
	}
	return consumeTrades(ctx, sub, logger, handle)
}

func consumeTrades(ctx context.Context, sub pullSubscription, logger *logging.Logger, handle TradeHandler) error {
	for ctx.Err() == nil {
		fetchCtx, cancel := context.WithTimeout(ctx, time.Second)
		msgs, err := sub.Fetch(natsFetchBatch, nats.Context(fetchCtx))
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
				logger.Warn(ctx, "nats fetch failed", zap.Error(err))
			}
			continue
		}

		for _, msg := range msgs {
			var ev TradeEvent
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				logger.Warn(ctx, "skip undecodable trade event", zap.String("subject", msg.Subject), zap.Error(err))
				_ = msg.Ack()
				continue
			}
			if err := handle(ctx, ev); err != nil {
				logger.Warn(ctx, "handle trade event", zap.String("transaction_id", ev.TransactionID), zap.Error(err))
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}
	}
	return nil
}
