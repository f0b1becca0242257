package main

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/joripage/stock-exchange/pkg/events"
	kafkawrapper "github.com/joripage/stock-exchange/pkg/kafka_wrapper"
	"github.com/joripage/stock-exchange/pkg/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var errTailNeedsBroker = errors.New("tail-trades needs events.driver kafka or nats")

func tailTradesAction(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer logger.Sync() // nolint

	ctx, stop := signalContext(c)
	defer stop()

	printTrade := func(ctx context.Context, ev events.TradeEvent) error {
		logger.Info(ctx, "trade",
			zap.String("transaction_id", ev.TransactionID),
			zap.String("stock_id", ev.StockID),
			zap.Int64("amount", ev.Amount),
			zap.String("unit_price", ev.UnitPrice.String()),
			zap.Time("executed_at", ev.ExecutedAt),
		)
		return nil
	}

	switch cfg.Events.Driver {
	case events.DriverKafka:
		err = tailKafka(ctx, cfg.Events, c.String("group"), logger, printTrade)
	case events.DriverNats:
		err = events.ConsumeNatsTrades(ctx, cfg.Events.Nats, cfg.Events.Topic+".*", c.String("group"), logger, printTrade)
	default:
		return errTailNeedsBroker
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func tailKafka(ctx context.Context, cfg events.Config, group string, logger *logging.Logger, handle events.TradeHandler) error {
	consumer := kafkawrapper.NewConsumerGroup(kafkawrapper.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: group,
		Topic:   cfg.Topic,
	}, logger.Zap())
	defer consumer.Close()

	return consumer.Run(ctx, func(ctx context.Context, batch []kafkawrapper.Message) error {
		for _, m := range batch {
			var ev events.TradeEvent
			if err := json.Unmarshal(m.Value, &ev); err != nil {
				logger.Warn(ctx, "skip undecodable trade event", zap.Stringer("message", m), zap.Error(err))
				continue
			}
			if err := handle(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}
