package events

import (
	"fmt"

	kafkawrapper "github.com/joripage/stock-exchange/pkg/kafka_wrapper"
)

const (
	DriverKafka = "kafka"
	DriverNats  = "nats"
)

type Config struct {
	// Driver is "kafka", "nats" or empty for no publishing.
	Driver string                      `yaml:"driver"`
	Topic  string                      `yaml:"topic"`
	Kafka  kafkawrapper.ProducerConfig `yaml:"kafka"`
	Nats   NatsConfig                  `yaml:"nats"`
}

type NatsConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
}

func NewPublisher(cfg *Config) (Publisher, error) {
	if cfg == nil {
		return NewNoop(), nil
	}
	switch cfg.Driver {
	case "":
		return NewNoop(), nil
	case DriverKafka:
		if cfg.Topic == "" {
			return nil, errMissingTopic
		}
		return NewKafkaPublisher(kafkawrapper.NewProducer(cfg.Kafka), cfg.Topic), nil
	case DriverNats:
		if cfg.Topic == "" {
			return nil, errMissingTopic
		}
		stream := cfg.Nats.Stream
		if stream == "" {
			stream = "EXCHANGE_TRADES"
		}
		return NewNatsPublisher(cfg.Nats.URL, stream, cfg.Topic)
	}
	return nil, fmt.Errorf("%w: %q", errUnknownDriver, cfg.Driver)
}
