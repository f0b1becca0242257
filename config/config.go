package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/joripage/stock-exchange/pkg/events"
	postgres_wrapper "github.com/joripage/stock-exchange/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/stock-exchange/pkg/infra/redis"
	"github.com/xhit/go-str2duration/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	ServiceName string                           `yaml:"service_name"`
	LogLevel    string                           `yaml:"log_level"`
	ExchangeDB  *postgres_wrapper.PostgresConfig `yaml:"exchange_db"`
	Redis       RedisConfig                      `yaml:"redis"`
	Events      events.Config                    `yaml:"events"`
	Matching    MatchingConfig                   `yaml:"matching"`
	PriceFixing PriceFixingConfig                `yaml:"price_fixing"`
	PriceChange PriceChangeConfig                `yaml:"price_change"`
	Scheduler   SchedulerConfig                  `yaml:"scheduler"`
}

type RedisConfig struct {
	Enabled                   bool `yaml:"enabled"`
	redis_wrapper.RedisConfig `yaml:",inline"`
}

type MatchingConfig struct {
	Interval Duration `yaml:"interval"`
	Workers  int      `yaml:"workers"`
	// BuyOrdering is "ascending_limit_price" or "descending_limit_price".
	BuyOrdering string `yaml:"buy_ordering"`
	// PublishTimeout bounds how long a run waits to hand its trades to the event publisher.
	PublishTimeout Duration `yaml:"publish_timeout"`
}

type PriceFixingConfig struct {
	Interval Duration `yaml:"interval"`
	Workers  int      `yaml:"workers"`
	// Formula is "trade_amount_mean" or "volume_weighted_price".
	Formula string `yaml:"formula"`
}

type PriceChangeConfig struct {
	Interval Duration `yaml:"interval"`
	Lookback Duration `yaml:"lookback"`
}

type SchedulerConfig struct {
	// DistributedLock needs redis.enabled.
	DistributedLock bool     `yaml:"distributed_lock"`
	LockTTL         Duration `yaml:"lock_ttl"`
	LockPrefix      string   `yaml:"lock_prefix"`
}

// Duration accepts Go durations plus day and week units, e.g. "1d12h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := str2duration.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return str2duration.String(d.Duration), nil
}

var errDistributedLockNeedsRedis = errors.New("scheduler.distributed_lock requires redis.enabled")

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	loadDotEnv()

	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	sugar := zap.S().With("func", "config.Load", "filePath", filePath)
	sugar.Debug("Load config...")

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}
	if err := yaml.Unmarshal(configBytes, cfg); err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	cfg.applyDefaults()
	if cfg.Scheduler.DistributedLock && !cfg.Redis.Enabled {
		return nil, errDistributedLockNeedsRedis
	}

	zap.S().Debugf("config: %+v", cfg.Redacted())
	return cfg, nil
}

const redacted = "[redacted]"

// Redacted returns a copy safe to log: connection strings carry credentials.
func (c *AppConfig) Redacted() *AppConfig {
	out := *c
	if c.ExchangeDB != nil {
		db := *c.ExchangeDB
		db.DataSource = redactValue(db.DataSource)
		db.MigrationConnURL = redactValue(db.MigrationConnURL)
		db.SlaveSources = make([]string, len(c.ExchangeDB.SlaveSources))
		for i, s := range c.ExchangeDB.SlaveSources {
			db.SlaveSources[i] = redactValue(s)
		}
		out.ExchangeDB = &db
	}
	out.Redis.ConnectionURL = redactValue(c.Redis.ConnectionURL)
	return &out
}

func redactValue(v string) string {
	if v == "" {
		return ""
	}
	return redacted
}

// loadDotEnv preloads ENV_FILE (default .env) when present; real environment variables win.
func loadDotEnv() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err != nil {
		return
	}
	if err := godotenv.Load(envFile); err != nil {
		zap.S().Warnf("load %s: %v", envFile, err)
	}
}

func (c *AppConfig) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "stock-exchange"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	setDefault(&c.Matching.Interval, time.Second)
	setDefault(&c.Matching.PublishTimeout, 5*time.Second)
	setDefault(&c.PriceFixing.Interval, time.Minute)
	setDefault(&c.PriceChange.Interval, time.Minute)
	setDefault(&c.PriceChange.Lookback, 15*time.Minute)
	setDefault(&c.Scheduler.LockTTL, time.Minute)
}

func setDefault(d *Duration, v time.Duration) {
	if d.Duration == 0 {
		d.Duration = v
	}
}
