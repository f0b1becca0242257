package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joripage/stock-exchange/config"
	"github.com/joripage/stock-exchange/pkg/events"
	"github.com/joripage/stock-exchange/pkg/exchange/repo"
	"github.com/joripage/stock-exchange/pkg/infra"
	postgres_wrapper "github.com/joripage/stock-exchange/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/stock-exchange/pkg/infra/redis"
	"github.com/joripage/stock-exchange/pkg/logging"
	"github.com/joripage/stock-exchange/pkg/matching"
	"github.com/joripage/stock-exchange/pkg/pricing"
	"github.com/joripage/stock-exchange/pkg/scheduler"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDB  = errors.New("exchange_db is not configured")
	errUnknownJob = errors.New("unknown job")
)

type scheduledJob struct {
	job      scheduler.Job
	interval time.Duration
}

// exchange holds the process-wide dependencies and the three jobs built on them.
type exchange struct {
	cfg       *config.AppConfig
	logger    *logging.Logger
	db        *gorm.DB
	redis     *redis.Client
	publisher events.Publisher
	jobs      []scheduledJob
}

func newExchange(ctx context.Context, cfg *config.AppConfig, logger *logging.Logger, migrate bool) (*exchange, error) {
	if cfg.ExchangeDB == nil {
		return nil, errMissingDB
	}

	ex := &exchange{cfg: cfg, logger: logger}
	var err error
	if migrate {
		ex.db, err = infra.GetMigrateTool().OpenAndMigrate(cfg.ExchangeDB, "")
	} else {
		ex.db, err = postgres_wrapper.InitPostgresWithBackoff(cfg.ExchangeDB)
	}
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	if cfg.Redis.Enabled {
		ex.redis, err = redis_wrapper.InitRedis(ctx, &cfg.Redis.RedisConfig)
		if err != nil {
			ex.Close()
			return nil, fmt.Errorf("init redis: %w", err)
		}
	}

	ex.publisher, err = events.NewPublisher(&cfg.Events)
	if err != nil {
		ex.Close()
		return nil, fmt.Errorf("init events: %w", err)
	}

	if err := ex.buildJobs(repo.NewRepo(ex.db)); err != nil {
		ex.Close()
		return nil, err
	}
	return ex, nil
}

func (ex *exchange) buildJobs(r repo.IRepo) error {
	cfg := ex.cfg

	ordering, err := matching.ParseBuyOrdering(cfg.Matching.BuyOrdering)
	if err != nil {
		return err
	}
	engine := matching.NewEngine(
		&matching.Config{
			Workers:        cfg.Matching.Workers,
			BuyOrdering:    ordering,
			PublishTimeout: cfg.Matching.PublishTimeout.Duration,
		},
		r.Order(), r.Transaction(),
		matching.WithLogger(ex.logger),
		matching.WithTradeListener(ex.publisher),
	)

	formula, err := pricing.ParseFormula(cfg.PriceFixing.Formula)
	if err != nil {
		return err
	}
	pricingOpts := []pricing.Option{pricing.WithLogger(ex.logger), pricing.WithWorkers(cfg.PriceFixing.Workers)}
	if ex.redis != nil {
		pricingOpts = append(pricingOpts, pricing.WithPriceCache(pricing.NewRedisPriceCache(ex.redis)))
	}
	fixing := pricing.NewFixingJob(formula, r.Stock(), r.Transaction(), r.PriceHistory(), pricingOpts...)

	change, err := pricing.NewChangeJob(cfg.PriceChange.Lookback.Duration, r.Stock(), r.PriceHistory(), pricingOpts...)
	if err != nil {
		return err
	}

	ex.jobs = []scheduledJob{
		{job: engine, interval: cfg.Matching.Interval.Duration},
		{job: fixing, interval: cfg.PriceFixing.Interval.Duration},
		{job: change, interval: cfg.PriceChange.Interval.Duration},
	}
	return nil
}

func (ex *exchange) job(name string) (scheduler.Job, error) {
	for _, j := range ex.jobs {
		if j.job.Name() == name {
			return j.job, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", errUnknownJob, name)
}

func (ex *exchange) scheduler() (*scheduler.Scheduler, error) {
	var opts []scheduler.Option
	if ex.cfg.Scheduler.DistributedLock && ex.redis != nil {
		locker := scheduler.NewRedisLocker(ex.redis, ex.cfg.Scheduler.LockPrefix)
		opts = append(opts, scheduler.WithLocker(locker, ex.cfg.Scheduler.LockTTL.Duration))
	}

	s := scheduler.New(ex.logger, opts...)
	for _, j := range ex.jobs {
		if err := s.Add(j.job, j.interval); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (ex *exchange) Close() {
	if ex.publisher != nil {
		if err := ex.publisher.Close(); err != nil {
			zap.S().Warnf("close events publisher: %v", err)
		}
	}
	if ex.redis != nil {
		_ = ex.redis.Close()
	}
	if ex.db != nil {
		if sqlDB, err := ex.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
