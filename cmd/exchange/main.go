package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joripage/stock-exchange/config"
	"github.com/joripage/stock-exchange/pkg/infra"
	"github.com/joripage/stock-exchange/pkg/logging"
	"github.com/joripage/stock-exchange/pkg/matching"
	"github.com/joripage/stock-exchange/pkg/pricing"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "exchange",
		Usage: "batch matching and reference pricing for the stock exchange",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-file",
				Usage:   "config file path (falls back to $CONFIG_FILE)",
				EnvVars: []string{"CONFIG_FILE"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override log_level from the config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run every job on its configured interval until interrupted",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "migrate", Usage: "migrate the schema before starting"},
				},
				Action: runAction,
			},
			{
				Name:   "match",
				Usage:  "run the matching engine once",
				Action: onceAction(matching.JobName),
			},
			{
				Name:   "fix-prices",
				Usage:  "run the price fixing job once",
				Action: onceAction(pricing.FixingJobName),
			},
			{
				Name:   "price-change",
				Usage:  "run the price change job once",
				Action: onceAction(pricing.ChangeJobName),
			},
			{
				Name:  "migrate",
				Usage: "migrate the schema to the latest version",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "source", Usage: "migration source URL, defaults to the directory for exchange_db.driver_name"},
				},
				Action: migrateAction,
			},
			{
				Name:  "tail-trades",
				Usage: "print trade events from the kafka topic",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "group", Value: "exchange-tail"},
				},
				Action: tailTradesAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.AppConfig, *logging.Logger, error) {
	cfg, err := config.Load(c.String("config-file"))
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	logger := logging.NewLogger(logging.ParseLevel(level))
	zap.ReplaceGlobals(logger.Zap().With(zap.String("service", cfg.ServiceName)))
	return cfg, logging.Wrap(zap.L()), nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func runAction(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer logger.Sync() // nolint

	ctx, stop := signalContext(c)
	defer stop()

	ex, err := newExchange(ctx, cfg, logger, c.Bool("migrate"))
	if err != nil {
		return err
	}
	defer ex.Close()

	sched, err := ex.scheduler()
	if err != nil {
		return err
	}
	logger.Info(ctx, "exchange started")
	return sched.Start(ctx)
}

func onceAction(job string) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, logger, err := loadConfig(c)
		if err != nil {
			return err
		}
		defer logger.Sync() // nolint

		ctx, stop := signalContext(c)
		defer stop()

		ex, err := newExchange(ctx, cfg, logger, false)
		if err != nil {
			return err
		}
		defer ex.Close()

		j, err := ex.job(job)
		if err != nil {
			return err
		}
		sched, err := ex.scheduler()
		if err != nil {
			return err
		}
		_, err = sched.RunOnce(ctx, j)
		return err
	}
}

func migrateAction(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer logger.Sync() // nolint

	if cfg.ExchangeDB == nil {
		return errMissingDB
	}
	source, err := infra.MigrationSource(c.String("source"), cfg.ExchangeDB.DriverName)
	if err != nil {
		return err
	}
	if err := infra.CheckMigrationURL(cfg.ExchangeDB.DriverName, cfg.ExchangeDB.MigrationConnURL); err != nil {
		return err
	}
	return infra.GetMigrateTool().Migrate(source, cfg.ExchangeDB.MigrationConnURL)
}
