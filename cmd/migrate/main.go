package main

import (
	"flag"

	"github.com/joripage/stock-exchange/config"
	"github.com/joripage/stock-exchange/pkg/infra"
	"go.uber.org/zap"
)

func main() {
	var configFile, source string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&source, "source", "", "Migration source URL, defaults to the directory for the configured driver")
	flag.Parse()

	logger, _ := zap.NewProduction()
	zap.ReplaceGlobals(logger)
	defer logger.Sync() // nolint

	cfg, err := config.Load(configFile)
	if err != nil {
		zap.S().Fatalf("load config: %v", err)
	}
	if cfg.ExchangeDB == nil {
		zap.S().Fatal("exchange_db is not configured")
	}

	source, err = infra.MigrationSource(source, cfg.ExchangeDB.DriverName)
	if err != nil {
		zap.S().Fatalf("migration source: %v", err)
	}
	if err := infra.CheckMigrationURL(cfg.ExchangeDB.DriverName, cfg.ExchangeDB.MigrationConnURL); err != nil {
		zap.S().Fatal(err)
	}
	if err := infra.GetMigrateTool().Migrate(source, cfg.ExchangeDB.MigrationConnURL); err != nil {
		zap.S().Fatalf("migrate: %v", err)
	}
}
