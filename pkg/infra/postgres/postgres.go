package postgres_wrapper

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	_ "github.com/lib/pq" // nolint
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	pg "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type PostgresConfig struct {
	// DriverName selects the gorm dialector: "postgres" (default) or "mysql".
	DriverName                 string `yaml:"driver_name"`
	DataSource                 string `yaml:"data_source"`
	MaxOpenConns               int    `yaml:"max_open_conns"`
	MaxIdleConns               int    `yaml:"max_idle_conns"`
	ConnMaxLifeTimeMiliseconds int64  `yaml:"conn_max_life_time_ms"`
	MigrationConnURL           string `yaml:"migration_conn_url"`
	// ConnectMaxElapsedSeconds bounds the connect retry; 0 keeps the backoff default.
	ConnectMaxElapsedSeconds int             `yaml:"connect_max_elapsed_seconds"`
	SlaveSources             []string        `yaml:"slave_sources"`
	LogLevel                 logger.LogLevel `yaml:"log_level"`
	Location                 string          `yaml:"location"`
}

func dialector(driverName, dsn string) (gorm.Dialector, error) {
	switch driverName {
	case "", DriverPostgres:
		return pg.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported driver_name %q", driverName)
}

// InitPostgres opens the exchange database and registers read replicas when configured.
func InitPostgres(cfg *PostgresConfig) (*gorm.DB, error) {
	logLevel := cfg.LogLevel
	if logLevel == 0 {
		logLevel = logger.Warn
	}
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		},
	)

	loc := time.UTC
	if cfg.Location != "" {
		l, err := time.LoadLocation(cfg.Location)
		if err != nil {
			return nil, err
		}
		loc = l
	}

	primary, err := dialector(cfg.DriverName, cfg.DataSource)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(primary, &gorm.Config{
		Logger: newLogger,
		NowFunc: func() time.Time {
			return time.Now().In(loc)
		},
	})
	if err != nil {
		zap.S().Debugf("open %s fail: %+v", cfg.DriverName, err)
		return nil, err
	}

	var repl []gorm.Dialector
	for _, s := range cfg.SlaveSources {
		d, err := dialector(cfg.DriverName, s)
		if err != nil {
			return nil, err
		}
		repl = append(repl, d)
	}

	if len(repl) > 0 {
		zap.S().Debugf("register %d read replicas", len(repl))
		err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: repl,
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			zap.S().Debugf("init replicas fail: %+v", err)
			return nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		zap.S().Debugf("get DB instance failed %v", err)
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeTimeMiliseconds) * time.Millisecond)

	return db, nil
}

// InitPostgresWithBackoff retries InitPostgres with exponential backoff.
func InitPostgresWithBackoff(cfg *PostgresConfig) (*gorm.DB, error) {
	var db *gorm.DB
	boff := backoff.NewExponentialBackOff()
	if cfg.ConnectMaxElapsedSeconds > 0 {
		boff.MaxElapsedTime = time.Duration(cfg.ConnectMaxElapsedSeconds) * time.Second
	}
	err := backoff.RetryNotify(func() error {
		var err error
		db, err = InitPostgres(cfg)
		return err
	}, boff, func(err error, next time.Duration) {
		zap.S().Warnf("connect database failed, retrying in %s: %v", next, err)
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}
