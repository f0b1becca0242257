package infra

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	postgres_wrapper "github.com/joripage/stock-exchange/pkg/infra/postgres"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultMigrationSource = "file://migration/sql"
	MySQLMigrationSource   = "file://migration/mysql"
)

var errMigrationURLScheme = errors.New("migration_conn_url does not match driver_name")

// MigrationSource returns source when set, otherwise the migration directory written for
// driverName.
func MigrationSource(source, driverName string) (string, error) {
	if source != "" {
		return source, nil
	}
	switch driverName {
	case "", postgres_wrapper.DriverPostgres:
		return DefaultMigrationSource, nil
	case postgres_wrapper.DriverMySQL:
		return MySQLMigrationSource, nil
	}
	return "", fmt.Errorf("no migrations for driver_name %q", driverName)
}

// CheckMigrationURL makes sure golang-migrate will pick the database driver that matches
// driverName.
func CheckMigrationURL(driverName, connURL string) error {
	var ok bool
	switch driverName {
	case "", postgres_wrapper.DriverPostgres:
		ok = strings.HasPrefix(connURL, "postgres://") || strings.HasPrefix(connURL, "postgresql://")
	case postgres_wrapper.DriverMySQL:
		ok = strings.HasPrefix(connURL, "mysql://")
	}
	if !ok {
		return fmt.Errorf("%w: driver %q", errMigrationURLScheme, driverName)
	}
	return nil
}

// IMigrateTool tool to migrate schema and data.
type IMigrateTool interface {
	// OpenAndMigrate connects to the database and brings its schema up to date. An empty
	// source picks the directory for cfg.DriverName.
	OpenAndMigrate(cfg *postgres_wrapper.PostgresConfig, source string) (*gorm.DB, error)

	// Migrate from current version to latest verion.
	Migrate(source string, connStr string) error
}

type migrateTool struct {
	open func(cfg *postgres_wrapper.PostgresConfig) (*gorm.DB, error)
}

var once sync.Once         // nolint
var mutex = &sync.Mutex{}  // nolint
var singleton IMigrateTool // nolint

// GetMigrateTool get singleton instance for migrate tool
func GetMigrateTool() IMigrateTool { // nolint
	once.Do(func() {
		singleton = &migrateTool{open: postgres_wrapper.InitPostgresWithBackoff}
	})
	return singleton
}

// Migrate execute migration in serialize.
func (mt *migrateTool) Migrate(source string, connStr string) error {
	mutex.Lock()
	defer mutex.Unlock()

	if source == "" {
		source = DefaultMigrationSource
	}
	zap.S().Infof("migrating schema from %s", source)

	mg, err := migrate.New(source, connStr)
	if err != nil {
		return fmt.Errorf("create migration: %w", err)
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}

	if dirty {
		zap.S().Warnf("schema version %d is dirty, forcing %d", version, int(version)-1)
		if err := mg.Force(int(version) - 1); err != nil {
			return fmt.Errorf("force schema version: %w", err)
		}
	}

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	zap.S().Info("migration done")
	return nil
}

func (mt *migrateTool) OpenAndMigrate(cfg *postgres_wrapper.PostgresConfig, source string) (*gorm.DB, error) {
	source, err := MigrationSource(source, cfg.DriverName)
	if err != nil {
		return nil, err
	}
	if err := CheckMigrationURL(cfg.DriverName, cfg.MigrationConnURL); err != nil {
		return nil, err
	}

	db, err := mt.open(cfg)
	if err != nil {
		return nil, err
	}
	if err := mt.Migrate(source, cfg.MigrationConnURL); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return db, nil
}
