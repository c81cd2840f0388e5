// Package store opens the relational database backing the service and owns
// its schema migrations.
package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/beesaferoot/rentals/internal/config"
	"github.com/beesaferoot/rentals/internal/logging"
	"github.com/beesaferoot/rentals/internal/migration"
	"github.com/beesaferoot/rentals/internal/models"
)

// Dialector returns the gorm dialector for driver.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case config.DriverPostgres:
		return postgres.Open(dsn), nil
	case config.DriverMySQL:
		return mysql.Open(dsn), nil
	case config.DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// GormConfig is the gorm configuration every connection uses. Duplicate key
// violations are translated to gorm.ErrDuplicatedKey.
func GormConfig(log *logging.Logger) *gorm.Config {
	return &gorm.Config{
		Logger:         logging.GormLogger(log),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Open connects to the configured database, retrying while it comes up.
func Open(cfg *config.Config, log *logging.Logger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	retries := cfg.DBConnectRetries
	if retries < 1 {
		retries = 1
	}

	var db *gorm.DB
	delay := 500 * time.Millisecond
	for attempt := 1; attempt <= retries; attempt++ {
		db, err = gorm.Open(dialector, GormConfig(log))
		if err == nil {
			break
		}
		if attempt < retries {
			log.Warn("[store] connect to %s failed (attempt %d/%d): %v, retrying in %v",
				cfg.DBDriver, attempt, retries, err, delay)
			time.Sleep(delay)
			delay *= 2
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s after %d attempts: %w", cfg.DBDriver, retries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql handle: %w", err)
	}
	maxOpen := cfg.DBMaxOpenConns
	if cfg.DBDriver == config.DriverSQLite {
		// SQLite allows one writer; a single connection serializes transactions.
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info("[store] connected to %s database", cfg.DBDriver)
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrations returns the schema history of the service.
func Migrations() []*migration.Migration {
	return []*migration.Migration{
		{
			Version: "20250601000000",
			Name:    "create_rentals_schema",
			Up: func(tx *gorm.DB) error {
				return tx.AutoMigrate(models.All()...)
			},
			Down: func(tx *gorm.DB) error {
				all := models.All()
				for i := len(all) - 1; i >= 0; i-- {
					if err := tx.Migrator().DropTable(all[i]); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}

// NewMigrator returns a migrator loaded with Migrations.
func NewMigrator(db *gorm.DB) *migration.Migrator {
	return migration.NewMigrator(db, Migrations()...)
}

// Migrate applies every pending schema migration.
func Migrate(ctx context.Context, db *gorm.DB) error {
	_, err := NewMigrator(db).Up(ctx)
	return err
}
