package warehouse

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Warehouse holds the GORM connection and exposes per-table
// repositories.
type Warehouse struct {
	db *gorm.DB
}

// Connect opens a Postgres connection via the given DSN/URL and runs
// AutoMigrate for every Warehouse-owned table.
func Connect(dsn string) (*Warehouse, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("warehouse: connect: %w", err)
	}

	if err := db.AutoMigrate(
		&TickerUnified{},
		&MarketDataDaily{},
		&VolumeSlot{},
		&ScannerFilter{},
		&ScanResult{},
		&EarningsCalendar{},
	); err != nil {
		return nil, fmt.Errorf("warehouse: automigrate: %w", err)
	}

	return &Warehouse{db: db}, nil
}

// DB exposes the underlying *gorm.DB for repositories and tests that
// need raw query access.
func (w *Warehouse) DB() *gorm.DB { return w.db }

// Close releases the underlying connection pool.
func (w *Warehouse) Close() error {
	sqlDB, err := w.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the Postgres connection is alive, used by the /readyz
// probe.
func (w *Warehouse) Ping(ctx context.Context) error {
	sqlDB, err := w.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
