package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-churiwal/credit-gateway/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database is the SQL backing of the sequence counters
type Database struct {
	DB     *gorm.DB
	driver string
}

// OpenDatabase connects with driver "postgres" (default) or "sqlite". The
// sqlite driver is meant for single-host runs and tests, e.g.
// "file:jet?mode=memory&cache=shared".
func OpenDatabase(driver, dsn string) (*Database, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s: empty dsn", driver)
	}

	var dialector gorm.Dialector
	switch driver {
	case "postgres", "":
		driver = "postgres"
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s handle: %w", driver, err)
	}

	// Counter updates are short single-row transactions
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	return &Database{DB: db, driver: driver}, nil
}

func (d *Database) Driver() string {
	return d.driver
}

// Migrate creates or updates the sequence_counters table
func (d *Database) Migrate() error {
	if err := d.DB.AutoMigrate(&models.SequenceCounter{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", d.driver, err)
	}
	return nil
}

func (d *Database) Transaction(ctx context.Context, fn func(*gorm.DB) error) error {
	return d.DB.WithContext(ctx).Transaction(fn)
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
