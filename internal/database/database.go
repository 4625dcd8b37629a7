package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mrlokans/catalogmirror/internal/config"
	"github.com/mrlokans/catalogmirror/internal/entities"
	"github.com/mrlokans/catalogmirror/internal/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// runningJobIndex keeps at most one running job per (sync_type, phase).
const runningJobIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_jobs_one_running
ON sync_jobs (sync_type, phase) WHERE status = 'running'`

type Database struct {
	DB     *gorm.DB
	Driver string
}

// NewDatabase opens the local store described by cfg and migrates it.
func NewDatabase(cfg config.Database) (*Database, error) {
	gormConfig := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}
	if cfg.LogQueries {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	log := logger.Default().Component("database")

	var (
		db  *gorm.DB
		err error
	)
	driver := strings.ToLower(cfg.Driver)
	switch driver {
	case DriverPostgres:
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), gormConfig)
	case DriverSQLite, "":
		driver = DriverSQLite
		db, err = openSQLite(cfg.Path, gormConfig)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	database := &Database{DB: db, Driver: driver}
	if err := database.Migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	log.WithField("driver", driver).Info("database initialized")
	return database, nil
}

// OpenSQLite is a convenience for tools and tests that only need a file path.
func OpenSQLite(path string) (*Database, error) {
	return NewDatabase(config.Database{
		Driver:          DriverSQLite,
		Path:            path,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
}

func openSQLite(path string, gormConfig *gorm.Config) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path+"?_journal=WAL&_busy_timeout=5000"), gormConfig)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table plus the running-job index.
func (d *Database) Migrate() error {
	models := append([]any{&entities.SyncJob{}}, entities.CatalogModels()...)
	if err := d.DB.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := d.DB.Exec(runningJobIndex).Error; err != nil {
		return fmt.Errorf("failed to create running job index: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
