package recorder

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Drivers understood by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL;",
	"PRAGMA synchronous = NORMAL;",
	"PRAGMA busy_timeout = 5000;",
	"PRAGMA temp_store = MEMORY;",
}

// Open connects to the configured database. A Postgres connection that
// cannot be opened or pinged falls back to SQLite at cfg.Path, so the
// flight log keeps working offline.
func Open(cfg Config, log zerolog.Logger) (*gorm.DB, error) {
	if cfg.Driver == DriverPostgres {
		db, err := openPostgres(cfg.DSN)
		if err == nil {
			log.Info().Msg("Connected to Postgres flight log")
			return db, nil
		}
		log.Error().Err(err).Msg("Failed to connect to Postgres, falling back to SQLite")
	} else if cfg.Driver != "" && cfg.Driver != DriverSQLite {
		return nil, fmt.Errorf("unknown recorder driver %q", cfg.Driver)
	}

	db, err := openSQLite(cfg.Path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", cfg.Path).Msg("Using local SQLite flight log")
	return db, nil
}

func openPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN not set")
	}
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	sqlDB.SetMaxOpenConns(4)
	return db, nil
}

func openSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path not set")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return db, nil
}

// Migrate creates or updates the flight log tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
