package database

import (
	"errors"
	"fmt"
	"strings"

	sqlite "github.com/glebarez/sqlite"
	"github.com/yazok8/linktree-clone/internal/links"
	"github.com/yazok8/linktree-clone/internal/users"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	// DriverSQLite selects the embedded pure-Go SQLite driver.
	DriverSQLite = "sqlite"
	// DriverPostgres selects the pgx-backed PostgreSQL driver.
	DriverPostgres = "postgres"

	sqliteForeignKeysPragma = "_pragma=foreign_keys(1)"
	sqliteBusyTimeoutPragma = "_pragma=busy_timeout(5000)"
)

var (
	errMissingDSN        = errors.New("database dsn is required")
	errUnsupportedDriver = errors.New("unsupported database driver")
)

// Open establishes a connection for driver, migrates the schema and applies
// pending data migrations.
func Open(driver, dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errMissingDSN
	}

	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&users.User{}, &links.Link{}, &migrationRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	logger.Info("database initialized", zap.String("driver", driver))
	return db, nil
}

// Close releases the pooled connections behind db.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverSQLite:
		return sqlite.Open(sqliteDSN(dsn)), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedDriver, driver)
	}
}

// sqliteDSN enables foreign key enforcement, which SQLite leaves off per connection.
func sqliteDSN(dsn string) string {
	pragmas := make([]string, 0, 2)
	if !strings.Contains(dsn, "foreign_keys") {
		pragmas = append(pragmas, sqliteForeignKeysPragma)
	}
	if !strings.Contains(dsn, "busy_timeout") {
		pragmas = append(pragmas, sqliteBusyTimeoutPragma)
	}
	if len(pragmas) == 0 {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + strings.Join(pragmas, "&")
}
