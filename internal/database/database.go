// Package database opens the GORM connection and migrates the schema.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"repohub/internal/config"
	"repohub/internal/models"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// Connect opens a database connection for cfg.DBDriver and migrates the schema.
func Connect(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseDSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
	return Open(dialector, log)
}

// Open opens dialector with the application's GORM settings and runs
// AutoMigrate. Constraint errors are translated to gorm.ErrDuplicatedKey
// and gorm.ErrForeignKeyViolated.
func Open(dialector gorm.Dialector, log zerolog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         NewZerologGormLogger(log, logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Migrate(db); err != nil {
		if closeErr := Close(db); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close database after migration error")
		}
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the users and repositories tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Repository{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// Ping checks that the underlying connection is alive.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// ZerologGormLogger routes GORM logs through zerolog.
type ZerologGormLogger struct {
	log    zerolog.Logger
	Config logger.Config
}

// NewZerologGormLogger creates a GORM logger writing to log at level.
func NewZerologGormLogger(log zerolog.Logger, level logger.LogLevel) *ZerologGormLogger {
	return &ZerologGormLogger{
		log: log.With().Str("component", "gorm").Logger(),
		Config: logger.Config{
			SlowThreshold: slowQueryThreshold,
			LogLevel:      level,
		},
	}
}

// LogMode sets the logging level and returns a new interface instance.
func (l *ZerologGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.Config.LogLevel = level
	return &newLogger
}

// Info logs an informational message.
func (l *ZerologGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Info {
		l.log.Info().Ctx(ctx).Msgf(msg, data...)
	}
}

// Warn logs a warning message.
func (l *ZerologGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Warn {
		l.log.Warn().Ctx(ctx).Msgf(msg, data...)
	}
}

func (l *ZerologGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Error {
		l.log.Error().Ctx(ctx).Msgf(msg, data...)
	}
}

// Trace logs SQL statements. Record-not-found and constraint violations are
// expected outcomes and are not logged as errors.
func (l *ZerologGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Config.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.Config.LogLevel >= logger.Error && !expectedError(err):
		sql, rows := fc()
		l.log.Error().Ctx(ctx).Err(err).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("GORM query error")
	case l.Config.SlowThreshold != 0 && elapsed > l.Config.SlowThreshold && l.Config.LogLevel >= logger.Warn:
		sql, rows := fc()
		l.log.Warn().Ctx(ctx).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("GORM slow query")
	case l.Config.LogLevel >= logger.Info:
		sql, rows := fc()
		l.log.Debug().Ctx(ctx).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("GORM query")
	}
}

func expectedError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated)
}
