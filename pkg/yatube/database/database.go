package database

import (
	"fmt"
	"time"

	"github.com/mikepea/yatube/pkg/yatube/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// SlowQueryThreshold is the duration above which queries are logged as slow
const SlowQueryThreshold = 200 * time.Millisecond

// zapWriter feeds gorm's logger into the global zap logger. The global is looked up on
// every call so that zap.ReplaceGlobals after Connect still takes effect.
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	zap.L().WithOptions(zap.AddCallerSkip(1)).Sugar().Warnf(format, args...)
}

func newLogger() logger.Interface {
	return logger.New(zapWriter{}, logger.Config{
		SlowThreshold: SlowQueryThreshold,
		LogLevel:      logger.Warn,
		// Missing rows are 404s, not database problems
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Connect opens the database described by cfg.
// SQLite is the default; postgres and mysql are selected by the driver name.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		// Unique index violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         newLogger(),
	})
	if err != nil {
		return nil, err
	}

	if dialector.Name() == "sqlite" {
		if err := configureSQLite(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// configureSQLite pins the pool to one connection so that in-memory databases are shared
// and the foreign_keys pragma stays in effect for every statement.
func configureSQLite(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	return db.Exec("PRAGMA foreign_keys = ON").Error
}
