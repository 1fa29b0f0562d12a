package database

import (
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/recipelens/platform/pkg/common/config"
	"github.com/recipelens/platform/pkg/common/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	db     *gorm.DB
	dbOnce sync.Once
	dbErr  error
)

// GetDB opens the process-wide gorm handle for the configured driver.
func GetDB(cfg *config.Config) (*gorm.DB, error) {
	dbOnce.Do(func() {
		db, dbErr = Open(cfg)
		if dbErr != nil {
			logger.Log.WithError(dbErr).WithField("driver", cfg.DBDriver).Error("Failed to connect to database")
			return
		}
		logger.Log.WithField("driver", cfg.DBDriver).Info("Connected to database")
	})

	return db, dbErr
}

// Open returns a fresh connection without touching the shared handle.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	switch cfg.DBDriver {
	case "sqlite":
		return gorm.Open(sqlite.Open(cfg.SQLitePath), gormCfg)
	case "postgres", "":
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.PostgresHost,
			cfg.PostgresUser,
			cfg.PostgresPassword,
			cfg.PostgresDB,
			cfg.PostgresPort,
			cfg.PostgresSSLMode,
		)
		return gorm.Open(postgres.Open(dsn), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

func CloseDB() error {
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
