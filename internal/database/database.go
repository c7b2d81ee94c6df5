package database

import (
	"fmt"

	"github.com/yukikurage/taskboard/internal/config"
	"github.com/yukikurage/taskboard/internal/logging"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Dialector picks the gorm driver for cfg.DBDriver.
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "mysql":
		dsn := cfg.DBDSN
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
				cfg.DBUser,
				cfg.DBPassword,
				cfg.DBHost,
				cfg.DBPort,
				cfg.DBName,
			)
		}
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := cfg.DBDSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
				cfg.DBHost,
				cfg.DBPort,
				cfg.DBUser,
				cfg.DBPassword,
				cfg.DBName,
			)
		}
		return postgres.Open(dsn), nil
	case "sqlite":
		dsn := cfg.DBDSN
		if dsn == "" {
			dsn = cfg.DBName + ".db"
		}
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
}

// Open opens a connection with the options shared by the server and tests.
// Duplicate-key violations are translated into gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector, level logger.LogLevel) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
}

func Connect(cfg *config.Config) error {
	dialector, err := Dialector(cfg)
	if err != nil {
		return err
	}

	DB, err = Open(dialector, logging.GormLevel(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	zap.L().Info("Database connection established", zap.String("driver", cfg.DBDriver))
	return nil
}

func GetDB() *gorm.DB {
	return DB
}
