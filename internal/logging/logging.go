// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

// New returns a logger at level. Development loggers use a colored console
// encoder; production loggers emit JSON.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(gray + t.Format("15:04:05.000") + reset)
		}
		cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(gray + ec.TrimmedPath() + reset)
		}
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	return cfg.Build()
}

// Setup builds a logger with New and installs it as the zap global.
func Setup(level string, development bool) (*zap.Logger, error) {
	log, err := New(level, development)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return log, nil
}

// GormLevel maps an application log level onto gorm's logger levels.
func GormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "info", "warn":
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}
