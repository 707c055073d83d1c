package store

import (
	"strings"
	"time"

	"github.com/mwantia/ephysdb/pkg/log"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormWriter forwards gorm's printf-style output to a LoggerService.
type gormWriter struct {
	log   log.LoggerService
	trace bool
}

func (w gormWriter) Printf(format string, args ...any) {
	if w.trace {
		w.log.Debug(format, args...)
		return
	}
	w.log.Warn(format, args...)
}

// ParseGormLogLevel maps silent, error, warn and info onto gorm's levels.
func ParseGormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		return logger.Error
	case "warn", "warning":
		return logger.Warn
	case "info", "debug":
		return logger.Info
	default:
		return logger.Silent
	}
}

// NewGormLogger returns a gorm logger writing through l. SQL traces at the
// info level are emitted as debug lines.
func NewGormLogger(l log.LoggerService, level logger.LogLevel) logger.Interface {
	return logger.New(gormWriter{log: l, trace: level == logger.Info}, logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
