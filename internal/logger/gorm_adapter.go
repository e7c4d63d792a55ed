package logger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// quotedPhone matches phone numbers that gorm interpolates into logged SQL.
var quotedPhone = regexp.MustCompile(`'\+?[0-9]{10,15}'`)

// GormLoggerAdapter routes gorm output through a module logger. Statements
// log at TRACE; failed and slow statements log at WARN with the subscriber
// phone numbers replaced.
type GormLoggerAdapter struct {
	log  Logger
	slow time.Duration
}

// NewGormLoggerAdapter returns an adapter that flags statements slower than
// slow. A zero slow disables the slow-statement warning.
func NewGormLoggerAdapter(log Logger, slow time.Duration) *GormLoggerAdapter {
	if log == nil {
		log = NewSlogLogger(nil, LogLevelInfo)
	}
	return &GormLoggerAdapter{log: log, slow: slow}
}

// LogMode is a no-op; verbosity follows the module's configured level.
func (a *GormLoggerAdapter) LogMode(gormlogger.LogLevel) gormlogger.Interface { return a }

func (a *GormLoggerAdapter) Info(_ context.Context, msg string, data ...any) {
	a.log.Debug(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Warn(_ context.Context, msg string, data ...any) {
	a.log.Warn(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Error(_ context.Context, msg string, data ...any) {
	a.log.Error(fmt.Sprintf(msg, data...))
}

// Trace implements gormlogger.Interface. Record-not-found is an expected
// outcome of lookups and is not reported as a failure.
func (a *GormLoggerAdapter) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []Field{
		String("sql", quotedPhone.ReplaceAllString(sql, "'[PHONE]'")),
		Int64("rows", rows),
		Duration("elapsed", elapsed),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		a.log.Warn("statement failed", append(fields, Error(err))...)
	case a.slow > 0 && elapsed > a.slow:
		a.log.Warn("slow statement", append(fields, Duration("threshold", a.slow))...)
	default:
		a.log.Trace("statement", fields...)
	}
}
