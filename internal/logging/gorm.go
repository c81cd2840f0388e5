package logging

import (
	"time"

	gormlogger "gorm.io/gorm/logger"
)

// SlowQueryThreshold is the duration after which gorm reports a query as slow.
const SlowQueryThreshold = 200 * time.Millisecond

// GormLogger adapts l into gorm's logger. Only slow queries and errors are
// traced unless l is at debug level.
func GormLogger(l *Logger) gormlogger.Interface {
	level := gormlogger.Warn
	switch {
	case l.Enabled(LevelDebug):
		level = gormlogger.Info
	case !l.Enabled(LevelWarn):
		level = gormlogger.Error
	}
	return gormlogger.New(gormWriter{l}, gormlogger.Config{
		SlowThreshold:             SlowQueryThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// gormWriter forwards gorm output at warn so slow queries and SQL errors
// are visible at the default level.
type gormWriter struct {
	l *Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.l.write(LevelWarn, format, args...)
}
