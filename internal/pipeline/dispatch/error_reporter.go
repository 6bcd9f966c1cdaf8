package dispatch

import (
	"sync/atomic"

	"go.uber.org/zap"
)

const DefaultMaxLoggedErrors = 10

// ErrorReporter logs the first failures of one appender and only counts the
// rest. Failed events are dropped.
type ErrorReporter struct {
	appender  string
	maxLogged int64
	count     atomic.Int64
	logger    *zap.Logger
}

func NewErrorReporter(appender string, maxLogged int, logger *zap.Logger) *ErrorReporter {
	return &ErrorReporter{
		appender:  appender,
		maxLogged: int64(maxLogged),
		logger:    logger,
	}
}

func (r *ErrorReporter) Report(err error, fields ...zap.Field) {
	n := r.count.Add(1)
	if n > r.maxLogged {
		return
	}
	fields = append(fields, zap.String("appender", r.appender), zap.Int64("error_count", n), zap.Error(err))
	r.logger.Error("Failed to export events", fields...)
	if n == r.maxLogged {
		r.logger.Error(
			"Too many export errors, further errors will not be logged",
			zap.String("appender", r.appender),
		)
	}
}

func (r *ErrorReporter) Count() int64 {
	return r.count.Load()
}
