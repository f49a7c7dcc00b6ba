// Package logger adapts slog to the logger interfaces of third-party libraries.
package logger

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Cron forwards robfig/cron messages to slog. Routine scheduling chatter is
// logged at debug level; recovered panics and other errors at error level.
type Cron struct {
	log *slog.Logger
}

var _ cron.Logger = Cron{}

// NewCron wraps log, falling back to the default logger.
func NewCron(log *slog.Logger) Cron {
	if log == nil {
		log = slog.Default()
	}
	return Cron{log: log}
}

// Info implements cron.Logger.
func (c Cron) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, keysAndValues...)
}

// Error implements cron.Logger.
func (c Cron) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append(keysAndValues, "error", err)...)
}
