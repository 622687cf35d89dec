package logger

import corelogger "github.com/kilianp07/liftmpc/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// New returns a Logger tagged with the given component. The output format is
// selected from the APP_ENV variable.
func New(component string) Logger {
	return NewZerologLogger(component)
}
