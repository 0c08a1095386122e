package logging

import (
	"fmt"
	"log/slog"

	"github.com/pion/logging"
)

// LoggerFactory implements logging.LoggerFactory on top of slog.
type LoggerFactory struct {
	sl *slog.Logger
}

// NewLoggerFactory returns a LoggerFactory writing to sl, or to the default
// slog logger if sl is nil.
func NewLoggerFactory(sl *slog.Logger) *LoggerFactory {
	if sl == nil {
		sl = slog.Default()
	}
	return &LoggerFactory{sl: sl}
}

// NewLogger implements logging.LoggerFactory.
func (f *LoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{sl: f.sl.With("scope", scope)}
}

type pionLogger struct {
	sl *slog.Logger
}

// Trace implements logging.LeveledLogger.
func (p *pionLogger) Trace(msg string) {
	p.sl.Debug(msg, "pion-level", "trace")
}

// Tracef implements logging.LeveledLogger.
func (p *pionLogger) Tracef(format string, args ...any) {
	p.sl.Debug(fmt.Sprintf(format, args...), "pion-level", "trace")
}

// Debug implements logging.LeveledLogger.
func (p *pionLogger) Debug(msg string) {
	p.sl.Debug(msg)
}

// Debugf implements logging.LeveledLogger.
func (p *pionLogger) Debugf(format string, args ...any) {
	p.sl.Debug(fmt.Sprintf(format, args...))
}

// Info implements logging.LeveledLogger.
func (p *pionLogger) Info(msg string) {
	p.sl.Info(msg)
}

// Infof implements logging.LeveledLogger.
func (p *pionLogger) Infof(format string, args ...any) {
	p.sl.Info(fmt.Sprintf(format, args...))
}

// Warn implements logging.LeveledLogger.
func (p *pionLogger) Warn(msg string) {
	p.sl.Warn(msg)
}

// Warnf implements logging.LeveledLogger.
func (p *pionLogger) Warnf(format string, args ...any) {
	p.sl.Warn(fmt.Sprintf(format, args...))
}

// Error implements logging.LeveledLogger.
func (p *pionLogger) Error(msg string) {
	p.sl.Error(msg)
}

// Errorf implements logging.LeveledLogger.
func (p *pionLogger) Errorf(format string, args ...any) {
	p.sl.Error(fmt.Sprintf(format, args...))
}
