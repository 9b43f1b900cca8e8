package logger

import (
	"log/slog"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{
		logger: logger,
	}
}

func (l *SlogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *SlogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *SlogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *SlogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// With returns a logger that adds args to every record.
func (l *SlogLogger) With(args ...any) *SlogLogger {
	return &SlogLogger{logger: l.logger.With(args...)}
}

// Nop discards everything. Used by tests and optional collaborators.
type Nop struct{}

func (Nop) Debug(msg string, args ...any) {}
func (Nop) Info(msg string, args ...any)  {}
func (Nop) Warn(msg string, args ...any)  {}
func (Nop) Error(msg string, args ...any) {}
