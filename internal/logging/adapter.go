package logging

import (
	"fmt"
	"log/slog"

	"github.com/yam-go/popclient/internal/collab"
)

// SlogLogger adapts a *slog.Logger to collab.Logger, so the retrieval core
// can log through the narrow interface while production wiring still goes
// through the same slog handler as the rest of the binary.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps logger as a collab.Logger.
func NewSlogLogger(logger *slog.Logger) SlogLogger {
	return SlogLogger{logger: logger}
}

// Logf implements collab.Logger, routing to the matching slog level method.
func (s SlogLogger) Logf(level string, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	switch level {
	case "debug":
		s.logger.Debug(msg)
	case "warn", "warning":
		s.logger.Warn(msg)
	case "error":
		s.logger.Error(msg)
	default:
		s.logger.Info(msg)
	}
}

var _ collab.Logger = SlogLogger{}
