package core

// Logger receives debug-level trace messages with alternating key/value pairs.
// *slog.Logger satisfies this interface.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}

// NopLogger discards every message.
var NopLogger Logger = nopLogger{}
