package tunable

// Logger is the minimal logging seam the tuner needs. It is satisfied by
// the repo's internal/logger (an slog wrapper) and by any slog-compatible
// structured logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// nopLogger is the default: the library stays quiet unless a logger is
// injected through the TuningContext.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
