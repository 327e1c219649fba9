package logger

// NopLogger discards every entry.
type NopLogger struct{}

// NewNop returns a logger that does nothing.
func NewNop() Logger {
	return NopLogger{}
}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}

func (l NopLogger) With(...Field) Logger { return l }

func (NopLogger) Sync() error { return nil }
