package core

// Logger is the app-wide logger.
// args may contain errors, map[string]interface{} extras and the current user.User.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything. Mostly useful in tests.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
