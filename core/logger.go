package core

// Logger is any leveled logger that can report errors to an external tracker.
// Trailing args may carry an error, a context map or a user value; concrete
// implementations decide what to do with each.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
