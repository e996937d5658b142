package core

// Logger is any leveled logging sink usable across services and apps.
// Implementations may inspect args for well-known types (errors, users)
// to enrich the entry.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
