// Package log provides a leveled logger with structured logging support.
package log

var std = New()

// Default returns the standard logger. Prefer the logger carried by the context, it is
// only meant for code paths that run before the CLI has configured one.
func Default() Logger {
	return std
}
