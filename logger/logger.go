package logger

import "fmt"

// Logger receives printf-style lines from the connection engine and its channels.
// Frame traffic goes to Debug, lifecycle changes to Info, recoverable anomalies to
// Warn and protocol exceptions to Err. Fatal must not return.
type Logger interface {
	Fatal(format string, a ...any)
	Err(format string, a ...any)
	Warn(format string, a ...any)
	Info(format string, a ...any)
	Debug(format string, a ...any)
}

// NilLogger drops every line. Fatal still panics so it never returns.
type NilLogger struct{}

func (*NilLogger) Fatal(format string, a ...any) { panic(fmt.Sprintf(format, a...)) }
func (*NilLogger) Err(string, ...any)            {}
func (*NilLogger) Warn(string, ...any)           {}
func (*NilLogger) Info(string, ...any)           {}
func (*NilLogger) Debug(string, ...any)          {}
