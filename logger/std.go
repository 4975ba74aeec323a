package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
)

// ANSI color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"

	ColorBoldRed = "\033[1;31m"
)

// IsTerminal is true when stdout is a character device, so output gets colors
var IsTerminal bool

func init() {
	fileInfo, err := os.Stdout.Stat()
	IsTerminal = err == nil && (fileInfo.Mode()&os.ModeCharDevice) != 0
}

// Colorize adds ANSI color to a string if the output is a terminal
func Colorize(s string, color string) string {
	if IsTerminal {
		return fmt.Sprintf("%s%s%s", color, s, ColorReset)
	}
	return s
}

// StdLogger writes leveled, colorized lines through the standard log package.
// Debug lines are only written when AMQP_DEBUG=1.
type StdLogger struct {
	out   *log.Logger
	color bool
	exit  func(code int)
}

// NewStdLogger creates a logger writing to w. A nil w means stdout.
func NewStdLogger(w io.Writer) *StdLogger {
	if w == nil {
		w = os.Stdout
	}
	color := IsTerminal && w == io.Writer(os.Stdout)

	var prefix string
	if color {
		prefix = fmt.Sprintf("%s[AMQP]%s ", ColorBlue, ColorReset)
	} else {
		prefix = "[AMQP] "
	}

	return &StdLogger{
		out:   log.New(w, prefix, log.LstdFlags|log.Lmicroseconds),
		color: color,
		exit:  os.Exit,
	}
}

// Get caller function name for logging
func callerName() string {
	pc, _, _, _ := runtime.Caller(3) // skip callerName, print and the level method
	caller := runtime.FuncForPC(pc).Name()
	parts := strings.Split(caller, ".")
	return parts[len(parts)-1]
}

func (l *StdLogger) print(level, color, format string, args ...any) {
	funcName := callerName()
	if l.color {
		prefix := fmt.Sprintf("%s[%s]%s %s%s%s: ", color, level, ColorReset, ColorCyan, funcName, ColorReset)
		l.out.Printf(prefix+format, args...)
	} else {
		l.out.Printf("[%s] %s: "+format, append([]any{level, funcName}, args...)...)
	}
}

// Fatal logs a message with Fatal level and exits with code 1
func (l *StdLogger) Fatal(format string, a ...any) {
	l.print("FATAL", ColorBoldRed, format, a...)
	l.exit(1)
}

// Err logs a message with Error level
func (l *StdLogger) Err(format string, a ...any) {
	l.print("ERROR", ColorBoldRed, format, a...)
}

// Warn logs a message with Warning level
func (l *StdLogger) Warn(format string, a ...any) {
	l.print("WARN", ColorYellow, format, a...)
}

// Info logs a message with Info level
func (l *StdLogger) Info(format string, a ...any) {
	l.print("INFO", ColorGreen, format, a...)
}

// Debug logs a message with Debug level
func (l *StdLogger) Debug(format string, a ...any) {
	if os.Getenv("AMQP_DEBUG") != "1" {
		return
	}
	l.print("DEBUG", ColorPurple, format, a...)
}
