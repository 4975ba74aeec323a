package logger

import "go.uber.org/zap"

// ZapLogger adapts a zap logger to the Logger interface using its sugared printf calls
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps l. The caller keeps ownership of l and its Sync.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (z *ZapLogger) Fatal(format string, a ...any) { z.sugar.Fatalf(format, a...) }
func (z *ZapLogger) Err(format string, a ...any)   { z.sugar.Errorf(format, a...) }
func (z *ZapLogger) Warn(format string, a ...any)  { z.sugar.Warnf(format, a...) }
func (z *ZapLogger) Info(format string, a ...any)  { z.sugar.Infof(format, a...) }
func (z *ZapLogger) Debug(format string, a ...any) { z.sugar.Debugf(format, a...) }
