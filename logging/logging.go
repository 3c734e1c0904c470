// Package logging provides the structured logger used by every robotcom
// component: a small interface over zap so call sites never import zap
// directly, plus constructors for production and test use.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface every robotcom package depends on.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Named(name string) Logger
}

type sugarLogger struct {
	*zap.SugaredLogger
}

func (s *sugarLogger) Named(name string) Logger {
	return &sugarLogger{s.SugaredLogger.Named(name)}
}

// NewDevelopment returns a human-readable console logger suitable for
// cmd/ entrypoints.
func NewDevelopment() Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	return &sugarLogger{l.Sugar()}
}

// NewTestLogger returns a Logger that writes through tb.Log so daemon
// output lands in the test log.
func NewTestLogger(tb testing.TB) Logger {
	return &sugarLogger{zaptest(tb).Sugar()}
}

func zaptest(tb testing.TB) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg.EncoderConfig),
		zapcore.AddSync(&testWriter{tb}),
		zapcore.DebugLevel,
	)
	return zap.New(core)
}

type testWriter struct {
	tb testing.TB
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.tb.Helper()
	w.tb.Log(string(p))
	return len(p), nil
}
