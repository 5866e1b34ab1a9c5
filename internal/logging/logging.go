package logging

import (
	corelogger "github.com/platformbuilds/dashbridge/pkg/logger"
	"go.uber.org/zap"
)

// Logger is the logging surface internal packages depend on. cmd/ builds the
// concrete pkg/logger implementation and hands it down through FromCoreLogger.
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
}

// Nop discards everything. Handy default for optional logger arguments.
func Nop() Logger {
	return &zapAdapter{logger: zap.NewNop()}
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// FromCoreLogger adapts a pkg/logger.Logger.
func FromCoreLogger(core corelogger.Logger) Logger {
	if core == nil {
		return Nop()
	}
	return &coreAdapter{core: core}
}

// ExtractZapLogger returns the *zap.Logger behind v when it exposes one,
// otherwise a no-op logger.
func ExtractZapLogger(v interface{}) *zap.Logger {
	if zl, ok := v.(interface{ ZapLogger() *zap.Logger }); ok {
		return zl.ZapLogger()
	}
	return zap.NewNop()
}

type coreAdapter struct {
	core corelogger.Logger
}

func (c *coreAdapter) Info(msg string, fields ...interface{})  { c.core.Info(msg, fields...) }
func (c *coreAdapter) Error(msg string, fields ...interface{}) { c.core.Error(msg, fields...) }
func (c *coreAdapter) Warn(msg string, fields ...interface{})  { c.core.Warn(msg, fields...) }
func (c *coreAdapter) Debug(msg string, fields ...interface{}) { c.core.Debug(msg, fields...) }
func (c *coreAdapter) Fatal(msg string, fields ...interface{}) { c.core.Fatal(msg, fields...) }

func (c *coreAdapter) ZapLogger() *zap.Logger {
	return ExtractZapLogger(c.core)
}

type zapAdapter struct {
	logger *zap.Logger
}

func (z *zapAdapter) Info(msg string, fields ...interface{}) {
	z.logger.Sugar().Infow(msg, fields...)
}

func (z *zapAdapter) Error(msg string, fields ...interface{}) {
	z.logger.Sugar().Errorw(msg, fields...)
}

func (z *zapAdapter) Warn(msg string, fields ...interface{}) {
	z.logger.Sugar().Warnw(msg, fields...)
}

func (z *zapAdapter) Debug(msg string, fields ...interface{}) {
	z.logger.Sugar().Debugw(msg, fields...)
}

func (z *zapAdapter) Fatal(msg string, fields ...interface{}) {
	z.logger.Sugar().Fatalw(msg, fields...)
}

func (z *zapAdapter) ZapLogger() *zap.Logger {
	return z.logger
}
