package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	z *zap.Logger
}

type Field struct {
	Key string
	Val any
}

func New(level string, jsonEnabled bool) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if jsonEnabled {
		cfg.Encoding = "json"
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.DisableStacktrace = true

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{z: z}, nil
}

// Wrap adapts an existing zap logger, mostly for tests (zaptest, observer).
func Wrap(z *zap.Logger) *Logger {
	return &Logger{z: z}
}

func Nop() *Logger {
	return &Logger{z: zap.NewNop()}
}

func (lg *Logger) Debug(msg string, fields ...Field) {
	lg.z.Debug(msg, convert(fields)...)
}

func (lg *Logger) Info(msg string, fields ...Field) {
	lg.z.Info(msg, convert(fields)...)
}

func (lg *Logger) Warn(msg string, fields ...Field) {
	lg.z.Warn(msg, convert(fields)...)
}

func (lg *Logger) Error(msg string, fields ...Field) {
	lg.z.Error(msg, convert(fields)...)
}

func (lg *Logger) Sync() error {
	return lg.z.Sync()
}

func convert(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		if err, ok := f.Val.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Val))
	}
	return out
}
