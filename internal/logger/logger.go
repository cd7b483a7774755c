package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	Debug Level = "debug"
	Info  Level = "info"
	Warn  Level = "warn"
	Error Level = "error"
)

// Logger is satisfied by *zap.SugaredLogger.
type Logger interface {
	Debugf(template string, args ...any)
	Infof(template string, args ...any)
	Warnf(template string, args ...any)
	Errorf(template string, args ...any)
	Fatalf(template string, args ...any)
	Infoln(args ...any)
}

func NewZapLogger(level Level) (*zap.SugaredLogger, func(), error) {
	lvl, err := zapcore.ParseLevel(string(level))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: unknown log level %q", err, level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	l, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: can't build zap logger", err)
	}

	sugar := l.Sugar()
	return sugar, func() { _ = sugar.Sync() }, nil
}

func NewNop() Logger {
	return zap.NewNop().Sugar()
}
