package logger

import (
	"fmt"
	"strings"

	"github.com/vzahanych/weather-alert-bot/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.Logger
}

// New builds a logger from the logging section: level, json or console
// encoding, and an optional output file in addition to stdout.
func New(cfg config.LoggingConfig) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if strings.EqualFold(cfg.Format, "console") {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stdout"}
	if cfg.OutputPath != "" {
		zc.OutputPaths = append(zc.OutputPaths, cfg.OutputPath)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{logger}, nil
}

// ParseLevel accepts zap level names plus "warning" and "critical".
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "critical", "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

func NewDevelopment() *Logger {
	logger, _ := zap.NewDevelopment()
	return &Logger{logger}
}

func (l *Logger) Sync() error {
	return l.Logger.Sync()
}
