package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"probchart/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the process logger from cfg. Stdout uses the console encoder
// in dev and JSON otherwise; the optional rotated file is always JSON.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	level := zap.NewAtomicLevelAt(lvl)

	format := "json"
	if cfg.Environment == "dev" || cfg.Format == "console" {
		format = "console"
	}

	var cores []zapcore.Core

	consoleCore := zapcore.NewCore(stdoutEncoder(format), zapcore.Lock(os.Stdout), level)
	cores = append(cores, consoleCore)

	if cfg.OutputFile != "" {
		writer, err := rotatingWriter(cfg)
		if err != nil {
			return nil, err
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			writer,
			level,
		)
		cores = append(cores, fileCore)
	}

	core := zapcore.NewTee(cores...)

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Environment != "" {
		opts = append(opts, zap.Fields(zap.String("env", cfg.Environment)))
	}
	return zap.New(core, opts...), nil
}

func stdoutEncoder(format string) zapcore.Encoder {
	if format == "console" {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(enc)
	}
	return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
}

// rotatingWriter opens cfg.OutputFile through lumberjack, creating its
// directory. Zero rotation settings fall back to 10MB, 5 backups, 7 days.
func rotatingWriter(cfg config.LogConfig) (zapcore.WriteSyncer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rotate := &lumberjack.Logger{
		Filename:   cfg.OutputFile,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	if rotate.MaxSize <= 0 {
		rotate.MaxSize = 10
	}
	if rotate.MaxBackups <= 0 {
		rotate.MaxBackups = 5
	}
	if rotate.MaxAge <= 0 {
		rotate.MaxAge = 7
	}
	return zapcore.AddSync(rotate), nil
}
