// Package logging wires the process logger: human-readable console output
// plus a rotating JSON log file for later inspection of training runs.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger construction.
type Options struct {
	Level    string // debug, info, warn, error
	FilePath string // empty disables the file sink
}

// New builds a zap logger with a console core on stdout and, when FilePath
// is set, a JSON core writing through lumberjack rotation.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return nil, err
		}
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleCfg),
		zapcore.Lock(os.Stdout),
		level,
	)

	if opts.FilePath == "" {
		return zap.New(consoleCore), nil
	}

	fileSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    20, // MB
		MaxBackups: 3,
		MaxAge:     30, // days
	})
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		fileSink,
		level,
	)

	return zap.New(zapcore.NewTee(consoleCore, fileCore)), nil
}
