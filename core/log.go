package core

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new zap logger writing to stdout.
// json - if true logs are in json format
// debug - if true debug messages (such as full pipelines) are logged
func NewLogger(json, debug bool) *zap.Logger {
	return NewLoggerWithOutput(json, debug, os.Stdout)
}

// NewLoggerWithOutput creates a new zap logger with a custom output.
func NewLoggerWithOutput(json, debug bool, output zapcore.WriteSyncer) *zap.Logger {
	econf := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	var encoder zapcore.Encoder
	if json {
		encoder = zapcore.NewJSONEncoder(econf)
	} else {
		encoder = zapcore.NewConsoleEncoder(econf)
	}
	return zap.New(zapcore.NewCore(encoder, output, level)).Named("odm")
}

// LoggerFromConfig creates the logger described by the configuration.
func LoggerFromConfig(config *Config) *zap.Logger {
	return NewLogger(config.LogJSON, config.Debug)
}
