// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field names shared by every component.
const (
	FieldRunID    = "run_id"
	FieldSubRunID = "subrun_id"
	FieldStep     = "step"
	FieldAdapter  = "adapter"
	FieldStatus   = "status"
	FieldDuration = "duration"
)

// Options configures New.
type Options struct {
	// Level is a zap level name. Empty means info.
	Level string
	// Format is "console" or "json". Empty means console.
	Format string
	// Verbose forces debug level.
	Verbose bool
	// Writer receives log lines. Nil means stderr.
	Writer io.Writer
}

// New builds a logger writing to opts.Writer.
func New(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level.SetLevel(parsed)
	}
	if opts.Verbose {
		level.SetLevel(zapcore.DebugLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch opts.Format {
	case "", "console":
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("log format %q must be console or json", opts.Format)
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core), nil
}
