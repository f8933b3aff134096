// Package logging builds the zap logger shared by the CLI and the
// service layer. JSON output for machine consumption by default,
// console output for interactive use.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

// New creates a logger from config.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	case "json", "":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), level)
	return zap.New(core), nil
}
