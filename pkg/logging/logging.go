package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON logger at level (debug | info | warn | error).
func New(level string) (*zap.Logger, zap.AtomicLevel, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("logging: %w", err)
	}
	atom := zap.NewAtomicLevelAt(lvl)

	cfg := zap.NewProductionConfig()
	cfg.Level = atom
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("logging: build: %w", err)
	}
	return logger, atom, nil
}

// SetLevel parses level and applies it to atom. The old level is kept when
// level is invalid.
func SetLevel(atom zap.AtomicLevel, level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	atom.SetLevel(lvl)
	return nil
}
