// Package logging builds the zap logger shared by every component.
package logging

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Off is above every level zap logs at.
const Off = zapcore.FatalLevel + 1

// ParseLevel maps a level name to a zap level. trace logs like debug and
// critical like error; off silences everything.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error", "critical":
		return zapcore.ErrorLevel, nil
	case "off":
		return Off, nil
	}
	return zapcore.InfoLevel, errors.Errorf("unknown log level %q", name)
}

// Levels lists the accepted level names from most to least verbose. The
// host's numeric log level indexes into it.
var Levels = []string{"trace", "debug", "info", "warn", "error", "critical", "off"}

// LevelAt returns the level name for a host numeric level, clamped to the
// table.
func LevelAt(n int) string {
	switch {
	case n < 0:
		return Levels[0]
	case n >= len(Levels):
		return Levels[len(Levels)-1]
	}
	return Levels[n]
}

// New returns a JSON logger writing to file, or stderr when file is empty,
// together with the atomic level controlling it.
func New(level, file string) (*zap.Logger, zap.AtomicLevel, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	atom := zap.NewAtomicLevelAt(lvl)

	cfg := zap.NewProductionConfig()
	cfg.Level = atom
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	if file != "" {
		cfg.OutputPaths = []string{file}
		cfg.ErrorOutputPaths = []string{file}
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, errors.Wrap(err, "build logger")
	}
	return log, atom, nil
}

// SetLevel changes atom to the named level.
func SetLevel(atom zap.AtomicLevel, name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	atom.SetLevel(lvl)
	return nil
}
