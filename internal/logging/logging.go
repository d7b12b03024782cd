package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the daemon-wide logger (internal/config's YAML loader
// populates this from the configuration file's "log_level"/"log_dev" keys).
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Empty defaults
	// to "info".
	Level string
	// Dev selects zap's development encoder config (console, caller
	// line, stack traces on warn) instead of the production JSON
	// encoder. Daemons normally run with Dev false.
	Dev bool
}

// New builds a *zap.SugaredLogger per cfg. A zero Config yields a
// production JSON logger at info level, matching the default a daemon
// started without "-D" would want.
func New(cfg Config) (*zap.SugaredLogger, error) {
	var zc zap.Config
	if cfg.Dev {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	lvl, err := levelOf(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func levelOf(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return lvl, nil
}

// Nop returns a logger that discards everything, for callers (tests,
// library use of internal/store without a daemon) that don't want to
// wire a real sink.
func Nop() *zap.SugaredLogger { return zap.NewNop().Sugar() }

// Component returns a child logger tagged with the "component" field, the
// convention internal/store, internal/server, and internal/collector use
// to identify which subsystem emitted a given line.
func Component(log *zap.SugaredLogger, name string) *zap.SugaredLogger {
	if log == nil {
		return Nop()
	}
	return log.With("component", name)
}
