package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isdmx/runbox/config"
)

// Logging modes
const (
	ModeProduction  = "production"
	ModeDevelopment = "development"
)

// NewFromConfig builds the application logger from the logging section of cfg.
func NewFromConfig(cfg *config.Config) (*zap.Logger, error) {
	l, err := New(cfg.Logging.Mode, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return l.Named("runbox"), nil
}

// New builds a zap logger for mode at level.
// Both modes write to stderr so stdout stays free for the stdio transport and CLI reports.
func New(mode, level string) (*zap.Logger, error) {
	zcfg, err := baseConfig(mode)
	if err != nil {
		return nil, err
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging level: %s, must be one of 'debug', 'info', 'warn', 'error', 'dpanic', 'panic', 'fatal'", level)
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	return zcfg.Build()
}

func baseConfig(mode string) (zap.Config, error) {
	switch mode {
	case ModeDevelopment:
		zcfg := zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zcfg, nil
	case ModeProduction:
		zcfg := zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		// Keep every per-run record.
		zcfg.Sampling = nil
		return zcfg, nil
	default:
		return zap.Config{}, fmt.Errorf("invalid logging mode: %s, must be '%s' or '%s'", mode, ModeProduction, ModeDevelopment)
	}
}

// ForRun scopes l to a single sandbox invocation.
func ForRun(l *zap.Logger, runID, backend string) *zap.Logger {
	return l.With(zap.String("run_id", runID), zap.String("backend", backend))
}
