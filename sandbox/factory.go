package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
)

// ConfigFromApp extracts the executor settings from the application configuration
func ConfigFromApp(cfg *config.Config) *Config {
	return &Config{
		Interpreter:      cfg.Sandbox.Interpreter,
		ResultsDir:       cfg.Sandbox.ResultsDir,
		ScriptName:       cfg.Sandbox.ScriptName,
		ContainerWorkdir: cfg.Sandbox.ContainerWorkdir,
		StagingMode:      cfg.Sandbox.StagingMode,
		AllowedImages:    cfg.Sandbox.AllowedImages,
		Timeout:          cfg.GetTimeout(),
		MemoryMB:         cfg.Sandbox.MemoryMB,
		NetworkEnabled:   cfg.Sandbox.NetworkEnabled,
		ExcludePatterns:  cfg.Sandbox.ExcludePatterns,
	}
}

// NewExecutor creates an appropriate sandbox executor based on the configuration.
// metrics may be nil.
func NewExecutor(logger *zap.Logger, cfg *config.Config, metrics *Metrics) (SandboxExecutor, error) {
	executorConfig := ConfigFromApp(cfg)
	opts := []Option{WithMetrics(metrics)}

	switch cfg.Sandbox.Backend {
	case config.BackendDocker:
		return NewDockerExecutor(logger, executorConfig, opts...), nil
	case config.BackendPodman:
		return NewPodmanExecutor(logger, executorConfig, opts...), nil
	case config.BackendLocal:
		if !cfg.Sandbox.EnableLocalBackend {
			return nil, fmt.Errorf("local backend requires sandbox.enable_local_backend")
		}
		return NewLocalExecutor(logger, executorConfig, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}
}
