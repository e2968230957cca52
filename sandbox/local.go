package sandbox

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// LocalExecutor implements SandboxExecutor by running the interpreter directly
// on the host inside the staging directory (for development only)
type LocalExecutor struct {
	engine
}

// NewLocalExecutor creates a new LocalExecutor with default implementations and optional interfaces
func NewLocalExecutor(logger *zap.Logger, config *Config, opts ...Option) *LocalExecutor {
	return &LocalExecutor{
		engine: newEngine("local", logger, config, opts...),
	}
}

// Execute runs the code locally (WARNING: This is not isolated and should only be used for development).
// The image is still required so requests stay valid for the container backends.
//
//nolint:gocritic // request struct passed by value per the SandboxExecutor interface
func (l *LocalExecutor) Execute(ctx context.Context, req ExecutionRequest) (ExecutionOutcome, error) {
	return l.execute(ctx, req, l)
}

//nolint:gocritic // request struct passed by value per the launcher interface
func (l *LocalExecutor) command(area *StagingArea, _ ExecutionRequest) ([]string, string, error) {
	args := strings.Fields(l.config.Interpreter)
	args = append(args, area.ScriptName)
	return args, area.Dir, nil
}

// terminate has nothing to do: the context already killed the interpreter process.
func (*LocalExecutor) terminate(context.Context, *StagingArea) {}

func (*LocalExecutor) checkExit(int, string) error {
	return nil
}
