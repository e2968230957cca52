package sandbox

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
)

// RuntimeErrorExitCode is the status docker and podman report when the runtime
// itself failed (daemon unreachable, image missing, invalid run options).
const RuntimeErrorExitCode = 125

// ContainerExecutor implements SandboxExecutor by shelling out to a container runtime CLI
type ContainerExecutor struct {
	engine
	runtime string
}

// NewDockerExecutor creates a ContainerExecutor using the docker CLI
func NewDockerExecutor(logger *zap.Logger, config *Config, opts ...Option) *ContainerExecutor {
	return NewContainerExecutor("docker", logger, config, opts...)
}

// NewContainerExecutor creates a ContainerExecutor for a docker-compatible runtime binary
func NewContainerExecutor(runtime string, logger *zap.Logger, config *Config, opts ...Option) *ContainerExecutor {
	return &ContainerExecutor{
		engine:  newEngine(runtime, logger, config, opts...),
		runtime: runtime,
	}
}

// Execute runs the code in a fresh, auto-removed container
//
//nolint:gocritic // request struct passed by value per the SandboxExecutor interface
func (c *ContainerExecutor) Execute(ctx context.Context, req ExecutionRequest) (ExecutionOutcome, error) {
	return c.execute(ctx, req, c)
}

// Runtime returns the runtime binary name
func (c *ContainerExecutor) Runtime() string {
	return c.runtime
}

func containerName(runID string) string {
	return "runbox-" + runID
}

// bindMount builds the --mount value. The value is comma separated, so a
// host path containing a comma cannot be expressed.
func bindMount(hostDir, containerDir string) (string, error) {
	if strings.ContainsAny(hostDir, ",\n") {
		return "", fmt.Errorf("staging directory %q cannot be bind-mounted: path contains a comma or newline", hostDir)
	}
	return fmt.Sprintf("type=bind,src=%s,dst=%s", hostDir, containerDir), nil
}

//nolint:gocritic // request struct passed by value per the launcher interface
func (c *ContainerExecutor) command(area *StagingArea, req ExecutionRequest) ([]string, string, error) {
	workdir := c.config.ContainerWorkdir

	mount, err := bindMount(area.Dir, workdir)
	if err != nil {
		return nil, "", err
	}

	cmdArgs := []string{
		c.runtime, "run",
		"--rm", // Remove container after execution
		"--name", containerName(area.RunID),
		"--mount", mount,
		"-w", workdir,
	}

	if !c.config.NetworkEnabled {
		cmdArgs = append(cmdArgs, "--network", "none")
	}

	if c.config.MemoryMB > 0 {
		cmdArgs = append(cmdArgs, "--memory", fmt.Sprintf("%dm", c.config.MemoryMB))
	}

	cmdArgs = append(cmdArgs, req.Image)
	cmdArgs = append(cmdArgs, strings.Fields(c.config.Interpreter)...)
	cmdArgs = append(cmdArgs, path.Join(workdir, area.ScriptName))

	return cmdArgs, "", nil
}

// terminate force-removes the container; killing the CLI alone leaves it running.
func (c *ContainerExecutor) terminate(ctx context.Context, area *StagingArea) {
	name := containerName(area.RunID)
	output, exitCode, err := c.cmdRunner.RunCommand(ctx, []string{c.runtime, "rm", "--force", name}, "")
	if err != nil || exitCode != 0 {
		c.logger.Warn("failed to remove container after interrupted run",
			zap.String("container", name),
			zap.Int("exit_code", exitCode),
			zap.String("output", strings.TrimSpace(output)),
			zap.Error(err))
		return
	}
	c.logger.Info("removed container after interrupted run", zap.String("container", name))
}

func (c *ContainerExecutor) checkExit(exitCode int, output string) error {
	if exitCode != RuntimeErrorExitCode {
		return nil
	}
	return &EnvironmentError{
		Op:     OpRuntime,
		Err:    fmt.Errorf("%s run exited with status %d", c.runtime, exitCode),
		Output: output,
	}
}
