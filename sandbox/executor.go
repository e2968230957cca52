package sandbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/logger"
)

// Config holds configuration shared by all executors
type Config struct {
	Interpreter      string
	ResultsDir       string
	ScriptName       string
	ContainerWorkdir string
	StagingMode      string
	AllowedImages    []string
	Timeout          time.Duration
	MemoryMB         int
	NetworkEnabled   bool
	ExcludePatterns  []string
}

// imageRefPattern accepts [registry[:port]/]name[:tag][@digest] references. The
// leading alphanumeric keeps a caller-supplied image from being read as a run flag.
var imageRefPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/:@-]*$`)

// Option defines a functional option shared by the executors
type Option func(*engine)

// WithCommandRunner sets the CommandRunner used to launch processes
func WithCommandRunner(cmdRunner CommandRunner) Option {
	return func(e *engine) {
		e.cmdRunner = cmdRunner
	}
}

// WithFileSystem sets the FileSystem used for staging
func WithFileSystem(fs FileSystem) Option {
	return func(e *engine) {
		e.fs = fs
	}
}

// WithMetrics sets the collectors updated after every invocation
func WithMetrics(metrics *Metrics) Option {
	return func(e *engine) {
		e.metrics = metrics
	}
}

// launcher is the backend-specific part of an invocation.
type launcher interface {
	// command returns the argv and host working directory for the run.
	command(area *StagingArea, req ExecutionRequest) (args []string, dir string, err error)
	// terminate stops whatever outlived an interrupted run.
	terminate(ctx context.Context, area *StagingArea)
	// checkExit maps runtime-level exit statuses to environment errors.
	checkExit(exitCode int, output string) error
}

// engine runs the staging, execution, collection and cleanup sequence common to all backends.
type engine struct {
	backend   string
	logger    *zap.Logger
	config    *Config
	cmdRunner CommandRunner
	fs        FileSystem
	metrics   *Metrics
	stager    *Stager
	newRunID  func() string
}

func newEngine(backend string, log *zap.Logger, config *Config, opts ...Option) engine {
	e := engine{
		backend:   backend,
		logger:    log,
		config:    config,
		cmdRunner: RealCommandRunner{},
		fs:        RealFileSystem{},
		newRunID:  uuid.NewString,
	}

	for _, opt := range opts {
		opt(&e)
	}

	e.stager = NewStager(e.fs, config.ResultsDir, config.ScriptName, config.StagingMode)
	return e
}

func (e *engine) validateRequest(req ExecutionRequest) error {
	if strings.TrimSpace(req.Image) == "" {
		return fmt.Errorf("%w: image name is not configured", ErrInvalidRequest)
	}
	if !imageRefPattern.MatchString(req.Image) {
		return fmt.Errorf("%w: invalid image reference %q", ErrInvalidRequest, req.Image)
	}
	if len(e.config.AllowedImages) > 0 && !slices.Contains(e.config.AllowedImages, req.Image) {
		return fmt.Errorf("%w: image %q not in allowlist", ErrInvalidRequest, req.Image)
	}
	if req.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidRequest, req.Timeout)
	}
	return nil
}

// timeoutFor picks the tighter of the configured and requested timeouts.
func (e *engine) timeoutFor(req ExecutionRequest) time.Duration {
	timeout := e.config.Timeout
	if req.Timeout > 0 && (timeout <= 0 || req.Timeout < timeout) {
		timeout = req.Timeout
	}
	return timeout
}

//nolint:gocritic // request struct passed by value like the SandboxExecutor interface
func (e *engine) execute(ctx context.Context, req ExecutionRequest, l launcher) (outcome ExecutionOutcome, err error) {
	start := time.Now()
	runID := e.newRunID()
	log := logger.ForRun(e.logger, runID, e.backend)

	defer func() {
		status := outcomeStatus(outcome)
		var envErr *EnvironmentError
		switch {
		case errors.Is(err, ErrInvalidRequest):
			status = StatusInvalid
		case errors.As(err, &envErr):
			status = StatusEnvironment
		}
		e.metrics.observe(e.backend, status, time.Since(start), len(outcome.ProducedFiles))
	}()

	if err = e.validateRequest(req); err != nil {
		log.Warn("rejected execution request", zap.Error(err))
		return ExecutionOutcome{}, err
	}

	area, err := e.stager.Acquire(runID)
	if err != nil {
		log.Error("failed to prepare staging directory", zap.Error(err))
		return ExecutionOutcome{}, err
	}
	defer area.Release()

	// The script is released on every path from here on, including launch errors and panics.
	defer func() {
		if rmErr := area.RemoveScript(); rmErr != nil {
			log.Warn("failed to clean up script", zap.String("path", area.ScriptPath), zap.Error(rmErr))
			e.metrics.cleanupFailed(e.backend)
			if err == nil {
				outcome.Warnings = append(outcome.Warnings, rmErr.Error())
			}
			return
		}
		log.Debug("script cleaned up", zap.String("path", area.ScriptPath))
	}()

	if err = area.WriteScript(req.Code); err != nil {
		log.Error("failed to materialize script", zap.Error(err))
		return ExecutionOutcome{}, err
	}

	outcome, err = e.run(ctx, log, area, req, l)
	if err != nil {
		return ExecutionOutcome{}, err
	}

	files, listErr := listArtifacts(e.fs, area.Dir, area.ScriptName, e.config.ExcludePatterns)
	if listErr != nil {
		log.Warn("failed to enumerate output files", zap.Error(listErr))
		outcome.Warnings = append(outcome.Warnings, listErr.Error())
	}
	outcome.ProducedFiles = files
	outcome.Duration = time.Since(start)

	log.Info("execution finished",
		zap.Bool("succeeded", outcome.Succeeded),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Bool("timed_out", outcome.TimedOut),
		zap.Bool("canceled", outcome.Canceled),
		zap.Int("output_len", len(outcome.ConsoleText)),
		zap.Strings("produced_files", files),
		zap.Duration("duration", outcome.Duration))

	return outcome, nil
}

// run launches the process and turns its result into an outcome without the file list.
//
//nolint:gocritic // request struct passed by value like the SandboxExecutor interface
func (e *engine) run(ctx context.Context, log *zap.Logger, area *StagingArea, req ExecutionRequest, l launcher) (ExecutionOutcome, error) {
	timeout := e.timeoutFor(req)
	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	args, dir, err := l.command(area, req)
	if err != nil {
		log.Error("cannot mount staging directory", zap.String("staging_dir", area.Dir), zap.Error(err))
		return ExecutionOutcome{}, &EnvironmentError{Op: OpStage, Err: err}
	}
	log.Info("executing code in sandbox",
		zap.String("image", req.Image),
		zap.String("staging_dir", area.Dir),
		zap.Strings("command", args),
		zap.Duration("timeout", timeout))

	output, exitCode, runErr := e.cmdRunner.RunCommand(runCtx, args, dir)

	outcome := ExecutionOutcome{
		RunID:       area.RunID,
		ExitCode:    exitCode,
		ConsoleText: output,
		OutputDir:   area.Dir,
	}

	// A run that completed cleanly just before the deadline keeps its result.
	if ctxErr := runCtx.Err(); ctxErr != nil && (runErr != nil || exitCode != 0) {
		stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTerminateTimeout)
		l.terminate(stopCtx, area)
		stopCancel()

		outcome.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			outcome.TimedOut = true
			log.Warn("execution timed out", zap.Duration("timeout", timeout))
		} else {
			outcome.Canceled = true
			log.Warn("execution canceled", zap.Error(ctxErr))
		}
		return outcome, nil
	}

	if runErr != nil {
		log.Error("failed to launch sandbox", zap.Strings("command", args), zap.Error(runErr))
		return ExecutionOutcome{}, &EnvironmentError{Op: OpLaunch, Err: runErr, Output: output}
	}

	if envErr := l.checkExit(exitCode, output); envErr != nil {
		log.Error("sandbox runtime failed", zap.Int("exit_code", exitCode), zap.Error(envErr))
		return ExecutionOutcome{}, envErr
	}

	outcome.Succeeded = exitCode == 0
	return outcome, nil
}
