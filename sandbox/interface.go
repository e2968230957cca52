package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ExecutionRequest represents the parameters for code execution
type ExecutionRequest struct {
	Code  string
	Image string
	// Timeout optionally tightens the configured execution timeout for this call.
	Timeout time.Duration
}

// ExecutionOutcome is the terminal record of one invocation.
type ExecutionOutcome struct {
	RunID         string        `json:"run_id" yaml:"run_id"`
	Succeeded     bool          `json:"succeeded" yaml:"succeeded"`
	ExitCode      int           `json:"exit_code" yaml:"exit_code"`
	ConsoleText   string        `json:"console_text" yaml:"console_text"`
	ProducedFiles []string      `json:"produced_files" yaml:"produced_files"`
	OutputDir     string        `json:"output_dir" yaml:"output_dir"`
	TimedOut      bool          `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`
	Canceled      bool          `json:"canceled,omitempty" yaml:"canceled,omitempty"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
	Warnings      []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// SandboxExecutor defines the interface for sandbox execution.
//
// Failures of the executed code (non-zero exit, timeout, cancellation) are
// reported in the outcome. The error return is reserved for ErrInvalidRequest
// and *EnvironmentError.
type SandboxExecutor interface {
	Execute(ctx context.Context, req ExecutionRequest) (ExecutionOutcome, error)
}

// ErrInvalidRequest marks configuration errors detected before anything is staged.
var ErrInvalidRequest = errors.New("invalid execution request")

// Environment error operations
const (
	OpStage   = "stage"
	OpLaunch  = "launch"
	OpRuntime = "runtime"
)

// EnvironmentError reports that the host could not run the sandbox at all:
// the staging directory could not be prepared, the runtime binary could not be
// started, or the runtime itself failed.
type EnvironmentError struct {
	Op     string
	Err    error
	Output string
}

func (e *EnvironmentError) Error() string {
	msg := fmt.Sprintf("sandbox %s failed: %v", e.Op, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// CommandRunner defines an interface for executing system commands.
// Output is the interleaved stdout and stderr of the process.
type CommandRunner interface {
	RunCommand(ctx context.Context, args []string, dir string) (output string, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands
type RealCommandRunner struct {
	// WaitDelay bounds how long output pipes are drained after the process is killed.
	WaitDelay time.Duration
}

// RunCommand executes the given command with arguments in dir.
// A process that ran and exited (or was killed) yields a nil error and its exit code;
// an error is returned only when the process could not be started or waited for.
func (r RealCommandRunner) RunCommand(ctx context.Context, args []string, dir string) (output string, exitCode int, err error) {
	if len(args) < 1 {
		return "", 0, errors.New("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // Safe as this is controlled input
	cmd.Dir = dir
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	// A single comparable writer gets serialized writes from both streams.
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err = cmd.Run()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return buf.String(), exitError.ExitCode(), nil
		}
		if ctx.Err() != nil && cmd.ProcessState != nil {
			return buf.String(), -1, nil
		}
		return buf.String(), 0, err
	}

	return buf.String(), 0, nil
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	Abs(path string) (string, error)
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
	ReadDir(dirname string) ([]os.DirEntry, error)
	Remove(path string) error
	FileExists(path string) (bool, error)
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) Abs(path string) (string, error) {
	return filepath.Abs(path)
}

func (RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) ReadDir(dirname string) ([]os.DirEntry, error) {
	return os.ReadDir(dirname)
}

func (RealFileSystem) Remove(path string) error {
	return os.Remove(path)
}

func (RealFileSystem) FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// File permission constants. The script must stay readable for a container
// user that differs from the host user.
const (
	DirPermission    = 0755
	ScriptPermission = 0644
)

// Timing defaults
const (
	DefaultWaitDelay        = 5 * time.Second
	DefaultTerminateTimeout = 10 * time.Second
)
