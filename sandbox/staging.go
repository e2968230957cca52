package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/isdmx/runbox/config"
)

// Stager hands out staging areas below a results directory.
//
// In isolated mode every invocation gets its own <results>/<run-id> directory,
// removed again on release when the run left nothing in it.
// In shared mode all invocations use <results> itself and are serialized by
// the stager, so only one area is held at a time within a process.
type Stager struct {
	fs         FileSystem
	resultsDir string
	scriptName string
	mode       string
	mu         sync.Mutex
}

// NewStager creates a Stager. An unknown mode falls back to isolated.
func NewStager(fs FileSystem, resultsDir, scriptName, mode string) *Stager {
	if mode != config.StagingShared {
		mode = config.StagingIsolated
	}
	return &Stager{
		fs:         fs,
		resultsDir: resultsDir,
		scriptName: scriptName,
		mode:       mode,
	}
}

// removeIfEmpty drops an isolated run directory that holds no output.
func (s *Stager) removeIfEmpty(dir string) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	_ = s.fs.Remove(dir)
}

// StagingArea is the host directory bind-mounted for one invocation.
type StagingArea struct {
	RunID      string
	Dir        string
	ScriptName string
	ScriptPath string

	fs       FileSystem
	release  func()
	released bool
}

// Acquire resolves and creates the staging directory for runID.
// The caller must call Release on the returned area.
func (s *Stager) Acquire(runID string) (*StagingArea, error) {
	root, err := s.fs.Abs(s.resultsDir)
	if err != nil {
		return nil, &EnvironmentError{Op: OpStage, Err: fmt.Errorf("failed to resolve results directory %s: %w", s.resultsDir, err)}
	}

	dir := root
	release := func() {}
	if s.mode == config.StagingShared {
		s.mu.Lock()
		release = s.mu.Unlock
	} else {
		dir = filepath.Join(root, runID)
		release = func() { s.removeIfEmpty(dir) }
	}

	if err := s.fs.MkdirAll(dir, DirPermission); err != nil {
		release()
		return nil, &EnvironmentError{Op: OpStage, Err: fmt.Errorf("could not create the results directory at %s: %w", dir, err)}
	}

	return &StagingArea{
		RunID:      runID,
		Dir:        dir,
		ScriptName: s.scriptName,
		ScriptPath: filepath.Join(dir, s.scriptName),
		fs:         s.fs,
		release:    release,
	}, nil
}

// WriteScript materializes code verbatim, overwriting any previous script.
func (a *StagingArea) WriteScript(code string) error {
	if err := a.fs.WriteFile(a.ScriptPath, []byte(code), ScriptPermission); err != nil {
		return &EnvironmentError{Op: OpStage, Err: fmt.Errorf("failed to write script %s: %w", a.ScriptPath, err)}
	}
	return nil
}

// RemoveScript deletes the script if it still exists.
func (a *StagingArea) RemoveScript() error {
	exists, err := a.fs.FileExists(a.ScriptPath)
	if err != nil {
		return fmt.Errorf("failed to stat script %s: %w", a.ScriptPath, err)
	}
	if !exists {
		return nil
	}
	if err := a.fs.Remove(a.ScriptPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove script %s: %w", a.ScriptPath, err)
	}
	return nil
}

// Release gives the area back to its stager. Output files stay on disk; an
// empty isolated run directory is removed.
func (a *StagingArea) Release() {
	if a.released {
		return
	}
	a.released = true
	a.release()
}
