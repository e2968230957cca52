package sandbox

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
)

// MockCommandRunner implements CommandRunner for testing
type MockCommandRunner struct {
	mu    sync.Mutex
	calls [][]string
	dirs  []string
	run   func(ctx context.Context, args []string) (string, int, error)
}

func (m *MockCommandRunner) RunCommand(ctx context.Context, args []string, dir string) (output string, exitCode int, err error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), args...))
	m.dirs = append(m.dirs, dir)
	run := m.run
	m.mu.Unlock()

	if run == nil {
		return "", 0, nil
	}
	return run(ctx, args)
}

func (m *MockCommandRunner) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.calls...)
}

// hostDirFromArgs returns the src of the "--mount type=bind,src=...,dst=..." bind mount.
func hostDirFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--mount" && i+1 < len(args) {
			for _, field := range strings.Split(args[i+1], ",") {
				if src, ok := strings.CutPrefix(field, "src="); ok {
					return src
				}
			}
		}
	}
	return ""
}

// FaultyFileSystem wraps RealFileSystem and injects errors for selected operations
type FaultyFileSystem struct {
	RealFileSystem
	absErr      error
	mkdirAllErr error
	writeErr    error
	readDirErr  error
	removeErr   error
}

func (f FaultyFileSystem) Abs(path string) (string, error) {
	if f.absErr != nil {
		return "", f.absErr
	}
	return f.RealFileSystem.Abs(path)
}

func (f FaultyFileSystem) MkdirAll(path string, perm os.FileMode) error {
	if f.mkdirAllErr != nil {
		return f.mkdirAllErr
	}
	return f.RealFileSystem.MkdirAll(path, perm)
}

func (f FaultyFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.RealFileSystem.WriteFile(filename, data, perm)
}

func (f FaultyFileSystem) ReadDir(dirname string) ([]os.DirEntry, error) {
	if f.readDirErr != nil {
		return nil, f.readDirErr
	}
	return f.RealFileSystem.ReadDir(dirname)
}

func (f FaultyFileSystem) Remove(path string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.RealFileSystem.Remove(path)
}

var errPermissionDenied = errors.New("permission denied")
