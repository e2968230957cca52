package sandbox

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// listArtifacts returns the names of the entries directly inside dir, sorted,
// without the script itself and without entries matching excludePatterns.
func listArtifacts(fs FileSystem, dir, scriptName string, excludePatterns []string) ([]string, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if name == scriptName {
			continue
		}
		if shouldExcludeFile(name, entry.IsDir(), excludePatterns) {
			continue
		}
		files = append(files, name)
	}

	sort.Strings(files)
	return files, nil
}

// shouldExcludeFile reports whether a top-level entry matches one of the patterns.
// Patterns ending in "/" only match directories; the rest are filepath.Match globs.
func shouldExcludeFile(name string, isDir bool, excludePatterns []string) bool {
	for _, pattern := range excludePatterns {
		if pattern == "" {
			continue
		}

		if strings.HasSuffix(pattern, "/") {
			if !isDir {
				continue
			}
			pattern = strings.TrimSuffix(pattern, "/")
		}

		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}
