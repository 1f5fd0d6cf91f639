package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions are the document extensions of the news corpus.
var DefaultExtensions = []string{".htm"}

// Discover walks root recursively and returns every regular file whose
// extension is in exts (case-insensitive; all files when exts is empty).
// Paths are sorted by file name, ties broken by full path.
func Discover(root string, exts []string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absRoot)
	}
	var paths []string
	err = filepath.WalkDir(absRoot, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !HasExtension(path, exts) {
			return nil
		}
		// Resolve symlinks so only regular files are returned.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absRoot, err)
	}
	SortPaths(paths)
	return paths, nil
}

// SortPaths orders paths by file name, then by full path.
func SortPaths(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		ni, nj := filepath.Base(paths[i]), filepath.Base(paths[j])
		if ni != nj {
			return ni < nj
		}
		return paths[i] < paths[j]
	})
}

// HasExtension reports whether path has one of exts. Extensions may be given
// with or without the leading dot. An empty list allows every path.
func HasExtension(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	for _, a := range exts {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}
