package embedding

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrInvalidResourceName is returned for names that are absolute or leave
// the search directories.
var ErrInvalidResourceName = errors.New("invalid embedding resource name")

// Resolver locates a named resource in an ordered list of directories.
type Resolver struct {
	dirs []string
}

// NewResolver returns a resolver searching dirs in order.
func NewResolver(dirs ...string) *Resolver {
	return &Resolver{dirs: append([]string(nil), dirs...)}
}

// Resolve returns the path of name. An absolute name, or a relative one that
// exists from the working directory, is used as-is; otherwise each directory
// is tried in order. Returns ErrResourceNotFound when nothing matches.
func (r *Resolver) Resolve(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty name", ErrResourceNotFound)
	}
	if isRegularFile(name) {
		return name, nil
	}
	if !filepath.IsAbs(name) {
		for _, dir := range r.dirs {
			candidate := filepath.Join(dir, name)
			if isRegularFile(candidate) {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrResourceNotFound, name)
}

// ResolveInDirs resolves name against the search directories only. The name
// must be a local relative path: absolute names and ".." segments are rejected.
func (r *Resolver) ResolveInDirs(name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidResourceName, name)
	}
	for _, dir := range r.dirs {
		candidate := filepath.Join(dir, name)
		if isRegularFile(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrResourceNotFound, name)
}

// Dirs returns a copy of the search directories.
func (r *Resolver) Dirs() []string {
	return append([]string(nil), r.dirs...)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
