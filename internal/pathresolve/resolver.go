// Package pathresolve turns a command name into a concrete executable path
// using a fixed, OS-style search order.
package pathresolve

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotFound is returned when no candidate location holds a regular file.
var ErrNotFound = errors.New("executable not found")

// Candidate is a single location probed during resolution.
type Candidate struct {
	Path string
	// HasExtension reports whether Path already carries a file extension,
	// in which case no suffixed variant is generated for it.
	HasExtension bool
}

// Resolver resolves command names against the filesystem.
type Resolver struct {
	// Fs is the filesystem probed for candidates. Defaults to the OS filesystem.
	Fs afero.Fs
	// Suffix is appended to extension-less candidates as a second try.
	// Empty disables suffixed candidates.
	Suffix string
}

// New creates a Resolver on the OS filesystem with the platform suffix.
func New() *Resolver {
	return &Resolver{
		Fs:     afero.NewOsFs(),
		Suffix: PlatformSuffix(),
	}
}

// PlatformSuffix returns the conventional executable suffix for the running OS.
func PlatformSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// SplitSearchPath splits a PATH-style list using the OS list separator.
// Empty entries are dropped.
func SplitSearchPath(value string) []string {
	var dirs []string
	for _, dir := range filepath.SplitList(value) {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs
}

// Candidates returns every location Resolve would probe, in probe order.
func (r *Resolver) Candidates(name, cwd string, searchPath []string) []Candidate {
	if name == "" {
		return nil
	}

	if filepath.IsAbs(name) {
		return r.expand(name)
	}

	candidates := r.expand(filepath.Join(cwd, name))
	for _, dir := range searchPath {
		if dir == "" {
			continue
		}
		candidates = append(candidates, r.expand(filepath.Join(dir, name))...)
	}
	return candidates
}

// Resolve returns the first candidate that exists as a regular file.
// Resolution stops at the first hit; later candidates are never probed.
func (r *Resolver) Resolve(name, cwd string, searchPath []string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty command name: %w", ErrNotFound)
	}

	for _, candidate := range r.Candidates(name, cwd, searchPath) {
		if r.isFile(candidate.Path) {
			return candidate.Path, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotFound)
}

// expand yields the bare path followed by its suffixed variant, if any.
func (r *Resolver) expand(path string) []Candidate {
	hasExt := filepath.Ext(path) != ""
	candidates := []Candidate{{Path: path, HasExtension: hasExt}}
	if !hasExt && r.Suffix != "" {
		candidates = append(candidates, Candidate{Path: path + r.Suffix, HasExtension: true})
	}
	return candidates
}

func (r *Resolver) isFile(path string) bool {
	fs := r.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
