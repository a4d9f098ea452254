package fsys

import (
	"fmt"
	"path/filepath"
)

// MaxLinkHops bounds symlink chain resolution.
const MaxLinkHops = 40

// LinkTarget returns the absolute path a symlink entry points to.
func LinkTarget(e PathEntry) string {
	if e.LinkTarget == "" || filepath.IsAbs(e.LinkTarget) {
		return filepath.Clean(e.LinkTarget)
	}
	return filepath.Join(filepath.Dir(e.Path), e.LinkTarget)
}

// Follow resolves exactly one hop of a symlink. Non-links are returned as is.
func Follow(p Provider, e PathEntry) (PathEntry, error) {
	if !e.IsSymlink() {
		return e, nil
	}
	return p.Stat(LinkTarget(e))
}

// Resolve follows a chain of symlinks until it reaches a non-link entry.
// It stops with ErrLinkLoop after MaxLinkHops hops.
func Resolve(p Provider, e PathEntry) (PathEntry, error) {
	for hops := 0; e.IsSymlink(); hops++ {
		if hops >= MaxLinkHops {
			return e, fmt.Errorf("resolve %s: %w", e.Path, ErrLinkLoop)
		}
		next, err := p.Stat(LinkTarget(e))
		if err != nil {
			return e, err
		}
		e = next
	}
	return e, nil
}
