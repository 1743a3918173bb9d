package taproot

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	pySuffix   = ".py"
	initModule = "__init__"
	initFile   = initModule + pySuffix
)

// moduleSegments derives a file's dotted module name, as segments, from its
// path relative to the source root. The extension is dropped and a trailing
// __init__ segment collapses into its package: root/a/b.py becomes [a b],
// root/a/__init__.py becomes [a]. The source root's own __init__.py (rare,
// but legal on disk) yields an empty segment list.
//
// Both paths must already be normalized. A path outside the root fails with
// ErrOutsideSourceRoot.
func moduleSegments(path, sourceRoot string) ([]string, error) {
	rel, err := filepath.Rel(sourceRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%s: %w", path, ErrOutsideSourceRoot)
	}

	rel = strings.TrimSuffix(rel, pySuffix)
	segs := strings.Split(rel, string(filepath.Separator))
	if segs[len(segs)-1] == initModule {
		segs = segs[:len(segs)-1]
	}
	return segs, nil
}

// moduleNameFor is moduleSegments joined with dots.
func moduleNameFor(path, sourceRoot string) (string, error) {
	segs, err := moduleSegments(path, sourceRoot)
	if err != nil {
		return "", err
	}
	return strings.Join(segs, "."), nil
}

// isInitFile reports whether path is a package initializer (__init__.py).
func isInitFile(path string) bool {
	return filepath.Base(path) == initFile
}
