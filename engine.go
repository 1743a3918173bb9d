package taproot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// Engine orchestrates a build: file enumeration under the configured include
// paths, the per-file pipeline (hash, name, parse, resolve), and the merge
// into a DependencyMap.
type Engine struct {
	sourceRoot     string
	includePaths   []string
	filterPrefixes []string

	// useParallel enables the worker-pool pipeline.
	useParallel bool

	// workers caps the pool size; 0 means one worker per CPU.
	workers int

	// Per-build timing, accumulated by the workers.
	parseNanos   atomic.Int64
	resolveNanos atomic.Int64
	stats        BuildStats
}

// BuildStats reports timing for the most recent Build. Parse and Resolve sum
// per-file work across all workers, so on a parallel build they can exceed
// the Total wall-clock time.
type BuildStats struct {
	Files   int
	Total   time.Duration
	Parse   time.Duration
	Resolve time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallel controls the parallel pipeline. When true (default), Build
// fans per-file work out to a worker pool and folds results serially. Set to
// false for strictly serial operation; the resulting map is identical.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers caps the worker pool size. Zero (the default) means one worker
// per CPU, bounded by the number of files.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// New creates an Engine rooted at sourceRoot, which must be an existing
// directory. Relative include paths are taken under the root; every include
// path must stay inside it. filterPrefixes are the dotted-name prefixes that
// count as project-internal imports.
func New(sourceRoot string, includePaths, filterPrefixes []string, opts ...Option) (*Engine, error) {
	root := normalizePath(sourceRoot)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("taproot: source root %s: %w", sourceRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("taproot: source root %s is not a directory", sourceRoot)
	}

	e := &Engine{
		sourceRoot:     root,
		includePaths:   append([]string(nil), includePaths...),
		filterPrefixes: append([]string(nil), filterPrefixes...),
		useParallel:    true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// SourceRoot returns the normalized root the Engine scans under.
func (e *Engine) SourceRoot() string {
	return e.sourceRoot
}

// BuildDependencyMap builds a map in one call, with New's validation and
// Build's semantics. See Engine for the configurable form.
func BuildDependencyMap(ctx context.Context, sourceRoot string, includePaths, filterPrefixes []string, opts ...Option) (*DependencyMap, error) {
	e, err := New(sourceRoot, includePaths, filterPrefixes, opts...)
	if err != nil {
		return nil, err
	}
	return e.Build(ctx)
}

// Build enumerates every Python file under the include paths and assembles
// the dependency map. The result is a pure function of the files' bytes and
// the Engine's configuration: unchanged inputs yield an identical map.
//
// Syntax errors and unreadable files never fail a build; they surface as
// diagnostics. Build fails on configuration problems (missing include path,
// include path outside the root, duplicate files) and on context
// cancellation.
func (e *Engine) Build(ctx context.Context) (*DependencyMap, error) {
	start := time.Now()
	e.parseNanos.Store(0)
	e.resolveNanos.Store(0)

	paths, err := e.enumerate()
	if err != nil {
		return nil, err
	}

	res := newResolver(e.sourceRoot, e.filterPrefixes)

	var results []fileResult
	if e.useParallel {
		results, err = e.buildParallel(ctx, paths, res)
	} else {
		results, err = e.buildSerial(ctx, paths, res)
	}
	if err != nil {
		return nil, err
	}

	m := e.merge(results)
	e.stats = BuildStats{
		Files:   len(m.Files),
		Total:   time.Since(start),
		Parse:   time.Duration(e.parseNanos.Load()),
		Resolve: time.Duration(e.resolveNanos.Load()),
	}
	return m, nil
}

// Stats returns timing for the most recent Build. The zero value is returned
// before the first build completes.
func (e *Engine) Stats() BuildStats {
	return e.stats
}

// skipDirs are directory names never scanned for source files.
var skipDirs = map[string]bool{
	"__pycache__":  true,
	"node_modules": true,
	"venv":         true,
}

// enumerate lists every file to index: normalized, deduplicated, sorted.
// Include paths naming a directory are walked recursively for .py files,
// skipping dot-directories and skipDirs; include paths naming a file are
// taken as-is. Reaching the same file twice is a configuration error.
func (e *Engine) enumerate() ([]string, error) {
	seen := make(map[string]bool)
	var paths []string

	add := func(path string) error {
		norm := normalizePath(path)
		if seen[norm] {
			return fmt.Errorf("taproot: %s: %w", norm, ErrDuplicatePath)
		}
		seen[norm] = true
		paths = append(paths, norm)
		return nil
	}

	includes := e.includePaths
	if len(includes) == 0 {
		includes = []string{"."}
	}

	for _, inc := range includes {
		p := inc
		if !filepath.IsAbs(p) {
			p = filepath.Join(e.sourceRoot, p)
		}
		p = normalizePath(p)
		if p != e.sourceRoot && !strings.HasPrefix(p, e.sourceRoot+string(filepath.Separator)) {
			return nil, fmt.Errorf("taproot: include path %s: %w", inc, ErrOutsideSourceRoot)
		}

		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("taproot: include path %s: %w", inc, err)
		}
		if !info.IsDir() {
			if err := add(p); err != nil {
				return nil, err
			}
			continue
		}

		walkErr := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				// The include path itself may be hidden; only skip below it.
				if path != p && (strings.HasPrefix(name, ".") || skipDirs[name]) {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != pySuffix {
				return nil
			}
			return add(path)
		})
		if walkErr != nil {
			if errors.Is(walkErr, ErrDuplicatePath) {
				return nil, walkErr
			}
			return nil, fmt.Errorf("taproot: walk %s: %w", inc, walkErr)
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// fileResult is the immutable outcome of one file's pipeline pass. A nil pf
// means the file was dropped (unreadable, or escaped the root).
type fileResult struct {
	pf    *ProjectFile
	diags []Diagnostic
}

// processFile runs the per-file pipeline: read, hash, name, parse, resolve.
// It only fails on context cancellation; everything file-shaped becomes a
// result or a diagnostic.
func (e *Engine) processFile(ctx context.Context, path string, res *resolver) (fileResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return fileResult{
			diags: []Diagnostic{{Path: path, Detail: fmt.Sprintf("read failed: %v", err)}},
		}, nil
	}

	segs, err := moduleSegments(path, e.sourceRoot)
	if err != nil {
		// Unreachable from enumerate, which stays under the root.
		return fileResult{}, nil
	}

	pf := &ProjectFile{
		Path:        path,
		ModuleName:  strings.Join(segs, "."),
		ContentHash: ContentHash(content),
		ParseOK:     true,
	}

	parseStart := time.Now()
	refs, err := ParseImports(ctx, content)
	e.parseNanos.Add(int64(time.Since(parseStart)))
	if err != nil {
		if errors.Is(err, ErrParseFailed) {
			pf.ParseOK = false
			pf.Dependencies = []string{}
			return fileResult{
				pf:    pf,
				diags: []Diagnostic{{Path: path, Detail: "syntax error: imports not extracted"}},
			}, nil
		}
		return fileResult{}, err
	}

	resolveStart := time.Now()
	deps, diags := res.resolveFile(path, segs, isInitFile(path), refs)
	e.resolveNanos.Add(int64(time.Since(resolveStart)))
	pf.Dependencies = deps
	return fileResult{pf: pf, diags: diags}, nil
}

// buildSerial runs the pipeline one file at a time, in enumeration order.
func (e *Engine) buildSerial(ctx context.Context, paths []string, res *resolver) ([]fileResult, error) {
	results := make([]fileResult, 0, len(paths))
	for _, path := range paths {
		fr, err := e.processFile(ctx, path, res)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", path, err)
		}
		results = append(results, fr)
	}
	return results, nil
}

// merge folds per-file results into the final map. Diagnostics are
// deduplicated and sorted so serial and parallel builds agree exactly.
func (e *Engine) merge(results []fileResult) *DependencyMap {
	m := &DependencyMap{
		SourceRoot: e.sourceRoot,
		Files:      make(map[string]*ProjectFile, len(results)),
	}

	seen := make(map[Diagnostic]bool)
	for _, fr := range results {
		if fr.pf != nil {
			m.Files[fr.pf.Path] = fr.pf
		}
		for _, d := range fr.diags {
			if !seen[d] {
				seen[d] = true
				m.Diagnostics = append(m.Diagnostics, d)
			}
		}
	}

	sort.Slice(m.Diagnostics, func(i, j int) bool {
		a, b := m.Diagnostics[i], m.Diagnostics[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Import != b.Import {
			return a.Import < b.Import
		}
		return a.Detail < b.Detail
	})
	return m
}

// normalizePath makes path absolute and resolves symlinks when possible, so
// map keys, dependency edges, and query arguments always agree on spelling.
func normalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
