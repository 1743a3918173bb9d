package taproot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// candidateKind controls how a failed lookup is reported. Only the imported
// module itself warrants an unresolved-import diagnostic: a missing ancestor
// is a namespace package and a missing bound name is a plain attribute, both
// routine.
type candidateKind int

const (
	candAncestor candidateKind = iota
	candLeaf
	candBoundName
)

type candidate struct {
	dotted []string
	kind   candidateKind
}

// expandCandidates turns one import statement, in the context of the
// importing module, into the dotted names that may denote files on disk:
// every ancestor package of the imported module, the module itself, and one
// per bound name of a from-import. Pure; no filesystem access.
//
// importerSegs is the importing module's dotted name as segments;
// importerIsInit marks a package initializer, whose relative imports anchor
// at its own package rather than its parent.
func expandCandidates(importerSegs []string, importerIsInit bool, ref ImportRef) ([]candidate, error) {
	base := ref.Module
	if ref.Relative {
		pkg := importerSegs
		if !importerIsInit && len(pkg) > 0 {
			pkg = pkg[:len(pkg)-1]
		}
		ascend := ref.Level - 1
		if ascend > len(pkg) {
			return nil, fmt.Errorf("%d dots from %q: %w",
				ref.Level, strings.Join(importerSegs, "."), ErrOutsideSourceRoot)
		}
		pkg = pkg[:len(pkg)-ascend]

		merged := make([]string, 0, len(pkg)+len(ref.Module))
		merged = append(merged, pkg...)
		merged = append(merged, ref.Module...)
		base = merged
	}

	var cands []candidate
	for i := 1; i <= len(base); i++ {
		kind := candAncestor
		if i == len(base) {
			kind = candLeaf
		}
		cands = append(cands, candidate{dotted: base[:i], kind: kind})
	}
	for _, name := range ref.Names {
		dotted := make([]string, 0, len(base)+1)
		dotted = append(dotted, base...)
		dotted = append(dotted, name)
		cands = append(cands, candidate{dotted: dotted, kind: candBoundName})
	}
	return cands, nil
}

// matchesPrefix reports whether any configured prefix matches dotted on a
// component boundary: prefix "my_app" matches "my_app" and "my_app.utils"
// but never "my_apple".
func matchesPrefix(dotted []string, prefixes [][]string) bool {
	for _, pre := range prefixes {
		if len(pre) > len(dotted) {
			continue
		}
		matched := true
		for i, seg := range pre {
			if dotted[i] != seg {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// lookupResult caches one dotted-name lookup. An empty path means the name
// denotes no file under the root; conflictPath is set when both pkg/__init__.py
// and pkg.py exist (the package form wins).
type lookupResult struct {
	path         string
	conflictPath string
}

// resolver maps candidate dotted names to files under the source root.
// Every distinct name hits the filesystem once per build; the cache is
// shared across workers since many files import the same modules.
type resolver struct {
	root     string
	prefixes [][]string

	mu    sync.Mutex
	cache map[string]lookupResult
}

func newResolver(root string, filterPrefixes []string) *resolver {
	r := &resolver{root: root, cache: make(map[string]lookupResult)}
	for _, p := range filterPrefixes {
		if p == "" {
			continue
		}
		r.prefixes = append(r.prefixes, strings.Split(p, "."))
	}
	return r
}

// lookup maps a dotted name to the file that executes when the name is
// imported: <root>/a/b/__init__.py when a/b is a package, else <root>/a/b.py.
func (r *resolver) lookup(dotted []string) lookupResult {
	key := strings.Join(dotted, ".")
	r.mu.Lock()
	res, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return res
	}

	stem := filepath.Join(append([]string{r.root}, dotted...)...)
	pkgPath := filepath.Join(stem, initFile)
	modPath := stem + pySuffix

	switch {
	case isRegularFile(pkgPath):
		res = lookupResult{path: pkgPath}
		if isRegularFile(modPath) {
			res.conflictPath = modPath
		}
	case isRegularFile(modPath):
		res = lookupResult{path: modPath}
	}

	r.mu.Lock()
	r.cache[key] = res
	r.mu.Unlock()
	return res
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// resolveFile turns one file's import refs into its dependency edge set plus
// any diagnostics. Edges are deduplicated and sorted; the returned slice is
// never nil.
func (r *resolver) resolveFile(path string, importerSegs []string, importerIsInit bool, refs []ImportRef) ([]string, []Diagnostic) {
	depSet := make(map[string]bool)
	var diags []Diagnostic

	for _, ref := range refs {
		cands, err := expandCandidates(importerSegs, importerIsInit, ref)
		if err != nil {
			diags = append(diags, Diagnostic{
				Path:   path,
				Import: refString(ref),
				Detail: "relative import escapes source root",
			})
			continue
		}

		for _, cand := range cands {
			if !matchesPrefix(cand.dotted, r.prefixes) {
				continue
			}
			res := r.lookup(cand.dotted)
			if res.conflictPath != "" {
				diags = append(diags, Diagnostic{
					Path:   res.conflictPath,
					Import: strings.Join(cand.dotted, "."),
					Detail: "module shadowed by package initializer",
				})
			}
			if res.path == "" {
				if cand.kind == candLeaf {
					diags = append(diags, Diagnostic{
						Path:   path,
						Import: strings.Join(cand.dotted, "."),
						Detail: "unresolved import",
					})
				}
				continue
			}
			depSet[res.path] = true
		}
	}

	deps := make([]string, 0, len(depSet))
	for p := range depSet {
		deps = append(deps, p)
	}
	sort.Strings(deps)
	return deps, diags
}

// refString renders an ImportRef roughly as written, for diagnostics:
// "..pkg.mod" for a relative import, "a.b" for an absolute one.
func refString(ref ImportRef) string {
	return strings.Repeat(".", ref.Level) + strings.Join(ref.Module, ".")
}
