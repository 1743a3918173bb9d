package taproot

import (
	"fmt"
	"sort"
)

// Graph computes the dependency closure of entryPoint: the entry point plus
// every file reachable from it over dependency edges, each mapped to its
// content hash. That set is exactly what a bundle for the entry point must
// contain, and the hashes say when to rebuild it.
//
// The entry point is normalized like map keys, so relative paths and
// symlinked spellings work. An entry point that is not a key in the map
// fails with ErrEntryPointNotFound. Edges pointing at files the scan never
// covered are followed but contribute nothing: only indexed files carry a
// hash.
func (m *DependencyMap) Graph(entryPoint string) (map[string]string, error) {
	entry := normalizePath(entryPoint)
	if _, ok := m.Files[entry]; !ok {
		return nil, fmt.Errorf("taproot: %s: %w", entryPoint, ErrEntryPointNotFound)
	}

	result := make(map[string]string)
	visited := map[string]bool{entry: true}
	queue := []string{entry}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		pf, ok := m.Files[current]
		if !ok {
			// An edge led outside the indexed set; nothing to contribute.
			continue
		}
		result[current] = pf.ContentHash

		for _, dep := range pf.Dependencies {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return result, nil
}

// Dependents computes the reverse closure of path: every indexed file whose
// own Graph would include it, i.e. everything that needs repackaging when
// the file changes. Result shape matches Graph, path itself included.
func (m *DependencyMap) Dependents(path string) (map[string]string, error) {
	target := normalizePath(path)
	if _, ok := m.Files[target]; !ok {
		return nil, fmt.Errorf("taproot: %s: %w", path, ErrEntryPointNotFound)
	}

	// The map stores only forward edges; build the reverse adjacency for
	// this traversal.
	reverse := make(map[string][]string, len(m.Files))
	for p, pf := range m.Files {
		for _, dep := range pf.Dependencies {
			reverse[dep] = append(reverse[dep], p)
		}
	}

	result := make(map[string]string)
	visited := map[string]bool{target: true}
	queue := []string{target}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result[current] = m.Files[current].ContentHash

		for _, importer := range reverse[current] {
			if !visited[importer] {
				visited[importer] = true
				queue = append(queue, importer)
			}
		}
	}
	return result, nil
}

// File returns the record for path, trying the string as given and then its
// normalized form. Nil when the file is not in the map.
func (m *DependencyMap) File(path string) *ProjectFile {
	if pf, ok := m.Files[path]; ok {
		return pf
	}
	if pf, ok := m.Files[normalizePath(path)]; ok {
		return pf
	}
	return nil
}

// Paths returns every map key in sorted order.
func (m *DependencyMap) Paths() []string {
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
