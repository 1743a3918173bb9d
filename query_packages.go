package taproot

import (
	"sort"
	"strings"
)

// PackageGraph is the package-to-package dependency graph, aggregated from
// file-level import edges.
type PackageGraph struct {
	Packages []PackageNode
	Edges    []PackageEdge
}

// PackageNode represents a package in the dependency graph.
type PackageNode struct {
	Name      string // dotted package name; "" for modules at the source root
	FileCount int
}

// PackageEdge represents a dependency between two packages with the number
// of file-level imports that contribute to it.
type PackageEdge struct {
	From        string
	To          string
	ImportCount int
}

// packageOf returns the package a file belongs to: the module name itself
// for a package initializer, otherwise the module name minus its last
// segment. Modules directly under the source root belong to the unnamed
// root package "".
func packageOf(pf *ProjectFile) string {
	if isInitFile(pf.Path) {
		return pf.ModuleName
	}
	if i := strings.LastIndex(pf.ModuleName, "."); i >= 0 {
		return pf.ModuleName[:i]
	}
	return ""
}

// Packages aggregates file-level edges to package granularity. Edges into
// files the scan never indexed are skipped; self-edges (intra-package
// imports, including a module importing its own package initializer) are
// counted. Output is sorted for deterministic rendering.
func (m *DependencyMap) Packages() *PackageGraph {
	pkgFiles := map[string]int{}
	for _, pf := range m.Files {
		pkgFiles[packageOf(pf)]++
	}

	type edgeKey struct {
		from, to string
	}
	edgeCounts := map[edgeKey]int{}
	for _, pf := range m.Files {
		from := packageOf(pf)
		for _, dep := range pf.Dependencies {
			target, ok := m.Files[dep]
			if !ok {
				continue
			}
			edgeCounts[edgeKey{from: from, to: packageOf(target)}]++
		}
	}

	names := make([]string, 0, len(pkgFiles))
	for name := range pkgFiles {
		names = append(names, name)
	}
	sort.Strings(names)

	packages := make([]PackageNode, 0, len(names))
	for _, name := range names {
		packages = append(packages, PackageNode{Name: name, FileCount: pkgFiles[name]})
	}

	edges := make([]PackageEdge, 0, len(edgeCounts))
	for ek, count := range edgeCounts {
		edges = append(edges, PackageEdge{From: ek.from, To: ek.to, ImportCount: count})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	return &PackageGraph{Packages: packages, Edges: edges}
}

// Cycles detects import cycles at file granularity using Tarjan's strongly
// connected components algorithm, reporting each cycle as module names with
// the first repeated at the end. Cycles are legal in Python (and common via
// deferred imports), so this is a reporting tool, not an error path; Graph
// and Dependents terminate on cyclic maps regardless.
//
// Returns an empty slice (not nil) for acyclic maps.
func (m *DependencyMap) Cycles() [][]string {
	// Adjacency restricted to indexed files. Dependency lists are already
	// sorted, so traversal order is deterministic given sorted roots.
	adj := map[string][]string{}
	selfLoops := map[string]bool{}
	for path, pf := range m.Files {
		for _, dep := range pf.Dependencies {
			if _, ok := m.Files[dep]; !ok {
				continue
			}
			if dep == path {
				selfLoops[path] = true
			}
			adj[path] = append(adj[path], dep)
		}
	}

	type nodeInfo struct {
		index   int
		lowlink int
		onStack bool
	}
	info := map[string]*nodeInfo{}
	index := 0
	var stack []string
	result := [][]string{}

	var strongconnect func(v string)
	strongconnect = func(v string) {
		ni := &nodeInfo{index: index, lowlink: index, onStack: true}
		info[v] = ni
		index++
		stack = append(stack, v)

		for _, w := range adj[v] {
			wInfo, visited := info[w]
			if !visited {
				strongconnect(w)
				wInfo = info[w]
				if wInfo.lowlink < ni.lowlink {
					ni.lowlink = wInfo.lowlink
				}
			} else if wInfo.onStack {
				if wInfo.index < ni.lowlink {
					ni.lowlink = wInfo.index
				}
			}
		}

		if ni.lowlink == ni.index {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				info[w].onStack = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			// Only report SCCs with size > 1 (actual cycles) or self-loops.
			if len(scc) > 1 || selfLoops[scc[0]] {
				// Reverse the SCC to get a natural cycle order (Tarjan pops in reverse).
				for i, j := 0, len(scc)-1; i < j; i, j = i+1, j-1 {
					scc[i], scc[j] = scc[j], scc[i]
				}
				names := make([]string, 0, len(scc)+1)
				for _, p := range scc {
					names = append(names, m.Files[p].ModuleName)
				}
				names = append(names, names[0])
				result = append(result, names)
			}
		}
	}

	for _, path := range m.Paths() {
		if _, visited := info[path]; !visited {
			strongconnect(path)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i][0] < result[j][0]
	})
	return result
}
