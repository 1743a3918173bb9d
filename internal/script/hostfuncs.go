package script

import (
	"context"
	"fmt"

	"github.com/risor-io/risor/object"

	"github.com/jward/taproot"
)

// The query host functions expose read-only views of the dependency map.
// Risor scripts cannot touch Go structs directly, so each builtin converts
// to plain Risor maps and lists on the way out.

// makeFilesFn creates the "files" builtin.
//
// files() → []map, one per indexed file, sorted by path
func makeFilesFn(m *taproot.DependencyMap) *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("files", 0, len(args))
		}
		results := make([]object.Object, 0, len(m.Files))
		for _, path := range m.Paths() {
			results = append(results, fileToMap(m.Files[path]))
		}
		return object.NewList(results)
	})
}

// makeFileFn creates the "file" builtin.
//
// file(path) → map or nil when the path is not indexed
func makeFileFn(m *taproot.DependencyMap) *object.Builtin {
	return object.NewBuiltin("file", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("file", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("file: %v", err)
		}
		pf := m.File(path)
		if pf == nil {
			return object.Nil
		}
		return fileToMap(pf)
	})
}

// makeGraphFn creates the "graph" builtin.
//
// graph(entry) → map of path → content hash for the entry's closure
func makeGraphFn(m *taproot.DependencyMap) *object.Builtin {
	return object.NewBuiltin("graph", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("graph", 1, len(args))
		}
		entry, err := toString(args[0])
		if err != nil {
			return object.Errorf("graph: %v", err)
		}
		deps, graphErr := m.Graph(entry)
		if graphErr != nil {
			return object.Errorf("graph: %v", graphErr)
		}
		return stringMapToObject(deps)
	})
}

// makeDependentsFn creates the "dependents" builtin.
//
// dependents(path) → map of path → content hash for files that reach path
func makeDependentsFn(m *taproot.DependencyMap) *object.Builtin {
	return object.NewBuiltin("dependents", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("dependents", 1, len(args))
		}
		path, err := toString(args[0])
		if err != nil {
			return object.Errorf("dependents: %v", err)
		}
		deps, depErr := m.Dependents(path)
		if depErr != nil {
			return object.Errorf("dependents: %v", depErr)
		}
		return stringMapToObject(deps)
	})
}

// makeCyclesFn creates the "cycles" builtin.
//
// cycles() → []list of module names, each closed with its first element
func makeCyclesFn(m *taproot.DependencyMap) *object.Builtin {
	return object.NewBuiltin("cycles", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("cycles", 0, len(args))
		}
		cycles := m.Cycles()
		results := make([]object.Object, 0, len(cycles))
		for _, cycle := range cycles {
			results = append(results, stringsToList(cycle))
		}
		return object.NewList(results)
	})
}

// makePackagesFn creates the "packages" builtin.
//
// packages() → {"packages": [{name, file_count}], "edges": [{from, to, import_count}]}
func makePackagesFn(m *taproot.DependencyMap) *object.Builtin {
	return object.NewBuiltin("packages", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("packages", 0, len(args))
		}
		pg := m.Packages()

		pkgs := make([]object.Object, 0, len(pg.Packages))
		for _, p := range pg.Packages {
			pkgs = append(pkgs, object.NewMap(map[string]object.Object{
				"name":       object.NewString(p.Name),
				"file_count": object.NewInt(int64(p.FileCount)),
			}))
		}

		edges := make([]object.Object, 0, len(pg.Edges))
		for _, e := range pg.Edges {
			edges = append(edges, object.NewMap(map[string]object.Object{
				"from":         object.NewString(e.From),
				"to":           object.NewString(e.To),
				"import_count": object.NewInt(int64(e.ImportCount)),
			}))
		}

		return object.NewMap(map[string]object.Object{
			"packages": object.NewList(pkgs),
			"edges":    object.NewList(edges),
		})
	})
}

// makeDiagnosticsFn creates the "diagnostics" builtin.
//
// diagnostics() → []map with path, import, detail
func makeDiagnosticsFn(m *taproot.DependencyMap) *object.Builtin {
	return object.NewBuiltin("diagnostics", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("diagnostics", 0, len(args))
		}
		results := make([]object.Object, 0, len(m.Diagnostics))
		for _, d := range m.Diagnostics {
			results = append(results, object.NewMap(map[string]object.Object{
				"path":   object.NewString(d.Path),
				"import": object.NewString(d.Import),
				"detail": object.NewString(d.Detail),
			}))
		}
		return object.NewList(results)
	})
}

// --- Conversion helpers ---

func fileToMap(pf *taproot.ProjectFile) object.Object {
	return object.NewMap(map[string]object.Object{
		"path":         object.NewString(pf.Path),
		"module_name":  object.NewString(pf.ModuleName),
		"content_hash": object.NewString(pf.ContentHash),
		"parse_ok":     object.NewBool(pf.ParseOK),
		"dependencies": stringsToList(pf.Dependencies),
	})
}

func stringsToList(ss []string) object.Object {
	items := make([]object.Object, 0, len(ss))
	for _, s := range ss {
		items = append(items, object.NewString(s))
	}
	return object.NewList(items)
}

func stringMapToObject(m map[string]string) object.Object {
	out := make(map[string]object.Object, len(m))
	for k, v := range m {
		out[k] = object.NewString(v)
	}
	return object.NewMap(out)
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

// logObject provides log.Info/Warn/Error methods for Risor scripts.
type logObject struct {
	prefix string
}

func (l *logObject) Info(msg string) {
	fmt.Printf("[%s] INFO: %s\n", l.prefix, msg)
}

func (l *logObject) Warn(msg string) {
	fmt.Printf("[%s] WARN: %s\n", l.prefix, msg)
}

func (l *logObject) Error(msg string) {
	fmt.Printf("[%s] ERROR: %s\n", l.prefix, msg)
}
