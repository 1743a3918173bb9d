// Package taproot computes the exact transitive set of files a Python entry
// point imports at runtime, together with a content hash per file, from
// static analysis alone. It exists so deployment tooling can decide what to
// bundle, and when to rebuild, without ever executing the code it packages.
//
// # Pipeline
//
// Taproot operates in two phases:
//
//  1. Build: enumerate every Python file under the configured include paths,
//     then for each file derive its dotted module name, parse it with
//     tree-sitter and extract its import statements, resolve each import to
//     concrete files on disk, and hash its contents. Per-file work runs on a
//     worker pool; results fold serially into an immutable [DependencyMap].
//
//  2. Query: traverse the map. [DependencyMap.Graph] walks dependency edges
//     from an entry point and returns every reachable file with its hash,
//     which is exactly the bundle contents for that entry point.
//
// # Usage
//
// Build a map and query it:
//
//	m, err := taproot.BuildDependencyMap(ctx, "/srv/app", []string{"my_app"}, []string{"my_app"})
//	if err != nil { ... }
//
//	files, err := m.Graph("/srv/app/my_app/handlers/orders.py")
//	for path, hash := range files { ... }
//
// Or configure an [Engine] explicitly:
//
//	e, err := taproot.New("/srv/app", []string{"my_app"}, []string{"my_app"},
//		taproot.WithWorkers(4))
//	m, err := e.Build(ctx)
//
// # Resolution
//
// Imports resolve the way CPython's importer would, restricted to the source
// tree: a dotted name a.b.c maps to a/b/c/__init__.py when c is a package,
// else a/b/c.py. Importing a module also imports every ancestor package
// initializer, so those files join the edge set too. Relative imports resolve
// against the importing module's package. Only names matching a configured
// filter prefix are tracked; everything else (stdlib, site-packages) is
// ignored.
//
// # Determinism
//
// A map is a pure function of the file bytes and the Engine configuration.
// Parallel and serial builds produce identical maps, dependency lists are
// sorted, and hashes are hex SHA-256 of raw file contents. Syntax errors
// never fail a build: the broken file is recorded with ParseOK=false, an
// empty edge set, and a diagnostic.
package taproot
