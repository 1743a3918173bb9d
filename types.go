package taproot

// ProjectFile is one indexed Python file: identity, content hash, and the
// resolved files its import statements reach.
type ProjectFile struct {
	// Path is the normalized absolute path. It is the file's identity and
	// its key in DependencyMap.Files.
	Path string `json:"path"`

	// ModuleName is the dotted import name derived from Path relative to
	// the source root, e.g. "my_app.utils.helpers". Package initializers
	// take the package's own name: pkg/__init__.py is just "pkg".
	ModuleName string `json:"module_name"`

	// ContentHash is the lowercase hex SHA-256 of the file's raw bytes.
	ContentHash string `json:"content_hash"`

	// Dependencies holds the normalized paths of every file this file's
	// imports resolve to, deduplicated and sorted. A path here is not
	// necessarily a key in the map: an import can resolve to a real file
	// the include paths never covered.
	Dependencies []string `json:"dependencies"`

	// ParseOK is false when the file had syntax errors. Such files carry
	// an empty Dependencies list but keep their hash, so a broken file
	// still invalidates caches built on the map.
	ParseOK bool `json:"parse_ok"`
}

// Diagnostic is a non-fatal problem found during a build: an unresolved
// import, a syntax error, an unreadable file, or a module shadowed by a
// package of the same name.
type Diagnostic struct {
	// Path is the file the diagnostic concerns.
	Path string `json:"path"`

	// Import is the dotted name involved, when the diagnostic is about a
	// specific import. Empty for file-level problems.
	Import string `json:"import,omitempty"`

	// Detail describes what went wrong.
	Detail string `json:"detail"`
}

// ImportRef is one parsed import statement target, before resolution.
// "import a.b" yields {Module: [a b]}; "from ..pkg import x, y" yields
// {Relative: true, Level: 2, Module: [pkg], Names: [x y]}.
type ImportRef struct {
	// Relative marks a from-import with leading dots.
	Relative bool `json:"relative,omitempty"`

	// Level counts the leading dots of a relative import: 1 means the
	// importing module's own package, each further dot one package up.
	Level int `json:"level,omitempty"`

	// Module is the dotted module path, split into segments. Empty for
	// bare relative imports like "from . import x".
	Module []string `json:"module,omitempty"`

	// Names are the names bound by a from-import. Each may denote a
	// submodule (which adds a candidate file) or a plain attribute.
	Names []string `json:"names,omitempty"`
}

// DependencyMap is the output of a build: every indexed file keyed by
// normalized path, plus the diagnostics the build produced. It is read-only
// after Build returns; queries may run on it concurrently.
type DependencyMap struct {
	// SourceRoot is the normalized root all module names derive from.
	SourceRoot string `json:"source_root"`

	// Files maps normalized absolute path to the file's record.
	Files map[string]*ProjectFile `json:"files"`

	// Diagnostics are sorted by (Path, Import, Detail) and deduplicated,
	// so serial and parallel builds report identically.
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}
