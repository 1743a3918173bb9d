package main

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command     string          `json:"command"`
	Results     any             `json:"results"`
	TotalCount  *int            `json:"total_count,omitempty"`
	Diagnostics []CLIDiagnostic `json:"diagnostics,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// CLIFile is a JSON-friendly indexed file.
type CLIFile struct {
	Path            string `json:"path"`
	ModuleName      string `json:"module_name"`
	ContentHash     string `json:"content_hash"`
	DependencyCount int    `json:"dependency_count"`
	ParseOK         bool   `json:"parse_ok"`
}

// CLIDeps lists the direct dependencies of one file.
type CLIDeps struct {
	Path         string   `json:"path"`
	Dependencies []string `json:"dependencies"`
}

// CLIClosure is a transitive closure rooted at one file: every reachable
// file mapped to its content hash.
type CLIClosure struct {
	Root      string            `json:"root"`
	FileCount int               `json:"file_count"`
	Files     map[string]string `json:"files"`
}

// CLIPackageGraph is a JSON-friendly package dependency graph.
type CLIPackageGraph struct {
	Packages []CLIPackageNode `json:"packages"`
	Edges    []CLIPackageEdge `json:"edges"`
}

// CLIPackageNode is a package in the dependency graph.
type CLIPackageNode struct {
	Name      string `json:"name"`
	FileCount int    `json:"file_count"`
}

// CLIPackageEdge is a dependency between two packages.
type CLIPackageEdge struct {
	From        string `json:"from"`
	To          string `json:"to"`
	ImportCount int    `json:"import_count"`
}

// CLICycle is one import cycle as a module-name walk, first module repeated
// at the end.
type CLICycle struct {
	Modules []string `json:"modules"`
}

// CLIDiagnostic is a non-fatal problem recorded during the build.
type CLIDiagnostic struct {
	Path   string `json:"path"`
	Import string `json:"import,omitempty"`
	Detail string `json:"detail"`
}
