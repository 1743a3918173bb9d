package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jward/taproot"
	"github.com/jward/taproot/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// --- Helpers ---

// openStore opens the Store at the resolved database path and fails with a
// hint when no index has been built yet.
func openStore() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	cfg, cfgDir, err := findConfig(normalizePath(cwd))
	if err != nil {
		return nil, err
	}
	dbPath := resolveDBPath(findRepoRoot(cwd), cfg, cfgDir)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("index not found: %s (run 'taproot index' first)", dbPath)
	}

	return store.NewStore(dbPath)
}

// loadIndexedMap loads the saved dependency map for a query command and
// warns when the map no longer matches the project configuration.
func loadIndexedMap() (*taproot.DependencyMap, error) {
	s, err := openStore()
	if err != nil {
		return nil, err
	}
	defer s.Close()

	m, err := s.LoadMap()
	if err != nil {
		if errors.Is(err, store.ErrEmpty) {
			return nil, fmt.Errorf("index is empty (run 'taproot index' first)")
		}
		return nil, err
	}
	warnIfStale(s)
	return m, nil
}

// warnIfStale compares the stored configuration fingerprint against one
// recomputed from the nearest taproot.yaml. Flags passed at index time can
// legitimately differ from the config file, so a mismatch only warns. With
// no config file there is nothing to compare against.
func warnIfStale(s *store.Store) {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	cfg, cfgDir, err := findConfig(normalizePath(cwd))
	if err != nil || cfg == nil {
		return
	}

	root := cfgDir
	if cfg.SourceRoot != "" {
		root = resolveUnder(cfgDir, cfg.SourceRoot)
	}
	want := taproot.Fingerprint(normalizePath(root), cfg.Include, cfg.Prefixes)

	got, err := s.GetMetadata(store.MetaFingerprint)
	if err == nil && got != "" && got != want {
		fmt.Fprintln(os.Stderr, "Warning: configuration changed since the last index; results may be stale (run 'taproot index')")
	}
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// --- Converters ---

func fileToCLI(pf *taproot.ProjectFile) CLIFile {
	return CLIFile{
		Path:            pf.Path,
		ModuleName:      pf.ModuleName,
		ContentHash:     pf.ContentHash,
		DependencyCount: len(pf.Dependencies),
		ParseOK:         pf.ParseOK,
	}
}

func diagnosticsToCLI(diags []taproot.Diagnostic) []CLIDiagnostic {
	if len(diags) == 0 {
		return nil
	}
	out := make([]CLIDiagnostic, len(diags))
	for i, d := range diags {
		out[i] = CLIDiagnostic{Path: d.Path, Import: d.Import, Detail: d.Detail}
	}
	return out
}

func packageGraphToCLI(g *taproot.PackageGraph) CLIPackageGraph {
	packages := make([]CLIPackageNode, len(g.Packages))
	for i, p := range g.Packages {
		packages[i] = CLIPackageNode{
			Name:      p.Name,
			FileCount: p.FileCount,
		}
	}

	edges := make([]CLIPackageEdge, len(g.Edges))
	for i, e := range g.Edges {
		edges[i] = CLIPackageEdge{
			From:        e.From,
			To:          e.To,
			ImportCount: e.ImportCount,
		}
	}

	return CLIPackageGraph{
		Packages: packages,
		Edges:    edges,
	}
}

// --- Closure Commands ---

var graphCmd = &cobra.Command{
	Use:   "graph <entry-point> [entry-point...]",
	Short: "List every file an entry point imports, transitively",
	Long:  "Walks dependency edges from each entry point and returns the reachable files with their content hashes: the exact bundle contents for that entry point.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	m, err := loadIndexedMap()
	if err != nil {
		return outputError("graph", err)
	}

	// The map is immutable after load, so the closures can run concurrently.
	closures := make([]CLIClosure, len(args))
	var g errgroup.Group
	for i, arg := range args {
		g.Go(func() error {
			entry := normalizePath(arg)
			files, err := m.Graph(entry)
			if err != nil {
				return err
			}
			closures[i] = CLIClosure{Root: entry, FileCount: len(files), Files: files}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outputError("graph", err)
	}

	count := len(closures)
	return outputResult(CLIResult{
		Command:    "graph",
		Results:    closures,
		TotalCount: &count,
	})
}

var dependentsCmd = &cobra.Command{
	Use:   "dependents <file>",
	Short: "List every file whose bundle includes this file",
	Long:  "Walks dependency edges in reverse: everything returned needs repackaging when the file changes. The file itself is included.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDependents,
}

func runDependents(cmd *cobra.Command, args []string) error {
	m, err := loadIndexedMap()
	if err != nil {
		return outputError("dependents", err)
	}

	path := normalizePath(args[0])
	files, err := m.Dependents(path)
	if err != nil {
		return outputError("dependents", err)
	}

	count := len(files)
	return outputResult(CLIResult{
		Command:    "dependents",
		Results:    CLIClosure{Root: path, FileCount: count, Files: files},
		TotalCount: &count,
	})
}

// --- Listing Commands ---

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List every indexed file",
	Args:  cobra.NoArgs,
	RunE:  runFiles,
}

func runFiles(cmd *cobra.Command, args []string) error {
	m, err := loadIndexedMap()
	if err != nil {
		return outputError("files", err)
	}

	paths := m.Paths()
	cliFiles := make([]CLIFile, len(paths))
	for i, path := range paths {
		cliFiles[i] = fileToCLI(m.Files[path])
	}

	count := len(cliFiles)
	return outputResult(CLIResult{
		Command:     "files",
		Results:     cliFiles,
		TotalCount:  &count,
		Diagnostics: diagnosticsToCLI(m.Diagnostics),
	})
}

var depsCmd = &cobra.Command{
	Use:   "deps <file>",
	Short: "List the direct dependencies of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeps,
}

func runDeps(cmd *cobra.Command, args []string) error {
	m, err := loadIndexedMap()
	if err != nil {
		return outputError("deps", err)
	}

	pf := m.File(args[0])
	if pf == nil {
		return outputError("deps", fmt.Errorf("taproot: %s: %w", args[0], taproot.ErrEntryPointNotFound))
	}

	count := len(pf.Dependencies)
	return outputResult(CLIResult{
		Command:    "deps",
		Results:    CLIDeps{Path: pf.Path, Dependencies: pf.Dependencies},
		TotalCount: &count,
	})
}

// --- Aggregate Commands ---

var packagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "Show the package-level dependency graph",
	Args:  cobra.NoArgs,
	RunE:  runPackages,
}

func runPackages(cmd *cobra.Command, args []string) error {
	m, err := loadIndexedMap()
	if err != nil {
		return outputError("packages", err)
	}

	cliGraph := packageGraphToCLI(m.Packages())
	one := 1
	return outputResult(CLIResult{
		Command:    "packages",
		Results:    cliGraph,
		TotalCount: &one,
	})
}

var cyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Detect import cycles",
	Args:  cobra.NoArgs,
	RunE:  runCycles,
}

func runCycles(cmd *cobra.Command, args []string) error {
	m, err := loadIndexedMap()
	if err != nil {
		return outputError("cycles", err)
	}

	cycles := m.Cycles()
	cliCycles := make([]CLICycle, len(cycles))
	for i, cycle := range cycles {
		cliCycles[i] = CLICycle{Modules: cycle}
	}

	count := len(cliCycles)
	return outputResult(CLIResult{
		Command:    "cycles",
		Results:    cliCycles,
		TotalCount: &count,
	})
}
