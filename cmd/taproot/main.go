package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jward/taproot"
	"github.com/jward/taproot/internal/store"
	"github.com/spf13/cobra"
)

var (
	flagDB     string
	flagFormat string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "taproot",
	Short:         "Static import analysis for Python deployment bundles",
	Long:          "Taproot indexes a Python source tree with tree-sitter, resolves imports the way CPython would, and answers which files an entry point pulls in at runtime.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run; prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .taproot/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(dependentsCmd)
	rootCmd.AddCommand(packagesCmd)
	rootCmd.AddCommand(cyclesCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
}

var (
	flagInclude []string
	flagPrefix  []string
	flagSerial  bool
	flagWorkers int
	flagForce   bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build the dependency map and save it",
	Long:  "Enumerates Python files under the include paths, resolves their imports with tree-sitter, and writes the dependency map to the SQLite database.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	addBuildFlags(indexCmd)
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete the database and index from scratch")
}

// addBuildFlags registers the flags shared by every command that builds a
// map (index and watch).
func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&flagInclude, "include", nil, "path under the source root to scan (repeatable; default: the whole root)")
	cmd.Flags().StringArrayVar(&flagPrefix, "prefix", nil, "dotted module prefix treated as project-internal (repeatable)")
	cmd.Flags().BoolVar(&flagSerial, "serial", false, "index files one at a time instead of on a worker pool")
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "worker pool size (0 = one per CPU)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	bs, err := resolveBuildSettings(args)
	if err != nil {
		return err
	}

	dbDir := filepath.Dir(bs.dbPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dbDir, err)
	}

	// Handle --force: delete the DB file entirely.
	if flagForce {
		if err := os.Remove(bs.dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", bs.dbPath)
	}

	m, stats, err := buildAndSave(cmd.Context(), bs)
	if err != nil {
		return err
	}

	printBuildSummary(m, stats)
	fmt.Fprintf(os.Stderr, "Database: %s\n", bs.dbPath)
	return nil
}

// buildSettings is the fully merged configuration for one build: CLI flags
// override taproot.yaml, which overrides defaults.
type buildSettings struct {
	sourceRoot string
	include    []string
	prefixes   []string
	dbPath     string
}

// resolveBuildSettings merges the positional source-root argument, the
// nearest taproot.yaml, and the build flags into one settings value.
func resolveBuildSettings(args []string) (buildSettings, error) {
	sourceRoot := ""
	if len(args) > 0 {
		sourceRoot = args[0]
	}

	startDir := sourceRoot
	if startDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return buildSettings{}, fmt.Errorf("getting cwd: %w", err)
		}
		startDir = cwd
	}
	cfg, cfgDir, err := findConfig(normalizePath(startDir))
	if err != nil {
		return buildSettings{}, err
	}

	if sourceRoot == "" {
		sourceRoot = "."
		if cfg != nil && cfg.SourceRoot != "" {
			sourceRoot = resolveUnder(cfgDir, cfg.SourceRoot)
		}
	}
	sourceRoot = normalizePath(sourceRoot)
	info, err := os.Stat(sourceRoot)
	if err != nil {
		return buildSettings{}, fmt.Errorf("source root not found: %s", sourceRoot)
	}
	if !info.IsDir() {
		return buildSettings{}, fmt.Errorf("not a directory: %s", sourceRoot)
	}

	include := flagInclude
	if len(include) == 0 && cfg != nil {
		include = cfg.Include
	}
	prefixes := flagPrefix
	if len(prefixes) == 0 && cfg != nil {
		prefixes = cfg.Prefixes
	}

	return buildSettings{
		sourceRoot: sourceRoot,
		include:    include,
		prefixes:   prefixes,
		dbPath:     resolveDBPath(findRepoRoot(sourceRoot), cfg, cfgDir),
	}, nil
}

// buildAndSave runs one full build and persists the result, returning the
// map and its timing so callers can print a summary.
func buildAndSave(ctx context.Context, bs buildSettings) (*taproot.DependencyMap, taproot.BuildStats, error) {
	opts := []taproot.Option{taproot.WithParallel(!flagSerial)}
	if flagWorkers > 0 {
		opts = append(opts, taproot.WithWorkers(flagWorkers))
	}

	engine, err := taproot.New(bs.sourceRoot, bs.include, bs.prefixes, opts...)
	if err != nil {
		return nil, taproot.BuildStats{}, err
	}

	m, err := engine.Build(ctx)
	if err != nil {
		return nil, taproot.BuildStats{}, fmt.Errorf("indexing: %w", err)
	}

	s, err := store.NewStore(bs.dbPath)
	if err != nil {
		return nil, taproot.BuildStats{}, err
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		return nil, taproot.BuildStats{}, err
	}

	fp := taproot.Fingerprint(engine.SourceRoot(), bs.include, bs.prefixes)
	if err := s.SaveMap(m, fp); err != nil {
		return nil, taproot.BuildStats{}, fmt.Errorf("saving map: %w", err)
	}

	return m, engine.Stats(), nil
}

// printBuildSummary writes the human-readable outcome of one build to stderr,
// stdout stays reserved for structured results.
func printBuildSummary(m *taproot.DependencyMap, stats taproot.BuildStats) {
	fmt.Fprintf(os.Stderr, "Indexed %d files in %s (parse: %s, resolve: %s)\n",
		stats.Files,
		stats.Total.Round(time.Millisecond),
		stats.Parse.Round(time.Millisecond),
		stats.Resolve.Round(time.Millisecond),
	)
	if len(m.Diagnostics) > 0 {
		fmt.Fprintf(os.Stderr, "%d diagnostic(s):\n", len(m.Diagnostics))
		for _, d := range m.Diagnostics {
			if d.Import != "" {
				fmt.Fprintf(os.Stderr, "  %s: %s: %s\n", d.Path, d.Import, d.Detail)
			} else {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", d.Path, d.Detail)
			}
		}
	}
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path: the --db flag wins, then the
// config file's db entry, then .taproot/index.db under the repo root.
func resolveDBPath(repoRoot string, cfg *Config, cfgDir string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	if cfg != nil && cfg.DB != "" {
		return resolveUnder(cfgDir, cfg.DB)
	}
	return filepath.Join(repoRoot, ".taproot", "index.db")
}

// normalizePath makes path absolute and resolves symlinks when possible, the
// same spelling the map keys use.
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
