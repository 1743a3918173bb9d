package main_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles the taproot binary and returns the path.
// The binary is placed in t.TempDir() so it's cleaned up automatically.
func buildBinary(t *testing.T) string {
	t.Helper()
	binName := "taproot"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Dir = filepath.Join(projectRoot(t), "cmd", "taproot")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return bin
}

// projectRoot returns the root of the project by walking up from the test
// file's directory to find go.mod.
func projectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, parent, dir, "could not find project root")
		dir = parent
	}
}

// createPythonFixture writes a five-file project with a nested package and a
// taproot.yaml, so commands run from the fixture find their settings.
//
//	my_app/main.py reaches every other file transitively.
func createPythonFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	files := map[string]string{
		"taproot.yaml":              "prefixes:\n  - my_app\n",
		"my_app/__init__.py":        "",
		"my_app/utils.py":           "import os\n\n\ndef slug(value):\n    return value.lower()\n",
		"my_app/models/__init__.py": "",
		"my_app/models/order.py":    "import my_app.utils\n\n\nclass Order:\n    pass\n",
		"my_app/main.py":            "import my_app.utils\nfrom my_app.models import order\n",
	}
	for name, src := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return dir
}

// runCLI executes the binary in dir and returns stdout and stderr separately;
// query commands keep structured output on stdout and prose on stderr.
func runCLI(t *testing.T, bin, dir string, args ...string) (string, string, error) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// envelope mirrors the CLIResult JSON shape for decoding in assertions.
type envelope struct {
	Command     string          `json:"command"`
	Results     json.RawMessage `json:"results"`
	TotalCount  *int            `json:"total_count"`
	Diagnostics []struct {
		Path   string `json:"path"`
		Import string `json:"import"`
		Detail string `json:"detail"`
	} `json:"diagnostics"`
	Error string `json:"error"`
}

func decodeEnvelope(t *testing.T, stdout string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(stdout), &env), "stdout: %s", stdout)
	return env
}

type closureResult struct {
	Root      string            `json:"root"`
	FileCount int               `json:"file_count"`
	Files     map[string]string `json:"files"`
}

// openDB opens the SQLite database at the given path for verification.
func openDB(t *testing.T, dbPath string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count)
	require.NoError(t, err)
	return count
}

// hasKeyWithSuffix reports whether any map key ends with the given relative
// path, sidestepping symlinked spellings of the temp dir.
func hasKeyWithSuffix(files map[string]string, suffix string) bool {
	for path := range files {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func TestIndex_CreatesDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	dbPath := filepath.Join(fixture, ".taproot", "index.db")
	_, err = os.Stat(dbPath)
	require.NoError(t, err, ".taproot/index.db should exist")

	db := openDB(t, dbPath)
	assert.Equal(t, 5, countRows(t, db, "files"))
	assert.Greater(t, countRows(t, db, "edges"), 0)
}

func TestIndex_SummaryOnStderr(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	stdout, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	assert.Empty(t, stdout, "index keeps stdout clean")
	assert.Contains(t, stderr, "Indexed 5 files in")
	assert.Contains(t, stderr, "parse:")
	assert.Contains(t, stderr, "resolve:")
	assert.Contains(t, stderr, "Database:")
}

func TestIndex_ForceReindexesFromScratch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "first index failed: %s", stderr)

	extra := filepath.Join(fixture, "my_app", "extra.py")
	require.NoError(t, os.WriteFile(extra, []byte("import my_app.utils\n"), 0o644))

	_, stderr, err = runCLI(t, bin, fixture, "index", "--force")
	require.NoError(t, err, "force index failed: %s", stderr)
	assert.Contains(t, stderr, "Cleared database:")

	db := openDB(t, filepath.Join(fixture, ".taproot", "index.db"))
	assert.Equal(t, 6, countRows(t, db, "files"))
}

func TestIndex_CustomDBPath(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)
	customDB := filepath.Join(t.TempDir(), "custom.db")

	_, stderr, err := runCLI(t, bin, fixture, "index", "--db", customDB)
	require.NoError(t, err, "index with --db failed: %s", stderr)

	_, err = os.Stat(customDB)
	require.NoError(t, err, "custom DB should exist at %s", customDB)

	_, err = os.Stat(filepath.Join(fixture, ".taproot", "index.db"))
	assert.True(t, os.IsNotExist(err), ".taproot/index.db should not be created when --db is set")
}

func TestGraph_FullClosure(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	stdout, _, err := runCLI(t, bin, fixture, "graph", filepath.Join("my_app", "main.py"))
	require.NoError(t, err)

	env := decodeEnvelope(t, stdout)
	assert.Equal(t, "graph", env.Command)
	require.NotNil(t, env.TotalCount)
	assert.Equal(t, 1, *env.TotalCount)

	var closures []closureResult
	require.NoError(t, json.Unmarshal(env.Results, &closures))
	require.Len(t, closures, 1)

	// main.py pulls in every fixture file: both package initializers, the
	// bound submodule, and utils.
	assert.Equal(t, 5, closures[0].FileCount)
	assert.True(t, hasKeyWithSuffix(closures[0].Files, filepath.Join("my_app", "utils.py")))
	assert.True(t, hasKeyWithSuffix(closures[0].Files, filepath.Join("models", "order.py")))
	for _, hash := range closures[0].Files {
		assert.Len(t, hash, 64)
	}
}

func TestGraph_MultipleEntryPoints(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	stdout, _, err := runCLI(t, bin, fixture, "graph",
		filepath.Join("my_app", "main.py"),
		filepath.Join("my_app", "utils.py"),
	)
	require.NoError(t, err)

	env := decodeEnvelope(t, stdout)
	var closures []closureResult
	require.NoError(t, json.Unmarshal(env.Results, &closures))
	require.Len(t, closures, 2)

	// Closures keep argument order. utils.py only imports the stdlib, so
	// its closure is itself.
	assert.Equal(t, 5, closures[0].FileCount)
	assert.Equal(t, 1, closures[1].FileCount)
}

func TestGraph_EntryPointNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	stdout, _, err := runCLI(t, bin, fixture, "graph", "missing.py")
	require.Error(t, err, "graph of a missing entry point should exit non-zero")

	env := decodeEnvelope(t, stdout)
	assert.Equal(t, "graph", env.Command)
	assert.Contains(t, env.Error, "entry point not found")
}

func TestDeps_DirectDependenciesOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	stdout, _, err := runCLI(t, bin, fixture, "deps", filepath.Join("my_app", "main.py"))
	require.NoError(t, err)

	env := decodeEnvelope(t, stdout)
	var deps struct {
		Path         string   `json:"path"`
		Dependencies []string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(env.Results, &deps))

	// Direct edges only: utils, both initializers, and the bound submodule,
	// but not anything those files import further.
	assert.Len(t, deps.Dependencies, 4)
	assert.True(t, strings.HasSuffix(deps.Path, filepath.Join("my_app", "main.py")))
}

func TestDependents_ReverseClosure(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	stdout, _, err := runCLI(t, bin, fixture, "dependents", filepath.Join("my_app", "utils.py"))
	require.NoError(t, err)

	env := decodeEnvelope(t, stdout)
	var closure closureResult
	require.NoError(t, json.Unmarshal(env.Results, &closure))

	// utils itself, plus order.py and main.py which import it.
	assert.Equal(t, 3, closure.FileCount)
	assert.True(t, hasKeyWithSuffix(closure.Files, filepath.Join("my_app", "main.py")))
	assert.True(t, hasKeyWithSuffix(closure.Files, filepath.Join("models", "order.py")))
}

func TestFiles_ListsEverything(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	stdout, _, err := runCLI(t, bin, fixture, "files")
	require.NoError(t, err)

	env := decodeEnvelope(t, stdout)
	require.NotNil(t, env.TotalCount)
	assert.Equal(t, 5, *env.TotalCount)

	var files []struct {
		Path        string `json:"path"`
		ModuleName  string `json:"module_name"`
		ContentHash string `json:"content_hash"`
		ParseOK     bool   `json:"parse_ok"`
	}
	require.NoError(t, json.Unmarshal(env.Results, &files))
	require.Len(t, files, 5)
	for _, f := range files {
		assert.Len(t, f.ContentHash, 64)
		assert.True(t, f.ParseOK)
		assert.NotEmpty(t, f.ModuleName)
	}
}

func TestFiles_TextFormat(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	stdout, _, err := runCLI(t, bin, fixture, "files", "--format", "text")
	require.NoError(t, err)

	assert.Contains(t, stdout, "PATH")
	assert.Contains(t, stdout, filepath.Join("my_app", "utils.py"))
	assert.Contains(t, stdout, "my_app.models.order")
}

func TestCycles_NoneInAcyclicProject(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	stdout, _, err := runCLI(t, bin, fixture, "cycles")
	require.NoError(t, err)

	env := decodeEnvelope(t, stdout)
	require.NotNil(t, env.TotalCount)
	assert.Equal(t, 0, *env.TotalCount)
}

func TestCycles_ReportsMutualImports(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	// Introduce a two-module cycle.
	a := filepath.Join(fixture, "my_app", "alpha.py")
	b := filepath.Join(fixture, "my_app", "beta.py")
	require.NoError(t, os.WriteFile(a, []byte("import my_app.beta\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("import my_app.alpha\n"), 0o644))

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	stdout, _, err := runCLI(t, bin, fixture, "cycles")
	require.NoError(t, err)

	env := decodeEnvelope(t, stdout)
	require.NotNil(t, env.TotalCount)
	assert.Equal(t, 1, *env.TotalCount)

	var cycles []struct {
		Modules []string `json:"modules"`
	}
	require.NoError(t, json.Unmarshal(env.Results, &cycles))
	require.Len(t, cycles, 1)
	assert.Contains(t, cycles[0].Modules, "my_app.alpha")
	assert.Contains(t, cycles[0].Modules, "my_app.beta")
}

func TestPackages_AggregatesEdges(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	stdout, _, err := runCLI(t, bin, fixture, "packages")
	require.NoError(t, err)

	env := decodeEnvelope(t, stdout)
	var graph struct {
		Packages []struct {
			Name      string `json:"name"`
			FileCount int    `json:"file_count"`
		} `json:"packages"`
		Edges []struct {
			From        string `json:"from"`
			To          string `json:"to"`
			ImportCount int    `json:"import_count"`
		} `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(env.Results, &graph))

	names := map[string]int{}
	for _, p := range graph.Packages {
		names[p.Name] = p.FileCount
	}
	assert.Equal(t, 3, names["my_app"])
	assert.Equal(t, 2, names["my_app.models"])
	assert.NotEmpty(t, graph.Edges)
}

func TestRun_EmbeddedSummaryReport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	stdout, stderr, err := runCLI(t, bin, fixture, "run", "summary")
	require.NoError(t, err, "run summary failed: %s", stderr)

	assert.Contains(t, stdout, "Files indexed: 5")
	assert.Contains(t, stdout, "Import cycles: 0")
}

func TestRun_DiskScript(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	script := filepath.Join(fixture, "count.risor")
	require.NoError(t, os.WriteFile(script, []byte("print('total {len(files())}')\n"), 0o644))

	stdout, stderr, err := runCLI(t, bin, fixture, "run", "count.risor")
	require.NoError(t, err, "run disk script failed: %s", stderr)
	assert.Contains(t, stdout, "total 5")
}

func TestRun_UnknownReportFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	stdout, _, err := runCLI(t, bin, fixture, "run", "nonesuch")
	require.Error(t, err)
	env := decodeEnvelope(t, stdout)
	assert.Contains(t, env.Error, "nonesuch")
}

func TestQuery_WithoutIndexFails(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	stdout, _, err := runCLI(t, bin, fixture, "files")
	require.Error(t, err)

	env := decodeEnvelope(t, stdout)
	assert.Contains(t, env.Error, "run 'taproot index' first")
}

func TestQuery_WarnsWhenConfigChanged(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)

	// Change the tracked prefixes after indexing.
	cfg := filepath.Join(fixture, "taproot.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("prefixes:\n  - my_app\n  - tools\n"), 0o644))

	_, stderr, err = runCLI(t, bin, fixture, "files")
	require.NoError(t, err)
	assert.Contains(t, stderr, "results may be stale")
}

func TestIndex_ReportsUnresolvedImportDiagnostics(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	fixture := createPythonFixture(t)

	broken := filepath.Join(fixture, "my_app", "broken.py")
	require.NoError(t, os.WriteFile(broken, []byte("import my_app.ghost\n"), 0o644))

	_, stderr, err := runCLI(t, bin, fixture, "index")
	require.NoError(t, err, "index failed: %s", stderr)
	assert.Contains(t, stderr, "diagnostic(s):")
	assert.Contains(t, stderr, "my_app.ghost")

	// The diagnostics ride along in the files envelope too.
	stdout, _, err := runCLI(t, bin, fixture, "files")
	require.NoError(t, err)
	env := decodeEnvelope(t, stdout)
	require.NotEmpty(t, env.Diagnostics)
	assert.Equal(t, "my_app.ghost", env.Diagnostics[0].Import)
}
