package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/taproot"
)

// ErrEmpty is returned by LoadMap when the database holds no saved map.
var ErrEmpty = errors.New("store: no dependency map saved")

// Metadata keys written alongside every saved map.
const (
	MetaSourceRoot  = "source_root"
	MetaFingerprint = "fingerprint"
	MetaBuiltAt     = "built_at"
)

// Store is the SQLite persistence layer for a built dependency map. It holds
// exactly one map at a time; SaveMap replaces whatever was there before.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  path          TEXT PRIMARY KEY,
  module_name   TEXT NOT NULL,
  content_hash  TEXT NOT NULL,
  parse_ok      BOOLEAN NOT NULL DEFAULT TRUE
);

-- target_path carries no FK: an import may resolve to a real file the
-- include paths never indexed, so the target is not always a files row.
CREATE TABLE IF NOT EXISTS edges (
  source_path   TEXT NOT NULL REFERENCES files(path),
  target_path   TEXT NOT NULL,
  PRIMARY KEY (source_path, target_path)
);

CREATE TABLE IF NOT EXISTS diagnostics (
  id            INTEGER PRIMARY KEY,
  path          TEXT NOT NULL,
  import        TEXT NOT NULL DEFAULT '',
  detail        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key           TEXT PRIMARY KEY,
  value         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_path);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_path);
CREATE INDEX IF NOT EXISTS idx_diagnostics_path ON diagnostics(path);
`

// SaveMap replaces the stored map with m in a single transaction and records
// the source root, the build fingerprint, and the save time in metadata.
func (s *Store) SaveMap(m *taproot.DependencyMap, fingerprint string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save map: begin: %w", err)
	}
	defer tx.Rollback()

	// Edges and diagnostics first so the files FK stays satisfied.
	for _, q := range []string{
		"DELETE FROM edges",
		"DELETE FROM diagnostics",
		"DELETE FROM files",
	} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("save map: clear: %w", err)
		}
	}

	insFile, err := tx.Prepare("INSERT INTO files (path, module_name, content_hash, parse_ok) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("save map: prepare files: %w", err)
	}
	defer insFile.Close()

	insEdge, err := tx.Prepare("INSERT INTO edges (source_path, target_path) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("save map: prepare edges: %w", err)
	}
	defer insEdge.Close()

	for _, path := range m.Paths() {
		pf := m.Files[path]
		if _, err := insFile.Exec(pf.Path, pf.ModuleName, pf.ContentHash, pf.ParseOK); err != nil {
			return fmt.Errorf("save map: file %q: %w", pf.Path, err)
		}
		for _, dep := range pf.Dependencies {
			if _, err := insEdge.Exec(pf.Path, dep); err != nil {
				return fmt.Errorf("save map: edge %q -> %q: %w", pf.Path, dep, err)
			}
		}
	}

	insDiag, err := tx.Prepare("INSERT INTO diagnostics (path, import, detail) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("save map: prepare diagnostics: %w", err)
	}
	defer insDiag.Close()

	for _, d := range m.Diagnostics {
		if _, err := insDiag.Exec(d.Path, d.Import, d.Detail); err != nil {
			return fmt.Errorf("save map: diagnostic for %q: %w", d.Path, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, kv := range [][2]string{
		{MetaSourceRoot, m.SourceRoot},
		{MetaFingerprint, fingerprint},
		{MetaBuiltAt, now},
	} {
		if err := setMetadata(tx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("save map: metadata %q: %w", kv[0], err)
		}
	}

	return tx.Commit()
}

// LoadMap reads the stored map back. Returns ErrEmpty when SaveMap has never
// run against this database.
func (s *Store) LoadMap() (*taproot.DependencyMap, error) {
	sourceRoot, err := s.GetMetadata(MetaSourceRoot)
	if err != nil {
		return nil, fmt.Errorf("load map: %w", err)
	}
	if sourceRoot == "" {
		return nil, ErrEmpty
	}

	m := &taproot.DependencyMap{
		SourceRoot: sourceRoot,
		Files:      make(map[string]*taproot.ProjectFile),
	}

	if err := s.loadFiles(m); err != nil {
		return nil, fmt.Errorf("load map: %w", err)
	}
	if err := s.loadEdges(m); err != nil {
		return nil, fmt.Errorf("load map: %w", err)
	}
	if err := s.loadDiagnostics(m); err != nil {
		return nil, fmt.Errorf("load map: %w", err)
	}
	return m, nil
}

func (s *Store) loadFiles(m *taproot.DependencyMap) error {
	rows, err := s.db.Query("SELECT path, module_name, content_hash, parse_ok FROM files")
	if err != nil {
		return fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		// Dependencies stays non-nil so a loaded map is shaped exactly
		// like a freshly built one.
		pf := &taproot.ProjectFile{Dependencies: []string{}}
		if err := rows.Scan(&pf.Path, &pf.ModuleName, &pf.ContentHash, &pf.ParseOK); err != nil {
			return fmt.Errorf("scan file: %w", err)
		}
		m.Files[pf.Path] = pf
	}
	return rows.Err()
}

func (s *Store) loadEdges(m *taproot.DependencyMap) error {
	rows, err := s.db.Query("SELECT source_path, target_path FROM edges ORDER BY source_path, target_path")
	if err != nil {
		return fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var src, dst string
		if err := rows.Scan(&src, &dst); err != nil {
			return fmt.Errorf("scan edge: %w", err)
		}
		if pf, ok := m.Files[src]; ok {
			pf.Dependencies = append(pf.Dependencies, dst)
		}
	}
	return rows.Err()
}

func (s *Store) loadDiagnostics(m *taproot.DependencyMap) error {
	rows, err := s.db.Query("SELECT path, import, detail FROM diagnostics ORDER BY path, import, detail")
	if err != nil {
		return fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d taproot.Diagnostic
		if err := rows.Scan(&d.Path, &d.Import, &d.Detail); err != nil {
			return fmt.Errorf("scan diagnostic: %w", err)
		}
		m.Diagnostics = append(m.Diagnostics, d)
	}
	return rows.Err()
}

// GetMetadata returns the value for key, or "" when the key is absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMetadata upserts a single metadata key.
func (s *Store) SetMetadata(key, value string) error {
	if err := setMetadata(s.db, key, value); err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func setMetadata(e execer, key, value string) error {
	_, err := e.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}
