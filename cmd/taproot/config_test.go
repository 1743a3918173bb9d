package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, configFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_AllFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, t.TempDir(), `
source_root: src
include:
  - my_app
  - tools/cli.py
prefixes:
  - my_app
  - tools
db: .taproot/index.db
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "src", cfg.SourceRoot)
	assert.Equal(t, []string{"my_app", "tools/cli.py"}, cfg.Include)
	assert.Equal(t, []string{"my_app", "tools"}, cfg.Prefixes)
	assert.Equal(t, ".taproot/index.db", cfg.DB)
}

func TestLoadConfig_UnknownKeyFails(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, t.TempDir(), "sourceroot: typo\n")

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, t.TempDir(), "")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestFindConfig_SameDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeConfig(t, dir, "prefixes:\n  - my_app\n")

	cfg, cfgDir, err := findConfig(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, dir, cfgDir)
	assert.Equal(t, []string{"my_app"}, cfg.Prefixes)
}

func TestFindConfig_WalksUp(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeConfig(t, root, "prefixes:\n  - my_app\n")
	deep := filepath.Join(root, "my_app", "models")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	cfg, cfgDir, err := findConfig(deep)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, root, cfgDir)
}

func TestFindConfig_NotFound(t *testing.T) {
	t.Parallel()
	cfg, cfgDir, err := findConfig(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.Empty(t, cfgDir)
}

func TestResolveUnder(t *testing.T) {
	t.Parallel()
	assert.Equal(t, filepath.Join("/proj", "src"), resolveUnder("/proj", "src"))
	assert.Equal(t, "/abs/src", resolveUnder("/proj", "/abs/src"))
}
