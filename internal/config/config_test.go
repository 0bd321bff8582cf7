package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsInMemoryWithErrorPolicy(t *testing.T) {
	cfg := Default()
	require.True(t, cfg.InMemory)
	require.Equal(t, MissingRowError, cfg.DefaultMissingRowPolicy)
	require.Empty(t, cfg.DataDir)
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadPartialFileOverridesOnlySetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataDir: /var/lib/canisterdb\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/canisterdb", cfg.DataDir)
	// InMemory and DefaultMissingRowPolicy keep their Default() values
	// since the file never mentions them.
	require.True(t, cfg.InMemory)
	require.Equal(t, MissingRowError, cfg.DefaultMissingRowPolicy)
}

func TestLoadFullFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	contents := `
dataDir: /data/canisterdb
inMemory: false
valueLogFileSize: 1048576
memTableSize: 2097152
defaultMissingRowPolicy: ignore
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, EngineOptions{
		DataDir:                 "/data/canisterdb",
		InMemory:                false,
		ValueLogFileSize:        1048576,
		MemTableSize:            2097152,
		DefaultMissingRowPolicy: MissingRowIgnore,
	}, cfg)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataDir: [unterminated\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestDiscoverWalksUpFromCwd(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "engine.yaml"), []byte("dataDir: /found\n"), 0o644))

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	origWD, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, os.Chdir(origWD)) })
	require.NoError(t, os.Chdir(nested))

	cfg, err := Discover("engine.yaml")
	require.NoError(t, err)
	require.Equal(t, "/found", cfg.DataDir)
}

func TestDiscoverReturnsDefaultWhenNotFound(t *testing.T) {
	root := t.TempDir()
	origWD, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, os.Chdir(origWD)) })
	require.NoError(t, os.Chdir(root))

	cfg, err := Discover("nonexistent-engine-config.yaml")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}
