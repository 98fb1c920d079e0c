package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")
	assert.Equal(t, "1.2.3 (commit: abc123, built: 2026-01-01)", rootCmd.Version)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	old := configPath
	defer func() { configPath = old }()
	configPath = filepath.Join(t.TempDir(), "does-not-exist.yml")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "free", cfg.Tier)
	assert.Equal(t, "1.0", cfg.Version)
}

func TestLoadConfig_InvalidFileFails(t *testing.T) {
	old := configPath
	defer func() { configPath = old }()

	dir := t.TempDir()
	configPath = filepath.Join(dir, "trinity.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("version: \"9.9\"\n"), 0644))

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "ingest", "stats", "compact", "audit"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
