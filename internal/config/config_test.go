package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "audiencedeck", cfg.Name)
	assert.Equal(t, "http://localhost:4000", cfg.API.BaseURL)
	assert.Equal(t, "sandbox", cfg.Phyllo.Environment)
	assert.NotEmpty(t, cfg.Phyllo.SDKURL)
	assert.Equal(t, 30*time.Second, cfg.APITimeout())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sandbox", cfg.Phyllo.Environment)
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  base_url: https://deck.example.com
  timeout: 5s
phyllo:
  environment: staging
browser:
  headless: true
ui:
  theme: dark
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://deck.example.com", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.APITimeout())
	assert.Equal(t, "staging", cfg.Phyllo.Environment)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "dark", cfg.UI.Theme)

	// Unspecified sections keep their defaults.
	assert.NotEmpty(t, cfg.Phyllo.SDKURL)
	assert.Equal(t, 1280, cfg.Browser.ViewportWidth)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUDIENCEDECK_API_URL", "https://env.example.com")
	t.Setenv("AUDIENCEDECK_PHYLLO_ENV", "production")
	t.Setenv("AUDIENCEDECK_HEADLESS", "1")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.API.BaseURL)
	assert.Equal(t, "production", cfg.Phyllo.Environment)
	assert.True(t, cfg.Browser.Headless)
}

func TestLoadFromStateDirResolvesRelativePaths(t *testing.T) {
	stateDir := t.TempDir()

	cfg, err := LoadFromStateDir(stateDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(stateDir, "snapshot.db"), cfg.Storage.SnapshotPath)
	assert.Equal(t, filepath.Join(stateDir, "credentials"), cfg.Storage.CredentialsDir)
}

func TestLoadFromStateDirKeepsAbsolutePaths(t *testing.T) {
	stateDir := t.TempDir()
	path := filepath.Join(stateDir, "config.yaml")
	content := `
storage:
  snapshot_path: /var/lib/deck/snapshot.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromStateDir(stateDir)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/deck/snapshot.db", cfg.Storage.SnapshotPath)
}

func TestAPITimeoutFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Timeout = "not-a-duration"
	assert.Equal(t, 30*time.Second, cfg.APITimeout())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.UI.Theme = "dark"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dark", loaded.UI.Theme)
}

func TestDefaultStateDirHonorsEnv(t *testing.T) {
	t.Setenv("AUDIENCEDECK_HOME", "/tmp/deck-home")
	assert.Equal(t, "/tmp/deck-home", DefaultStateDir())
}
