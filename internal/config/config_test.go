package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, ".knowd", cfg.StorageDir)
	assert.Equal(t, "bd", cfg.Command)
	assert.True(t, cfg.Scanner.Enabled)
	assert.Equal(t, 0.7, cfg.Sync.MinConfidence)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ".knowd", cfg.StorageDir)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage_dir: .memory
command: beads
scanner:
  enabled: false
  allowlist_path: allow.toml
sync:
  min_confidence: 0.9
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ".memory", cfg.StorageDir)
	assert.Equal(t, "beads", cfg.Command)
	assert.False(t, cfg.Scanner.Enabled)
	assert.Equal(t, "allow.toml", cfg.Scanner.AllowlistPath)
	assert.Equal(t, 0.9, cfg.Sync.MinConfidence)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep their defaults.
	assert.True(t, cfg.Enabled)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("command: beads\n"), 0o644))

	t.Setenv("KNOWD_COMMAND", "bd-next")
	t.Setenv("KNOWD_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bd-next", cfg.Command)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadEnvUnderscoreKeys(t *testing.T) {
	t.Setenv("KNOWD_STORAGE_DIR", ".membank")
	t.Setenv("KNOWD_CREATED_BY", "agent-7")
	t.Setenv("KNOWD_SCANNER_ALLOWLIST_PATH", "allow.toml")
	t.Setenv("KNOWD_SYNC_MIN_CONFIDENCE", "0.85")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ".membank", cfg.StorageDir)
	assert.Equal(t, "agent-7", cfg.CreatedBy)
	assert.Equal(t, "allow.toml", cfg.Scanner.AllowlistPath)
	assert.Equal(t, 0.85, cfg.Sync.MinConfidence)
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"KNOWD_ENABLED", "enabled"},
		{"KNOWD_COMMAND", "command"},
		{"KNOWD_STORAGE_DIR", "storage_dir"},
		{"KNOWD_CREATED_BY", "created_by"},
		{"KNOWD_SCANNER_ENABLED", "scanner.enabled"},
		{"KNOWD_SCANNER_ALLOWLIST_PATH", "scanner.allowlist_path"},
		{"KNOWD_SYNC_MIN_CONFIDENCE", "sync.min_confidence"},
		{"KNOWD_LOGGING_LEVEL", "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			assert.Equal(t, tt.want, envKey(tt.env))
		})
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_dir: [unterminated\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty storage dir", func(c *Config) { c.StorageDir = "" }},
		{"absolute storage dir", func(c *Config) { c.StorageDir = "/var/knowd" }},
		{"traversal storage dir", func(c *Config) { c.StorageDir = "../outside" }},
		{"empty command", func(c *Config) { c.Command = "" }},
		{"negative min confidence", func(c *Config) { c.Sync.MinConfidence = -0.1 }},
		{"min confidence above one", func(c *Config) { c.Sync.MinConfidence = 1.01 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
