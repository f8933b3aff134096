// Package config loads knowd configuration. The CLI (or whatever
// harness embeds the store) loads a Config here and hands it to the
// service layer together with a resolved project root; the core itself
// never reads configuration files or flags.
//
// Precedence, highest first: environment variables (KNOWD_*), the YAML
// config file, hardcoded defaults. An environment variable nests only
// when it starts with a section name (KNOWD_LOGGING_LEVEL ->
// logging.level); underscores elsewhere belong to the key
// (KNOWD_STORAGE_DIR -> storage_dir).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/knowd/internal/logging"
)

const envPrefix = "KNOWD_"

// maxConfigFileSize caps config reads.
const maxConfigFileSize = 1024 * 1024

// Config is everything the service layer needs beyond the project
// root.
type Config struct {
	// Enabled turns the store off entirely when false; consumers get
	// empty results and writes are rejected upstream.
	Enabled bool `koanf:"enabled"`

	// StorageDir is the sub-path under the project root holding the
	// record file, usage log, and synced context.
	StorageDir string `koanf:"storage_dir"`

	// Command is the external issue-tracking command probed as the
	// primary backend.
	Command string `koanf:"command"`

	// CreatedBy stamps new entries when the caller does not.
	CreatedBy string `koanf:"created_by"`

	Scanner ScannerConfig  `koanf:"scanner"`
	Sync    SyncConfig     `koanf:"sync"`
	Logging logging.Config `koanf:"logging"`
}

// ScannerConfig controls the secret scanner.
type ScannerConfig struct {
	Enabled bool `koanf:"enabled"`

	// AllowlistPath points at an optional TOML allowlist.
	AllowlistPath string `koanf:"allowlist_path"`
}

// SyncConfig controls context sync output.
type SyncConfig struct {
	// MinConfidence is the floor for entries included in synced
	// context files.
	MinConfidence float64 `koanf:"min_confidence"`
}

// Default returns the hardcoded defaults.
func Default() Config {
	return Config{
		Enabled:    true,
		StorageDir: ".knowd",
		Command:    "bd",
		Scanner:    ScannerConfig{Enabled: true},
		Sync:       SyncConfig{MinConfidence: 0.7},
		Logging:    logging.DefaultConfig(),
	}
}

// Load reads configuration from the YAML file at path (skipped when
// path is empty or the file does not exist), then overrides with
// KNOWD_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		data, err := readLimited(path)
		if err != nil {
			return cfg, err
		}
		if data != nil {
			if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
				return cfg, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("loading environment: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// configSections are the nested config groups. Only their prefix
// underscore is a separator; every other underscore belongs to the
// key itself.
var configSections = map[string]bool{
	"scanner": true,
	"sync":    true,
	"logging": true,
}

// envKey maps an environment variable to a koanf key.
//
// Examples:
//
//	KNOWD_STORAGE_DIR            -> storage_dir
//	KNOWD_SCANNER_ALLOWLIST_PATH -> scanner.allowlist_path
//	KNOWD_SYNC_MIN_CONFIDENCE    -> sync.min_confidence
//
// A naive underscore-to-dot rewrite would turn KNOWD_STORAGE_DIR into
// storage.dir and silently miss the storage_dir field, so only the
// first underscore after a known section name is structural.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(key, "_", 2)
	if len(parts) == 2 && configSections[parts[0]] {
		return parts[0] + "." + parts[1]
	}
	return key
}

// Validate rejects configurations the service layer cannot honor.
func (c *Config) Validate() error {
	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir cannot be empty")
	}
	if strings.HasPrefix(c.StorageDir, "/") || strings.Contains(c.StorageDir, "..") {
		return fmt.Errorf("storage_dir must be a relative path inside the project: %q", c.StorageDir)
	}
	if c.Command == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if c.Sync.MinConfidence < 0 || c.Sync.MinConfidence > 1 {
		return fmt.Errorf("sync.min_confidence must be in [0,1]: %g", c.Sync.MinConfidence)
	}
	return nil
}

func readLimited(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxConfigFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return data, nil
}
