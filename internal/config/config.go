// Package config resolves where cryptlog keeps its entries and keys.
//
// Values come from an optional YAML file and are overridden by the
// CRYPTLOG_LOGS_DIR and CRYPTLOG_KEYS_DIR environment variables. Both
// directories must be set by one of the two; there are no built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables
const (
	EnvLogsDir = "CRYPTLOG_LOGS_DIR"
	EnvKeysDir = "CRYPTLOG_KEYS_DIR"
	EnvConfig  = "CRYPTLOG_CONFIG"
)

// Constants
const (
	FileName       = "config.yaml"
	CatalogFile    = ".catalog.db" // dot prefix keeps it out of the user id space
	AuditDirName   = "audit"
	CurrentVersion = 1
)

// Errors
var (
	ErrMissingLogsDir = errors.New("config: logs directory not configured (set " + EnvLogsDir + " or logs_dir)")
	ErrMissingKeysDir = errors.New("config: keys directory not configured (set " + EnvKeysDir + " or keys_dir)")
	ErrConfigNotFound = errors.New("config: file not found")
	ErrSameDirectory  = errors.New("config: logs and keys directories must differ")
)

// Config holds the resolved settings.
type Config struct {
	Version int    `yaml:"version"`
	LogsDir string `yaml:"logs_dir"`
	KeysDir string `yaml:"keys_dir"`
	Catalog bool   `yaml:"catalog"` // keep the SQLite entry index
	Audit   bool   `yaml:"audit"`   // keep per-user audit trails

	path string // file the settings were read from, if any
}

// Default returns a config with features enabled and no directories.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Catalog: true,
		Audit:   true,
	}
}

// DefaultPath returns the config file location used when none is given:
// $CRYPTLOG_CONFIG, else <user config dir>/cryptlog/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "cryptlog", FileName)
}

// Load reads path (or DefaultPath when empty), applies environment
// overrides and validates the result. An explicitly named file must exist;
// a missing default file is ignored.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			if !errors.Is(err, ErrConfigNotFound) || explicit {
				return nil, err
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if c.Version != CurrentVersion {
		return fmt.Errorf("config: unsupported version %d in %s", c.Version, path)
	}
	c.path = path
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvLogsDir); v != "" {
		c.LogsDir = v
	}
	if v := os.Getenv(EnvKeysDir); v != "" {
		c.KeysDir = v
	}
}

// Validate requires both directories and normalizes them to absolute paths.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LogsDir) == "" {
		return ErrMissingLogsDir
	}
	if strings.TrimSpace(c.KeysDir) == "" {
		return ErrMissingKeysDir
	}

	var err error
	if c.LogsDir, err = absPath(c.LogsDir); err != nil {
		return err
	}
	if c.KeysDir, err = absPath(c.KeysDir); err != nil {
		return err
	}
	if c.LogsDir == c.KeysDir {
		return ErrSameDirectory
	}
	return nil
}

func absPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("config: failed to expand %s: %w", p, err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("config: invalid path %s: %w", p, err)
	}
	return abs, nil
}

// Path returns the file the config was read from, or "".
func (c *Config) Path() string {
	return c.path
}

// CatalogPath returns the SQLite catalog location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.LogsDir, CatalogFile)
}

// AuditDir returns the audit directory of user.
func (c *Config) AuditDir(user string) string {
	return filepath.Join(c.KeysDir, user, AuditDirName)
}

// Save writes the config as YAML to path with owner-only permissions.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: failed to create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: failed to marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}
	c.path = path
	return nil
}
