// Package configfile reads and writes the per-project config.json that
// lives inside the project data directory (.weft/).
package configfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Dashboard process modes.
const (
	ModeEthereal = "ethereal"
	ModeServer   = "server"
)

// Well-known names inside the project data directory.
const (
	DirName      = ".weft"
	ConfigName   = "config.json"
	DatabaseName = "weft.db"
	SummaryName  = "context.md"
	PacksDirName = "packs"
	TemplatesDir = "templates"
)

// FormatVersion is the current config.json format version.
const FormatVersion = 1

// DefaultEnabledPacks is applied when enabled_packs is missing.
func DefaultEnabledPacks() []string { return []string{"core", "planning"} }

// Config is the project-level configuration.
type Config struct {
	Prefix         string   `json:"prefix"`
	Version        int      `json:"version"`
	EnabledPacks   []string `json:"enabled_packs,omitempty"`
	Mode           string   `json:"mode,omitempty"`
	WorkflowStates []string `json:"workflow_states,omitempty"`
}

// Default returns a config with every fallback applied and no prefix.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills the documented fallbacks for absent keys.
func (c *Config) applyDefaults() {
	if c.EnabledPacks == nil {
		c.EnabledPacks = DefaultEnabledPacks()
	}
	if c.Mode == "" {
		c.Mode = ModeEthereal
	}
	if c.Version == 0 {
		c.Version = FormatVersion
	}
}

// Validate rejects configs the rest of the system cannot honor.
func (c *Config) Validate() error {
	if c.Prefix == "" {
		return errors.New("prefix is required")
	}
	if len(c.Prefix) > 16 {
		return fmt.Errorf("prefix %q exceeds 16 characters", c.Prefix)
	}
	if c.Mode != ModeEthereal && c.Mode != ModeServer {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeEthereal, ModeServer, c.Mode)
	}
	return nil
}

// PackEnabled reports whether the named pack is in enabled_packs.
func (c *Config) PackEnabled(name string) bool {
	for _, p := range c.EnabledPacks {
		if p == name {
			return true
		}
	}
	return false
}

// Load reads <projectDir>/config.json and applies defaults.
func Load(projectDir string) (*Config, error) {
	path := filepath.Join(projectDir, ConfigName)
	data, err := os.ReadFile(path) // #nosec G304 -- path is derived from the project dir
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes config.json with a trailing newline, mode 0600.
func Save(projectDir string, cfg *Config) error {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(filepath.Join(projectDir, ConfigName), data, 0o600)
}

// Exists reports whether projectDir contains a config.json.
func Exists(projectDir string) bool {
	_, err := os.Stat(filepath.Join(projectDir, ConfigName))
	return err == nil
}

// DatabasePath returns the store file path for a project dir.
func DatabasePath(projectDir string) string {
	return filepath.Join(projectDir, DatabaseName)
}

// SummaryPath returns the context snapshot path for a project dir.
func SummaryPath(projectDir string) string {
	return filepath.Join(projectDir, SummaryName)
}

// PacksPath returns the installed-packs directory for a project dir.
func PacksPath(projectDir string) string {
	return filepath.Join(projectDir, PacksDirName)
}

// TemplatesPath returns the project-local template overrides directory.
func TemplatesPath(projectDir string) string {
	return filepath.Join(projectDir, TemplatesDir)
}

// ErrNotFound is returned by Find when no project directory exists in any
// parent of the start directory.
var ErrNotFound = errors.New("no " + DirName + " directory found (run 'weft init' first)")

// Find walks up from startDir looking for a .weft directory containing
// config.json and returns its absolute path.
func Find(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, DirName)
		if Exists(candidate) {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// FindFromCwd is Find anchored at the current working directory, with a
// WEFT_DIR environment override for tests and unusual layouts.
func FindFromCwd() (string, error) {
	if env := os.Getenv("WEFT_DIR"); env != "" {
		if Exists(env) {
			return filepath.Abs(env)
		}
		return "", fmt.Errorf("WEFT_DIR=%s does not contain %s", env, ConfigName)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return Find(cwd)
}

// Init creates projectDir (and packs/, templates/) and writes an initial
// config. Fails if config.json already exists.
func Init(projectDir string, cfg *Config) error {
	if Exists(projectDir) {
		return fmt.Errorf("%s already exists in %s", ConfigName, projectDir)
	}
	for _, dir := range []string{projectDir, PacksPath(projectDir), TemplatesPath(projectDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return Save(projectDir, cfg)
}
