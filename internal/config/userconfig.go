package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UserConfig is the subset of config.yaml read directly from disk rather
// than through the viper singleton. Needed when the working directory has
// changed since Initialize, or when a value is wanted before viper is up
// (actor resolution during early startup, color mode for error output).
type UserConfig struct {
	Actor    string `yaml:"actor"`
	DB       string `yaml:"db"`
	Color    string `yaml:"color"`
	JSON     bool   `yaml:"json"`
	NoServer bool   `yaml:"no-server"`
}

// LoadUserConfig reads and parses config.yaml from the given directory.
// Returns an empty UserConfig (never nil) if the file is missing or
// unparseable.
func LoadUserConfig(dir string) *UserConfig {
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml")) // #nosec G304 - path derived from project discovery
	if err != nil {
		return &UserConfig{}
	}

	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &UserConfig{}
	}

	return &cfg
}

// LoadUserConfigWithEnv reads config.yaml and applies WEFT_* environment
// overrides. Environment variables win over file values.
func LoadUserConfigWithEnv(dir string) *UserConfig {
	cfg := LoadUserConfig(dir)

	if actor := os.Getenv("WEFT_ACTOR"); actor != "" {
		cfg.Actor = actor
	}
	if db := os.Getenv("WEFT_DB"); db != "" {
		cfg.DB = db
	}

	return cfg
}

// UserConfigDir returns the user-level weft config directory
// (os.UserConfigDir()/weft), creating nothing.
func UserConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "weft"), nil
}

// ResolveActor returns the acting identity for mutations: the explicit
// value if non-empty, else WEFT_ACTOR, else the actor from the user config
// in weftDir, else $USER, else "unknown".
func ResolveActor(explicit, weftDir string) string {
	if explicit != "" {
		return explicit
	}
	if actor := os.Getenv("WEFT_ACTOR"); actor != "" {
		return actor
	}
	if weftDir != "" {
		if actor := LoadUserConfig(weftDir).Actor; actor != "" {
			return actor
		}
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}
