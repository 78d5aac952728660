// Package config provides the process-wide configuration singleton.
//
// Configuration is resolved in precedence order: explicit Set calls
// (typically cobra flag values), then WEFT_* environment variables, then
// the nearest .weft/config.yaml walking up from the working directory,
// then the user-level config in os.UserConfigDir()/weft, then defaults.
//
// The singleton only carries operator preferences (actor, output mode,
// server behavior). Project identity and workflow settings live in
// .weft/config.json and are handled by the configfile package.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize creates the viper instance, registers defaults, binds the
// WEFT_* environment, and reads any config.yaml it can find. Safe to call
// more than once; each call rebuilds the instance from scratch.
func Initialize() error {
	nv := viper.New()

	setDefaults(nv)

	nv.SetEnvPrefix("WEFT")
	nv.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	nv.AutomaticEnv()

	nv.SetConfigName("config")
	nv.SetConfigType("yaml")
	for _, dir := range configSearchPaths() {
		nv.AddConfigPath(dir)
	}

	if err := nv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		// No config file anywhere is fine; env and defaults still apply.
	}

	v = nv
	return nil
}

func setDefaults(nv *viper.Viper) {
	nv.SetDefault("json", false)
	nv.SetDefault("actor", "")
	nv.SetDefault("db", "")
	nv.SetDefault("color", "auto")
	nv.SetDefault("no-server", false)
	nv.SetDefault("no-summary", false)
	nv.SetDefault("auto-start-server", true)
	nv.SetDefault("server.idle-timeout", 15*time.Minute)
	nv.SetDefault("log-level", "info")
}

// configSearchPaths returns candidate directories for config.yaml, nearest
// first: every .weft directory from cwd up to the filesystem root, then the
// user-level weft config directory.
func configSearchPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; ; dir = filepath.Dir(dir) {
			paths = append(paths, filepath.Join(dir, ".weft"))
			if dir == filepath.Dir(dir) {
				break
			}
		}
	}

	if userDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(userDir, "weft"))
	}

	return paths
}

// Set overrides a key for the lifetime of the process. Used to push
// resolved cobra flag values into the singleton.
func Set(key string, value interface{}) {
	if v == nil {
		return
	}
	v.Set(key, value)
}

// GetString returns the string value for key, or "" before Initialize.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool returns the bool value for key, or false before Initialize.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt returns the int value for key, or 0 before Initialize.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration returns the duration value for key, or 0 before Initialize.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetStringSlice returns the string slice for key, or an empty slice
// before Initialize.
func GetStringSlice(key string) []string {
	if v == nil {
		return []string{}
	}
	return v.GetStringSlice(key)
}

// IsSet reports whether key was set by flag, env, or config file (not
// merely defaulted).
func IsSet(key string) bool {
	if v == nil {
		return false
	}
	return v.IsSet(key)
}

// AllSettings returns the merged view of every known setting.
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}
