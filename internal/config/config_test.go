package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInitialize(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if v == nil {
		t.Fatal("viper instance is nil after Initialize()")
	}
}

func TestDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"json", false, func(k string) interface{} { return GetBool(k) }},
		{"no-server", false, func(k string) interface{} { return GetBool(k) }},
		{"no-summary", false, func(k string) interface{} { return GetBool(k) }},
		{"auto-start-server", true, func(k string) interface{} { return GetBool(k) }},
		{"db", "", func(k string) interface{} { return GetString(k) }},
		{"actor", "", func(k string) interface{} { return GetString(k) }},
		{"color", "auto", func(k string) interface{} { return GetString(k) }},
		{"server.idle-timeout", 15 * time.Minute, func(k string) interface{} { return GetDuration(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := tt.getter(tt.key)
			if got != tt.expected {
				t.Errorf("GetXXX(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestEnvironmentBinding(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		envVar   string
		key      string
		value    string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"WEFT_JSON", "json", "true", true, func(k string) interface{} { return GetBool(k) }},
		{"WEFT_NO_SERVER", "no-server", "true", true, func(k string) interface{} { return GetBool(k) }},
		{"WEFT_ACTOR", "actor", "testagent", "testagent", func(k string) interface{} { return GetString(k) }},
		{"WEFT_DB", "db", "/tmp/test.db", "/tmp/test.db", func(k string) interface{} { return GetString(k) }},
		{"WEFT_AUTO_START_SERVER", "auto-start-server", "false", false, func(k string) interface{} { return GetBool(k) }},
		{"WEFT_SERVER_IDLE_TIMEOUT", "server.idle-timeout", "5m", 5 * time.Minute, func(k string) interface{} { return GetDuration(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.envVar, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)
			if err := Initialize(); err != nil {
				t.Fatalf("Initialize() returned error: %v", err)
			}
			got := tt.getter(tt.key)
			if got != tt.expected {
				t.Errorf("GetXXX(%q) with %s=%s = %v, want %v", tt.key, tt.envVar, tt.value, got, tt.expected)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	weftDir := filepath.Join(tmpDir, ".weft")
	if err := os.MkdirAll(weftDir, 0o750); err != nil {
		t.Fatalf("failed to create .weft directory: %v", err)
	}

	configContent := `
json: true
no-server: true
actor: configagent
`
	if err := os.WriteFile(filepath.Join(weftDir, "config.yaml"), []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Chdir(tmpDir)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	if got := GetBool("json"); got != true {
		t.Errorf("GetBool(json) = %v, want true", got)
	}
	if got := GetBool("no-server"); got != true {
		t.Errorf("GetBool(no-server) = %v, want true", got)
	}
	if got := GetString("actor"); got != "configagent" {
		t.Errorf("GetString(actor) = %q, want \"configagent\"", got)
	}
}

func TestConfigFileFoundFromSubdirectory(t *testing.T) {
	tmpDir := t.TempDir()
	weftDir := filepath.Join(tmpDir, ".weft")
	if err := os.MkdirAll(weftDir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(weftDir, "config.yaml"), []byte("actor: nested\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(tmpDir, "src", "deep")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := GetString("actor"); got != "nested" {
		t.Errorf("GetString(actor) = %q, want \"nested\"", got)
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	weftDir := filepath.Join(tmpDir, ".weft")
	if err := os.MkdirAll(weftDir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(weftDir, "config.yaml"), []byte("json: false\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(tmpDir)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := GetBool("json"); got != false {
		t.Errorf("GetBool(json) from config file = %v, want false", got)
	}

	t.Setenv("WEFT_JSON", "true")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := GetBool("json"); got != true {
		t.Errorf("GetBool(json) with env var = %v, want true (env should override config)", got)
	}
}

func TestSetAndGet(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	Set("test-key", "test-value")
	if got := GetString("test-key"); got != "test-value" {
		t.Errorf("GetString(test-key) = %q, want \"test-value\"", got)
	}

	Set("test-bool", true)
	if got := GetBool("test-bool"); got != true {
		t.Errorf("GetBool(test-bool) = %v, want true", got)
	}

	Set("test-int", 42)
	if got := GetInt("test-int"); got != 42 {
		t.Errorf("GetInt(test-int) = %d, want 42", got)
	}
}

func TestNilViperBehavior(t *testing.T) {
	savedV := v
	v = nil
	defer func() { v = savedV }()

	if got := GetString("any-key"); got != "" {
		t.Errorf("GetString with nil viper = %q, want \"\"", got)
	}
	if got := GetBool("any-key"); got != false {
		t.Errorf("GetBool with nil viper = %v, want false", got)
	}
	if got := GetInt("any-key"); got != 0 {
		t.Errorf("GetInt with nil viper = %d, want 0", got)
	}
	if got := GetDuration("any-key"); got != 0 {
		t.Errorf("GetDuration with nil viper = %v, want 0", got)
	}
	if got := GetStringSlice("any-key"); got == nil || len(got) != 0 {
		t.Errorf("GetStringSlice with nil viper = %v, want empty slice", got)
	}
	if got := AllSettings(); got == nil || len(got) != 0 {
		t.Errorf("AllSettings with nil viper = %v, want empty map", got)
	}

	Set("any-key", "any-value") // no-op, must not panic
}

func TestLoadUserConfig(t *testing.T) {
	dir := t.TempDir()
	content := `
actor: fileagent
color: never
no-server: true
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := LoadUserConfig(dir)
	if cfg.Actor != "fileagent" {
		t.Errorf("Actor = %q, want fileagent", cfg.Actor)
	}
	if cfg.Color != "never" {
		t.Errorf("Color = %q, want never", cfg.Color)
	}
	if !cfg.NoServer {
		t.Error("NoServer = false, want true")
	}
}

func TestLoadUserConfigMissing(t *testing.T) {
	cfg := LoadUserConfig(t.TempDir())
	if cfg == nil {
		t.Fatal("LoadUserConfig returned nil for missing file")
	}
	if cfg.Actor != "" {
		t.Errorf("Actor = %q, want empty", cfg.Actor)
	}
}

func TestLoadUserConfigWithEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("actor: fileagent\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WEFT_ACTOR", "envagent")
	cfg := LoadUserConfigWithEnv(dir)
	if cfg.Actor != "envagent" {
		t.Errorf("Actor = %q, want envagent (env wins)", cfg.Actor)
	}
}

func TestResolveActor(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("actor: fileagent\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("WEFT_ACTOR", "")
	t.Setenv("USER", "shelluser")

	if got := ResolveActor("explicit", dir); got != "explicit" {
		t.Errorf("explicit actor = %q, want explicit", got)
	}
	if got := ResolveActor("", dir); got != "fileagent" {
		t.Errorf("file actor = %q, want fileagent", got)
	}

	t.Setenv("WEFT_ACTOR", "envagent")
	if got := ResolveActor("", dir); got != "envagent" {
		t.Errorf("env actor = %q, want envagent", got)
	}

	t.Setenv("WEFT_ACTOR", "")
	if got := ResolveActor("", t.TempDir()); got != "shelluser" {
		t.Errorf("fallback actor = %q, want shelluser", got)
	}
}
