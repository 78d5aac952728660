package configfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitAndLoad(t *testing.T) {
	projectDir := filepath.Join(t.TempDir(), DirName)

	err := Init(projectDir, &Config{Prefix: "wf"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	// packs/ and templates/ are created alongside.
	for _, dir := range []string{PacksPath(projectDir), TemplatesPath(projectDir)} {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			t.Errorf("expected directory %s: %v", dir, err)
		}
	}

	cfg, err := Load(projectDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Prefix != "wf" {
		t.Errorf("prefix = %q, want wf", cfg.Prefix)
	}
	if cfg.Mode != ModeEthereal {
		t.Errorf("mode = %q, want default ethereal", cfg.Mode)
	}
	if len(cfg.EnabledPacks) != 2 || cfg.EnabledPacks[0] != "core" || cfg.EnabledPacks[1] != "planning" {
		t.Errorf("enabled_packs = %v, want [core planning]", cfg.EnabledPacks)
	}
	if cfg.Version != FormatVersion {
		t.Errorf("version = %d, want %d", cfg.Version, FormatVersion)
	}
}

func TestInitRefusesExisting(t *testing.T) {
	projectDir := filepath.Join(t.TempDir(), DirName)
	if err := Init(projectDir, &Config{Prefix: "wf"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := Init(projectDir, &Config{Prefix: "other"}); err == nil {
		t.Fatal("second Init should fail")
	}
}

func TestLoadAppliesDefaultsToSparseFile(t *testing.T) {
	projectDir := t.TempDir()
	raw := []byte(`{"prefix": "app", "version": 1}`)
	if err := os.WriteFile(filepath.Join(projectDir, ConfigName), raw, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(projectDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mode != ModeEthereal {
		t.Errorf("missing mode should default to ethereal, got %q", cfg.Mode)
	}
	if len(cfg.EnabledPacks) != 2 {
		t.Errorf("missing enabled_packs should default to [core planning], got %v", cfg.EnabledPacks)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{Prefix: "wf", Mode: ModeEthereal, Version: 1}, false},
		{"no prefix", Config{Mode: ModeEthereal, Version: 1}, true},
		{"bad mode", Config{Prefix: "wf", Mode: "daemon", Version: 1}, true},
		{"long prefix", Config{Prefix: "averyveryverylongprefix", Mode: ModeServer, Version: 1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, DirName)
	if err := Init(projectDir, &Config{Prefix: "wf"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	nested := filepath.Join(root, "src", "pkg", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	found, err := Find(nested)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if found != projectDir {
		t.Errorf("Find = %q, want %q", found, projectDir)
	}
}

func TestFindMissing(t *testing.T) {
	if _, err := Find(t.TempDir()); err == nil {
		t.Fatal("expected ErrNotFound in empty tree")
	}
}

func TestPackEnabled(t *testing.T) {
	cfg := &Config{Prefix: "wf", EnabledPacks: []string{"core"}}
	if !cfg.PackEnabled("core") {
		t.Error("core should be enabled")
	}
	if cfg.PackEnabled("planning") {
		t.Error("planning should not be enabled")
	}
}
