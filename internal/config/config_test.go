package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if len(cfg.Exclude.Dirs) == 0 {
		t.Error("expected default excluded dirs")
	}
	if len(cfg.Providers) != 3 || cfg.Providers[0] != "manifest" {
		t.Errorf("unexpected default providers %v", cfg.Providers)
	}
	if cfg.OutputDir != ".sharelens" {
		t.Errorf("expected .sharelens output dir, got %q", cfg.OutputDir)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected info log level, got %q", cfg.LogLevel)
	}
}

func TestLoadNonExistent(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("expected no error for nonexistent file, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config")
	}
	if len(cfg.Exclude.Dirs) == 0 {
		t.Error("expected default excluded dirs")
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
passes:
  - name: api
    server:
      dirs: [./server]
      binary: ./bin/server
    client:
      dirs: [./client]
      patterns: ["./ui/..."]
    shared_files: ["server/model/*.shared.go"]

shared_files:
  - common/contracts.go
discover_links: true
symbol_path: [/opt/symbols]
providers: [dwarf, positions]

exclude:
  dirs:
    - vendor
    - custom_exclude
  files_glob:
    - "**/*.generated.go"

log_level: debug
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "sharelens.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if len(cfg.Passes) != 1 {
		t.Fatalf("expected 1 pass, got %d", len(cfg.Passes))
	}
	pass := cfg.Passes[0]
	if pass.Server.Binary != "./bin/server" {
		t.Errorf("expected server binary, got %q", pass.Server.Binary)
	}
	if len(pass.Client.Patterns) != 1 || pass.Client.Patterns[0] != "./ui/..." {
		t.Errorf("unexpected client patterns %v", pass.Client.Patterns)
	}
	if len(pass.SharedFiles) != 1 {
		t.Errorf("expected 1 pass shared file, got %d", len(pass.SharedFiles))
	}

	if !cfg.DiscoverLinks {
		t.Error("expected discover_links")
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0] != "dwarf" {
		t.Errorf("unexpected providers %v", cfg.Providers)
	}
	if len(cfg.Exclude.Dirs) != 2 {
		t.Errorf("expected 2 excluded dirs, got %d", len(cfg.Exclude.Dirs))
	}
	if cfg.Exclude.Dirs[1] != "custom_exclude" {
		t.Errorf("expected custom_exclude, got %s", cfg.Exclude.Dirs[1])
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug, got %q", cfg.LogLevel)
	}
	// Not set in the file: default kept.
	if cfg.OutputDir != ".sharelens" {
		t.Errorf("expected default output dir, got %q", cfg.OutputDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "sharelens.yaml")
	if err := os.WriteFile(configPath, []byte("passes: {"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(configPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("SHARELENS_PROVIDERS=positions, dwarf\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvSymbolPath, strings.Join([]string{"/a", "/b"}, string(os.PathListSeparator)))
	t.Setenv(EnvProviders, "")
	os.Unsetenv(EnvProviders)

	cfg := Default()
	if err := cfg.ApplyEnv(envFile); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("expected warn, got %q", cfg.LogLevel)
	}
	if len(cfg.SymbolPath) != 2 || cfg.SymbolPath[1] != "/b" {
		t.Errorf("unexpected symbol path %v", cfg.SymbolPath)
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0] != "positions" || cfg.Providers[1] != "dwarf" {
		t.Errorf("unexpected providers %v", cfg.Providers)
	}
}

func TestApplyEnvMissingFile(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Passes = []PassConfig{{Name: "api"}}
		cfg.Passes[0].Server.Dirs = []string{"./server"}
		cfg.Passes[0].Client.Dirs = []string{"./client"}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no passes", func(c *Config) { c.Passes = nil }, "no passes configured"},
		{"missing name", func(c *Config) { c.Passes[0].Name = "" }, "missing name"},
		{"duplicate name", func(c *Config) { c.Passes = append(c.Passes, c.Passes[0]) }, "duplicate name"},
		{"missing server", func(c *Config) { c.Passes[0].Server.Dirs = nil }, "server.dirs is empty"},
		{"unknown provider", func(c *Config) { c.Providers = []string{"pdb"} }, "unknown symbol provider"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log level"},
	}

	for _, tt := range tests {
		cfg := valid()
		tt.mutate(cfg)
		err := cfg.Validate()
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
			t.Errorf("%s: error = %v, want containing %q", tt.name, err, tt.wantErr)
		}
	}
}

func TestPass(t *testing.T) {
	cfg := Default()
	cfg.Passes = []PassConfig{{Name: "api"}, {Name: "admin"}}

	if p, ok := cfg.Pass("admin"); !ok || p.Name != "admin" {
		t.Errorf("Pass(admin) = %v, %v", p, ok)
	}
	if _, ok := cfg.Pass("missing"); ok {
		t.Error("expected missing pass")
	}
}
