package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abramin/sharelens/internal/image"
	"github.com/abramin/sharelens/internal/logging"
	"github.com/abramin/sharelens/internal/symbols"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked for when no path is given.
const FileName = "sharelens.yaml"

// Environment variables overriding file values.
const (
	EnvLogLevel   = "SHARELENS_LOG_LEVEL"
	EnvSymbolPath = "SHARELENS_SYMBOL_PATH"
	EnvProviders  = "SHARELENS_PROVIDERS"
)

// Config represents the sharelens configuration.
type Config struct {
	Passes        []PassConfig  `yaml:"passes"`
	SharedFiles   []string      `yaml:"shared_files"`
	DiscoverLinks bool          `yaml:"discover_links"`
	SymbolPath    []string      `yaml:"symbol_path"`
	Providers     []string      `yaml:"providers"`
	Manifest      string        `yaml:"manifest"`
	Exclude       ExcludeConfig `yaml:"exclude"`
	LogLevel      string        `yaml:"log_level"`
	OutputDir     string        `yaml:"output_dir"`
}

// PassConfig describes one generation pass: the server image whose
// declarations are mirrored and the client image they are mirrored into.
type PassConfig struct {
	Name        string     `yaml:"name"`
	Server      image.Spec `yaml:"server"`
	Client      image.Spec `yaml:"client"`
	SharedFiles []string   `yaml:"shared_files"` // added to the global list
	Manifest    string     `yaml:"manifest"`     // overrides the global manifest
}

// ExcludeConfig defines what entity enumeration skips.
type ExcludeConfig struct {
	Dirs      []string `yaml:"dirs"`
	FilesGlob []string `yaml:"files_glob"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Providers: append([]string(nil), symbols.DefaultOrder...),
		Exclude: ExcludeConfig{
			Dirs:      []string{"vendor", "third_party", "testdata"},
			FilesGlob: []string{"**/*.pb.go", "**/*_gen.go", "**/*_mock.go"},
		},
		LogLevel:  logging.LevelInfo,
		OutputDir: ".sharelens",
	}
}

// Load reads configuration from file, falling back to defaults.
// If configPath is empty, it looks for sharelens.yaml in the current directory.
// Values in the config file replace defaults entirely (no merging).
func Load(configPath string) (*Config, error) {
	defaults := Default()

	if configPath == "" {
		configPath = FileName
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// No config file, use defaults
			return defaults, nil
		}
		return nil, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}

	// Apply defaults for missing fields
	defaults.Merge(&fileCfg)
	return defaults, nil
}

// LoadFromDir loads configuration from the specified directory.
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

// Merge combines another config into this one, with other taking precedence.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if len(other.Passes) > 0 {
		c.Passes = other.Passes
	}
	if len(other.SharedFiles) > 0 {
		c.SharedFiles = other.SharedFiles
	}
	if other.DiscoverLinks {
		c.DiscoverLinks = true
	}
	if len(other.SymbolPath) > 0 {
		c.SymbolPath = other.SymbolPath
	}
	if len(other.Providers) > 0 {
		c.Providers = other.Providers
	}
	if other.Manifest != "" {
		c.Manifest = other.Manifest
	}
	if len(other.Exclude.Dirs) > 0 {
		c.Exclude.Dirs = other.Exclude.Dirs
	}
	if len(other.Exclude.FilesGlob) > 0 {
		c.Exclude.FilesGlob = other.Exclude.FilesGlob
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.OutputDir != "" {
		c.OutputDir = other.OutputDir
	}
}

// ApplyEnv loads envFile (".env" when empty) if it exists and applies the
// SHARELENS_* overrides on top of the file values.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSymbolPath)); v != "" {
		c.SymbolPath = filepath.SplitList(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvProviders)); v != "" {
		c.Providers = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every problem that makes the configuration unusable.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Passes) == 0 {
		errs = append(errs, errors.New("no passes configured"))
	}
	seen := make(map[string]bool)
	for i, p := range c.Passes {
		name := p.Name
		if name == "" {
			errs = append(errs, fmt.Errorf("pass %d: missing name", i))
			name = fmt.Sprintf("#%d", i)
		} else if seen[name] {
			errs = append(errs, fmt.Errorf("pass %s: duplicate name", name))
		}
		seen[name] = true
		if len(p.Server.Dirs) == 0 {
			errs = append(errs, fmt.Errorf("pass %s: server.dirs is empty", name))
		}
	}
	for _, name := range c.Providers {
		switch name {
		case symbols.NameManifest, symbols.NameDWARF, symbols.NamePositions:
		default:
			errs = append(errs, fmt.Errorf("unknown symbol provider %q", name))
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Pass returns the pass named name.
func (c *Config) Pass(name string) (PassConfig, bool) {
	for _, p := range c.Passes {
		if p.Name == name {
			return p, true
		}
	}
	return PassConfig{}, false
}
