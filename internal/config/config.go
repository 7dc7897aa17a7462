// Package config loads and validates project configuration for the
// indexing pipeline and retrieval engine. Configuration is read from
// .synapse.yaml in the project root, with SYNAPSE_* environment
// variables taking precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	synerr "github.com/YuanArchive/synapse-ai-context/internal/errors"
)

// Config represents the complete pipeline configuration.
type Config struct {
	Paths  PathsConfig  `yaml:"paths"`
	Index  IndexConfig  `yaml:"index"`
	Search SearchConfig `yaml:"search"`
	Watch  WatchConfig  `yaml:"watch"`
	Log    LogConfig    `yaml:"log"`
}

// PathsConfig configures which files enter the pipeline.
type PathsConfig struct {
	// ExcludeDirs are directory names skipped during scanning.
	ExcludeDirs []string `yaml:"exclude_dirs"`
	// Extensions are the file extensions considered source code.
	Extensions []string `yaml:"extensions"`
}

// IndexConfig configures the indexing run itself.
type IndexConfig struct {
	// Workers is the size of the extraction worker pool.
	Workers int `yaml:"workers"`
	// MaxFileSizeKB skips files larger than this during scanning.
	MaxFileSizeKB int `yaml:"max_file_size_kb"`
}

// SearchConfig configures hybrid retrieval.
//
// Alpha weights the vector similarity component and Beta the graph
// proximity component. They are normalized to sum to 1 at query time,
// so only their ratio matters.
type SearchConfig struct {
	Alpha float64 `yaml:"alpha"`
	Beta  float64 `yaml:"beta"`
	// ExpansionDepth bounds the BFS traversal from each seed.
	ExpansionDepth int `yaml:"expansion_depth"`
	// MaxExpanded caps the total number of nodes added by expansion.
	MaxExpanded int `yaml:"max_expanded"`
	// MaxResults is the default number of results returned.
	MaxResults int `yaml:"max_results"`
}

// WatchConfig configures the file watcher daemon.
type WatchConfig struct {
	// Debounce is the quiet window before a batch of file events
	// triggers reindexing (e.g. "2s").
	Debounce string `yaml:"debounce"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// defaultExcludeDirs are directory names never scanned.
var defaultExcludeDirs = []string{
	".git",
	".synapse",
	"node_modules",
	"__pycache__",
	".venv",
	"venv",
	"dist",
	"build",
	"vendor",
	".idea",
	".vscode",
}

// defaultExtensions are the file extensions indexed by default.
var defaultExtensions = []string{
	".py",
	".js",
	".ts",
	".tsx",
	".jsx",
	".go",
}

// NewConfig creates a Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			ExcludeDirs: defaultExcludeDirs,
			Extensions:  defaultExtensions,
		},
		Index: IndexConfig{
			Workers:       runtime.NumCPU(),
			MaxFileSizeKB: 1024,
		},
		Search: SearchConfig{
			Alpha:          0.7,
			Beta:           0.3,
			ExpansionDepth: 2,
			MaxExpanded:    30,
			MaxResults:     5,
		},
		Watch: WatchConfig{
			Debounce: "2s",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration for the given project root.
// Precedence, lowest to highest: defaults, .synapse.yaml (or .yml),
// SYNAPSE_* environment variables.
func Load(root string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(root); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load .synapse.yaml or .synapse.yml.
func (c *Config) loadFromFile(root string) error {
	for _, name := range []string{".synapse.yaml", ".synapse.yml"} {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	// No config file is fine - use defaults.
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return synerr.New(synerr.ErrCodeConfigNotFound, "failed to read config file", err).
			WithDetail("path", path)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return synerr.New(synerr.ErrCodeConfigInvalid, "failed to parse config file", err).
			WithDetail("path", path)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if len(other.Paths.ExcludeDirs) > 0 {
		// Extend the defaults rather than replace them.
		c.Paths.ExcludeDirs = append(c.Paths.ExcludeDirs, other.Paths.ExcludeDirs...)
	}
	if len(other.Paths.Extensions) > 0 {
		c.Paths.Extensions = other.Paths.Extensions
	}

	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}
	if other.Index.MaxFileSizeKB != 0 {
		c.Index.MaxFileSizeKB = other.Index.MaxFileSizeKB
	}

	if other.Search.Alpha != 0 {
		c.Search.Alpha = other.Search.Alpha
	}
	if other.Search.Beta != 0 {
		c.Search.Beta = other.Search.Beta
	}
	if other.Search.ExpansionDepth != 0 {
		c.Search.ExpansionDepth = other.Search.ExpansionDepth
	}
	if other.Search.MaxExpanded != 0 {
		c.Search.MaxExpanded = other.Search.MaxExpanded
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}

// applyEnvOverrides applies SYNAPSE_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SYNAPSE_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			c.Search.Alpha = f
		}
	}
	if v := os.Getenv("SYNAPSE_BETA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			c.Search.Beta = f
		}
	}
	if v := os.Getenv("SYNAPSE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.Workers = n
		}
	}
	if v := os.Getenv("SYNAPSE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Search.Alpha < 0 {
		return invalid(fmt.Sprintf("search.alpha must be non-negative, got %v", c.Search.Alpha))
	}
	if c.Search.Beta < 0 {
		return invalid(fmt.Sprintf("search.beta must be non-negative, got %v", c.Search.Beta))
	}
	if c.Search.Alpha+c.Search.Beta == 0 {
		return invalid("search.alpha and search.beta must not both be zero")
	}
	if c.Search.ExpansionDepth < 0 {
		return invalid(fmt.Sprintf("search.expansion_depth must be non-negative, got %d", c.Search.ExpansionDepth))
	}
	if c.Search.MaxExpanded < 0 {
		return invalid(fmt.Sprintf("search.max_expanded must be non-negative, got %d", c.Search.MaxExpanded))
	}
	if c.Search.MaxResults < 1 {
		return invalid(fmt.Sprintf("search.max_results must be at least 1, got %d", c.Search.MaxResults))
	}
	if c.Index.Workers < 1 {
		return invalid(fmt.Sprintf("index.workers must be at least 1, got %d", c.Index.Workers))
	}
	if c.Index.MaxFileSizeKB < 1 {
		return invalid(fmt.Sprintf("index.max_file_size_kb must be at least 1, got %d", c.Index.MaxFileSizeKB))
	}
	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return synerr.New(synerr.ErrCodeConfigInvalid, "watch.debounce is not a valid duration", err)
	}
	return nil
}

func invalid(msg string) error {
	return synerr.New(synerr.ErrCodeConfigInvalid, msg, nil)
}

// DebounceWindow returns the parsed watch debounce duration.
// Validate must have accepted the config first.
func (c *Config) DebounceWindow() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// MaxFileSize returns the scan size limit in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Index.MaxFileSizeKB) * 1024
}

// Save writes the configuration to .synapse.yaml in the given root.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(root, ".synapse.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
