package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectType classifies a project root by its build manifests.
type ProjectType string

const (
	ProjectTypeGo         ProjectType = "go"
	ProjectTypeJavaScript ProjectType = "javascript"
	ProjectTypeTypeScript ProjectType = "typescript"
	ProjectTypePython     ProjectType = "python"
	ProjectTypeRust       ProjectType = "rust"
	ProjectTypeJava       ProjectType = "java"
	ProjectTypeUnknown    ProjectType = "unknown"
)

// DefaultVersion is the config schema version written by config init.
const DefaultVersion = "1"

// Project config file names, checked in order.
var projectConfigNames = []string{".quarry.yaml", ".quarry.yml"}

// Config is the complete quarry configuration. Zero values in loaded
// files fall back to the defaults from NewConfig, so partial configs
// are always safe.
type Config struct {
	Version   string          `yaml:"version" json:"version"`
	Index     IndexConfig     `yaml:"index" json:"index"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Watch     WatchConfig     `yaml:"watch" json:"watch"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// IndexConfig controls what gets scanned into the index.
type IndexConfig struct {
	// Exclude holds extra glob patterns skipped during scans, on top of
	// the built-in ignores (node_modules, .git, build output).
	Exclude []string `yaml:"exclude" json:"exclude"`

	// MaxFileSize is the per-file byte cap. Larger files are skipped.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`

	// Workers bounds concurrent file indexing. Zero uses all CPUs.
	Workers int `yaml:"workers" json:"workers"`

	// FollowSymlinks resolves symlinked files during scans. Directory
	// symlinks are never followed.
	FollowSymlinks bool `yaml:"follow_symlinks" json:"follow_symlinks"`

	// DisableGitignore stops scans from honoring the project's
	// .gitignore files. By default anything git ignores stays out of
	// the index.
	DisableGitignore bool `yaml:"disable_gitignore" json:"disable_gitignore"`
}

// EmbeddingConfig controls the hashing embedder.
type EmbeddingConfig struct {
	// Dimensions is the embedding vector width. All vectors in an index
	// share one width, so changing it requires a full reindex.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// MaxContentBytes caps how much of each element is embedded.
	MaxContentBytes int `yaml:"max_content_bytes" json:"max_content_bytes"`
}

// SearchConfig controls hybrid search behavior.
type SearchConfig struct {
	// KeywordWeight and SemanticWeight set the relative influence of the
	// two retrieval passes during rank fusion. They are relative weights,
	// not proportions, so they need not sum to one.
	KeywordWeight  float64 `yaml:"keyword_weight" json:"keyword_weight"`
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// DefaultLimit applies when a query does not specify a limit.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit caps the limit any single query may request.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`

	// CacheSize is the query cache capacity in entries. Zero uses the
	// built-in default; negative disables caching.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// WatchConfig controls live index updates.
type WatchConfig struct {
	// Disabled turns off file watching; the index then only changes
	// through explicit index runs.
	Disabled bool `yaml:"disabled" json:"disabled"`

	// Debounce is how long the watcher coalesces events before emitting
	// a batch, as a Go duration string.
	Debounce string `yaml:"debounce" json:"debounce"`

	// PollInterval is the fallback polling cadence used when native
	// filesystem notifications are unavailable.
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`

	// ReconcileInterval is how often the full tree is rescanned to catch
	// anything the event stream missed.
	ReconcileInterval string `yaml:"reconcile_interval" json:"reconcile_interval"`

	// EventBuffer is the watcher's event queue length. Zero uses the
	// built-in default.
	EventBuffer int `yaml:"event_buffer" json:"event_buffer"`
}

// LoggingConfig controls the structured log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level"`

	// Dir overrides the log directory. Empty uses ~/.quarry/logs.
	Dir string `yaml:"dir" json:"dir"`

	// MaxSizeMB rotates the log file once it exceeds this size.
	MaxSizeMB int `yaml:"max_size_mb" json:"max_size_mb"`

	// MaxFiles bounds how many rotated files are kept.
	MaxFiles int `yaml:"max_files" json:"max_files"`
}

// NewConfig returns the built-in defaults. Loaded files and environment
// overrides are merged on top of these.
func NewConfig() *Config {
	return &Config{
		Version: DefaultVersion,
		Index: IndexConfig{
			Exclude:     nil,
			MaxFileSize: 1 << 20, // 1MB keeps generated bundles and archives out
			Workers:     0,       // All CPUs
		},
		Embedding: EmbeddingConfig{
			Dimensions:      128,
			MaxContentBytes: 32 * 1024,
		},
		Search: SearchConfig{
			KeywordWeight:  0.4,
			SemanticWeight: 0.6, // Semantic matches rank slightly ahead on ties
			DefaultLimit:   5,
			MaxLimit:       100,
			CacheSize:      512,
		},
		Watch: WatchConfig{
			Debounce:          "200ms",
			PollInterval:      "5s",
			ReconcileInterval: "5m",
			EventBuffer:       1000,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// DebounceWindow parses the debounce setting, falling back to the
// default when unset or malformed. Validate catches malformed values
// earlier, so the fallback only matters for hand-built configs.
func (w WatchConfig) DebounceWindow() time.Duration {
	return parseDurationOr(w.Debounce, 200*time.Millisecond)
}

// PollingInterval parses the poll interval setting.
func (w WatchConfig) PollingInterval() time.Duration {
	return parseDurationOr(w.PollInterval, 5*time.Second)
}

// ReconcileEvery parses the reconcile interval setting.
func (w WatchConfig) ReconcileEvery() time.Duration {
	return parseDurationOr(w.ReconcileInterval, 5*time.Minute)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetUserConfigPath returns the user-level config location, honoring
// XDG_CONFIG_HOME and falling back to ~/.config/quarry/config.yaml.
func GetUserConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "quarry", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "quarry", "config.yaml"), nil
}

// UserConfigExists reports whether a user-level config file is present.
func UserConfigExists() (bool, error) {
	path, err := GetUserConfigPath()
	if err != nil {
		return false, err
	}
	return fileExists(path), nil
}

// Load builds the effective configuration for a project directory.
// Precedence, lowest to highest: built-in defaults, user config,
// project config (.quarry.yaml or .quarry.yml in projectPath), then
// QUARRY_* environment variables. The result is validated before
// returning.
func Load(projectPath string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadUserConfig(); err != nil {
		return nil, err
	}
	if err := cfg.loadProjectConfig(projectPath); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadUserConfig() error {
	path, err := GetUserConfigPath()
	if err != nil {
		return err
	}
	if !fileExists(path) {
		return nil
	}
	loaded, err := loadYAML(path)
	if err != nil {
		return fmt.Errorf("failed to load user config %s: %w", path, err)
	}
	c.mergeWith(loaded)
	return nil
}

func (c *Config) loadProjectConfig(projectPath string) error {
	for _, name := range projectConfigNames {
		path := filepath.Join(projectPath, name)
		if !fileExists(path) {
			continue
		}
		loaded, err := loadYAML(path)
		if err != nil {
			return fmt.Errorf("failed to load project config %s: %w", path, err)
		}
		c.mergeWith(loaded)
		return nil
	}
	return nil
}

func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// mergeWith overlays non-zero fields from other onto c. Zero values in
// other mean "not set"; fields where zero is meaningful (watch.disabled,
// index.follow_symlinks, index.disable_gitignore) are booleans whose
// zero value matches the default, so plain assignment of true is
// sufficient.
func (c *Config) mergeWith(other *Config) {
	if other == nil {
		return
	}

	if other.Version != "" {
		c.Version = other.Version
	}

	if len(other.Index.Exclude) > 0 {
		c.Index.Exclude = other.Index.Exclude
	}
	if other.Index.MaxFileSize != 0 {
		c.Index.MaxFileSize = other.Index.MaxFileSize
	}
	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}
	if other.Index.FollowSymlinks {
		c.Index.FollowSymlinks = true
	}
	if other.Index.DisableGitignore {
		c.Index.DisableGitignore = true
	}

	if other.Embedding.Dimensions != 0 {
		c.Embedding.Dimensions = other.Embedding.Dimensions
	}
	if other.Embedding.MaxContentBytes != 0 {
		c.Embedding.MaxContentBytes = other.Embedding.MaxContentBytes
	}

	if other.Search.KeywordWeight != 0 {
		c.Search.KeywordWeight = other.Search.KeywordWeight
	}
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.MaxLimit != 0 {
		c.Search.MaxLimit = other.Search.MaxLimit
	}
	if other.Search.CacheSize != 0 {
		c.Search.CacheSize = other.Search.CacheSize
	}

	if other.Watch.Disabled {
		c.Watch.Disabled = true
	}
	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.PollInterval != "" {
		c.Watch.PollInterval = other.Watch.PollInterval
	}
	if other.Watch.ReconcileInterval != "" {
		c.Watch.ReconcileInterval = other.Watch.ReconcileInterval
	}
	if other.Watch.EventBuffer != 0 {
		c.Watch.EventBuffer = other.Watch.EventBuffer
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.Dir != "" {
		c.Logging.Dir = other.Logging.Dir
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies QUARRY_* variables on top of file config.
// Malformed values are ignored; out-of-range values that do parse are
// rejected by Validate afterwards.
func (c *Config) applyEnvOverrides() {
	// Weights use LookupEnv because an explicit zero is a valid setting
	// that disables one retrieval pass.
	if v, ok := os.LookupEnv("QUARRY_KEYWORD_WEIGHT"); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.KeywordWeight = f
		}
	}
	if v, ok := os.LookupEnv("QUARRY_SEMANTIC_WEIGHT"); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.SemanticWeight = f
		}
	}
	if v := os.Getenv("QUARRY_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.DefaultLimit = n
		}
	}
	if v := os.Getenv("QUARRY_MAX_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.MaxLimit = n
		}
	}
	if v := os.Getenv("QUARRY_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.CacheSize = n
		}
	}
	if v := os.Getenv("QUARRY_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("QUARRY_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Index.MaxFileSize = n
		}
	}
	if v := os.Getenv("QUARRY_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.Workers = n
		}
	}
	if v := os.Getenv("QUARRY_DISABLE_GITIGNORE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Index.DisableGitignore = b
		}
	}
	if v := os.Getenv("QUARRY_WATCH_DISABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Watch.Disabled = b
		}
	}
	if v := os.Getenv("QUARRY_RECONCILE_INTERVAL"); v != "" {
		c.Watch.ReconcileInterval = v
	}
	if v := os.Getenv("QUARRY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("QUARRY_LOG_DIR"); v != "" {
		c.Logging.Dir = v
	}
}

// Validate checks the configuration for values that would break the
// index or produce nonsense rankings.
func (c *Config) Validate() error {
	if c.Index.MaxFileSize <= 0 {
		return fmt.Errorf("index.max_file_size must be positive, got %d", c.Index.MaxFileSize)
	}
	if c.Index.Workers < 0 {
		return fmt.Errorf("index.workers must be zero or positive, got %d", c.Index.Workers)
	}

	if c.Embedding.Dimensions < 1 {
		return fmt.Errorf("embedding.dimensions must be at least 1, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.MaxContentBytes <= 0 {
		return fmt.Errorf("embedding.max_content_bytes must be positive, got %d", c.Embedding.MaxContentBytes)
	}

	if c.Search.KeywordWeight < 0 || c.Search.KeywordWeight > 1 {
		return fmt.Errorf("search.keyword_weight must be in [0, 1], got %.2f", c.Search.KeywordWeight)
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("search.semantic_weight must be in [0, 1], got %.2f", c.Search.SemanticWeight)
	}
	// The weights are relative, so they need not sum to one, but both at
	// zero would drop every result.
	if c.Search.KeywordWeight+c.Search.SemanticWeight == 0 {
		return fmt.Errorf("search weights cannot both be zero")
	}
	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("search.default_limit must be at least 1, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.max_limit (%d) must be at least search.default_limit (%d)",
			c.Search.MaxLimit, c.Search.DefaultLimit)
	}

	if err := validateDuration("watch.debounce", c.Watch.Debounce); err != nil {
		return err
	}
	if err := validateDuration("watch.poll_interval", c.Watch.PollInterval); err != nil {
		return err
	}
	if err := validateDuration("watch.reconcile_interval", c.Watch.ReconcileInterval); err != nil {
		return err
	}
	if c.Watch.EventBuffer < 0 {
		return fmt.Errorf("watch.event_buffer must be zero or positive, got %d", c.Watch.EventBuffer)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB <= 0 {
		return fmt.Errorf("logging.max_size_mb must be positive, got %d", c.Logging.MaxSizeMB)
	}
	if c.Logging.MaxFiles < 1 {
		return fmt.Errorf("logging.max_files must be at least 1, got %d", c.Logging.MaxFiles)
	}

	return nil
}

func validateDuration(field, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", field, value)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %q", field, value)
	}
	return nil
}

// DetectProjectType inspects build manifests to classify a project.
// The result is informational; indexing behavior does not depend on it.
func DetectProjectType(dir string) ProjectType {
	switch {
	case fileExists(filepath.Join(dir, "go.mod")):
		return ProjectTypeGo
	case fileExists(filepath.Join(dir, "tsconfig.json")):
		return ProjectTypeTypeScript
	case fileExists(filepath.Join(dir, "package.json")):
		return ProjectTypeJavaScript
	case fileExists(filepath.Join(dir, "Cargo.toml")):
		return ProjectTypeRust
	case fileExists(filepath.Join(dir, "pyproject.toml")),
		fileExists(filepath.Join(dir, "requirements.txt")),
		fileExists(filepath.Join(dir, "setup.py")):
		return ProjectTypePython
	case fileExists(filepath.Join(dir, "pom.xml")),
		fileExists(filepath.Join(dir, "build.gradle")),
		fileExists(filepath.Join(dir, "build.gradle.kts")):
		return ProjectTypeJava
	default:
		return ProjectTypeUnknown
	}
}

// FindProjectRoot walks up from startDir looking for a project marker:
// a .git directory, a quarry project config, or a go.mod. It returns
// startDir itself when no marker is found, so indexing an unmarked
// directory still works.
func FindProjectRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory: %w", err)
	}

	dir := abs
	for {
		if dirExists(filepath.Join(dir, ".git")) || fileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}
		for _, name := range projectConfigNames {
			if fileExists(filepath.Join(dir, name)) {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// WriteYAML writes the configuration to path, creating parent
// directories as needed.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
