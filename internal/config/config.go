package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ContextScope identifies the kind of scope a Context attaches to.
type ContextScope string

const (
	ContextScopeGlobal     ContextScope = "global"
	ContextScopeCollection ContextScope = "collection"
	ContextScopePrefix     ContextScope = "prefix"
)

// collectionNamePattern enforces spec.md §6's collection name grammar.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// Config represents the complete GNO configuration.
// It mirrors the schema defined in spec.md §6: version, ftsTokenizer,
// collections[], contexts[], models?, plus the ambient retrieval/
// performance/server/compaction tuning the engine needs to run.
type Config struct {
	Version      string             `yaml:"version" json:"version"`
	FTSTokenizer string             `yaml:"ftsTokenizer" json:"ftsTokenizer"`
	Collections  []CollectionConfig `yaml:"collections" json:"collections"`
	Contexts     []ContextConfig    `yaml:"contexts" json:"contexts"`
	Models       *ModelsConfig      `yaml:"models,omitempty" json:"models,omitempty"`

	Retrieval   RetrievalConfig   `yaml:"retrieval" json:"retrieval"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Server      ServerConfig      `yaml:"server" json:"server"`
	Compaction  CompactionConfig  `yaml:"compaction" json:"compaction"`
}

// CollectionConfig names a root directory to ingest (spec.md §3).
type CollectionConfig struct {
	Name            string   `yaml:"name" json:"name"`
	Path            string   `yaml:"path" json:"path"`
	Pattern         string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	IncludeExt      []string `yaml:"includeExt,omitempty" json:"includeExt,omitempty"`
	ExcludePatterns []string `yaml:"excludePatterns,omitempty" json:"excludePatterns,omitempty"`
	UpdateCmd       string   `yaml:"updateCmd,omitempty" json:"updateCmd,omitempty"`
	LanguageHint    string   `yaml:"languageHint,omitempty" json:"languageHint,omitempty"`
}

// ContextConfig attaches human-authored descriptive text to a scope
// (spec.md §3): global ("/"), a collection ("<name>:"), or a URI
// prefix ("gno://<collection>/<path-prefix>").
type ContextConfig struct {
	Scope ContextScope `yaml:"scope" json:"scope"`
	Key   string       `yaml:"key" json:"key"`
	Text  string       `yaml:"text" json:"text"`
}

// ModelsConfig selects the active model preset and its port timeouts
// (spec.md §4.5).
type ModelsConfig struct {
	ActivePreset      string `yaml:"activePreset" json:"activePreset"`
	EmbeddingTimeout  string `yaml:"embeddingTimeout,omitempty" json:"embeddingTimeout,omitempty"`
	RerankTimeout     string `yaml:"rerankTimeout,omitempty" json:"rerankTimeout,omitempty"`
	GenerationTimeout string `yaml:"generationTimeout,omitempty" json:"generationTimeout,omitempty"`
	ModelIdleTTL      string `yaml:"modelIdleTtl,omitempty" json:"modelIdleTtl,omitempty"`
}

// RetrievalConfig tunes the hybrid fusion and chunking engine (spec.md
// §4.4, §4.6). Weights and the RRF constant are configurable via:
//  1. User config (config/index.yml) - personal defaults
//  2. Env vars (GNO_BM25_WEIGHT, GNO_SEMANTIC_WEIGHT, GNO_RRF_CONSTANT) - highest precedence
type RetrievalConfig struct {
	// BM25Weight is the weight for BM25 keyword matching (0.0-1.0).
	// Must sum to 1.0 with SemanticWeight.
	BM25Weight float64 `yaml:"bm25_weight" json:"bm25_weight"`

	// SemanticWeight is the weight for semantic similarity (0.0-1.0).
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// RRFConstant is the RRF fusion smoothing parameter (k).
	// Default: 60, per spec.md §4.6.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// BM25Backend selects the BM25 index backend.
	// Options: "sqlite" (default, FTS5+vec0, concurrent access) or
	// "bleve" (legacy Bleve+HNSW pairing, single-process).
	BM25Backend string `yaml:"bm25_backend" json:"bm25_backend"`

	// ChunkCharBudget is the target max character budget per chunk.
	ChunkCharBudget int `yaml:"chunk_char_budget" json:"chunk_char_budget"`

	MaxResults int `yaml:"max_results" json:"max_results"`
}

// PerformanceConfig configures performance tuning options.
type PerformanceConfig struct {
	MaxFiles      int    `yaml:"max_files" json:"max_files"`
	IndexWorkers  int    `yaml:"index_workers" json:"index_workers"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
	CacheSize     int    `yaml:"cache_size" json:"cache_size"`
	SQLiteCacheMB int    `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
	Quantization  string `yaml:"quantization" json:"quantization"`
}

// ServerConfig configures the MCP stdio server / optional daemon.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	Port      int    `yaml:"port" json:"port"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// CompactionConfig configures automatic background compaction of the
// alternate HNSW vector backend's orphaned entries.
type CompactionConfig struct {
	Enabled         bool    `yaml:"enabled" json:"enabled"`
	OrphanThreshold float64 `yaml:"orphan_threshold" json:"orphan_threshold"`
	MinOrphanCount  int     `yaml:"min_orphan_count" json:"min_orphan_count"`
	IdleTimeout     string  `yaml:"idle_timeout" json:"idle_timeout"`
	Cooldown        string  `yaml:"cooldown" json:"cooldown"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version:      "1",
		FTSTokenizer: "unicode61",
		Collections:  []CollectionConfig{},
		Contexts:     []ContextConfig{},
		Models: &ModelsConfig{
			ActivePreset:      "",
			EmbeddingTimeout:  "30s",
			RerankTimeout:     "10s",
			GenerationTimeout: "60s",
			ModelIdleTTL:      "5m",
		},
		Retrieval: RetrievalConfig{
			BM25Weight:      0.5,
			SemanticWeight:  0.5,
			RRFConstant:     60,
			BM25Backend:     "sqlite",
			ChunkCharBudget: 1500,
			MaxResults:      20,
		},
		Performance: PerformanceConfig{
			MaxFiles:      100000,
			IndexWorkers:  runtime.NumCPU(),
			WatchDebounce: "500ms",
			CacheSize:     1000,
			SQLiteCacheMB: 64,
			Quantization:  "f16",
		},
		Server: ServerConfig{
			Transport: "stdio",
			Port:      8765,
			LogLevel:  "info",
		},
		Compaction: CompactionConfig{
			Enabled:         true,
			OrphanThreshold: 0.2,
			MinOrphanCount:  100,
			IdleTimeout:     "30s",
			Cooldown:        "1h",
		},
	}
}

// --- persisted state layout (spec.md §6) ---

// ConfigDir returns the directory holding the configuration file,
// honoring GNO_CONFIG_DIR (which must be an absolute path).
func ConfigDir() (string, error) {
	if dir := os.Getenv("GNO_CONFIG_DIR"); dir != "" {
		if !filepath.IsAbs(dir) {
			return "", fmt.Errorf("GNO_CONFIG_DIR must be an absolute path, got %q", dir)
		}
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config directory: %w", err)
	}
	return filepath.Join(base, "gno"), nil
}

// DataDir returns the directory holding the store file, honoring
// GNO_DATA_DIR (which must be an absolute path).
func DataDir() (string, error) {
	if dir := os.Getenv("GNO_DATA_DIR"); dir != "" {
		if !filepath.IsAbs(dir) {
			return "", fmt.Errorf("GNO_DATA_DIR must be an absolute path, got %q", dir)
		}
		return dir, nil
	}
	base, err := userDataHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "gno", "data"), nil
}

// CacheDir returns the directory holding cached model weights, honoring
// GNO_CACHE_DIR (which must be an absolute path).
func CacheDir() (string, error) {
	if dir := os.Getenv("GNO_CACHE_DIR"); dir != "" {
		if !filepath.IsAbs(dir) {
			return "", fmt.Errorf("GNO_CACHE_DIR must be an absolute path, got %q", dir)
		}
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving user cache directory: %w", err)
	}
	return filepath.Join(base, "gno"), nil
}

// userDataHomeDir approximates a platform-appropriate data directory;
// stdlib has no os.UserDataDir(), so this follows the same
// XDG-then-platform-default shape ConfigDir already used for config,
// generalized to data.
func userDataHomeDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" && runtime.GOOS == "linux" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving user home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support"), nil
	case "windows":
		if v := os.Getenv("LOCALAPPDATA"); v != "" {
			return v, nil
		}
		return filepath.Join(home, "AppData", "Local"), nil
	default:
		return filepath.Join(home, ".local", "share"), nil
	}
}

// IsOffline reports whether GNO_OFFLINE is set, disabling any
// network-backed model ports.
func IsOffline() bool {
	v := strings.ToLower(os.Getenv("GNO_OFFLINE"))
	return v == "1" || v == "true"
}

// ConfigFilePath returns the full path to config/index.yml.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "index.yml"), nil
}

// StoreFilePath returns the full path to data/index.sqlite.
func StoreFilePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "index.sqlite"), nil
}

// ModelCacheDir returns the cache directory for a given model id.
func ModelCacheDir(modelID string) (string, error) {
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "models", modelID), nil
}

// ConfigExists returns true if the user configuration file exists.
func ConfigExists() bool {
	path, err := ConfigFilePath()
	if err != nil {
		return false
	}
	return fileExists(path)
}

// loadUserConfig loads the user configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	path, err := ConfigFilePath()
	if err != nil {
		return nil, err
	}
	if !fileExists(path) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load loads configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (config/index.yml)
//  3. Environment variables (GNO_*)
//  4. Validation
//
// Per spec.md §6, reloading requires a restart: Load is meant to be
// called once per engine instance.
func Load() (*Config, error) {
	cfg := NewConfig()

	userCfg, err := loadUserConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads configuration from an explicit file path, skipping
// the default config-dir resolution. Used by the `config` CLI command
// (cmd/gno/cmd/config.go).
func LoadFromPath(path string) (*Config, error) {
	cfg := NewConfig()
	if fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != "" {
		c.Version = other.Version
	}
	if other.FTSTokenizer != "" {
		c.FTSTokenizer = other.FTSTokenizer
	}
	if len(other.Collections) > 0 {
		c.Collections = other.Collections
	}
	if len(other.Contexts) > 0 {
		c.Contexts = other.Contexts
	}
	if other.Models != nil {
		if c.Models == nil {
			c.Models = &ModelsConfig{}
		}
		if other.Models.ActivePreset != "" {
			c.Models.ActivePreset = other.Models.ActivePreset
		}
		if other.Models.EmbeddingTimeout != "" {
			c.Models.EmbeddingTimeout = other.Models.EmbeddingTimeout
		}
		if other.Models.RerankTimeout != "" {
			c.Models.RerankTimeout = other.Models.RerankTimeout
		}
		if other.Models.GenerationTimeout != "" {
			c.Models.GenerationTimeout = other.Models.GenerationTimeout
		}
		if other.Models.ModelIdleTTL != "" {
			c.Models.ModelIdleTTL = other.Models.ModelIdleTTL
		}
	}

	// Retrieval
	if other.Retrieval.BM25Weight != 0 {
		c.Retrieval.BM25Weight = other.Retrieval.BM25Weight
	}
	if other.Retrieval.SemanticWeight != 0 {
		c.Retrieval.SemanticWeight = other.Retrieval.SemanticWeight
	}
	if other.Retrieval.RRFConstant != 0 {
		c.Retrieval.RRFConstant = other.Retrieval.RRFConstant
	}
	if other.Retrieval.BM25Backend != "" {
		c.Retrieval.BM25Backend = other.Retrieval.BM25Backend
	}
	if other.Retrieval.ChunkCharBudget != 0 {
		c.Retrieval.ChunkCharBudget = other.Retrieval.ChunkCharBudget
	}
	if other.Retrieval.MaxResults != 0 {
		c.Retrieval.MaxResults = other.Retrieval.MaxResults
	}

	// Performance
	if other.Performance.MaxFiles != 0 {
		c.Performance.MaxFiles = other.Performance.MaxFiles
	}
	if other.Performance.IndexWorkers != 0 {
		c.Performance.IndexWorkers = other.Performance.IndexWorkers
	}
	if other.Performance.WatchDebounce != "" {
		c.Performance.WatchDebounce = other.Performance.WatchDebounce
	}
	if other.Performance.CacheSize != 0 {
		c.Performance.CacheSize = other.Performance.CacheSize
	}
	if other.Performance.SQLiteCacheMB != 0 {
		c.Performance.SQLiteCacheMB = other.Performance.SQLiteCacheMB
	}
	if other.Performance.Quantization != "" {
		c.Performance.Quantization = other.Performance.Quantization
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	// Compaction
	if other.Compaction.OrphanThreshold != 0 || other.Compaction.MinOrphanCount != 0 ||
		other.Compaction.IdleTimeout != "" || other.Compaction.Cooldown != "" {
		c.Compaction.Enabled = other.Compaction.Enabled
	}
	if other.Compaction.OrphanThreshold != 0 {
		c.Compaction.OrphanThreshold = other.Compaction.OrphanThreshold
	}
	if other.Compaction.MinOrphanCount != 0 {
		c.Compaction.MinOrphanCount = other.Compaction.MinOrphanCount
	}
	if other.Compaction.IdleTimeout != "" {
		c.Compaction.IdleTimeout = other.Compaction.IdleTimeout
	}
	if other.Compaction.Cooldown != "" {
		c.Compaction.Cooldown = other.Compaction.Cooldown
	}
}

// applyEnvOverrides applies GNO_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GNO_FTS_TOKENIZER"); v != "" {
		c.FTSTokenizer = v
	}
	if v := os.Getenv("GNO_BM25_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Retrieval.BM25Weight = w
		}
	}
	if v := os.Getenv("GNO_SEMANTIC_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Retrieval.SemanticWeight = w
		}
	}
	if v := os.Getenv("GNO_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Retrieval.RRFConstant = k
		}
	}
	if v := os.Getenv("GNO_BM25_BACKEND"); v != "" {
		c.Retrieval.BM25Backend = v
	}
	if v := os.Getenv("GNO_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("GNO_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("GNO_MODEL_PRESET"); v != "" {
		if c.Models == nil {
			c.Models = &ModelsConfig{}
		}
		c.Models.ActivePreset = v
	}
	if v := os.Getenv("GNO_COMPACTION_ENABLED"); v != "" {
		c.Compaction.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// validTokenizers are the fixed DocumentFts tokenizer values from
// spec.md §3; "snowball" additionally accepts a trailing language.
var validTokenizers = map[string]bool{
	"unicode61": true,
	"porter":    true,
	"trigram":   true,
}

// ValidateCollectionName reports whether name matches spec.md §6's
// collection name grammar, for callers (e.g. `gno init`) that need to
// check a name before it is merged into a Config.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(strings.ToLower(name)) {
		return fmt.Errorf("must match [a-z0-9][a-z0-9._-]{0,63}")
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version must be set")
	}

	if !validTokenizers[c.FTSTokenizer] && !strings.HasPrefix(c.FTSTokenizer, "snowball ") {
		return fmt.Errorf("ftsTokenizer must be 'unicode61', 'porter', 'trigram', or 'snowball <language>', got %q", c.FTSTokenizer)
	}

	seen := make(map[string]bool, len(c.Collections))
	for i := range c.Collections {
		name := strings.ToLower(c.Collections[i].Name)
		c.Collections[i].Name = name
		if !collectionNamePattern.MatchString(name) {
			return fmt.Errorf("collection name %q must match [a-z0-9][a-z0-9._-]{0,63}", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate collection name %q", name)
		}
		seen[name] = true
		if c.Collections[i].Path == "" {
			return fmt.Errorf("collection %q must set a path", name)
		}
	}

	for _, ctx := range c.Contexts {
		switch ctx.Scope {
		case ContextScopeGlobal:
			if ctx.Key != "/" {
				return fmt.Errorf("global context key must be \"/\", got %q", ctx.Key)
			}
		case ContextScopeCollection:
			if !strings.HasSuffix(ctx.Key, ":") {
				return fmt.Errorf("collection context key must end in ':', got %q", ctx.Key)
			}
		case ContextScopePrefix:
			if !strings.HasPrefix(ctx.Key, "gno://") {
				return fmt.Errorf("prefix context key must start with 'gno://', got %q", ctx.Key)
			}
		default:
			return fmt.Errorf("context scope must be 'global', 'collection', or 'prefix', got %q", ctx.Scope)
		}
	}

	if c.Retrieval.BM25Weight < 0 || c.Retrieval.BM25Weight > 1 {
		return fmt.Errorf("retrieval.bm25_weight must be between 0 and 1, got %f", c.Retrieval.BM25Weight)
	}
	if c.Retrieval.SemanticWeight < 0 || c.Retrieval.SemanticWeight > 1 {
		return fmt.Errorf("retrieval.semantic_weight must be between 0 and 1, got %f", c.Retrieval.SemanticWeight)
	}
	if sum := c.Retrieval.BM25Weight + c.Retrieval.SemanticWeight; math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("retrieval.bm25_weight + semantic_weight must equal 1.0, got %.2f", sum)
	}
	if c.Retrieval.MaxResults < 0 {
		return fmt.Errorf("retrieval.max_results must be non-negative, got %d", c.Retrieval.MaxResults)
	}
	if c.Retrieval.ChunkCharBudget < 0 {
		return fmt.Errorf("retrieval.chunk_char_budget must be non-negative, got %d", c.Retrieval.ChunkCharBudget)
	}

	validBackends := map[string]bool{"sqlite": true, "bleve": true}
	if !validBackends[strings.ToLower(c.Retrieval.BM25Backend)] {
		return fmt.Errorf("retrieval.bm25_backend must be 'sqlite' or 'bleve', got %q", c.Retrieval.BM25Backend)
	}

	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %q", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %q", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to path atomically: marshal to a
// temp file in the same directory, then rename over the destination.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".index-*.yml.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename config file into place: %w", err)
	}

	return nil
}

// Save writes the configuration to the default config file path.
func (c *Config) Save() error {
	path, err := ConfigFilePath()
	if err != nil {
		return err
	}
	return c.WriteYAML(path)
}

// CollectionByName returns the collection config with the given name,
// or nil if not found. Names are matched case-insensitively.
func (c *Config) CollectionByName(name string) *CollectionConfig {
	name = strings.ToLower(name)
	for i := range c.Collections {
		if c.Collections[i].Name == name {
			return &c.Collections[i]
		}
	}
	return nil
}

// MergeNewDefaults adds new default fields while preserving existing
// values, for forward-compatible config upgrades. Returns the field
// names that were added with their default values.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	if c.Retrieval.RRFConstant == 0 {
		c.Retrieval.RRFConstant = defaults.Retrieval.RRFConstant
		added = append(added, "retrieval.rrf_constant")
	}
	if c.Retrieval.BM25Weight == 0 && c.Retrieval.SemanticWeight == 0 {
		c.Retrieval.BM25Weight = defaults.Retrieval.BM25Weight
		c.Retrieval.SemanticWeight = defaults.Retrieval.SemanticWeight
		added = append(added, "retrieval.bm25_weight", "retrieval.semantic_weight")
	}
	if c.Retrieval.ChunkCharBudget == 0 {
		c.Retrieval.ChunkCharBudget = defaults.Retrieval.ChunkCharBudget
		added = append(added, "retrieval.chunk_char_budget")
	}
	if c.Performance.SQLiteCacheMB == 0 {
		c.Performance.SQLiteCacheMB = defaults.Performance.SQLiteCacheMB
		added = append(added, "performance.sqlite_cache_mb")
	}
	if c.Models == nil {
		c.Models = defaults.Models
		added = append(added, "models")
	}

	return added
}
