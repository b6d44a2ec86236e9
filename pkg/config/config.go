package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/rubiojr/craftsearch/pkg/search"
	"github.com/rubiojr/craftsearch/pkg/storage"
)

//go:embed config.toml.sample
var configTemplate string

const templateIndexDir = "/home/user/Library/Containers/com.lukilabs.lukiapp/Data/Library/Application Support/com.lukilabs.lukiapp/Search"

type Config struct {
	IndexDir       string        `toml:"index_dir"`
	ResultLimit    int           `toml:"result_limit"`
	SpaceTimeout   Duration      `toml:"space_timeout"`
	MaxParallel    int           `toml:"max_parallel"`
	BackfillTitles *bool         `toml:"backfill_titles,omitempty"`
	Watch          *bool         `toml:"watch,omitempty"`
	Cache          CacheConfig   `toml:"cache"`
	Server         ServerConfig  `toml:"server"`
	Spaces         []SpaceConfig `toml:"spaces,omitempty"`
}

type CacheConfig struct {
	// Size is the number of per-space results kept. A negative size disables
	// the cache.
	Size int      `toml:"size"`
	TTL  Duration `toml:"ttl"`
}

type ServerConfig struct {
	Listen   string   `toml:"listen"`
	Debounce Duration `toml:"debounce"`
}

// SpaceConfig pins a space explicitly. Path defaults to the space's index file
// inside IndexDir.
type SpaceConfig struct {
	ID   string `toml:"id"`
	Name string `toml:"name,omitempty"`
	Path string `toml:"path,omitempty"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

const (
	DefaultResultLimit  = 40
	DefaultSpaceTimeout = 2 * time.Second
	DefaultCacheSize    = 256
	DefaultCacheTTL     = 30 * time.Second
	DefaultListen       = "127.0.0.1:8765"
	DefaultDebounce     = 150 * time.Millisecond
)

func GetDefaultConfig() (*Config, error) {
	indexDir, err := GetDefaultIndexDir()
	if err != nil {
		return nil, fmt.Errorf("getting default index directory: %w", err)
	}
	c := &Config{IndexDir: indexDir}
	c.applyDefaults()
	return c, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.IndexDir == "" {
		indexDir, err := GetDefaultIndexDir()
		if err != nil {
			return nil, fmt.Errorf("getting default index directory: %w", err)
		}
		config.IndexDir = indexDir
	}
	config.IndexDir = expandHome(config.IndexDir)
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.ResultLimit <= 0 {
		c.ResultLimit = DefaultResultLimit
	}
	if c.SpaceTimeout.Duration == 0 {
		c.SpaceTimeout = Duration{DefaultSpaceTimeout}
	}
	if c.BackfillTitles == nil {
		c.BackfillTitles = boolPtr(true)
	}
	if c.Watch == nil {
		c.Watch = boolPtr(true)
	}
	if c.Cache.TTL.Duration == 0 {
		c.Cache.TTL = Duration{DefaultCacheTTL}
	}
	if c.Cache.Size == 0 {
		c.Cache.Size = DefaultCacheSize
	}
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.Debounce.Duration == 0 {
		c.Server.Debounce = Duration{DefaultDebounce}
	}
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	if c.SpaceTimeout.Duration < 0 {
		return fmt.Errorf("space_timeout must not be negative")
	}
	if c.MaxParallel < 0 {
		return fmt.Errorf("max_parallel must not be negative")
	}
	seen := make(map[string]bool, len(c.Spaces))
	for i, s := range c.Spaces {
		if s.ID == "" {
			return fmt.Errorf("spaces[%d]: missing id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("spaces[%d]: duplicate id %s", i, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// SearchSettings converts the configuration into search service settings.
func (c *Config) SearchSettings() search.Settings {
	s := search.Settings{
		Limit:          c.ResultLimit,
		SpaceTimeout:   c.SpaceTimeout.Duration,
		MaxParallel:    c.MaxParallel,
		BackfillTitles: c.BackfillTitles == nil || *c.BackfillTitles,
		CacheSize:      c.Cache.Size,
		CacheTTL:       c.Cache.TTL.Duration,
	}
	if s.CacheSize < 0 {
		s.CacheSize = 0
	}
	return s
}

// WatchEnabled reports whether index files should be watched for changes.
func (c *Config) WatchEnabled() bool {
	return c.Watch == nil || *c.Watch
}

// ResolveSpaces returns the spaces to search, in display order. Configured
// spaces win; otherwise the index directory is scanned.
func (c *Config) ResolveSpaces() ([]storage.Space, error) {
	if len(c.Spaces) == 0 {
		return storage.DiscoverSpaces(c.IndexDir)
	}

	spaces := make([]storage.Space, 0, len(c.Spaces))
	for _, s := range c.Spaces {
		path := expandHome(s.Path)
		if path == "" {
			path = filepath.Join(c.IndexDir, storage.IndexFileName(s.ID))
		}
		spaces = append(spaces, storage.Space{ID: s.ID, Name: s.Name, Path: path})
	}
	return spaces, nil
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return fmt.Errorf("generating config template: %w", err)
	}
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) generateConfigTemplate() (string, error) {
	indexDir := c.IndexDir
	if indexDir == "" {
		var err error
		indexDir, err = GetDefaultIndexDir()
		if err != nil {
			return "", fmt.Errorf("getting default index directory: %w", err)
		}
	}

	// TOML basic strings need backslashes escaped on Windows paths.
	indexDir = strings.ReplaceAll(indexDir, `\`, `\\`)
	return strings.Replace(configTemplate, templateIndexDir, indexDir, 1), nil
}

// GetDefaultIndexDir returns the directory where Craft keeps its search indexes.
// CRAFTSEARCH_INDEX_DIR overrides it.
func GetDefaultIndexDir() (string, error) {
	if dir := os.Getenv("CRAFTSEARCH_INDEX_DIR"); dir != "" {
		return dir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting user home directory: %w", err)
	}

	if runtime.GOOS == "darwin" {
		return filepath.Join(homeDir, "Library", "Containers", "com.lukilabs.lukiapp",
			"Data", "Library", "Application Support", "com.lukilabs.lukiapp", "Search"), nil
	}

	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "craftsearch", "indexes"), nil
}

// GetConfigDir returns the configuration directory for craftsearch
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "craftsearch"), nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func boolPtr(b bool) *bool { return &b }
