package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brettbedarf/treefs/internal/util"
)

// Bytes per KB
const KB = 1024

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultFsName = "treefs"
	DefaultName   = "treefs"
	DefaultLogLvl = util.InfoLevel

	// Uses 31 bits (2^31 - 1 = 2,147,483,647) to ensure compatibility with libfuse
	// and avoid signed integer overflow. This provides over 2 billion unique file
	// handles while staying within safe interop limits.
	DefaultMaxFH = (1 << 31) - 1

	// DefaultMaxReadAhead is the kernel read-ahead window requested at mount
	DefaultMaxReadAhead = 128 * KB

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0

	// DefaultDirectIO determines whether to bypass the page cache for host files
	DefaultDirectIO = false

	// DefaultKernelCache keeps cached file pages across opens
	DefaultKernelCache = true

	// DefaultDirMode is the permission part of every synthetic directory
	DefaultDirMode = 0o755

	// DefaultFileListMode is the permission hint reported for files in listings
	DefaultFileListMode = 0o444

	// DefaultTokenHeader carries the token as "Bearer <token>"
	DefaultTokenHeader = "Authorization"

	// DefaultFetchTimeout bounds the description download in seconds
	DefaultFetchTimeout = 30.0
)

// Config contains runtime configuration values for the tree filesystem.
type Config struct {
	MountOptions
	LogLvl util.LogLevel

	Source       string  // Description location: http(s) URL, file:// URL or local path
	Token        string  // Token sent with remote description requests
	TokenHeader  string  // Header carrying Token (Default "Authorization" as a bearer token)
	FetchTimeout float64 // Description download timeout in seconds (Default 30)

	DirMode      uint32 // Permission bits of synthetic directories (Default 0755)
	FileListMode uint32 // Permission bits reported for files in directory listings (Default 0444)
	// NOTE: Low-level FUSE config (strongly recommend defaults unless you really know what you're doing):

	MaxFH        int     // Maximum file handle value for FUSE compatibility (Default 2147483647)
	MaxReadAhead int     // Kernel read-ahead in bytes (Default 128KB)
	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)
	DirectIO     bool    // Whether to bypass page cache for host files (Default false)
	KernelCache  bool    // Whether the kernel may keep file pages across opens (Default true)
}

// AttrTTL returns AttrTimeout as a time.Duration.
func (c *Config) AttrTTL() time.Duration {
	return secondsToDuration(c.AttrTimeout)
}

// EntryTTL returns EntryTimeout as a time.Duration.
func (c *Config) EntryTTL() time.Duration {
	return secondsToDuration(c.EntryTimeout)
}

// FetchTTL returns FetchTimeout as a time.Duration.
func (c *Config) FetchTTL() time.Duration {
	return secondsToDuration(c.FetchTimeout)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	// LogLvl is a CLI style verbosity between 1 (error) and 5 (trace)
	LogLvl       *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	FsName       *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name         *string  `yaml:"name,omitempty" json:"name,omitempty"`
	Debug        *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	AllowOther   *bool    `yaml:"allow_other,omitempty" json:"allow_other,omitempty"`
	Source       *string  `yaml:"source,omitempty" json:"source,omitempty"`
	Token        *string  `yaml:"token,omitempty" json:"token,omitempty"`
	TokenHeader  *string  `yaml:"token_header,omitempty" json:"token_header,omitempty"`
	FetchTimeout *float64 `yaml:"fetch_timeout,omitempty" json:"fetch_timeout,omitempty"`
	DirMode      *uint32  `yaml:"dir_mode,omitempty" json:"dir_mode,omitempty"`
	FileListMode *uint32  `yaml:"file_list_mode,omitempty" json:"file_list_mode,omitempty"`
	MaxFH        *int     `yaml:"max_fh,omitempty" json:"max_fh,omitempty"`
	MaxReadAhead *int     `yaml:"max_read_ahead,omitempty" json:"max_read_ahead,omitempty"`
	AttrTimeout  *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
	DirectIO     *bool    `yaml:"direct_io,omitempty" json:"direct_io,omitempty"`
	KernelCache  *bool    `yaml:"kernel_cache,omitempty" json:"kernel_cache,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:       DefaultLogLvl,
		TokenHeader:  DefaultTokenHeader,
		FetchTimeout: DefaultFetchTimeout,
		DirMode:      DefaultDirMode,
		FileListMode: DefaultFileListMode,
		MaxFH:        DefaultMaxFH,
		MaxReadAhead: DefaultMaxReadAhead,
		AttrTimeout:  DefaultAttrTimeout,
		EntryTimeout: DefaultEntryTimeout,
		DirectIO:     DefaultDirectIO,
		KernelCache:  DefaultKernelCache,
	}
}

// NewConfig returns the defaults with override applied. A nil override
// yields the defaults unchanged.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = VerbosityToLogLevel(*override.LogLvl)
	}
	c.FsName = util.ValueOrDefault(override.FsName, c.FsName)
	c.Name = util.ValueOrDefault(override.Name, c.Name)
	c.Debug = util.ValueOrDefault(override.Debug, c.Debug)
	c.AllowOther = util.ValueOrDefault(override.AllowOther, c.AllowOther)
	c.Source = util.ValueOrDefault(override.Source, c.Source)
	c.Token = util.ValueOrDefault(override.Token, c.Token)
	c.TokenHeader = util.ValueOrDefault(override.TokenHeader, c.TokenHeader)
	c.FetchTimeout = util.ValueOrDefault(override.FetchTimeout, c.FetchTimeout)
	c.DirMode = util.ValueOrDefault(override.DirMode, c.DirMode)
	c.FileListMode = util.ValueOrDefault(override.FileListMode, c.FileListMode)
	c.MaxFH = util.ValueOrDefault(override.MaxFH, c.MaxFH)
	c.MaxReadAhead = util.ValueOrDefault(override.MaxReadAhead, c.MaxReadAhead)
	c.AttrTimeout = util.ValueOrDefault(override.AttrTimeout, c.AttrTimeout)
	c.EntryTimeout = util.ValueOrDefault(override.EntryTimeout, c.EntryTimeout)
	c.DirectIO = util.ValueOrDefault(override.DirectIO, c.DirectIO)
	c.KernelCache = util.ValueOrDefault(override.KernelCache, c.KernelCache)
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfig(override), nil
}
