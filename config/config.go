package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/brettbedarf/filetree"
	"github.com/brettbedarf/filetree/internal/util"
)

// Verbosity levels as passed from the CLI; higher is noisier
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	DefaultContainerSuffix = filetree.DefaultContainerSuffix

	// DefaultDebounceInterval is the notification coalescing window
	DefaultDebounceInterval = 10 * time.Millisecond

	// DefaultFetchTimeout bounds a single listing call
	DefaultFetchTimeout = 30 * time.Second

	// DefaultPollInterval is how often a polling watcher re-lists a watched node
	DefaultPollInterval = 2 * time.Second

	DefaultSourceType = "local"
)

// Config contains runtime configuration values for the tree cache.
type Config struct {
	LogLvl           util.LogLevel  // Minimum level logged (Default info)
	ContainerSuffix  string         // Suffix identifying container keys (Default "/")
	DebounceInterval time.Duration  // Change notification coalescing window (Default 10ms)
	FetchTimeout     time.Duration  // Timeout for one listing call; 0 disables (Default 30s)
	PollInterval     time.Duration  // Polling watcher interval (Default 2s)
	StateFile        string         // Optional file the CLI persists tree state to
	Source           map[string]any // Lister source config passed to the adapter registry (Default {"type":"local"})
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
// Durations are expressed in milliseconds.
type ConfigOverride struct {
	LogLvl           *int           `yaml:"log_level,omitempty" json:"log_level,omitempty" toml:"log_level,omitempty"` // CLI verbosity 1 (error) to 5 (trace)
	ContainerSuffix  *string        `yaml:"container_suffix,omitempty" json:"container_suffix,omitempty" toml:"container_suffix,omitempty"`
	DebounceInterval *int           `yaml:"debounce_ms,omitempty" json:"debounce_ms,omitempty" toml:"debounce_ms,omitempty"`
	FetchTimeout     *int           `yaml:"fetch_timeout_ms,omitempty" json:"fetch_timeout_ms,omitempty" toml:"fetch_timeout_ms,omitempty"`
	PollInterval     *int           `yaml:"poll_interval_ms,omitempty" json:"poll_interval_ms,omitempty" toml:"poll_interval_ms,omitempty"`
	StateFile        *string        `yaml:"state_file,omitempty" json:"state_file,omitempty" toml:"state_file,omitempty"`
	Source           map[string]any `yaml:"source,omitempty" json:"source,omitempty" toml:"source,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		LogLvl:           DefaultLogLvl,
		ContainerSuffix:  DefaultContainerSuffix,
		DebounceInterval: DefaultDebounceInterval,
		FetchTimeout:     DefaultFetchTimeout,
		PollInterval:     DefaultPollInterval,
		Source:           map[string]any{"type": DefaultSourceType},
	}
}

// NewConfig creates a Config from defaults with override applied on top.
// A nil override yields the defaults.
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
		c.LogLvl = VerbosityToLevel(*override.LogLvl)
	}
	if override.ContainerSuffix != nil && *override.ContainerSuffix != "" {
		c.ContainerSuffix = *override.ContainerSuffix
	}
	if override.DebounceInterval != nil {
		c.DebounceInterval = time.Duration(*override.DebounceInterval) * time.Millisecond
	}
	if override.FetchTimeout != nil {
		c.FetchTimeout = time.Duration(*override.FetchTimeout) * time.Millisecond
	}
	if override.PollInterval != nil {
		c.PollInterval = time.Duration(*override.PollInterval) * time.Millisecond
	}
	if override.StateFile != nil {
		c.StateFile = *override.StateFile
	}
	if override.Source != nil {
		c.Source = override.Source
	}
}

// VerbosityToLevel converts CLI verbosity (1 error .. 5 trace) into a
// [util.LogLevel], clamping out of range values.
func VerbosityToLevel(verbose int) util.LogLevel {
	verbose = min(max(verbose, ErrorVerbose), TraceVerbose)
	lvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return lvls[verbose-1]
}

// SourceJSON returns the Source config encoded for the adapter registry
func (c *Config) SourceJSON() ([]byte, error) {
	return json.Marshal(c.Source)
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports YAML (.yaml, .yml), JSON (.json) and TOML (.toml) formats.
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
		err = yaml.Unmarshal(data, &override)
	case ".json":
		err = json.Unmarshal(data, &override)
	case ".toml":
		err = toml.Unmarshal(data, &override)
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
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
