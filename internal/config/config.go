package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCDNStylesheet is the one external stylesheet a compiled document links.
const DefaultCDNStylesheet = "https://cdn.jsdelivr.net/npm/tailwindcss@2.2.19/dist/tailwind.min.css"

// Config holds application configuration.
type Config struct {
	// SourceMaxChars is the maximum character count for component source text
	SourceMaxChars int `json:"source_max_chars" yaml:"source_max_chars"`

	// CDNStylesheet is the utility stylesheet URL linked from every compiled document.
	// Must be https; the serving CSP allows its host for styles.
	CDNStylesheet string `json:"cdn_stylesheet,omitempty" yaml:"cdn_stylesheet,omitempty"`

	// Bind and Port control the listen address of `cogbench serve`.
	Bind string `json:"bind,omitempty" yaml:"bind,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`

	// LogLevel is one of debug, info, warn, error. Empty means info.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool type names to disable entirely.
	// Known types: "artifact".
	DisabledTypes []string `json:"disabled_types,omitempty" yaml:"disabled_types,omitempty"`

	// Mirror configures the optional S3 copy of published documents.
	Mirror MirrorConfig `json:"mirror,omitempty" yaml:"mirror,omitempty"`
}

// MirrorConfig holds S3 mirror settings. An empty Bucket disables mirroring.
type MirrorConfig struct {
	Bucket         string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Region         string `json:"region,omitempty" yaml:"region,omitempty"`
	Prefix         string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Endpoint       string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	ForcePathStyle bool   `json:"force_path_style,omitempty" yaml:"force_path_style,omitempty"`
	AccessKey      string `json:"access_key,omitempty" yaml:"access_key,omitempty"`
	SecretKey      string `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
}

// Enabled reports whether a mirror bucket is configured.
func (m MirrorConfig) Enabled() bool {
	return strings.TrimSpace(m.Bucket) != ""
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SourceMaxChars: 100000,
		CDNStylesheet:  DefaultCDNStylesheet,
		Bind:           "127.0.0.1",
		Port:           8750,
		LogLevel:       "info",
	}
}

// Load loads configuration from baseDir/config.yaml, falling back to
// baseDir/config.json. Returns default config if neither file exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cogbench.
func Load(baseDir string) (*Config, error) {
	yamlPath := filepath.Join(baseDir, "config.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return loadFile(yamlPath)
	}
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	switch filepath.Ext(configPath) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.SourceMaxChars = pickInt(overlay.SourceMaxChars, base.SourceMaxChars)
	result.Port = pickInt(overlay.Port, base.Port)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.CDNStylesheet = pickString(overlay.CDNStylesheet, base.CDNStylesheet)
	result.Bind = pickString(overlay.Bind, base.Bind)
	result.LogLevel = pickString(overlay.LogLevel, base.LogLevel)

	result.Mirror = base.Mirror
	if overlay.Mirror.Enabled() {
		result.Mirror = overlay.Mirror
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
