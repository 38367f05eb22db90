// Package config handles configuration loading, validation, and management
// for tonegrid.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete engine configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Input configuration for the composing session.
	Input InputConfig `toml:"input" json:"input" yaml:"input"`

	// Model configuration for dictionary files.
	Model ModelConfig `toml:"model" json:"model" yaml:"model"`

	// Learning configuration for the override model.
	Learning LearningConfig `toml:"learning" json:"learning" yaml:"learning"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// InputConfig holds composing behavior configuration.
type InputConfig struct {
	// Layout is the keyboard layout: "standard" or "hanyupinyin".
	Layout string `toml:"layout" json:"layout" yaml:"layout"`

	// SelectPhraseAfterCursor anchors candidate lookup on the slot after
	// the cursor instead of the one before it.
	SelectPhraseAfterCursor bool `toml:"select_phrase_after_cursor" json:"select_phrase_after_cursor" yaml:"select_phrase_after_cursor"`

	// MoveCursorAfterSelection moves the cursor past a selected phrase.
	MoveCursorAfterSelection bool `toml:"move_cursor_after_selection" json:"move_cursor_after_selection" yaml:"move_cursor_after_selection"`

	// PhraseReplacementEnabled applies the user replacement map to
	// candidates.
	PhraseReplacementEnabled bool `toml:"phrase_replacement_enabled" json:"phrase_replacement_enabled" yaml:"phrase_replacement_enabled"`
}

// ModelConfig holds dictionary file configuration.
type ModelConfig struct {
	// BasePath is the path to the base dictionary file.
	BasePath string `toml:"base_path" json:"base_path" yaml:"base_path"`

	// UserDataDir is the directory holding user phrase files.
	UserDataDir string `toml:"user_data_dir" json:"user_data_dir" yaml:"user_data_dir"`

	// WatchUserFiles reloads user phrase files when they change on disk.
	WatchUserFiles bool `toml:"watch_user_files" json:"watch_user_files" yaml:"watch_user_files"`
}

// LearningConfig holds override model configuration.
type LearningConfig struct {
	// Capacity is the maximum number of learned overrides.
	Capacity int `toml:"capacity" json:"capacity" yaml:"capacity"`

	// HalfLifeSec is the override decay half-life in seconds.
	HalfLifeSec int `toml:"half_life_sec" json:"half_life_sec" yaml:"half_life_sec"`

	// StorePath is the path to the override snapshot database.
	StorePath string `toml:"store_path" json:"store_path" yaml:"store_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is the log output: "stdout", "stderr", or "file".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file (when Output is "file").
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Input: InputConfig{
			Layout:                   "standard",
			SelectPhraseAfterCursor:  false,
			MoveCursorAfterSelection: false,
			PhraseReplacementEnabled: false,
		},
		Model: ModelConfig{
			BasePath:       filepath.Join(dir, "data.txt"),
			UserDataDir:    dir,
			WatchUserFiles: true,
		},
		Learning: LearningConfig{
			Capacity:    500,
			HalfLifeSec: 5400,
			StorePath:   filepath.Join(dir, "overrides.db"),
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "file",
			FilePath: filepath.Join(dir, "tonegrid.log"),
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// DataDir returns the base tonegrid data directory. TONEGRID_DATA_DIR
// overrides the platform default.
func DataDir() string {
	if envDir := os.Getenv("TONEGRID_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Load reads configuration from the specified path. If the file doesn't
// exist, returns default configuration. Supports TOML, JSON, and YAML
// formats based on file extension.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = ConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()

	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration. Variables are prefixed with TONEGRID_.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TONEGRID_LAYOUT"); v != "" {
		c.Input.Layout = v
	}
	if v := os.Getenv("TONEGRID_MODEL_PATH"); v != "" {
		c.Model.BasePath = v
	}
	if v := os.Getenv("TONEGRID_USER_DATA_DIR"); v != "" {
		c.Model.UserDataDir = v
	}
	if v := os.Getenv("TONEGRID_STORE_PATH"); v != "" {
		c.Learning.StorePath = v
	}
	if v := os.Getenv("TONEGRID_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TONEGRID_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// EnsureDirectories creates all directories the engine writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Model.UserDataDir,
		filepath.Dir(c.Learning.StorePath),
		filepath.Dir(c.Logging.FilePath),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
