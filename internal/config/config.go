// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/apex/log"

	"github.com/jeranaias/linediff/internal/index"
	"github.com/jeranaias/linediff/internal/util"
)

// CurrentVersion is written into saved config files.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete linediff configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Diff   DiffConfig   `toml:"diff" json:"diff"`
	Index  IndexConfig  `toml:"index" json:"index"`
	Tasks  TasksConfig  `toml:"tasks" json:"tasks"`
	Server ServerConfig `toml:"server" json:"server"`
	Log    LogConfig    `toml:"log" json:"log"`
}

// DiffConfig controls single diffs run from the command line.
type DiffConfig struct {
	// TimeoutSecs bounds one diff, reading included (0 = no timeout)
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// IndexConfig controls the persisted path index.
type IndexConfig struct {
	// DatabasePath is the SQLite file (empty = <root>/.linediff/index.db)
	DatabasePath string `toml:"database_path" json:"database_path"`
	// MaxFileSize skips larger files when indexing (bytes, 0 = no limit)
	MaxFileSize int64 `toml:"max_file_size" json:"max_file_size"`
	// IgnorePatterns are filepath.Match patterns applied to base names
	IgnorePatterns []string `toml:"ignore_patterns" json:"ignore_patterns"`
	// Watch keeps the index current with file system events after a refresh
	Watch bool `toml:"watch" json:"watch"`
	// WatchDebounceMS is how long a path must be quiet before it is re-indexed
	WatchDebounceMS int `toml:"watch_debounce_ms" json:"watch_debounce_ms"`
}

// TasksConfig controls batch diffing.
type TasksConfig struct {
	MaxConcurrent int `toml:"max_concurrent" json:"max_concurrent"`
	// MaxHistory is the number of finished tasks kept (0 = unlimited)
	MaxHistory int `toml:"max_history" json:"max_history"`
	// MaxQueue is the number of queued tasks allowed (0 = unlimited)
	MaxQueue int `toml:"max_queue" json:"max_queue"`
	// TimeoutSecs bounds each task (0 = no timeout)
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// ServerConfig controls the HTTP API started by "linediff serve".
type ServerConfig struct {
	// Addr is the listen address
	Addr string `toml:"addr" json:"addr"`
	// APIKey, when set, is required as a Bearer token on every request but /health
	APIKey string `toml:"api_key" json:"api_key"`
	// RateLimit is requests per minute per client (0 = unlimited)
	RateLimit int `toml:"rate_limit" json:"rate_limit"`
	// MaxBodyBytes bounds request bodies
	MaxBodyBytes int64 `toml:"max_body_bytes" json:"max_body_bytes"`
}

// LogConfig controls the stderr log.
type LogConfig struct {
	// Level is one of debug, info, warn, error, fatal
	Level string `toml:"level" json:"level"`
}

// Timeout returns the diff timeout as a duration.
func (c DiffConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Debounce returns the watcher debounce as a duration.
func (c IndexConfig) Debounce() time.Duration {
	return time.Duration(c.WatchDebounceMS) * time.Millisecond
}

// Timeout returns the per-task timeout as a duration.
func (c TasksConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a new Config with default values.
func Default() *Config {
	indexOpts := index.DefaultOptions()
	return &Config{
		Version: CurrentVersion,
		Diff: DiffConfig{
			TimeoutSecs: 30,
		},
		Index: IndexConfig{
			MaxFileSize:     indexOpts.MaxFileSize,
			IgnorePatterns:  indexOpts.IgnorePatterns,
			Watch:           false,
			WatchDebounceMS: 500,
		},
		Tasks: TasksConfig{
			MaxConcurrent: 5,
			MaxHistory:    100,
			MaxQueue:      0,
			TimeoutSecs:   30,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8787",
			RateLimit:    120,
			MaxBodyBytes: 4 << 20,
		},
		Log: LogConfig{
			Level: "error",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the linediff configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".linediff"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.WithFields(log.Fields{
			"path": path,
			"keys": undecoded,
		}).Warn("config: ignoring unknown keys")
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full validation.
// Files ending in .json are read as JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SetDefaults fills values a config file left empty.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Index.IgnorePatterns == nil {
		c.Index.IgnorePatterns = defaults.Index.IgnorePatterns
	}
	if c.Tasks.MaxConcurrent == 0 {
		c.Tasks.MaxConcurrent = defaults.Tasks.MaxConcurrent
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = defaults.Server.MaxBodyBytes
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# linediff configuration file\n")
	buf.WriteString("# Generated by linediff - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0755); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0755); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}

// Validate validates the configuration and returns ValidateErrors listing
// every problem, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	check := func(ok bool, field, format string, args ...any) {
		if !ok {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
		}
	}

	// Diff
	check(c.Diff.TimeoutSecs >= 0, "diff.timeout_secs",
		"must be >= 0, got %d", c.Diff.TimeoutSecs)

	// Index
	check(c.Index.MaxFileSize >= 0, "index.max_file_size",
		"must be >= 0, got %d", c.Index.MaxFileSize)
	check(c.Index.WatchDebounceMS >= 0 && c.Index.WatchDebounceMS <= 60000, "index.watch_debounce_ms",
		"must be between 0 and 60000, got %d", c.Index.WatchDebounceMS)
	for _, pattern := range c.Index.IgnorePatterns {
		_, err := filepath.Match(pattern, "")
		check(err == nil, "index.ignore_patterns", "invalid pattern %q", pattern)
	}

	// Tasks
	check(c.Tasks.MaxConcurrent >= 1 && c.Tasks.MaxConcurrent <= 64, "tasks.max_concurrent",
		"must be between 1 and 64, got %d", c.Tasks.MaxConcurrent)
	check(c.Tasks.MaxHistory >= 0, "tasks.max_history",
		"must be >= 0, got %d", c.Tasks.MaxHistory)
	check(c.Tasks.MaxQueue >= 0, "tasks.max_queue",
		"must be >= 0, got %d", c.Tasks.MaxQueue)
	check(c.Tasks.TimeoutSecs >= 0, "tasks.timeout_secs",
		"must be >= 0, got %d", c.Tasks.TimeoutSecs)

	// Server
	_, _, addrErr := net.SplitHostPort(c.Server.Addr)
	check(addrErr == nil, "server.addr", "invalid address %q", c.Server.Addr)
	check(c.Server.RateLimit >= 0, "server.rate_limit",
		"must be >= 0, got %d", c.Server.RateLimit)
	check(c.Server.MaxBodyBytes > 0, "server.max_body_bytes",
		"must be > 0, got %d", c.Server.MaxBodyBytes)

	// Log
	level := strings.ToLower(c.Log.Level)
	validLevel := false
	for _, l := range validLogLevels {
		if level == l {
			validLevel = true
		}
	}
	check(validLevel, "log.level", "invalid level '%s', must be one of: %s",
		c.Log.Level, strings.Join(validLogLevels, ", "))

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - LINEDIFF_LOG: overrides log.level
//   - LINEDIFF_DIFF_TIMEOUT: overrides diff.timeout_secs (seconds or a duration like "5s")
//   - LINEDIFF_INDEX_DB: overrides index.database_path
//   - LINEDIFF_API_KEY: overrides server.api_key
func (c *Config) ApplyEnvOverrides() {
	if level := os.Getenv("LINEDIFF_LOG"); level != "" {
		c.Log.Level = level
	}

	if timeout := os.Getenv("LINEDIFF_DIFF_TIMEOUT"); timeout != "" {
		secs, err := parseSeconds(timeout)
		if err != nil {
			log.WithError(err).WithField("LINEDIFF_DIFF_TIMEOUT", timeout).Warn("config: ignoring invalid override")
		} else {
			c.Diff.TimeoutSecs = secs
		}
	}

	if db := os.Getenv("LINEDIFF_INDEX_DB"); db != "" {
		c.Index.DatabasePath = db
	}

	if key := os.Getenv("LINEDIFF_API_KEY"); key != "" {
		c.Server.APIKey = key
	}
}

// parseSeconds accepts a bare number of seconds or a time.Duration string.
func parseSeconds(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	return int(d.Round(time.Second) / time.Second), nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "tasks.max_concurrent").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "index.watch").
// String values are converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}

		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}

	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(strings.ToLower(part[1:]))
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	// Numeric to string conversion would yield a rune, not digits.
	if val.Type().ConvertibleTo(field.Type()) && field.Kind() != reflect.String && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation, in struct order.
func GetAllKeys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		name := section.Tag.Get("toml")
		if section.Type.Kind() != reflect.Struct {
			keys = append(keys, name)
			continue
		}
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, name+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Index.IgnorePatterns != nil {
		clone.Index.IgnorePatterns = append([]string(nil), c.Index.IgnorePatterns...)
	}
	return &clone
}

// String returns the config as indented JSON for debugging.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access unless SetGlobal ran before. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		globalConfigMu.Lock()
		defer globalConfigMu.Unlock()
		if globalConfig != nil {
			return
		}
		cfg, err := Load()
		if err != nil {
			log.WithError(err).Warn("config: using defaults")
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
