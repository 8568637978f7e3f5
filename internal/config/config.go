// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/whytree/internal/completion"
	"github.com/jeranaias/whytree/internal/expansion"
	"github.com/jeranaias/whytree/internal/logging"
	"github.com/jeranaias/whytree/internal/persona"
	"github.com/jeranaias/whytree/internal/storage"
	"github.com/jeranaias/whytree/internal/util"
)

// CurrentVersion is written to new config files.
const CurrentVersion = "1"

// Transport modes.
const (
	ModeDirect = "direct"
	ModeRelay  = "relay"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete whytree configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	Generation GenerationConfig `toml:"generation" json:"generation"`
	Transport  TransportConfig  `toml:"transport" json:"transport"`
	Storage    StorageConfig    `toml:"storage" json:"storage"`
	Relay      RelayConfig      `toml:"relay" json:"relay"`
	UI         UIConfig         `toml:"ui" json:"ui"`
	Logging    LoggingConfig    `toml:"logging" json:"logging"`
}

// GenerationConfig controls how trees are expanded.
type GenerationConfig struct {
	// Model is a catalog key such as "openai/gpt4" or a raw provider id.
	Model string `toml:"model" json:"model"`
	// Persona is a persona key, see `whytree personas`.
	Persona string `toml:"persona" json:"persona"`
	// Temperature in [0, 1].
	Temperature float64 `toml:"temperature" json:"temperature"`
	// Concurrency is the number of expansion processes.
	Concurrency int `toml:"concurrency" json:"concurrency"`
	// NodeBudget is how many answers the `n` key plays before pausing.
	NodeBudget int `toml:"node_budget" json:"node_budget"`
	// MaxAttempts bounds answer attempts per node.
	MaxAttempts int `toml:"max_attempts" json:"max_attempts"`
	// PollIntervalMs is how often an idle process checks the queue.
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms"`
}

// TransportConfig selects how completions are fetched.
type TransportConfig struct {
	// Mode is "direct" (own API key) or "relay".
	Mode string `toml:"mode" json:"mode"`
	// BaseURL is the chat completions API root for direct mode.
	BaseURL string `toml:"base_url" json:"base_url"`
	// APIKey for direct mode.
	APIKey string `toml:"api_key" json:"api_key"`
	// RelayURL is the relay's base or /ws URL for relay mode.
	RelayURL string `toml:"relay_url" json:"relay_url"`
	// TimeoutSecs bounds HTTP calls other than streams.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// StorageConfig locates saved trees.
type StorageConfig struct {
	// Backend is "file", "sqlite" or "badger".
	Backend string `toml:"backend" json:"backend"`
	// Path is the data directory. Supports ~ expansion.
	Path string `toml:"path" json:"path"`
	// AutosaveSecs is the autosave period; 0 saves only on exit.
	AutosaveSecs int `toml:"autosave_secs" json:"autosave_secs"`
	// MaxTrees caps the file backend; 0 is unlimited.
	MaxTrees int `toml:"max_trees" json:"max_trees"`
}

// RelayConfig configures `whytree relay`.
type RelayConfig struct {
	Addr       string `toml:"addr" json:"addr"`
	DailyQuota int    `toml:"daily_quota" json:"daily_quota"`
	MaxTokens  int    `toml:"max_tokens" json:"max_tokens"`
	// ProviderBaseURL is the upstream OpenAI-compatible API root.
	ProviderBaseURL string `toml:"provider_base_url" json:"provider_base_url"`
	// ProviderModel is the default upstream model id.
	ProviderModel string `toml:"provider_model" json:"provider_model"`
	// ProviderAPIKey authenticates upstream. Usually set through the
	// environment instead.
	ProviderAPIKey string   `toml:"provider_api_key" json:"provider_api_key"`
	AllowedModels  []string `toml:"allowed_models" json:"allowed_models"`
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`
	// ExamplesDir serves saved trees as examples when set.
	ExamplesDir string `toml:"examples_dir" json:"examples_dir"`
}

// UIConfig controls the terminal view.
type UIConfig struct {
	// Theme is "dark", "light" or "auto".
	Theme string `toml:"theme" json:"theme"`
	// NoColor disables colors.
	NoColor bool `toml:"no_color" json:"no_color"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" json:"level"`
	// Dir receives log files; the terminal view always logs here.
	Dir string `toml:"dir" json:"dir"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Generation: GenerationConfig{
			Model:          completion.DefaultModelKey,
			Persona:        persona.DefaultKey,
			Temperature:    float64(completion.DefaultTemperature),
			Concurrency:    expansion.DefaultConcurrency,
			NodeBudget:     10,
			MaxAttempts:    expansion.DefaultMaxAttempts,
			PollIntervalMs: int(expansion.DefaultPollInterval / time.Millisecond),
		},
		Transport: TransportConfig{
			Mode:        ModeDirect,
			BaseURL:     completion.DefaultBaseURL,
			TimeoutSecs: 30,
		},
		Storage: StorageConfig{
			Backend:      storage.BackendFile,
			Path:         "~/.whytree",
			AutosaveSecs: 30,
			MaxTrees:     500,
		},
		Relay: RelayConfig{
			Addr:            ":6823",
			DailyQuota:      3,
			MaxTokens:       100,
			ProviderBaseURL: completion.DefaultBaseURL,
			ProviderModel:   "gpt-3.5-turbo",
		},
		UI: UIConfig{
			Theme: "auto",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "~/.whytree/logs",
		},
	}
}

// PollInterval returns PollIntervalMs as a duration.
func (g GenerationConfig) PollInterval() time.Duration {
	return time.Duration(g.PollIntervalMs) * time.Millisecond
}

// Timeout returns TimeoutSecs as a duration.
func (t TransportConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSecs) * time.Second
}

// AutosaveInterval returns AutosaveSecs as a duration.
func (s StorageConfig) AutosaveInterval() time.Duration {
	return time.Duration(s.AutosaveSecs) * time.Second
}

// Dir returns Path with ~ expanded.
func (s StorageConfig) Dir() string {
	return ExpandPath(s.Path)
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the whytree configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".whytree"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// ensureSecurePermissions tightens a config file to 0600 since it may
// hold API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.whytree/config.toml over the defaults. A missing file is
// not an error. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
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

// LoadFromPath loads a TOML file over the defaults, applies environment
// overrides and validates.
func LoadFromPath(path string) (*Config, error) {
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Read loads a TOML file over the defaults without environment overrides
// or validation, for editing and saving back. A missing file yields the
// defaults.
func Read(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return cfg, nil
}

func decodeFile(path string) (*Config, error) {
	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// SetDefaults fills zero values that are never valid with their defaults.
// Temperature is left alone since 0 is a legal setting.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Generation.Model == "" {
		c.Generation.Model = d.Generation.Model
	}
	if c.Generation.Persona == "" {
		c.Generation.Persona = d.Generation.Persona
	}
	if c.Generation.Concurrency == 0 {
		c.Generation.Concurrency = d.Generation.Concurrency
	}
	if c.Generation.NodeBudget == 0 {
		c.Generation.NodeBudget = d.Generation.NodeBudget
	}
	if c.Generation.MaxAttempts == 0 {
		c.Generation.MaxAttempts = d.Generation.MaxAttempts
	}
	if c.Generation.PollIntervalMs == 0 {
		c.Generation.PollIntervalMs = d.Generation.PollIntervalMs
	}
	if c.Transport.Mode == "" {
		c.Transport.Mode = d.Transport.Mode
	}
	if c.Transport.BaseURL == "" {
		c.Transport.BaseURL = d.Transport.BaseURL
	}
	if c.Transport.TimeoutSecs == 0 {
		c.Transport.TimeoutSecs = d.Transport.TimeoutSecs
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.Path == "" {
		c.Storage.Path = d.Storage.Path
	}
	if c.Relay.Addr == "" {
		c.Relay.Addr = d.Relay.Addr
	}
	if c.Relay.DailyQuota == 0 {
		c.Relay.DailyQuota = d.Relay.DailyQuota
	}
	if c.Relay.MaxTokens == 0 {
		c.Relay.MaxTokens = d.Relay.MaxTokens
	}
	if c.Relay.ProviderBaseURL == "" {
		c.Relay.ProviderBaseURL = d.Relay.ProviderBaseURL
	}
	if c.Relay.ProviderModel == "" {
		c.Relay.ProviderModel = d.Relay.ProviderModel
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = d.Logging.Dir
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

const fileHeader = `# whytree configuration file
# Generated by whytree - edit with care

`

// Save writes cfg to ~/.whytree/config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo atomically writes cfg as TOML with 0600 permissions.
func SaveTo(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
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
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate returns ValidateErrors listing every invalid setting, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Generation
	g := c.Generation
	if strings.TrimSpace(g.Model) == "" {
		add("generation.model", "must not be empty")
	}
	if _, err := persona.Get(g.Persona); err != nil {
		add("generation.persona", "unknown persona '%s', must be one of: %s", g.Persona, strings.Join(persona.Keys(), ", "))
	}
	if err := completion.Temperature(g.Temperature).Validate(); err != nil {
		add("generation.temperature", "%v must be between 0 and 1", g.Temperature)
	}
	if g.Concurrency < 1 || g.Concurrency > 16 {
		add("generation.concurrency", "%d must be between 1 and 16", g.Concurrency)
	}
	if g.NodeBudget < 1 {
		add("generation.node_budget", "%d must be at least 1", g.NodeBudget)
	}
	if g.MaxAttempts < 1 {
		add("generation.max_attempts", "%d must be at least 1", g.MaxAttempts)
	}
	if g.PollIntervalMs < 1 {
		add("generation.poll_interval_ms", "%d must be at least 1", g.PollIntervalMs)
	}

	// Transport
	t := c.Transport
	switch t.Mode {
	case ModeDirect:
		if err := checkURL(t.BaseURL, "http", "https"); err != nil {
			add("transport.base_url", "%v", err)
		}
	case ModeRelay:
		if err := checkURL(t.RelayURL, "ws", "wss", "http", "https"); err != nil {
			add("transport.relay_url", "%v", err)
		}
	default:
		add("transport.mode", "invalid mode '%s', must be one of: %s, %s", t.Mode, ModeDirect, ModeRelay)
	}
	if t.TimeoutSecs < 1 {
		add("transport.timeout_secs", "%d must be at least 1", t.TimeoutSecs)
	}

	// Storage
	if !slices.Contains(storage.Backends(), c.Storage.Backend) {
		add("storage.backend", "invalid backend '%s', must be one of: %s", c.Storage.Backend, strings.Join(storage.Backends(), ", "))
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		add("storage.path", "must not be empty")
	}
	if c.Storage.AutosaveSecs < 0 {
		add("storage.autosave_secs", "%d must not be negative", c.Storage.AutosaveSecs)
	}
	if c.Storage.MaxTrees < 0 {
		add("storage.max_trees", "%d must not be negative", c.Storage.MaxTrees)
	}

	// Relay
	if c.Relay.Addr == "" {
		add("relay.addr", "must not be empty")
	}
	if c.Relay.DailyQuota < 1 {
		add("relay.daily_quota", "%d must be at least 1", c.Relay.DailyQuota)
	}
	if c.Relay.MaxTokens < 1 {
		add("relay.max_tokens", "%d must be at least 1", c.Relay.MaxTokens)
	}
	if err := checkURL(c.Relay.ProviderBaseURL, "http", "https"); err != nil {
		add("relay.provider_base_url", "%v", err)
	}

	// UI
	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}

	// Logging
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", "%v", err)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if !slices.Contains(schemes, u.Scheme) {
		return fmt.Errorf("scheme must be one of: %s", strings.Join(schemes, ", "))
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - WHYTREE_API_KEY: transport.api_key (OPENAI_API_KEY is used when unset)
//   - WHYTREE_MODEL: generation.model
//   - WHYTREE_PERSONA: generation.persona
//   - WHYTREE_RELAY_URL: transport.relay_url, and switches to relay mode
//   - WHYTREE_STORAGE_BACKEND: storage.backend
//   - WHYTREE_RELAY_PROVIDER_KEY: relay.provider_api_key
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("WHYTREE_API_KEY"); key != "" {
		c.Transport.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Transport.APIKey == "" {
		c.Transport.APIKey = key
	}

	if model := os.Getenv("WHYTREE_MODEL"); model != "" {
		c.Generation.Model = model
	}

	if p := os.Getenv("WHYTREE_PERSONA"); p != "" {
		c.Generation.Persona = p
	}

	if relayURL := os.Getenv("WHYTREE_RELAY_URL"); relayURL != "" {
		c.Transport.RelayURL = relayURL
		c.Transport.Mode = ModeRelay
	}

	if backend := os.Getenv("WHYTREE_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}

	if key := os.Getenv("WHYTREE_RELAY_PROVIDER_KEY"); key != "" {
		c.Relay.ProviderAPIKey = key
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g.,
// "generation.node_budget").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// parsed into the field's type.
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
				return reflect.Value{}, fmt.Errorf("field '%s' is a section", key)
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

// normalizeFieldName converts snake_case or kebab-case to a Go field name.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		result.WriteString(strings.ToUpper(part[:1]))
		result.WriteString(part[1:])
	}
	return result.String()
}

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
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			lower := strings.ToLower(strVal)
			field.SetBool(lower == "1" || lower == "true" || lower == "yes")
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, s := range strings.Split(strVal, ",") {
					if s = strings.TrimSpace(s); s != "" {
						items = append(items, s)
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
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every settable dot-notation key.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		name := tomlName(section)
		if section.Type.Kind() != reflect.Struct {
			keys = append(keys, name)
			continue
		}
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, name+"."+tomlName(section.Type.Field(j)))
		}
	}
	return keys
}

func tomlName(f reflect.StructField) string {
	if tag, _, _ := strings.Cut(f.Tag.Get("toml"), ","); tag != "" {
		return tag
	}
	return strings.ToLower(f.Name)
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Relay.AllowedModels = slices.Clone(c.Relay.AllowedModels)
	clone.Relay.AllowedOrigins = slices.Clone(c.Relay.AllowedOrigins)
	return &clone
}

// Redacted returns a copy with secrets masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.Transport.APIKey != "" {
		safe.Transport.APIKey = redact(safe.Transport.APIKey)
	}
	if safe.Relay.ProviderAPIKey != "" {
		safe.Relay.ProviderAPIKey = redact(safe.Relay.ProviderAPIKey)
	}
	return safe
}

func redact(key string) string {
	if len(key) <= 8 {
		return "[REDACTED]"
	}
	return key[:3] + "..." + key[len(key)-4:]
}

// String returns the redacted configuration as JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// TOML returns the redacted configuration as TOML.
func (c *Config) TOML() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c.Redacted()); err != nil {
		return "", err
	}
	return buf.String(), nil
}
