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
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/HyugaDev/batch-query-chatbot/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete imagechat configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" json:"server"`
	Provider ProviderConfig `toml:"provider" json:"provider"`
	Cloud    CloudConfig    `toml:"cloud" json:"cloud"`
	Local    LocalConfig    `toml:"local" json:"local"`
	Client   ClientConfig   `toml:"client" json:"client"`
}

// ServerConfig controls the analysis HTTP server.
type ServerConfig struct {
	Host string `toml:"host" json:"host"`
	Port int    `toml:"port" json:"port"`

	// RateLimitPerMinute is the sustained request rate allowed per client
	// IP. 0 disables limiting.
	RateLimitPerMinute int `toml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
	RateLimitBurst     int `toml:"rate_limit_burst" json:"rate_limit_burst"`

	// AllowedOrigins lists browser origins allowed by CORS.
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`
}

// ProviderConfig selects the vision model behind the server.
type ProviderConfig struct {
	// Name is "openrouter" or "ollama".
	Name string `toml:"name" json:"name"`
	// Model overrides the provider's default model when set.
	Model       string `toml:"model" json:"model"`
	MaxTokens   int    `toml:"max_tokens" json:"max_tokens"`
	TimeoutSecs int    `toml:"timeout_secs" json:"timeout_secs"`
}

// CloudConfig contains OpenRouter settings.
type CloudConfig struct {
	OpenRouterKey string `toml:"openrouter_key" json:"openrouter_key"`
	BaseURL       string `toml:"base_url" json:"base_url"`
}

// LocalConfig contains local Ollama settings.
type LocalConfig struct {
	OllamaURL   string `toml:"ollama_url" json:"ollama_url"`
	OllamaModel string `toml:"ollama_model" json:"ollama_model"`
}

// ClientConfig controls the chat clients (TUI, REPL, ask).
type ClientConfig struct {
	// Endpoint is the base URL of the analysis server.
	Endpoint    string `toml:"endpoint" json:"endpoint"`
	TimeoutSecs int    `toml:"timeout_secs" json:"timeout_secs"`
	// WatchDir, when set, is a drop folder: images created there are
	// attached automatically.
	WatchDir string `toml:"watch_dir" json:"watch_dir"`
	// LogFile receives log output while the TUI owns the terminal.
	LogFile string `toml:"log_file" json:"log_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "127.0.0.1",
			Port:               8787,
			RateLimitPerMinute: 60,
			RateLimitBurst:     10,
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5173",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:5173",
			},
		},
		Provider: ProviderConfig{
			Name:        "openrouter",
			Model:       "",
			MaxTokens:   1000,
			TimeoutSecs: 60,
		},
		Cloud: CloudConfig{
			BaseURL: "https://openrouter.ai/api/v1",
		},
		Local: LocalConfig{
			OllamaURL:   "http://127.0.0.1:11434",
			OllamaModel: "llava:13b",
		},
		Client: ClientConfig{
			Endpoint:    "http://127.0.0.1:8787",
			TimeoutSecs: 120,
		},
	}
}

// ProviderTimeout returns provider.timeout_secs as a duration.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSecs) * time.Second
}

// ClientTimeout returns client.timeout_secs as a duration.
func (c *Config) ClientTimeout() time.Duration {
	return time.Duration(c.Client.TimeoutSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the imagechat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".imagechat"), nil
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

// LoadDotEnv loads KEY=value pairs from a .env file in the working
// directory into the process environment. Variables already set win. A
// missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load %s: %w", strings.Join(existing, ", "), err)
	}
	return nil
}

// Load reads ~/.imagechat/config.toml, falling back to config.json and
// then to defaults. Environment overrides are applied last.
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

// LoadFromPath loads configuration from a specific file. Files ending in
// .json are read as JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	load := LoadTOML
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		load = LoadJSON
	}
	if err := load(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func LoadTOML(cfg *Config, path string) error {
	warnInsecurePermissions(path)

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	warnInsecurePermissions(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// warnInsecurePermissions tightens a config file that others can read. The
// file may hold an API key.
func warnInsecurePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil || info.Mode().Perm()&0077 == 0 {
		return
	}
	if err := os.Chmod(path, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s is readable by other users and could not be fixed: %v\n", path, err)
	}
}

// fillDefaults replaces zero values the file left out.
func fillDefaults(cfg *Config) {
	d := Default()

	if cfg.Server.Host == "" {
		cfg.Server.Host = d.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = d.Server.RateLimitBurst
	}

	if cfg.Provider.Name == "" {
		cfg.Provider.Name = d.Provider.Name
	}
	if cfg.Provider.MaxTokens == 0 {
		cfg.Provider.MaxTokens = d.Provider.MaxTokens
	}
	if cfg.Provider.TimeoutSecs == 0 {
		cfg.Provider.TimeoutSecs = d.Provider.TimeoutSecs
	}

	if cfg.Cloud.BaseURL == "" {
		cfg.Cloud.BaseURL = d.Cloud.BaseURL
	}

	if cfg.Local.OllamaURL == "" {
		cfg.Local.OllamaURL = d.Local.OllamaURL
	}
	if cfg.Local.OllamaModel == "" {
		cfg.Local.OllamaModel = d.Local.OllamaModel
	}

	if cfg.Client.Endpoint == "" {
		cfg.Client.Endpoint = d.Client.Endpoint
	}
	if cfg.Client.TimeoutSecs == 0 {
		cfg.Client.TimeoutSecs = d.Client.TimeoutSecs
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

const fileHeader = `# imagechat configuration file
#
# The OpenRouter key can also come from OPENROUTER_API_KEY or a .env file
# in the working directory. IMAGECHAT_* variables override this file.

`

// Save writes cfg to the default TOML path.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path atomically with mode 0600.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg to path as indented JSON, atomically with mode 0600.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
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

// Validate returns ValidateErrors listing every invalid field, or nil.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", "must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitPerMinute < 0 {
		add("server.rate_limit_per_minute", "cannot be negative")
	}
	if c.Server.RateLimitBurst < 1 {
		add("server.rate_limit_burst", "must be at least 1, got %d", c.Server.RateLimitBurst)
	}
	for _, origin := range c.Server.AllowedOrigins {
		if origin == "*" || strings.HasPrefix(origin, "*.") {
			continue
		}
		if err := checkHTTPURL(origin); err != nil {
			add("server.allowed_origins", "%q: %v", origin, err)
		}
	}

	// Provider
	switch strings.ToLower(c.Provider.Name) {
	case "openrouter", "ollama":
	default:
		add("provider.name", "invalid provider '%s', must be one of: openrouter, ollama", c.Provider.Name)
	}
	if c.Provider.MaxTokens < 1 || c.Provider.MaxTokens > 32000 {
		add("provider.max_tokens", "must be 1-32000, got %d", c.Provider.MaxTokens)
	}
	if c.Provider.TimeoutSecs < 1 {
		add("provider.timeout_secs", "must be at least 1, got %d", c.Provider.TimeoutSecs)
	}

	// Endpoints
	for field, raw := range map[string]string{
		"cloud.base_url":   c.Cloud.BaseURL,
		"local.ollama_url": c.Local.OllamaURL,
		"client.endpoint":  c.Client.Endpoint,
	} {
		if err := checkHTTPURL(raw); err != nil {
			add(field, "%v", err)
		}
	}

	if c.Client.TimeoutSecs < 1 {
		add("client.timeout_secs", "must be at least 1, got %d", c.Client.TimeoutSecs)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - OPENROUTER_API_KEY: cloud.openrouter_key
//   - IMAGECHAT_OPENROUTER_KEY: cloud.openrouter_key (wins over the above)
//   - IMAGECHAT_PROVIDER: provider.name
//   - IMAGECHAT_MODEL: provider.model
//   - IMAGECHAT_HOST, IMAGECHAT_PORT: server.host, server.port
//   - IMAGECHAT_OLLAMA_URL: local.ollama_url
//   - IMAGECHAT_ENDPOINT: client.endpoint
//   - IMAGECHAT_WATCH_DIR: client.watch_dir
//   - IMAGECHAT_LOG_FILE: client.log_file
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.Cloud.OpenRouterKey = key
	}
	if key := os.Getenv("IMAGECHAT_OPENROUTER_KEY"); key != "" {
		c.Cloud.OpenRouterKey = key
	}

	if v := os.Getenv("IMAGECHAT_PROVIDER"); v != "" {
		c.Provider.Name = strings.ToLower(v)
	}
	if v := os.Getenv("IMAGECHAT_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("IMAGECHAT_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("IMAGECHAT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		} else {
			fmt.Fprintf(os.Stderr, "Warning: ignoring IMAGECHAT_PORT=%q: not a number\n", v)
		}
	}
	if v := os.Getenv("IMAGECHAT_OLLAMA_URL"); v != "" {
		c.Local.OllamaURL = v
	}
	if v := os.Getenv("IMAGECHAT_ENDPOINT"); v != "" {
		c.Client.Endpoint = v
	}
	if v := os.Getenv("IMAGECHAT_WATCH_DIR"); v != "" {
		c.Client.WatchDir = v
	}
	if v := os.Getenv("IMAGECHAT_LOG_FILE"); v != "" {
		c.Client.LogFile = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		prefix := section.Tag.Get("toml")
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, prefix+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// Get returns the value at key, for example "server.port".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set parses value into the field at key. Lists take comma-separated
// values.
func (c *Config) Set(key, value string) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: invalid integer value %q", key, value)
		}
		field.SetInt(int64(n))
	case reflect.Slice:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("%s: unsupported type %s", key, field.Type())
	}
	return nil
}

// lookup resolves a section.field key by TOML tag.
func (c *Config) lookup(key string) (reflect.Value, error) {
	section, name, ok := strings.Cut(strings.ToLower(strings.TrimSpace(key)), ".")
	if !ok || section == "" || name == "" {
		return reflect.Value{}, fmt.Errorf("invalid key %q: want section.field", key)
	}

	v := reflect.ValueOf(c).Elem()
	sv, ok := fieldByTag(v, section)
	if !ok {
		return reflect.Value{}, fmt.Errorf("unknown section: %s", section)
	}
	fv, ok := fieldByTag(sv, name)
	if !ok {
		return reflect.Value{}, fmt.Errorf("unknown field: %s", key)
	}
	return fv, nil
}

func fieldByTag(v reflect.Value, tag string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == tag {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// =============================================================================
// DISPLAY
// =============================================================================

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	return &clone
}

// Redacted returns a copy with the API key masked.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.Cloud.OpenRouterKey != "" {
		safe.Cloud.OpenRouterKey = "[REDACTED]"
	}
	return safe
}

// TOML renders the redacted configuration as TOML.
func (c *Config) TOML() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c.Redacted()); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.String(), nil
}

// String returns the redacted configuration as JSON, safe for logs.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// ErrConfigExists is returned by Init when a config file is already present.
var ErrConfigExists = errors.New("config file already exists")

// Init writes the default configuration to path unless a file exists
// there and force is false.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s: %w", path, ErrConfigExists)
	}
	return SaveTOML(Default(), path)
}
