// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// clearEnv blanks every variable ApplyEnvOverrides reads so the host
// environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"OPENROUTER_API_KEY", "IMAGECHAT_OPENROUTER_KEY", "IMAGECHAT_PROVIDER",
		"IMAGECHAT_MODEL", "IMAGECHAT_HOST", "IMAGECHAT_PORT", "IMAGECHAT_OLLAMA_URL",
		"IMAGECHAT_ENDPOINT", "IMAGECHAT_WATCH_DIR", "IMAGECHAT_LOG_FILE",
	} {
		t.Setenv(name, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("Server.Port = %d, want 8787", cfg.Server.Port)
	}
	if cfg.Provider.MaxTokens != 1000 {
		t.Errorf("Provider.MaxTokens = %d, want 1000", cfg.Provider.MaxTokens)
	}
	if cfg.ClientTimeout().Seconds() != 120 {
		t.Errorf("ClientTimeout() = %v, want 120s", cfg.ClientTimeout())
	}
	if cfg.ProviderTimeout().Seconds() != 60 {
		t.Errorf("ProviderTimeout() = %v, want 60s", cfg.ProviderTimeout())
	}
}

// =============================================================================
// LOADING
// =============================================================================

func TestLoadFromPath_TOML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", `
[server]
port = 9000

[provider]
name = "ollama"

[local]
ollama_model = "llava:7b"
`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Provider.Name != "ollama" {
		t.Errorf("Provider.Name = %q, want ollama", cfg.Provider.Name)
	}
	if cfg.Local.OllamaModel != "llava:7b" {
		t.Errorf("Local.OllamaModel = %q", cfg.Local.OllamaModel)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Client.TimeoutSecs != 120 {
		t.Error("omitted keys should keep their defaults")
	}
}

func TestLoadFromPath_JSON(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{"provider": {"name": "openrouter", "max_tokens": 500}}`)

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Provider.MaxTokens != 500 {
		t.Errorf("Provider.MaxTokens = %d, want 500", cfg.Provider.MaxTokens)
	}
}

func TestLoadFromPath_UnknownKey(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", "[server]\nprot = 9000\n")

	_, err := LoadFromPath(path)
	if err == nil || !strings.Contains(err.Error(), "server.prot") {
		t.Errorf("LoadFromPath() error = %v, want unknown key server.prot", err)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", "[provider]\nname = \"gemini\"\n")

	_, err := LoadFromPath(path)
	var verrs ValidateErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("LoadFromPath() error = %v, want ValidateErrors", err)
	}
	if verrs[0].Field != "provider.name" {
		t.Errorf("Field = %q, want provider.name", verrs[0].Field)
	}
}

func TestLoadFromPath_TightensPermissions(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.toml", "")
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFromPath(path); err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0077 != 0 {
		t.Errorf("mode = %o, want group/other bits cleared", info.Mode().Perm())
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", os.Getenv("HOME"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != Default().Server.Port {
		t.Errorf("Server.Port = %d, want default", cfg.Server.Port)
	}
}

// =============================================================================
// ENVIRONMENT
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-or-env")
	t.Setenv("IMAGECHAT_PROVIDER", "OLLAMA")
	t.Setenv("IMAGECHAT_PORT", "9100")
	t.Setenv("IMAGECHAT_ENDPOINT", "http://10.0.0.5:9100")
	t.Setenv("IMAGECHAT_WATCH_DIR", "/tmp/drop")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Cloud.OpenRouterKey != "sk-or-env" {
		t.Errorf("OpenRouterKey = %q", cfg.Cloud.OpenRouterKey)
	}
	if cfg.Provider.Name != "ollama" {
		t.Errorf("Provider.Name = %q, want ollama", cfg.Provider.Name)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Client.Endpoint != "http://10.0.0.5:9100" {
		t.Errorf("Client.Endpoint = %q", cfg.Client.Endpoint)
	}
	if cfg.Client.WatchDir != "/tmp/drop" {
		t.Errorf("Client.WatchDir = %q", cfg.Client.WatchDir)
	}
}

func TestApplyEnvOverrides_PrefixedKeyWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-or-generic")
	t.Setenv("IMAGECHAT_OPENROUTER_KEY", "sk-or-specific")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if cfg.Cloud.OpenRouterKey != "sk-or-specific" {
		t.Errorf("OpenRouterKey = %q, want sk-or-specific", cfg.Cloud.OpenRouterKey)
	}
}

func TestApplyEnvOverrides_BadPortIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("IMAGECHAT_PORT", "eighty")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if cfg.Server.Port != 8787 {
		t.Errorf("Server.Port = %d, want 8787", cfg.Server.Port)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, ".env", "OPENROUTER_API_KEY=sk-or-dotenv\n")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("OPENROUTER_API_KEY"); got != "" {
		// t.Setenv("", ...) marks the variable as set, so godotenv keeps it.
		t.Errorf("existing variable overwritten: %q", got)
	}

	os.Unsetenv("OPENROUTER_API_KEY")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("OPENROUTER_API_KEY"); got != "sk-or-dotenv" {
		t.Errorf("OPENROUTER_API_KEY = %q, want sk-or-dotenv", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("LoadDotEnv() on missing file = %v, want nil", err)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too big", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"negative rate", func(c *Config) { c.Server.RateLimitPerMinute = -1 }, "server.rate_limit_per_minute"},
		{"zero burst", func(c *Config) { c.Server.RateLimitBurst = 0 }, "server.rate_limit_burst"},
		{"bad origin", func(c *Config) { c.Server.AllowedOrigins = []string{"localhost:3000"} }, "server.allowed_origins"},
		{"provider", func(c *Config) { c.Provider.Name = "gemini" }, "provider.name"},
		{"max tokens", func(c *Config) { c.Provider.MaxTokens = 0 }, "provider.max_tokens"},
		{"provider timeout", func(c *Config) { c.Provider.TimeoutSecs = 0 }, "provider.timeout_secs"},
		{"ollama url", func(c *Config) { c.Local.OllamaURL = "ftp://x" }, "local.ollama_url"},
		{"endpoint", func(c *Config) { c.Client.Endpoint = "http://" }, "client.endpoint"},
		{"client timeout", func(c *Config) { c.Client.TimeoutSecs = -5 }, "client.timeout_secs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			var verrs ValidateErrors
			if !errors.As(cfg.Validate(), &verrs) {
				t.Fatal("Validate() should fail")
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not mention %s", verrs, tt.field)
			}
		})
	}
}

func TestValidate_WildcardOrigins(t *testing.T) {
	cfg := Default()
	cfg.Server.AllowedOrigins = []string{"*", "*.example.com"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestValidateErrors_Error(t *testing.T) {
	errs := ValidateErrors{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}
	if got := errs.Error(); got != "a: bad; b: worse" {
		t.Errorf("Error() = %q", got)
	}
}

// =============================================================================
// SAVE / INIT
// =============================================================================

func TestSaveTOML_RoundTripAndMode(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Server.Port = 9999
	cfg.Client.WatchDir = "/tmp/drop"
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %o, want 600", info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if loaded.Server.Port != 9999 || loaded.Client.WatchDir != "/tmp/drop" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Init(path, false); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := Init(path, false); !errors.Is(err, ErrConfigExists) {
		t.Errorf("second Init() error = %v, want ErrConfigExists", err)
	}
	if err := Init(path, true); err != nil {
		t.Errorf("forced Init() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "# imagechat configuration file") {
		t.Error("file header missing")
	}
}

// =============================================================================
// GET / SET / DISPLAY
// =============================================================================

func TestGetSet(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("server.port", "9001"); err != nil {
		t.Fatalf("Set(server.port) error = %v", err)
	}
	if v, _ := cfg.Get("server.port"); v != 9001 {
		t.Errorf("Get(server.port) = %v, want 9001", v)
	}

	if err := cfg.Set("local.ollama_model", "llava:34b"); err != nil {
		t.Fatal(err)
	}
	if cfg.Local.OllamaModel != "llava:34b" {
		t.Errorf("OllamaModel = %q", cfg.Local.OllamaModel)
	}

	if err := cfg.Set("server.allowed_origins", "http://a.test, http://b.test"); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}

	if err := cfg.Set("server.port", "abc"); err == nil {
		t.Error("Set with a non-number should fail")
	}
	for _, bad := range []string{"nope.port", "server.nope", "server", ""} {
		if _, err := cfg.Get(bad); err == nil {
			t.Errorf("Get(%q) should fail", bad)
		}
	}
}

func TestGetAllKeys(t *testing.T) {
	keys := GetAllKeys()
	cfg := Default()
	for _, k := range keys {
		if _, err := cfg.Get(k); err != nil {
			t.Errorf("Get(%q) error = %v", k, err)
		}
	}
	if len(keys) != 17 {
		t.Errorf("len(GetAllKeys()) = %d, want 17", len(keys))
	}
}

func TestRedaction(t *testing.T) {
	cfg := Default()
	cfg.Cloud.OpenRouterKey = "sk-or-v1-supersecret"

	if strings.Contains(cfg.String(), "supersecret") {
		t.Error("String() leaks the API key")
	}
	out, err := cfg.TOML()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "supersecret") || !strings.Contains(out, "[REDACTED]") {
		t.Errorf("TOML() = %s", out)
	}
	if cfg.Cloud.OpenRouterKey != "sk-or-v1-supersecret" {
		t.Error("redaction mutated the original")
	}
}

func TestClone_Independent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Server.AllowedOrigins[0] = "http://changed"
	if cfg.Server.AllowedOrigins[0] == "http://changed" {
		t.Error("Clone shares AllowedOrigins")
	}
}
