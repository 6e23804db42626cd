package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mockSecrets is a test double for the secretStore interface.
type mockSecrets struct {
	value string
	err   error
}

func (m mockSecrets) Get(service, account string) (string, error) {
	return m.value, m.err
}

func writeTempConfig(t *testing.T, content string) *fileBackend {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return newFileBackend(path)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{}`)

	cfg, err := loadWith(b, mockSecrets{err: errors.New("none")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Generation.Provider != ProviderOpenRouter {
		t.Errorf("Generation.Provider = %q, want %q", cfg.Generation.Provider, ProviderOpenRouter)
	}
	if cfg.Generation.Model != "" {
		t.Errorf("Generation.Model = %q, want empty (provider default)", cfg.Generation.Model)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendFile)
	}
	if cfg.Storage.Cap != 50 {
		t.Errorf("Storage.Cap = %d, want 50", cfg.Storage.Cap)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.GenerationTimeout() != 60*time.Second {
		t.Errorf("GenerationTimeout() = %v, want 60s", cfg.GenerationTimeout())
	}
}

// TestMissingAPIKeyIsNotAnError verifies loading succeeds without any credential.
func TestMissingAPIKeyIsNotAnError(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{}`)

	cfg, err := loadWith(b, mockSecrets{err: errors.New("none")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Generation.APIKey != "" {
		t.Errorf("Generation.APIKey = %q, want empty", cfg.Generation.APIKey)
	}
}

// TestFileValues verifies that keys are read from the JSON backend.
func TestFileValues(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{
  "generation.provider": "Ollama",
  "generation.model": "llama3.2",
  "generation.base_url": "http://custom:11434",
  "storage.data_dir": "/tmp/promptlab-test",
  "storage.backend": "sqlite",
  "storage.cap": 10,
  "server.port": 5000,
  "log.level": "debug"
}`)

	cfg, err := loadWith(b, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Generation.Provider != ProviderOllama {
		t.Errorf("Generation.Provider = %q, want %q", cfg.Generation.Provider, ProviderOllama)
	}
	if cfg.Generation.Model != "llama3.2" {
		t.Errorf("Generation.Model = %q", cfg.Generation.Model)
	}
	if cfg.Generation.BaseURL != "http://custom:11434" {
		t.Errorf("Generation.BaseURL = %q", cfg.Generation.BaseURL)
	}
	if cfg.Storage.DataDir != "/tmp/promptlab-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Storage.Backend = %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Cap != 10 {
		t.Errorf("Storage.Cap = %d, want 10", cfg.Storage.Cap)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

// TestSecretsIgnoredInFile verifies secret keys are never read from the plain config file.
func TestSecretsIgnoredInFile(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{"generation.api_key": "leaked"}`)

	cfg, err := loadWith(b, mockSecrets{err: errors.New("none")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Generation.APIKey != "" {
		t.Errorf("Generation.APIKey = %q, want empty", cfg.Generation.APIKey)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{"generation.model": "file-model", "server.port": 5000}`)

	t.Setenv("PROMPTLAB_API_KEY", "env-key")
	t.Setenv("PROMPTLAB_MODEL", "env-model")
	t.Setenv("PROMPTLAB_SERVER_PORT", "6000")

	cfg, err := loadWith(b, mockSecrets{value: "file-secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Generation.APIKey != "env-key" {
		t.Errorf("Generation.APIKey = %q, want %q", cfg.Generation.APIKey, "env-key")
	}
	if cfg.Generation.Model != "env-model" {
		t.Errorf("Generation.Model = %q, want %q", cfg.Generation.Model, "env-model")
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
}

// TestInvalidIntEnvIgnored verifies an unparsable integer env var keeps the prior value.
func TestInvalidIntEnvIgnored(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{}`)
	t.Setenv("PROMPTLAB_STORAGE_CAP", "lots")

	cfg, err := loadWith(b, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.Cap != 50 {
		t.Errorf("Storage.Cap = %d, want 50", cfg.Storage.Cap)
	}
}

// TestInvalidIntInFile verifies a non-integer value in the file is a load error.
func TestInvalidIntInFile(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{"storage.cap": 1.5}`)

	if _, err := loadWith(b, mockSecrets{}); err == nil {
		t.Fatal("expected error for fractional storage.cap, got nil")
	}
}

// TestSecretsFallback verifies the secrets file is consulted when no API key is in env.
func TestSecretsFallback(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{}`)

	cfg, err := loadWith(b, mockSecrets{value: "stored-secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Generation.APIKey != "stored-secret" {
		t.Errorf("Generation.APIKey = %q, want %q", cfg.Generation.APIKey, "stored-secret")
	}
}

func TestSetKey(t *testing.T) {
	b := writeTempConfig(t, `{}`)

	if _, err := setKeyIn(b, "storage.cap", "25"); err != nil {
		t.Fatalf("setKeyIn(storage.cap): %v", err)
	}
	if _, err := setKeyIn(b, "generation.model", "openai/gpt-4o-mini"); err != nil {
		t.Fatalf("setKeyIn(generation.model): %v", err)
	}

	reloaded := newFileBackend(b.path)
	if v, ok, err := reloaded.GetInt("storage.cap"); err != nil || !ok || v != 25 {
		t.Errorf("storage.cap = %d (ok=%v, err=%v), want 25", v, ok, err)
	}
	if v, ok, _ := reloaded.GetString("generation.model"); !ok || v != "openai/gpt-4o-mini" {
		t.Errorf("generation.model = %q, want openai/gpt-4o-mini", v)
	}
}

func TestSetKey_Rejections(t *testing.T) {
	b := writeTempConfig(t, `{}`)

	_, err := setKeyIn(b, "generation.api_key", "nope")
	if err == nil || !strings.Contains(err.Error(), "cannot set secret") {
		t.Errorf("secret key error = %v, want 'cannot set secret'", err)
	}

	_, err = setKeyIn(b, "no.such.key", "x")
	if err == nil || !strings.Contains(err.Error(), "unknown config key") {
		t.Errorf("unknown key error = %v, want 'unknown config key'", err)
	}

	if _, err := setKeyIn(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer server.port")
	}
}

func TestSetKey_ValidatesValues(t *testing.T) {
	b := writeTempConfig(t, `{}`)

	bad := []struct{ key, value string }{
		{"generation.provider", "gemini"},
		{"generation.base_url", "localhost:11434"},
		{"generation.timeout", "soon"},
		{"generation.timeout", "-5s"},
		{"storage.backend", "postgres"},
		{"storage.cap", "0"},
		{"server.port", "70000"},
		{"log.level", "verbose"},
	}
	for _, tc := range bad {
		if _, err := setKeyIn(b, tc.key, tc.value); err == nil {
			t.Errorf("setKeyIn(%s, %q) = nil error, want rejection", tc.key, tc.value)
		}
	}

	if _, ok, _ := newFileBackend(b.path).GetString("generation.provider"); ok {
		t.Error("rejected value was written to the config file")
	}
}

func TestSetKey_NormalizesValues(t *testing.T) {
	b := writeTempConfig(t, `{}`)

	stored, err := setKeyIn(b, "generation.provider", "  Ollama ")
	if err != nil {
		t.Fatalf("setKeyIn(generation.provider): %v", err)
	}
	if stored != "ollama" {
		t.Errorf("stored = %q, want ollama", stored)
	}
	if v, _, _ := newFileBackend(b.path).GetString("generation.provider"); v != "ollama" {
		t.Errorf("file value = %q, want ollama", v)
	}
}

func TestEnvOverride_BadIntIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROMPTLAB_STORAGE_CAP", "lots")
	b := writeTempConfig(t, `{"storage.cap": 30}`)

	cfg, err := loadWith(b, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.Cap != 30 {
		t.Errorf("Storage.Cap = %d, want file value 30", cfg.Storage.Cap)
	}
}

func TestShowAll_MarksEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROMPTLAB_MODEL", "llama3.2")

	cfg := defaults()
	cfg.Generation.Model = "llama3.2"
	for _, k := range ShowAll(cfg) {
		want := k.Key == "generation.model"
		if k.Overridden != want {
			t.Errorf("%s Overridden = %v, want %v", k.Key, k.Overridden, want)
		}
	}
}

func TestShowAll_HidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Generation.APIKey = "sk-secret"

	for _, k := range ShowAll(cfg) {
		if k.Key == "generation.api_key" || k.Key == "server.token" {
			t.Errorf("ShowAll exposed secret key %q", k.Key)
		}
		if strings.Contains(k.Value, "sk-secret") {
			t.Errorf("ShowAll exposed secret value under %q", k.Key)
		}
	}
}

func TestServerToken_GeneratedOnce(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	first, err := ServerToken(Config{})
	if err != nil {
		t.Fatalf("ServerToken: %v", err)
	}
	if len(first) != 48 {
		t.Errorf("token length = %d, want 48", len(first))
	}

	second, err := ServerToken(Config{})
	if err != nil {
		t.Fatalf("ServerToken: %v", err)
	}
	if first != second {
		t.Errorf("token changed between calls: %q != %q", first, second)
	}

	configured, err := ServerToken(Config{Server: ServerConfig{Token: "fixed"}})
	if err != nil {
		t.Fatalf("ServerToken: %v", err)
	}
	if configured != "fixed" {
		t.Errorf("configured token = %q, want fixed", configured)
	}
}

func TestSetAPIKey_RoundTrip(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if err := SetAPIKey("sk-test"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	got, err := secretsReader{}.Get(secretService, secretAccountAPIKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "sk-test" {
		t.Errorf("api key = %q, want sk-test", got)
	}

	if err := SetAPIKey(""); err == nil {
		t.Error("expected error for empty api key")
	}
}
