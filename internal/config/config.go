package config

import (
	"strings"
	"time"
)

type Config struct {
	Generation GenerationConfig
	Storage    StorageConfig
	Server     ServerConfig
	Log        LogConfig
}

// GenerationConfig selects the generation backend. An empty Model means the
// provider's default model.
type GenerationConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  string
}

type StorageConfig struct {
	DataDir string
	Backend string
	Cap     int
}

type ServerConfig struct {
	Port  int
	Token string
}

type LogConfig struct {
	Level string
}

const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderOllama     = "ollama"

	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

func defaults() Config {
	return Config{
		Generation: GenerationConfig{
			Provider: ProviderOpenRouter,
			Timeout:  "60s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			Backend: BackendFile,
			Cap:     50,
		},
		Server: ServerConfig{
			Port: 4100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend, environment
// variables, and the local secrets file.
//
// The backend is a JSON file at $XDG_CONFIG_HOME/promptlab/config.json.
// Environment variables (PROMPTLAB_*) override file values. The generation
// API key falls back to $XDG_DATA_HOME/promptlab/secrets.json when neither
// the file nor the environment provide it.
//
// A missing API key is not an error here: generation reports it when it is
// actually needed.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), secretsReader{})
}

// secretStore abstracts secret lookup for testing.
type secretStore interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, ss secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Generation.APIKey == "" {
		if key, err := ss.Get(secretService, secretAccountAPIKey); err == nil && key != "" {
			cfg.Generation.APIKey = key
		}
	}

	cfg.Generation.Provider = strings.ToLower(strings.TrimSpace(cfg.Generation.Provider))
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))

	return cfg, nil
}

// GenerationTimeout parses Generation.Timeout, falling back to 60s.
func (c Config) GenerationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Generation.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// secretsReader reads from the local secrets file.
type secretsReader struct{}

func (secretsReader) Get(service, account string) (string, error) {
	out, err := secretGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
