package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	secretService          = "promptlab"
	secretAccountAPIKey    = "api_key"
	secretAccountServerTok = "server_token"
)

func secretsFilePath() string {
	return filepath.Join(dataHome(), "promptlab", "secrets.json")
}

func secretGet(service, account string) ([]byte, error) {
	data, err := os.ReadFile(secretsFilePath())
	if err != nil {
		return nil, fmt.Errorf("secrets file not available: %w", err)
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	svc, ok := secrets[service]
	if !ok {
		return nil, fmt.Errorf("service %q not found", service)
	}
	val, ok := svc[account]
	if !ok {
		return nil, fmt.Errorf("account %q not found in service %q", account, service)
	}
	return []byte(val), nil
}

func secretSet(service, account, value string) error {
	p := secretsFilePath()

	var secrets map[string]map[string]string

	data, err := os.ReadFile(p)
	if err == nil {
		_ = json.Unmarshal(data, &secrets)
	}
	if secrets == nil {
		secrets = make(map[string]map[string]string)
	}
	if secrets[service] == nil {
		secrets[service] = make(map[string]string)
	}
	secrets[service][account] = value

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, out, 0o600)
}

// SetAPIKey stores the generation API key in the local secrets file.
func SetAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("api key must not be empty")
	}
	return secretSet(secretService, secretAccountAPIKey, key)
}

// ServerToken returns the bearer token guarding the local HTTP API. The
// configured value wins; otherwise a random token is generated once and
// kept in the secrets file.
func ServerToken(cfg Config) (string, error) {
	if cfg.Server.Token != "" {
		return cfg.Server.Token, nil
	}
	if tok, err := secretGet(secretService, secretAccountServerTok); err == nil && len(tok) > 0 {
		return string(tok), nil
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating server token: %w", err)
	}
	tok := hex.EncodeToString(buf)
	if err := secretSet(secretService, secretAccountServerTok, tok); err != nil {
		return "", fmt.Errorf("storing server token: %w", err)
	}
	return tok, nil
}
