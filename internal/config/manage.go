package config

import (
	"fmt"
	"os"
	"slices"
)

// KeyInfo is one row of `promptlab config show`.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
	// Overridden is set when the environment variable is what the
	// current value came from.
	Overridden bool
}

// ShowAll lists every non-secret key with its effective value.
func ShowAll(cfg Config) []KeyInfo {
	rows := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		if s.secret {
			continue
		}
		rows = append(rows, KeyInfo{
			Key:        s.key,
			EnvVar:     s.env,
			Value:      fmt.Sprint(s.extract(cfg)),
			Overridden: os.Getenv(s.env) != "",
		})
	}
	return rows
}

// SetKey validates value for key and writes it to the config file. It
// returns the value as stored, which may be normalized (for example a
// lower-cased provider name).
func SetKey(key, value string) (string, error) {
	return setKeyIn(newPlatformBackend(), key, value)
}

func setKeyIn(b ConfigBackend, key, value string) (string, error) {
	i := slices.IndexFunc(specs, func(s keySpec) bool { return s.key == key })
	if i < 0 {
		return "", fmt.Errorf("unknown config key: %q (valid keys: %v)", key, ValidKeys())
	}
	s := specs[i]
	if s.secret {
		return "", fmt.Errorf("cannot set secret %q via config; use environment variable %s or `promptlab config set-key`", key, s.env)
	}

	v, err := s.parse(value)
	if err != nil {
		return "", err
	}
	if s.check != nil {
		if err := s.check(v); err != nil {
			return "", fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}

	switch v := v.(type) {
	case int:
		err = b.SetInt(key, v)
	case string:
		err = b.SetString(key, v)
	}
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", key, err)
	}
	return fmt.Sprint(v), nil
}

// ValidKeys returns the names `config set` accepts.
func ValidKeys() []string {
	var keys []string
	for _, s := range specs {
		if !s.secret {
			keys = append(keys, s.key)
		}
	}
	return keys
}
