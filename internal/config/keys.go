package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key    string
	typ    keyType
	env    string
	secret bool
	// normalize canonicalizes a string value before it is stored.
	normalize func(string) string
	// check rejects values `config set` must not write. Nil accepts anything.
	check   func(v any) error
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func oneOf(allowed ...string) func(any) error {
	return func(v any) error {
		if !slices.Contains(allowed, v.(string)) {
			return fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
		}
		return nil
	}
}

func intRange(lo, hi int) func(any) error {
	return func(v any) error {
		if i := v.(int); i < lo || i > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

func checkBaseURL(v any) error {
	s := v.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL")
	}
	return nil
}

func checkDuration(v any) error {
	d, err := time.ParseDuration(v.(string))
	if err != nil || d <= 0 {
		return fmt.Errorf("must be a positive duration such as 30s or 2m")
	}
	return nil
}

var specs = []keySpec{
	{
		key: "generation.provider", typ: kString, env: "PROMPTLAB_PROVIDER",
		normalize: lower,
		check:     oneOf(ProviderOpenRouter, ProviderOpenAI, ProviderOllama),
		apply:     func(cfg *Config, v any) { cfg.Generation.Provider = v.(string) },
		extract:   func(cfg Config) any { return cfg.Generation.Provider },
	},
	{
		key: "generation.model", typ: kString, env: "PROMPTLAB_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Generation.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.Model },
	},
	{
		key: "generation.base_url", typ: kString, env: "PROMPTLAB_BASE_URL",
		normalize: strings.TrimSpace,
		check:     checkBaseURL,
		apply:     func(cfg *Config, v any) { cfg.Generation.BaseURL = v.(string) },
		extract:   func(cfg Config) any { return cfg.Generation.BaseURL },
	},
	{
		key: "generation.api_key", typ: kString, env: "PROMPTLAB_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Generation.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.APIKey },
	},
	{
		key: "generation.timeout", typ: kString, env: "PROMPTLAB_TIMEOUT",
		check:   checkDuration,
		apply:   func(cfg *Config, v any) { cfg.Generation.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.Timeout },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PROMPTLAB_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.backend", typ: kString, env: "PROMPTLAB_STORAGE_BACKEND",
		normalize: lower,
		check:     oneOf(BackendFile, BackendSQLite),
		apply:     func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract:   func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.cap", typ: kInt, env: "PROMPTLAB_STORAGE_CAP",
		check:   intRange(1, 10000),
		apply:   func(cfg *Config, v any) { cfg.Storage.Cap = v.(int) },
		extract: func(cfg Config) any { return cfg.Storage.Cap },
	},
	{
		key: "server.port", typ: kInt, env: "PROMPTLAB_SERVER_PORT",
		check:   intRange(1, 65535),
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "PROMPTLAB_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "log.level", typ: kString, env: "PROMPTLAB_LOG_LEVEL",
		normalize: lower,
		check:     oneOf("debug", "info", "warn", "error"),
		apply:     func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract:   func(cfg Config) any { return cfg.Log.Level },
	},
}

// parse converts a raw string into the key's type, normalizing strings.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid integer value for %s: %w", s.key, err)
		}
		return i, nil
	default:
		if s.normalize != nil {
			raw = s.normalize(raw)
		}
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		var (
			v   any
			ok  bool
			err error
		)
		if s.typ == kInt {
			v, ok, err = b.GetInt(s.key)
		} else {
			v, ok, err = b.GetString(s.key)
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if ok {
			s.apply(cfg, v)
		}
	}
	return nil
}

// applyEnvOverrides applies PROMPTLAB_* variables. Unparseable values are
// reported and skipped; they are not range checked so a bad export in the
// environment never blocks read-only commands.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw, set := os.LookupEnv(s.env)
		if s.env == "" || !set || raw == "" {
			continue
		}
		v, err := s.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring %s=%q: %v\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
