package main

import (
	"fmt"
	"log/slog"

	"github.com/kalambet/promptlab/internal/config"
	"github.com/kalambet/promptlab/internal/engine"
	"github.com/kalambet/promptlab/internal/generator"
	"github.com/kalambet/promptlab/internal/storage"
)

// newEngine builds the generation engine for cfg. Tests replace it.
var newEngine = engine.Select

// app bundles what every local command needs: the loaded config, the
// record store and its slot, and the generator.
type app struct {
	cfg       config.Config
	store     *storage.Store
	slot      storage.ClosableSlot
	generator *generator.Client
	engineErr error
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg)
	return cfg, nil
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openAppWith(cfg)
}

func openAppWith(cfg config.Config) (*app, error) {
	slot, err := storage.OpenSlot(cfg.Storage.Backend, cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	store := storage.Open(slot, storage.WithCap(cfg.Storage.Cap), storage.WithLogger(slog.Default()))

	a := &app{cfg: cfg, store: store, slot: slot}

	eng, err := newEngine(cfg)
	if err != nil {
		// History commands still work without an engine.
		slog.Debug("no generation engine", "error", err)
		a.engineErr = err
		a.generator = generator.New(nil, "")
		return a, nil
	}
	a.generator = generator.New(eng, cfg.Generation.APIKey, generator.WithLogger(slog.Default()))
	return a, nil
}

// generatorFor returns the generator, or the engine selection error when
// the configured provider is unusable.
func (a *app) generatorFor() (*generator.Client, error) {
	if a.engineErr != nil {
		return nil, a.engineErr
	}
	return a.generator, nil
}

func (a *app) Close() {
	if err := a.slot.Close(); err != nil {
		printWarning("closing storage: %v", err)
	}
}
