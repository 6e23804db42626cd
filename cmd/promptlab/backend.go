package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kalambet/promptlab/internal/api"
	"github.com/kalambet/promptlab/internal/config"
	"github.com/kalambet/promptlab/internal/storage"
)

// prompts is what the record commands operate on. While `promptlab serve`
// runs it owns the collection, so commands go through its API; otherwise
// they open the data directory themselves.
type prompts interface {
	Generate(ctx context.Context, text string) (storage.PromptRecord, error)
	Regenerate(ctx context.Context, id string) (storage.PromptRecord, error)
	All(ctx context.Context) ([]storage.PromptRecord, error)
	Recent(ctx context.Context, n int) ([]storage.PromptRecord, error)
	Favorites(ctx context.Context) ([]storage.PromptRecord, error)
	ToggleFavorite(ctx context.Context, id string) (storage.PromptRecord, error)
	SetRating(ctx context.Context, id string, rating int) (storage.PromptRecord, error)
	Delete(ctx context.Context, id string) error
	Close()
}

// serverClient returns a client for a running `promptlab serve`, or nil
// when none answers. Tests replace it.
var serverClient = func(ctx context.Context, cfg config.Config) *apiClient {
	c, err := newAPIClient(cfg)
	if err != nil || !c.healthy(ctx) {
		return nil
	}
	return c
}

func openPrompts(ctx context.Context) (prompts, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if c := serverClient(ctx, cfg); c != nil {
		slog.Debug("using running server", "url", c.baseURL)
		return &remotePrompts{client: c}, nil
	}

	a, err := openAppWith(cfg)
	if err != nil {
		return nil, err
	}
	return &localPrompts{app: a}, nil
}

// localPrompts works directly on the store in the data directory.
type localPrompts struct {
	app *app
}

func (l *localPrompts) Generate(ctx context.Context, text string) (storage.PromptRecord, error) {
	gen, err := l.app.generatorFor()
	if err != nil {
		return storage.PromptRecord{}, err
	}
	return gen.GenerateAndRecord(ctx, l.app.store, text)
}

func (l *localPrompts) Regenerate(ctx context.Context, id string) (storage.PromptRecord, error) {
	gen, err := l.app.generatorFor()
	if err != nil {
		return storage.PromptRecord{}, err
	}
	return gen.Regenerate(ctx, l.app.store, id)
}

func (l *localPrompts) All(context.Context) ([]storage.PromptRecord, error) {
	return l.app.store.All(), nil
}

func (l *localPrompts) Recent(_ context.Context, n int) ([]storage.PromptRecord, error) {
	return l.app.store.Recent(n), nil
}

func (l *localPrompts) Favorites(context.Context) ([]storage.PromptRecord, error) {
	return l.app.store.Favorites(), nil
}

func (l *localPrompts) ToggleFavorite(_ context.Context, id string) (storage.PromptRecord, error) {
	return l.mutate(id, l.app.store.ToggleFavorite)
}

func (l *localPrompts) SetRating(_ context.Context, id string, rating int) (storage.PromptRecord, error) {
	return l.mutate(id, func(id string) error { return l.app.store.SetRating(id, rating) })
}

// mutate applies fn and returns the record's new state along with fn's
// error, so a persist failure still reports what changed in memory.
func (l *localPrompts) mutate(id string, fn func(string) error) (storage.PromptRecord, error) {
	err := fn(id)
	if errors.Is(err, storage.ErrInvalidRating) {
		return storage.PromptRecord{}, err
	}
	rec, getErr := l.app.store.Get(id)
	if getErr != nil {
		return storage.PromptRecord{}, getErr
	}
	return rec, err
}

func (l *localPrompts) Delete(_ context.Context, id string) error {
	return l.app.store.Delete(id)
}

func (l *localPrompts) Close() { l.app.Close() }

// remotePrompts sends every operation to a running server.
type remotePrompts struct {
	client *apiClient
}

func promptPath(id string, rest string) string {
	return "/prompts/" + url.PathEscape(id) + rest
}

func (r *remotePrompts) Generate(ctx context.Context, text string) (storage.PromptRecord, error) {
	return r.record(ctx, http.MethodPost, "/generate", api.GenerateRequest{Input: text})
}

func (r *remotePrompts) Regenerate(ctx context.Context, id string) (storage.PromptRecord, error) {
	return r.record(ctx, http.MethodPost, promptPath(id, "/regenerate"), nil)
}

func (r *remotePrompts) All(ctx context.Context) ([]storage.PromptRecord, error) {
	return r.client.records(ctx, "/prompts")
}

func (r *remotePrompts) Recent(ctx context.Context, n int) ([]storage.PromptRecord, error) {
	if n <= 0 {
		return []storage.PromptRecord{}, nil
	}
	return r.client.records(ctx, "/prompts?limit="+strconv.Itoa(n))
}

func (r *remotePrompts) Favorites(ctx context.Context) ([]storage.PromptRecord, error) {
	return r.client.records(ctx, "/prompts/favorites")
}

func (r *remotePrompts) ToggleFavorite(ctx context.Context, id string) (storage.PromptRecord, error) {
	return r.record(ctx, http.MethodPost, promptPath(id, "/favorite"), nil)
}

func (r *remotePrompts) SetRating(ctx context.Context, id string, rating int) (storage.PromptRecord, error) {
	return r.record(ctx, http.MethodPut, promptPath(id, "/rating"), api.RatingRequest{Rating: rating})
}

func (r *remotePrompts) Delete(ctx context.Context, id string) error {
	resp, err := r.client.do(ctx, http.MethodDelete, promptPath(id, ""), nil)
	if err != nil {
		return err
	}
	warning := resp.Header.Get("Warning")
	var status map[string]string
	if err := decodeJSON(resp, &status); err != nil {
		return err
	}
	return serverPersistError(warning)
}

func (r *remotePrompts) Close() {}

// record performs a request answered with a single record. The server
// flags records it could not save with a Warning header.
func (r *remotePrompts) record(ctx context.Context, method, path string, body any) (storage.PromptRecord, error) {
	resp, err := r.client.do(ctx, method, path, body)
	if err != nil {
		return storage.PromptRecord{}, err
	}
	warning := resp.Header.Get("Warning")
	var rec storage.PromptRecord
	if err := decodeJSON(resp, &rec); err != nil {
		return storage.PromptRecord{}, err
	}
	return rec, serverPersistError(warning)
}

func serverPersistError(warning string) error {
	if warning == "" {
		return nil
	}
	return &storage.PersistError{Op: "server", Err: fmt.Errorf("server warning: %s", warning)}
}
