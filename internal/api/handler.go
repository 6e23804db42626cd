package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/promptlab/internal/generator"
	"github.com/kalambet/promptlab/internal/input"
	"github.com/kalambet/promptlab/internal/storage"
)

const maxRequestBodySize = 10 << 20 // 10MB

// historyLimit is the number of records the history view shows.
const historyLimit = 20

type GenerateRequest struct {
	Input    string `json:"input"`
	Type     string `json:"type"`
	URL      string `json:"url"`
	Content  string `json:"content"`
	Filename string `json:"filename"`
}

type RatingRequest struct {
	Rating int `json:"rating"`
}

type Deps struct {
	Store     *storage.Store
	Generator *generator.Client
	Resolver  *input.Resolver
	Token     string
	Logger    *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// NewHandler returns the HTTP API. Everything except /health requires the
// bearer token.
func NewHandler(deps Deps) http.Handler {
	if deps.Resolver == nil {
		deps.Resolver = input.NewResolver(nil)
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/generate", handleGenerate(deps))
		r.Get("/export", handleExport(deps))

		r.Route("/prompts", func(r chi.Router) {
			r.Get("/", handleListPrompts(deps))
			r.Get("/favorites", handleFavorites(deps))
			r.Get("/history", handleHistory(deps))
			r.Get("/{id}", handleGetPrompt(deps))
			r.Delete("/{id}", handleDeletePrompt(deps))
			r.Post("/{id}/favorite", handleToggleFavorite(deps))
			r.Put("/{id}/rating", handleSetRating(deps))
			r.Post("/{id}/regenerate", handleRegenerate(deps))
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleGenerate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		text, err := resolveInput(r, deps, req)
		if err != nil {
			if errors.Is(err, input.ErrEmptyInput) {
				writeGenerateError(w, err)
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading input: %v", err)
			return
		}

		rec, err := deps.Generator.GenerateAndRecord(r.Context(), deps.Store, text)
		writeRecord(w, deps, http.StatusCreated, rec, err)
	}
}

// resolveInput turns a generate request into task text. Inline file
// content arrives base64 encoded and is extracted by filename extension.
func resolveInput(r *http.Request, deps Deps, req GenerateRequest) (string, error) {
	switch req.Type {
	case "", "text":
		return deps.Resolver.Resolve(r.Context(), input.Source{Kind: input.KindText, Text: req.Input})
	case "url":
		return deps.Resolver.Resolve(r.Context(), input.Source{Kind: input.KindURL, URL: req.URL})
	case "file":
		data, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			return "", errors.New("content must be base64 encoded")
		}
		text, err := input.Extract(data, "", strings.ToLower(filepath.Ext(req.Filename)))
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", input.ErrEmptyInput
		}
		return strings.TrimSpace(text), nil
	default:
		return "", errors.New("type must be one of text, url, file")
	}
}

// writeRecord answers with rec. A persistence failure still returns the
// record, flagged with a Warning header.
func writeRecord(w http.ResponseWriter, deps Deps, code int, rec storage.PromptRecord, err error) {
	if err != nil && !errors.Is(err, storage.ErrPersist) {
		writeGenerateError(w, err)
		return
	}
	if err != nil {
		deps.logger().Warn("prompt history not saved", "id", rec.ID, "error", err)
		w.Header().Set("Warning", `199 promptlab "prompt history not saved"`)
	}
	writeJSON(w, code, rec)
}

func writeRecords(w http.ResponseWriter, records []storage.PromptRecord) {
	if records == nil {
		records = []storage.PromptRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func handleListPrompts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 0, 0)
		if limit > 0 {
			writeRecords(w, deps.Store.Recent(limit))
			return
		}
		writeRecords(w, deps.Store.All())
	}
}

func handleFavorites(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeRecords(w, deps.Store.Favorites())
	}
}

func handleHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeRecords(w, deps.Store.Recent(historyLimit))
	}
}

func handleGetPrompt(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Store.Get(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "prompt not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get prompt: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// mutate applies fn to an existing record and answers with its new state.
func mutate(deps Deps, fn func(id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Store.Get(id); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "prompt not found")
			return
		}

		err := fn(id)
		if errors.Is(err, storage.ErrInvalidRating) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "rating must be between %d and %d", storage.MinRating, storage.MaxRating)
			return
		}
		rec, getErr := deps.Store.Get(id)
		if getErr != nil {
			writeGenerateError(w, getErr)
			return
		}
		writeRecord(w, deps, http.StatusOK, rec, err)
	}
}

func handleToggleFavorite(deps Deps) http.HandlerFunc {
	return mutate(deps, deps.Store.ToggleFavorite)
}

func handleSetRating(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req RatingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		mutate(deps, func(id string) error {
			return deps.Store.SetRating(id, req.Rating)
		})(w, r)
	}
}

func handleDeletePrompt(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Store.Get(id); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "prompt not found")
			return
		}

		if err := deps.Store.Delete(id); err != nil {
			if !errors.Is(err, storage.ErrPersist) {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to delete prompt: %v", err)
				return
			}
			deps.logger().Warn("prompt history not saved", "id", id, "error", err)
			w.Header().Set("Warning", `199 promptlab "prompt history not saved"`)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func handleRegenerate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Generator.Regenerate(r.Context(), deps.Store, chi.URLParam(r, "id"))
		writeRecord(w, deps, http.StatusCreated, rec, err)
	}
}

func handleExport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := strings.ToLower(r.URL.Query().Get("format"))
		if format == "" {
			format = storage.FormatJSON
		}

		var buf strings.Builder
		if err := storage.Export(&buf, deps.Store.All(), format); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		switch format {
		case storage.FormatJSON:
			w.Header().Set("Content-Type", "application/json")
		default:
			w.Header().Set("Content-Type", "application/yaml")
		}
		w.Write([]byte(buf.String()))
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
