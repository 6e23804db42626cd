package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kalambet/promptlab/internal/generator"
	"github.com/kalambet/promptlab/internal/input"
	"github.com/kalambet/promptlab/internal/storage"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeGenerateError maps generation and store failures to HTTP statuses.
func writeGenerateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, generator.ErrEmptyInput), errors.Is(err, input.ErrEmptyInput):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "input is required and must not be blank")
	case errors.Is(err, generator.ErrConfiguration):
		httpError(w, http.StatusPreconditionFailed, "configuration_error", "%v", err)
	case errors.Is(err, generator.ErrGeneration):
		httpError(w, http.StatusBadGateway, "generation_error", "%v", err)
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "prompt not found")
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}
