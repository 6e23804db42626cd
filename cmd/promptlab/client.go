package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/kalambet/promptlab/internal/config"
	"github.com/kalambet/promptlab/internal/storage"
)

// apiClient talks to a running `promptlab serve` instance.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// apiError is the error body the server writes: {"error":{"message","type"}}.
type apiError struct {
	Status  int
	Type    string
	Message string
}

// Unwrap lets callers match a missing prompt with storage.ErrNotFound.
func (e *apiError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return storage.ErrNotFound
	}
	return nil
}

func (e *apiError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Type, e.Message)
}

var newAPIClient = func(cfg config.Config) (*apiClient, error) {
	token, err := config.ServerToken(cfg)
	if err != nil {
		return nil, fmt.Errorf("getting server token: %w", err)
	}

	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      token,
		httpClient: &http.Client{Timeout: cfg.GenerationTimeout() + 5*time.Second},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is promptlab serve running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// healthy reports whether the server answers /health with 200.
func (c *apiClient) healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	resp, err := c.get(ctx, "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// recent fetches the server's n newest prompts.
func (c *apiClient) recent(ctx context.Context, n int) ([]storage.PromptRecord, error) {
	return c.records(ctx, "/prompts?limit="+strconv.Itoa(n))
}

// records fetches a record list from one of the /prompts routes.
func (c *apiClient) records(ctx context.Context, path string) ([]storage.PromptRecord, error) {
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var records []storage.PromptRecord
	if err := decodeJSON(resp, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// decodeJSON decodes a successful response into v. Error statuses become
// an *apiError carrying the server's message.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 400 {
		return json.NewDecoder(resp.Body).Decode(v)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	apiErr := &apiError{Status: resp.StatusCode, Message: string(bytes.TrimSpace(raw))}
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		apiErr.Message = body.Error.Message
		apiErr.Type = body.Error.Type
	}
	return apiErr
}
