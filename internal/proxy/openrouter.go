package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 60 * time.Second
	maxErrorBody   = 4096
)

// Client communicates with the OpenRouter API (or any OpenAI-compatible
// chat completions endpoint).
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	referer    string
	title      string
}

// NewClient creates an OpenRouter client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		referer: "https://github.com/kalambet/promptlab",
		title:   "promptlab",
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// SetTimeout overrides the per-request HTTP timeout. Zero disables it.
func (c *Client) SetTimeout(d time.Duration) {
	c.httpClient.Timeout = d
}

// StatusError is returned when the API answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// send issues one request and decodes a 200 response into out. body may
// be nil.
func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readStatusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Chat sends a single non-streaming chat completion request. A 429 is
// returned to the caller like any other failure; the client never retries.
//
// OpenRouter reports some upstream provider failures inside a 200 body;
// those come back as a *StatusError carrying the embedded code.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if req.Stream {
		return ChatResponse{}, fmt.Errorf("streaming chat is not supported")
	}

	var out ChatResponse
	if err := c.send(ctx, http.MethodPost, "/chat/completions", req, &out); err != nil {
		return ChatResponse{}, err
	}
	if out.Error != nil {
		code := http.StatusBadGateway
		if n, ok := out.Error.Code.(float64); ok {
			code = int(n)
		}
		return ChatResponse{}, &StatusError{StatusCode: code, Message: out.Error.Message}
	}
	return out, nil
}

func readStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var env apiErrorBody
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		return &StatusError{StatusCode: resp.StatusCode, Message: env.Error.Message}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}

// ListModels returns the models the endpoint offers.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var list ModelList
	if err := c.send(ctx, http.MethodGet, "/models", nil, &list); err != nil {
		return nil, err
	}
	if list.Data == nil {
		return []Model{}, nil
	}
	return list.Data, nil
}

func (c *Client) setHeaders(req *http.Request) {
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.referer)
	req.Header.Set("X-Title", c.title)
}
