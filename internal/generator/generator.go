package generator

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/kalambet/promptlab/internal/engine"
	"github.com/kalambet/promptlab/internal/storage"
)

const (
	// Temperature is the sampling temperature sent with every request.
	Temperature = 0.7

	// FallbackText replaces an empty response from the backend.
	FallbackText = "Failed to generate prompt. Please try again."
)

// Client turns a casual task description into a structured prompt.
type Client struct {
	engine     engine.Engine
	credential string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for generation failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client that sends requests through e. credential is the
// service API key; it may be empty for engines that are keyless.
func New(e engine.Engine, credential string, opts ...Option) *Client {
	c := &Client{
		engine:     e,
		credential: credential,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether Generate can attempt a call.
func (c *Client) Configured() bool {
	return c.engine != nil && (c.credential != "" || !engine.RequiresCredential(c.engine))
}

// Generate sends userInput with SystemInstruction at Temperature and returns
// the sanitized prompt text.
//
// Without a credential it fails with a *ConfigurationError and makes no
// call. Backend failures are logged and returned as *GenerationError; there
// is no retry.
func (c *Client) Generate(ctx context.Context, userInput string) (string, error) {
	if c.engine == nil {
		return "", &ConfigurationError{Reason: "no generation engine selected"}
	}
	if !c.Configured() {
		return "", &ConfigurationError{
			Reason: "no API key for " + c.engine.Name() + " (set PROMPTLAB_API_KEY or run: promptlab config set-key)",
		}
	}

	resp, err := c.engine.Complete(ctx, engine.Request{
		SystemInstruction: SystemInstruction,
		Payload:           userInput,
		Temperature:       Temperature,
	})
	if err != nil {
		c.logger.Error("error generating prompt", "engine", c.engine.Name(), "error", err)
		return "", &GenerationError{Engine: c.engine.Name(), Err: err}
	}

	return Sanitize(resp.Text), nil
}

// Sanitize trims the response, substitutes FallbackText when nothing is
// left, and removes every '*' and '#'. No other characters are touched.
func Sanitize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		text = FallbackText
	}
	return strings.NewReplacer("*", "", "#", "").Replace(text)
}

// Recorder is the part of the record store the generator writes to.
type Recorder interface {
	Add(originalInput, generatedPrompt string) (storage.PromptRecord, error)
	Get(id string) (storage.PromptRecord, error)
}

// GenerateAndRecord generates a prompt for input and stores the result.
// Blank input is rejected with ErrEmptyInput before any call.
//
// When the record was created but could not be persisted, the record is
// returned together with an error matching storage.ErrPersist.
func (c *Client) GenerateAndRecord(ctx context.Context, rec Recorder, input string) (storage.PromptRecord, error) {
	if strings.TrimSpace(input) == "" {
		return storage.PromptRecord{}, ErrEmptyInput
	}

	text, err := c.Generate(ctx, input)
	if err != nil {
		return storage.PromptRecord{}, err
	}

	r, err := rec.Add(input, text)
	if err != nil && !errors.Is(err, storage.ErrPersist) {
		return storage.PromptRecord{}, err
	}
	return r, err
}

// Regenerate runs generation again for a stored record's original input
// and stores the result as a new record. The source record is unchanged.
func (c *Client) Regenerate(ctx context.Context, rec Recorder, id string) (storage.PromptRecord, error) {
	src, err := rec.Get(id)
	if err != nil {
		return storage.PromptRecord{}, err
	}
	return c.GenerateAndRecord(ctx, rec, src.OriginalInput)
}
