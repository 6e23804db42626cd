package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/kalambet/promptlab/internal/ollama"
)

// OllamaEngine adapts the internal/ollama.Client to the Engine interface.
type OllamaEngine struct {
	client  *ollama.Client
	model   string
	timeout time.Duration
}

// NewOllamaEngine creates an OllamaEngine backed by an Ollama server at
// baseURL. timeout bounds each completion; model pulls are not limited.
func NewOllamaEngine(baseURL, model string, timeout time.Duration) *OllamaEngine {
	return &OllamaEngine{client: ollama.New(baseURL), model: model, timeout: timeout}
}

func (e *OllamaEngine) Name() string { return "ollama" }

// Keyless reports true: a local Ollama server needs no API key.
func (e *OllamaEngine) Keyless() bool { return true }

func (e *OllamaEngine) Complete(ctx context.Context, req Request) (Response, error) {
	src := req.Messages()
	msgs := make([]ollama.Message, len(src))
	for i, m := range src {
		msgs[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	temp := req.Temperature
	text, err := e.client.Chat(ctx, e.model, msgs, &ollama.Options{Temperature: &temp})
	if err != nil {
		return Response{}, err
	}
	return Response{Text: text}, nil
}

// Prepare verifies the server is reachable, pulls the model if it is
// missing and warms it up.
func (e *OllamaEngine) Prepare(ctx context.Context, w io.Writer) error {
	return ollama.EnsureReady(ctx, e.client, e.model, w)
}

// Check lists the locally available models.
func (e *OllamaEngine) Check(ctx context.Context) (int, error) {
	models, err := e.client.ListModels(ctx)
	if err != nil {
		return 0, fmt.Errorf("ollama at %s: %w", e.client.BaseURL(), err)
	}
	return len(models), nil
}
