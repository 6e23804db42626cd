package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/kalambet/promptlab/internal/proxy"
)

// OpenRouterEngine sends requests through the OpenRouter chat completions API.
type OpenRouterEngine struct {
	client *proxy.Client
	model  string
}

// NewOpenRouterEngine creates an engine for the given model. An empty
// baseURL selects the public OpenRouter endpoint.
func NewOpenRouterEngine(apiKey, baseURL, model string, timeout time.Duration) *OpenRouterEngine {
	c := proxy.NewClientWithBaseURL(apiKey, baseURL)
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &OpenRouterEngine{client: c, model: model}
}

func (e *OpenRouterEngine) Name() string { return "openrouter" }

func (e *OpenRouterEngine) Complete(ctx context.Context, req Request) (Response, error) {
	src := req.Messages()
	msgs := make([]proxy.Message, len(src))
	for i, m := range src {
		msgs[i] = proxy.Message{Role: m.Role, Content: m.Content}
	}

	temp := req.Temperature
	resp, err := e.client.Chat(ctx, proxy.ChatRequest{
		Model:       e.model,
		Messages:    msgs,
		Temperature: &temp,
	})
	if err != nil {
		return Response{}, fmt.Errorf("openrouter: %w", err)
	}
	return Response{Text: resp.Text()}, nil
}

// Check lists the available models to confirm the endpoint and key work.
func (e *OpenRouterEngine) Check(ctx context.Context) (int, error) {
	models, err := e.client.ListModels(ctx)
	if err != nil {
		return 0, fmt.Errorf("openrouter: %w", err)
	}
	return len(models), nil
}
