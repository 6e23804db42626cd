package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIConfig holds configuration for the OpenAI engine. BaseURL and
// HTTPClient are optional and mostly used by tests.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// OpenAIEngine implements Engine using the official OpenAI SDK.
type OpenAIEngine struct {
	model  string
	client openai.Client
}

// NewOpenAIEngine creates an OpenAIEngine. SDK retries are disabled: a
// failed generation is returned to the caller as-is.
func NewOpenAIEngine(cfg OpenAIConfig) *OpenAIEngine {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIEngine{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

func (e *OpenAIEngine) Name() string { return "openai" }

func (e *OpenAIEngine) Complete(ctx context.Context, req Request) (Response, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemInstruction != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemInstruction))
	}
	msgs = append(msgs, openai.UserMessage(req.Payload))

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(e.model),
		Messages:    msgs,
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return Response{}, mapOpenAIError(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Response{}, nil
	}
	return Response{Text: resp.Choices[0].Message.Content}, nil
}

// Check lists the available models to confirm the endpoint and key work.
func (e *OpenAIEngine) Check(ctx context.Context) (int, error) {
	page, err := e.client.Models.List(ctx)
	if err != nil {
		return 0, mapOpenAIError(err)
	}
	if page == nil {
		return 0, fmt.Errorf("openai: models list returned nil response")
	}
	return len(page.Data), nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("openai: status %d: %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("openai: status %d", apiErr.StatusCode)
	}
	return fmt.Errorf("openai: %w", err)
}
