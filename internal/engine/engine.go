package engine

import (
	"context"
	"io"
)

// Engine abstracts a text-generation backend (OpenRouter, OpenAI, or a
// local Ollama server). The generator depends on this interface instead of
// a concrete client.
type Engine interface {
	// Complete sends one request and returns the backend's primary text.
	// Implementations make exactly one attempt; they never retry.
	Complete(ctx context.Context, req Request) (Response, error)

	// Name identifies the backend in logs and status output.
	Name() string
}

// Keyless is implemented by engines that need no service credential.
type Keyless interface {
	Keyless() bool
}

// Preparer is implemented by engines that can check and warm up their
// backend before first use.
type Preparer interface {
	Prepare(ctx context.Context, w io.Writer) error
}

// RequiresCredential reports whether e needs an API key to be configured.
func RequiresCredential(e Engine) bool {
	k, ok := e.(Keyless)
	return !ok || !k.Keyless()
}

// Checker is implemented by engines that can verify connectivity and
// credentials without generating anything. It returns the number of models
// the backend offers.
type Checker interface {
	Check(ctx context.Context) (int, error)
}
