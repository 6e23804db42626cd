package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func tagsJSON(names ...string) []byte {
	type entry struct {
		Name string `json:"name"`
	}
	type resp struct {
		Models []entry `json:"models"`
	}
	r := resp{}
	for _, n := range names {
		r.Models = append(r.Models, entry{Name: n})
	}
	b, _ := json.Marshal(r)
	return b
}

func TestOllamaEngine_Complete(t *testing.T) {
	var captured struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
		Options  struct {
			Temperature float64 `json:"temperature"`
		} `json:"options"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "hello from ollama"},
		})
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL, "llama3.2", 0)
	resp, err := e.Complete(context.Background(), Request{
		SystemInstruction: "be an engineer",
		Payload:           "hi",
		Temperature:       0.7,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "hello from ollama" {
		t.Errorf("got %q, want %q", resp.Text, "hello from ollama")
	}
	if captured.Model != "llama3.2" {
		t.Errorf("model = %q, want llama3.2", captured.Model)
	}
	if captured.Options.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", captured.Options.Temperature)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Content != "be an engineer" {
		t.Errorf("messages = %+v", captured.Messages)
	}
}

func TestOllamaEngine_CompleteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllamaEngine(srv.URL, "llama3.2", 0).Complete(context.Background(), Request{Payload: "hi"})
	if err == nil {
		t.Fatal("expected error on 500")
	}
}

func TestOllamaEngine_CompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewOllamaEngine(srv.URL, "llama3.2", 50*time.Millisecond).Complete(context.Background(), Request{Payload: "hi"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestOllamaEngine_CheckAndPrepare(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write(tagsJSON("llama3.2:latest", "qwen2.5:latest"))
		case "/api/chat":
			json.NewEncoder(w).Encode(map[string]any{
				"message": map[string]string{"role": "assistant", "content": "pong"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL, "llama3.2", 0)
	n, err := e.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if n != 2 {
		t.Errorf("Check = %d, want 2", n)
	}

	var out strings.Builder
	if err := EnsureReady(context.Background(), e, &out); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if !strings.Contains(out.String(), "model llama3.2: ready") {
		t.Errorf("output = %q", out.String())
	}
}
