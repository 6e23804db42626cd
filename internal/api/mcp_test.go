package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/promptlab/internal/generator"
	"github.com/kalambet/promptlab/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T, e *stubEngine) (MCPDeps, *storage.Store) {
	t.Helper()
	store := newTestStore(t)
	return MCPDeps{
		Store:     store,
		Generator: generator.New(e, "key", generator.WithLogger(quietLogger())),
	}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func resourceRecords(t *testing.T, contents []mcp.ResourceContents) []storage.PromptRecord {
	t.Helper()
	if len(contents) != 1 {
		t.Fatalf("expected 1 resource content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.MIMEType != "application/json" {
		t.Errorf("MIMEType = %q", tc.MIMEType)
	}
	var recs []storage.PromptRecord
	if err := json.Unmarshal([]byte(tc.Text), &recs); err != nil {
		t.Fatalf("decoding resource: %v", err)
	}
	return recs
}

// --- tests ---

func TestNewMCPServer_Builds(t *testing.T) {
	deps, _ := newTestMCPDeps(t, &stubEngine{text: "ok"})
	if NewMCPServer(deps) == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_GeneratePrompt(t *testing.T) {
	deps, store := newTestMCPDeps(t, &stubEngine{text: "Act as a *travel agent*."})
	handler := mcpGeneratePrompt(deps)

	result, err := handler(context.Background(), makeCallToolRequest("generate_prompt", map[string]interface{}{
		"input": "plan a trip to Lisbon",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "Act as a travel agent." {
		t.Errorf("text = %q", got)
	}

	recs := store.All()
	if len(recs) != 1 || recs[0].OriginalInput != "plan a trip to Lisbon" {
		t.Errorf("stored records = %+v", recs)
	}
}

func TestMCPTool_GeneratePrompt_MissingInput(t *testing.T) {
	e := &stubEngine{text: "ok"}
	deps, _ := newTestMCPDeps(t, e)

	for _, args := range []map[string]interface{}{{}, {"input": "   "}} {
		result, err := mcpGeneratePrompt(deps)(context.Background(), makeCallToolRequest("generate_prompt", args))
		if err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if !result.IsError {
			t.Errorf("args %v: expected error result", args)
		}
	}
	if e.callCount() != 0 {
		t.Error("engine called without usable input")
	}
}

func TestMCPTool_GeneratePrompt_EngineError(t *testing.T) {
	deps, store := newTestMCPDeps(t, &stubEngine{err: errors.New("timeout")})

	result, err := mcpGeneratePrompt(deps)(context.Background(), makeCallToolRequest("generate_prompt", map[string]interface{}{
		"input": "write an email",
	}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(toolText(t, result), "timeout") {
		t.Errorf("text = %q, want cause", toolText(t, result))
	}
	if store.Len() != 0 {
		t.Error("record added on failure")
	}
}

func TestMCPTool_ToggleFavorite(t *testing.T) {
	deps, store := newTestMCPDeps(t, &stubEngine{text: "ok"})
	rec, _ := store.Add("input", "prompt")
	handler := mcpToggleFavorite(deps)

	result, _ := handler(context.Background(), makeCallToolRequest("toggle_favorite", map[string]interface{}{"id": rec.ID}))
	if result.IsError || !strings.Contains(toolText(t, result), "added") {
		t.Errorf("first toggle = %q", toolText(t, result))
	}
	if got, _ := store.Get(rec.ID); !got.IsFavorite {
		t.Error("IsFavorite = false after toggle")
	}

	result, _ = handler(context.Background(), makeCallToolRequest("toggle_favorite", map[string]interface{}{"id": rec.ID}))
	if !strings.Contains(toolText(t, result), "removed") {
		t.Errorf("second toggle = %q", toolText(t, result))
	}

	result, _ = handler(context.Background(), makeCallToolRequest("toggle_favorite", map[string]interface{}{"id": "nope"}))
	if !result.IsError {
		t.Error("expected error for unknown id")
	}
}

func TestMCPTool_RatePrompt(t *testing.T) {
	deps, store := newTestMCPDeps(t, &stubEngine{text: "ok"})
	rec, _ := store.Add("input", "prompt")
	handler := mcpRatePrompt(deps)

	result, _ := handler(context.Background(), makeCallToolRequest("rate_prompt", map[string]interface{}{
		"id":     rec.ID,
		"rating": float64(5),
	}))
	if result.IsError {
		t.Fatalf("tool returned error: %s", toolText(t, result))
	}
	if got, _ := store.Get(rec.ID); got.Rating == nil || *got.Rating != 5 {
		t.Errorf("Rating = %v, want 5", got.Rating)
	}

	result, _ = handler(context.Background(), makeCallToolRequest("rate_prompt", map[string]interface{}{
		"id":     rec.ID,
		"rating": float64(9),
	}))
	if !result.IsError {
		t.Error("expected error for out-of-range rating")
	}
	if got, _ := store.Get(rec.ID); *got.Rating != 5 {
		t.Errorf("Rating = %d, want unchanged 5", *got.Rating)
	}
}

func TestMCPTool_DeletePrompt(t *testing.T) {
	deps, store := newTestMCPDeps(t, &stubEngine{text: "ok"})
	rec, _ := store.Add("input", "prompt")
	handler := mcpDeletePrompt(deps)

	result, _ := handler(context.Background(), makeCallToolRequest("delete_prompt", map[string]interface{}{"id": rec.ID}))
	if result.IsError {
		t.Fatalf("tool returned error: %s", toolText(t, result))
	}
	if store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0", store.Len())
	}

	result, _ = handler(context.Background(), makeCallToolRequest("delete_prompt", map[string]interface{}{"id": rec.ID}))
	if !result.IsError {
		t.Error("expected error for already deleted id")
	}
}

func TestMCPTools_UnsavedChangeIsNotAnError(t *testing.T) {
	store := storage.Open(brokenSlot{}, storage.WithLogger(quietLogger()))
	deps := MCPDeps{
		Store:     store,
		Generator: generator.New(&stubEngine{text: "ok"}, "key", generator.WithLogger(quietLogger())),
	}
	rec, err := store.Add("input", "prompt")
	if !errors.Is(err, storage.ErrPersist) {
		t.Fatalf("Add error = %v, want ErrPersist", err)
	}

	tests := []struct {
		name    string
		handler func(MCPDeps) server.ToolHandlerFunc
		args    map[string]interface{}
		want    string
	}{
		{"toggle_favorite", mcpToggleFavorite, map[string]interface{}{"id": rec.ID}, "added to favorites"},
		{"rate_prompt", mcpRatePrompt, map[string]interface{}{"id": rec.ID, "rating": float64(3)}, "Rated prompt"},
		{"delete_prompt", mcpDeletePrompt, map[string]interface{}{"id": rec.ID}, "Deleted prompt"},
	}
	for _, tt := range tests {
		result, err := tt.handler(deps)(context.Background(), makeCallToolRequest(tt.name, tt.args))
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		text := toolText(t, result)
		if result.IsError {
			t.Errorf("%s: IsError = true for an applied change: %q", tt.name, text)
		}
		if !strings.Contains(text, tt.want) || !strings.Contains(text, "history not saved") {
			t.Errorf("%s: text = %q, want %q plus a warning", tt.name, text, tt.want)
		}
	}

	if store.Len() != 0 {
		t.Errorf("store.Len() = %d, want 0 after delete", store.Len())
	}
}

func TestMCPResource_Favorites(t *testing.T) {
	deps, store := newTestMCPDeps(t, &stubEngine{text: "ok"})
	a, _ := store.Add("a", "prompt a")
	store.Add("b", "prompt b")
	store.ToggleFavorite(a.ID)

	contents, err := mcpResourceRecords(deps.Store.Favorites)(context.Background(), makeReadResourceRequest("prompts://favorites"))
	if err != nil {
		t.Fatalf("resource error: %v", err)
	}
	recs := resourceRecords(t, contents)
	if len(recs) != 1 || recs[0].ID != a.ID {
		t.Errorf("favorites = %+v", recs)
	}
}

func TestMCPResource_EmptyIsArray(t *testing.T) {
	deps, _ := newTestMCPDeps(t, &stubEngine{text: "ok"})

	contents, err := mcpResourceRecords(deps.Store.All)(context.Background(), makeReadResourceRequest("prompts://history"))
	if err != nil {
		t.Fatalf("resource error: %v", err)
	}
	tc := contents[0].(mcp.TextResourceContents)
	if tc.Text != "[]" {
		t.Errorf("text = %q, want []", tc.Text)
	}
	if tc.URI != "prompts://history" {
		t.Errorf("URI = %q", tc.URI)
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps, store := newTestMCPDeps(t, &stubEngine{text: "Act as a writer."})
	generate := mcpGeneratePrompt(deps)
	favorites := mcpResourceRecords(deps.Store.Favorites)

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			result, err := generate(context.Background(), makeCallToolRequest("generate_prompt", map[string]interface{}{
				"input": fmt.Sprintf("task %d", i),
			}))
			if err != nil {
				errs <- err
			} else if result.IsError {
				errs <- errors.New("generate_prompt returned an error result")
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := favorites(context.Background(), makeReadResourceRequest("prompts://favorites")); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}
	if store.Len() != 10 {
		t.Errorf("store.Len() = %d, want 10", store.Len())
	}
}
