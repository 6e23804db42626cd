package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/promptlab/internal/generator"
	"github.com/kalambet/promptlab/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store     *storage.Store
	Generator *generator.Client
	Version   string
}

// NewMCPServer creates an MCP server exposing prompt generation and the
// prompt history.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := server.NewMCPServer(
		"promptlab",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("promptlab turns rough task descriptions into structured prompts and keeps a history of them."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("generate_prompt",
			mcp.WithDescription("Rewrite a task description into a structured prompt (role, context, command, format) and save it to history."),
			mcp.WithString("input", mcp.Description("The rough task description"), mcp.Required()),
		),
		mcpGeneratePrompt(deps),
	)

	s.AddTool(
		mcp.NewTool("toggle_favorite",
			mcp.WithDescription("Flip the favorite flag of a saved prompt."),
			mcp.WithString("id", mcp.Description("Prompt id"), mcp.Required()),
		),
		mcpToggleFavorite(deps),
	)

	s.AddTool(
		mcp.NewTool("rate_prompt",
			mcp.WithDescription("Rate a saved prompt from 1 to 5."),
			mcp.WithString("id", mcp.Description("Prompt id"), mcp.Required()),
			mcp.WithNumber("rating", mcp.Description("Rating between 1 and 5"), mcp.Required()),
		),
		mcpRatePrompt(deps),
	)

	s.AddTool(
		mcp.NewTool("delete_prompt",
			mcp.WithDescription("Remove a prompt from history."),
			mcp.WithString("id", mcp.Description("Prompt id"), mcp.Required()),
		),
		mcpDeletePrompt(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"prompts://favorites",
			"Favorite Prompts",
			mcp.WithResourceDescription("Prompts marked as favorite, newest first"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecords(deps.Store.Favorites),
	)

	s.AddResource(
		mcp.NewResource(
			"prompts://history",
			"Prompt History",
			mcp.WithResourceDescription("The 20 most recent prompts"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecords(func() []storage.PromptRecord {
			return deps.Store.Recent(historyLimit)
		}),
	)

	return s
}

func mcpGeneratePrompt(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		in, err := req.RequireString("input")
		if err != nil {
			return mcpError("input is required"), nil
		}

		rec, err := deps.Generator.GenerateAndRecord(ctx, deps.Store, in)
		switch {
		case errors.Is(err, generator.ErrEmptyInput):
			return mcpError("input must not be blank"), nil
		case errors.Is(err, storage.ErrPersist):
			return mcpText(fmt.Sprintf("%s\n\n(warning: history not saved: %v)", rec.GeneratedPrompt, err)), nil
		case err != nil:
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}

		return mcpText(rec.GeneratedPrompt), nil
	}
}

func mcpToggleFavorite(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		if _, err := deps.Store.Get(id); err != nil {
			return mcpError(fmt.Sprintf("prompt %s not found", id)), nil
		}

		err = deps.Store.ToggleFavorite(id)
		if err != nil && !errors.Is(err, storage.ErrPersist) {
			return mcpError(fmt.Sprintf("failed to update prompt: %v", err)), nil
		}

		rec, _ := deps.Store.Get(id)
		if rec.IsFavorite {
			return mcpChanged(fmt.Sprintf("Prompt %s added to favorites", id), err), nil
		}
		return mcpChanged(fmt.Sprintf("Prompt %s removed from favorites", id), err), nil
	}
}

func mcpRatePrompt(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		rating := req.GetInt("rating", 0)
		if _, err := deps.Store.Get(id); err != nil {
			return mcpError(fmt.Sprintf("prompt %s not found", id)), nil
		}

		err = deps.Store.SetRating(id, rating)
		if errors.Is(err, storage.ErrInvalidRating) {
			return mcpError(fmt.Sprintf("rating must be between %d and %d", storage.MinRating, storage.MaxRating)), nil
		}
		if err != nil && !errors.Is(err, storage.ErrPersist) {
			return mcpError(fmt.Sprintf("failed to rate prompt: %v", err)), nil
		}
		return mcpChanged(fmt.Sprintf("Rated prompt %s %d/%d", id, rating, storage.MaxRating), err), nil
	}
}

func mcpDeletePrompt(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		if _, err := deps.Store.Get(id); err != nil {
			return mcpError(fmt.Sprintf("prompt %s not found", id)), nil
		}

		err = deps.Store.Delete(id)
		if err != nil && !errors.Is(err, storage.ErrPersist) {
			return mcpError(fmt.Sprintf("failed to delete prompt: %v", err)), nil
		}
		return mcpChanged(fmt.Sprintf("Deleted prompt %s", id), err), nil
	}
}

func mcpResourceRecords(list func() []storage.PromptRecord) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records := list()
		if records == nil {
			records = []storage.PromptRecord{}
		}

		b, err := json.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal prompts: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// mcpChanged reports a mutation that took effect in memory. A persist
// failure is appended as a warning rather than flagged as a tool error.
func mcpChanged(msg string, persistErr error) *mcp.CallToolResult {
	if persistErr == nil {
		return mcpText(msg)
	}
	return mcpText(fmt.Sprintf("%s\n\n(warning: history not saved: %v)", msg, persistErr))
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
