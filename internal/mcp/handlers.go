package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cogbench/cogbench/internal/errors"
	"github.com/cogbench/cogbench/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// BuildRequest represents the arguments for build and rebuild.
type BuildRequest struct {
	Ref         string `json:"ref"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	SourceText  string `json:"source_text"`
}

// RefRequest represents the arguments for publish and unpublish.
type RefRequest struct {
	Ref string `json:"ref"`
}

// StatusRequest represents the arguments for status.
type StatusRequest struct {
	Ref      string `json:"ref,omitempty"`
	PublicID string `json:"public_id,omitempty"`
}

// ListRequest represents the arguments for list.
type ListRequest struct {
	PublicOnly bool   `json:"public_only,omitempty"`
	Status     string `json:"status,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// Handler implementations

// HandleBuild handles the build tool call.
func (h *Handlers) HandleBuild(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.handleBuild(ctx, req, ops.Build)
}

// HandleRebuild handles the rebuild tool call.
func (h *Handlers) HandleRebuild(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.handleBuild(ctx, req, ops.Rebuild)
}

type buildFunc func(context.Context, *ops.Env, ops.BuildInput) (*ops.BuildOutput, error)

func (h *Handlers) handleBuild(ctx context.Context, req mcp.CallToolRequest, fn buildFunc) (*mcp.CallToolResult, error) {
	input, err := decode[BuildRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if _, ok := req.GetArguments()["source_text"]; !ok {
		return errorResult(errors.NewInvalidRequest("source_text is required")), nil
	}

	result, err := fn(ctx, h.env, ops.BuildInput{
		Ref:         input.Ref,
		Title:       input.Title,
		Description: input.Description,
		SourceText:  input.SourceText,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePublish handles the publish tool call.
func (h *Handlers) HandlePublish(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RefRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Publish(ctx, h.env, ops.PublishInput{Ref: input.Ref})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleUnpublish handles the unpublish tool call.
func (h *Handlers) HandleUnpublish(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RefRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Unpublish(ctx, h.env, ops.PublishInput{Ref: input.Ref})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStatus handles the status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatusRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Status(ctx, h.env.DB, ops.StatusInput{
		Ref:      input.Ref,
		PublicID: input.PublicID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.env.DB, ops.ListInput{
		PublicOnly: input.PublicOnly,
		Status:     input.Status,
		Limit:      input.Limit,
		Offset:     input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Helper functions

// errorResult creates an error result in the standard error format.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var cErr *errors.CogError
	if stderrors.As(err, &cErr) {
		msg := cErr.Message
		// Keep wrapper context such as "rebuild exp-1: "
		if prefix, ok := strings.CutSuffix(err.Error(), cErr.Error()); ok && prefix != "" {
			msg = prefix + msg
		}
		errorObj := map[string]any{
			"code":    cErr.Code,
			"message": msg,
			"status":  cErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if cErr.Status < 500 && cErr.Details != nil {
			errorObj["details"] = cErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates a success result with JSON content.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
