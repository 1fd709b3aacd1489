package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ggoodman/mcp-client-go/mcp"
)

// request gates a call on the session being ready.
func (s *Session) request(ctx context.Context, method mcp.Method, params, result any) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.call(s.withSession(ctx), method, params, result)
}

// Ping checks that the server is responsive.
func (s *Session) Ping(ctx context.Context) error {
	return s.request(ctx, mcp.PingMethod, nil, nil)
}

// SetLoggingLevel asks the server to send log messages at level or above.
func (s *Session) SetLoggingLevel(ctx context.Context, level mcp.LoggingLevel) error {
	if !mcp.IsValidLoggingLevel(level) {
		return fmt.Errorf("invalid logging level %q", level)
	}
	return s.request(ctx, mcp.LoggingSetLevelMethod, &mcp.SetLevelRequest{Level: level}, nil)
}

// ListResources returns one page of resources. An empty cursor requests
// the first page.
func (s *Session) ListResources(ctx context.Context, cursor string) (*mcp.ListResourcesResult, error) {
	var res mcp.ListResourcesResult
	req := &mcp.ListResourcesRequest{PaginatedRequest: mcp.PaginatedRequest{Cursor: cursor}}
	if err := s.request(ctx, mcp.ResourcesListMethod, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListResourceTemplates returns one page of resource templates.
func (s *Session) ListResourceTemplates(ctx context.Context, cursor string) (*mcp.ListResourceTemplatesResult, error) {
	var res mcp.ListResourceTemplatesResult
	req := &mcp.ListResourceTemplatesRequest{PaginatedRequest: mcp.PaginatedRequest{Cursor: cursor}}
	if err := s.request(ctx, mcp.ResourcesTemplatesListMethod, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReadResource reads the contents of the resource at uri.
func (s *Session) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	var res mcp.ReadResourceResult
	if err := s.request(ctx, mcp.ResourcesReadMethod, &mcp.ReadResourceRequest{URI: uri}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SubscribeResource asks for notifications/resources/updated about uri.
func (s *Session) SubscribeResource(ctx context.Context, uri string) error {
	return s.request(ctx, mcp.ResourcesSubscribeMethod, &mcp.SubscribeRequest{URI: uri}, nil)
}

// UnsubscribeResource ends a subscription made with SubscribeResource.
func (s *Session) UnsubscribeResource(ctx context.Context, uri string) error {
	return s.request(ctx, mcp.ResourcesUnsubscribeMethod, &mcp.UnsubscribeRequest{URI: uri}, nil)
}

// ListPrompts returns one page of prompts.
func (s *Session) ListPrompts(ctx context.Context, cursor string) (*mcp.ListPromptsResult, error) {
	var res mcp.ListPromptsResult
	req := &mcp.ListPromptsRequest{PaginatedRequest: mcp.PaginatedRequest{Cursor: cursor}}
	if err := s.request(ctx, mcp.PromptsListMethod, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetPrompt renders the named prompt with args.
func (s *Session) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	var res mcp.GetPromptResult
	if err := s.request(ctx, mcp.PromptsGetMethod, &mcp.GetPromptRequest{Name: name, Arguments: args}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListTools returns one page of tools. Each tool's input schema is kept for
// argument validation in CallTool.
func (s *Session) ListTools(ctx context.Context, cursor string) (*mcp.ListToolsResult, error) {
	var res mcp.ListToolsResult
	req := &mcp.ListToolsRequest{PaginatedRequest: mcp.PaginatedRequest{Cursor: cursor}}
	if err := s.request(ctx, mcp.ToolsListMethod, req, &res); err != nil {
		return nil, err
	}
	for _, tool := range res.Tools {
		if len(tool.InputSchema) == 0 || string(tool.InputSchema) == "null" {
			continue
		}
		if err := s.toolSchemas.Put(tool.Name, tool.InputSchema); err != nil {
			s.log.WarnContext(s.withSession(ctx), "session.tools.schema.invalid", slog.String("tool", tool.Name), slog.String("err", err.Error()))
		}
	}
	return &res, nil
}

// CallTool invokes the named tool. A tool-level failure is reported through
// CallToolResult.IsError, not as an error.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	if s.validateToolArgs {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, &ToolArgumentsError{Tool: name, Err: err}
		}
		if args == nil {
			raw = nil
		}
		if _, err := s.toolSchemas.Validate(name, raw); err != nil {
			return nil, &ToolArgumentsError{Tool: name, Err: err}
		}
	}

	var res mcp.CallToolResult
	if err := s.request(ctx, mcp.ToolsCallMethod, &mcp.CallToolRequest{Name: name, Arguments: args}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Complete asks for completion values of one argument of a prompt or
// resource template.
func (s *Session) Complete(ctx context.Context, ref mcp.Reference, arg mcp.CompleteArgument) (*mcp.CompleteResult, error) {
	var res mcp.CompleteResult
	if err := s.request(ctx, mcp.CompletionCompleteMethod, &mcp.CompleteRequest{Ref: ref, Argument: arg}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SendProgressNotification reports progress of a request the server made.
func (s *Session) SendProgressNotification(ctx context.Context, params mcp.ProgressNotificationParams) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.notify(ctx, mcp.ProgressNotificationMethod, &params)
}

// SendRootsListChanged tells the server that the client's roots changed.
func (s *Session) SendRootsListChanged(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.notify(ctx, mcp.RootsListChangedNotificationMethod, nil)
}
