package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/ggoodman/mcp-client-go/broker/redis"
	"github.com/ggoodman/mcp-client-go/client"
	"github.com/ggoodman/mcp-client-go/mcp"
	"github.com/ggoodman/mcp-client-go/roots"
	"github.com/ggoodman/mcp-client-go/stdio"
)

const maxPages = 100

// report is what the bridge prints after talking to the server.
type report struct {
	SessionID       string                 `json:"sessionId"`
	Server          mcp.ImplementationInfo `json:"server"`
	ProtocolVersion string                 `json:"protocolVersion"`
	Instructions    string                 `json:"instructions,omitzero"`
	Tools           []mcp.Tool             `json:"tools,omitempty"`
	Resources       []mcp.Resource         `json:"resources,omitempty"`
	Prompts         []mcp.Prompt           `json:"prompts,omitempty"`
	ToolResult      *mcp.CallToolResult    `json:"toolResult,omitempty"`
}

func run(ctx context.Context, cfg bridgeConfig, logger *slog.Logger, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := []client.Option{
		client.WithLogger(logger),
		client.WithConfig(cfg.Client),
		client.WithToolArgumentValidation(),
	}

	if len(cfg.RootDirs) > 0 {
		provider, err := rootsProvider(ctx, cfg, logger)
		if err != nil {
			return err
		}
		opts = append(opts, client.WithRootsProvider(provider))
	}

	if cfg.Broker == "redis" {
		b, err := redis.NewFromEnv(ctx)
		if err != nil {
			return fmt.Errorf("redis broker: %w", err)
		}
		defer b.Close()
		opts = append(opts, client.WithNotificationBroker(b, ""))
	}

	proc, err := stdio.StartCommand(ctx, stdio.CommandConfig{
		Command: cfg.Command,
		Args:    cfg.Args,
		Env:     cfg.Env,
		Dir:     cfg.Dir,
	}, stdio.WithLogger(logger))
	if err != nil {
		return err
	}

	sess := client.New(proc, proc, opts...)
	defer sess.Close()

	res, err := sess.Initialize(ctx)
	if err != nil {
		return err
	}

	rep := report{
		SessionID:       sess.ID(),
		Server:          res.ServerInfo,
		ProtocolVersion: res.ProtocolVersion,
		Instructions:    res.Instructions,
	}

	caps := sess.ServerCapabilities()
	if caps.Tools != nil || cfg.Tool != "" {
		rep.Tools, err = collect(ctx, func(ctx context.Context, cursor string) ([]mcp.Tool, string, error) {
			page, err := sess.ListTools(ctx, cursor)
			if err != nil {
				return nil, "", err
			}
			return page.Tools, page.NextCursor, nil
		})
		if err != nil {
			return fmt.Errorf("list tools: %w", err)
		}
	}
	if caps.Resources != nil {
		rep.Resources, err = collect(ctx, func(ctx context.Context, cursor string) ([]mcp.Resource, string, error) {
			page, err := sess.ListResources(ctx, cursor)
			if err != nil {
				return nil, "", err
			}
			return page.Resources, page.NextCursor, nil
		})
		if err != nil {
			return fmt.Errorf("list resources: %w", err)
		}
	}
	if caps.Prompts != nil {
		rep.Prompts, err = collect(ctx, func(ctx context.Context, cursor string) ([]mcp.Prompt, string, error) {
			page, err := sess.ListPrompts(ctx, cursor)
			if err != nil {
				return nil, "", err
			}
			return page.Prompts, page.NextCursor, nil
		})
		if err != nil {
			return fmt.Errorf("list prompts: %w", err)
		}
	}

	if cfg.Tool != "" {
		rep.ToolResult, err = sess.CallTool(ctx, cfg.Tool, cfg.ToolArgs)
		if err != nil {
			return fmt.Errorf("call %s: %w", cfg.Tool, err)
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func rootsProvider(ctx context.Context, cfg bridgeConfig, logger *slog.Logger) (roots.Provider, error) {
	if cfg.WatchRoot {
		w, err := roots.NewWatcher(logger, cfg.RootDirs...)
		if err != nil {
			return nil, err
		}
		go func() {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("bridge.roots.watch.fail", slog.String("err", err.Error()))
			}
		}()
		return w, nil
	}

	list := make([]mcp.Root, 0, len(cfg.RootDirs))
	for _, dir := range cfg.RootDirs {
		r, err := roots.DirRoot(dir)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return roots.NewStatic(list...), nil
}

// collect follows nextCursor until the last page.
func collect[T any](ctx context.Context, page func(ctx context.Context, cursor string) ([]T, string, error)) ([]T, error) {
	var all []T
	cursor := ""
	for range maxPages {
		items, next, err := page(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
	return nil, fmt.Errorf("more than %d pages", maxPages)
}
