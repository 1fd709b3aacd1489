// Command mcpbridge spawns an MCP server over stdio, performs the handshake
// and prints what the server offers. It can optionally call one tool.
//
// Usage:
//
//	mcpbridge -config mcpbridge.yaml [-env .env] [-tool name -args '{"k":"v"}']
//	mcpbridge [flags] -- server-command [server-args...]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ggoodman/mcp-client-go/client"
)

func main() {
	if err := runMain(); err != nil {
		fmt.Fprintf(os.Stderr, "mcpbridge: %v\n", err)
		os.Exit(1)
	}
}

func runMain() error {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	envFile := flag.String("env", ".env", "dotenv file loaded before reading the environment")
	tool := flag.String("tool", "", "tool to call after listing")
	toolArgs := flag.String("args", "", "JSON object of tool arguments")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", *envFile, err)
	}

	base, err := client.ConfigFromEnv()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath, base)
	if err != nil {
		return err
	}
	if rest := flag.Args(); len(rest) > 0 {
		cfg.Command = rest[0]
		cfg.Args = rest[1:]
	}
	if *tool != "" {
		cfg.Tool = *tool
	}
	if *toolArgs != "" {
		if err := json.Unmarshal([]byte(*toolArgs), &cfg.ToolArgs); err != nil {
			return fmt.Errorf("parse -args: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, logger, os.Stdout)
}
