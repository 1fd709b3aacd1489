package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ggoodman/mcp-client-go/client"
)

// fileConfig is the YAML layout of the bridge configuration file.
type fileConfig struct {
	Server struct {
		Command string            `yaml:"command"`
		Args    []string          `yaml:"args"`
		Env     map[string]string `yaml:"env"`
		Dir     string            `yaml:"dir"`
	} `yaml:"server"`
	Client struct {
		Name            string `yaml:"name"`
		Version         string `yaml:"version"`
		RequestTimeout  string `yaml:"request_timeout"`
		ProtocolVersion string `yaml:"protocol_version"`
	} `yaml:"client"`
	Roots struct {
		Dirs  []string `yaml:"dirs"`
		Watch bool     `yaml:"watch"`
	} `yaml:"roots"`
	Broker   string `yaml:"broker"`
	LogLevel string `yaml:"log_level"`
	Call     struct {
		Tool      string         `yaml:"tool"`
		Arguments map[string]any `yaml:"arguments"`
	} `yaml:"call"`
}

// bridgeConfig is the resolved configuration the bridge runs with.
type bridgeConfig struct {
	Command   string
	Args      []string
	Env       []string
	Dir       string
	Client    client.Config
	RootDirs  []string
	WatchRoot bool
	// Broker is "" (none) or "redis".
	Broker   string
	LogLevel string
	Tool     string
	ToolArgs map[string]any
}

// loadConfig layers the YAML file at path (optional when empty) over
// base, which normally comes from the environment.
func loadConfig(path string, base client.Config) (bridgeConfig, error) {
	cfg := bridgeConfig{Client: base, LogLevel: "info"}
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return bridgeConfig{}, fmt.Errorf("read config: %w", err)
	}
	var raw fileConfig
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return bridgeConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Command = strings.TrimSpace(raw.Server.Command)
	cfg.Args = raw.Server.Args
	cfg.Dir = raw.Server.Dir
	cfg.Env = envList(raw.Server.Env)

	if v := strings.TrimSpace(raw.Client.Name); v != "" {
		cfg.Client.ClientName = v
	}
	if v := strings.TrimSpace(raw.Client.Version); v != "" {
		cfg.Client.ClientVersion = v
	}
	if v := strings.TrimSpace(raw.Client.RequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return bridgeConfig{}, fmt.Errorf("parse request_timeout: %w", err)
		}
		cfg.Client.RequestTimeout = d
	}
	if v := strings.TrimSpace(raw.Client.ProtocolVersion); v != "" {
		cfg.Client.ProtocolVersion = v
	}
	if err := cfg.Client.Validate(); err != nil {
		return bridgeConfig{}, err
	}

	cfg.RootDirs = raw.Roots.Dirs
	cfg.WatchRoot = raw.Roots.Watch

	switch kind := strings.ToLower(strings.TrimSpace(raw.Broker)); kind {
	case "", "none":
	case "redis":
		cfg.Broker = kind
	default:
		return bridgeConfig{}, fmt.Errorf("unknown broker %q", raw.Broker)
	}

	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	cfg.Tool = strings.TrimSpace(raw.Call.Tool)
	cfg.ToolArgs = raw.Call.Arguments

	return cfg, nil
}

func (c bridgeConfig) validate() error {
	if c.Command == "" {
		return errors.New("server command is required")
	}
	return nil
}

// envList renders env as sorted KEY=VALUE pairs.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
