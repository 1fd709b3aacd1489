package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"

	"github.com/ggoodman/mcp-client-go/mcp"
)

// DefaultClientName is the clientInfo name sent when none is configured.
const DefaultClientName = "MCP-Bridge"

// DefaultClientVersion is the clientInfo version sent when none is configured.
const DefaultClientVersion = "0.1.0"

// Config holds the settings of a Session that are commonly supplied by the
// environment.
type Config struct {
	ClientName    string `env:"MCP_CLIENT_NAME,default=MCP-Bridge"`
	ClientVersion string `env:"MCP_CLIENT_VERSION,default=0.1.0"`
	// RequestTimeout bounds every outbound request. Zero disables it.
	RequestTimeout time.Duration `env:"MCP_REQUEST_TIMEOUT"`
	// ProtocolVersion is the version requested during the handshake.
	// Empty means mcp.LatestProtocolVersion.
	ProtocolVersion string `env:"MCP_PROTOCOL_VERSION"`
}

// DefaultConfig returns the configuration used when no options are given.
func DefaultConfig() Config {
	return Config{
		ClientName:      DefaultClientName,
		ClientVersion:   DefaultClientVersion,
		ProtocolVersion: mcp.LatestProtocolVersion,
	}
}

// ConfigFromEnv decodes a Config from the process environment, applying
// defaults for unset variables.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode client config: %w", err)
	}
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = DefaultClientVersion
	}
	if cfg.ProtocolVersion == "" {
		cfg.ProtocolVersion = mcp.LatestProtocolVersion
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration values the session cannot work with.
func (c Config) Validate() error {
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative: %s", c.RequestTimeout)
	}
	if c.ProtocolVersion != "" && !mcp.IsSupportedProtocolVersion(c.ProtocolVersion) {
		return &ProtocolVersionError{Version: c.ProtocolVersion}
	}
	return nil
}
