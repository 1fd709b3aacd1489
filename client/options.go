package client

import (
	"log/slog"
	"time"

	"github.com/ggoodman/mcp-client-go/broker"
	"github.com/ggoodman/mcp-client-go/mcp"
	"github.com/ggoodman/mcp-client-go/mcp/sampling"
	"github.com/ggoodman/mcp-client-go/roots"
)

// Option customizes a Session.
type Option func(*Session)

// WithLogger overrides the logger. Records logged with a context carry the
// session id and state.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithConfig replaces the session configuration wholesale. Blank fields
// take their defaults and a negative request timeout means no timeout.
func WithConfig(cfg Config) Option {
	return func(s *Session) {
		if cfg.RequestTimeout < 0 {
			cfg.RequestTimeout = 0
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
		s.cfg = cfg
	}
}

// WithClientInfo sets the clientInfo sent during the handshake.
func WithClientInfo(name, version string) Option {
	return func(s *Session) {
		if name != "" {
			s.cfg.ClientName = name
		}
		if version != "" {
			s.cfg.ClientVersion = version
		}
	}
}

// WithRequestTimeout bounds every outbound request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.cfg.RequestTimeout = d
		}
	}
}

// WithProtocolVersion sets the protocol version requested in initialize.
func WithProtocolVersion(v string) Option {
	return func(s *Session) {
		if v != "" {
			s.cfg.ProtocolVersion = v
		}
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithSamplingHandler sets the handler for sampling/createMessage requests
// from the server. Without one those requests get method not found.
func WithSamplingHandler(h sampling.Handler) Option {
	return func(s *Session) { s.sampling = h }
}

// WithRootsProvider sets the roots listed to the server. If p also implements
// roots.ChangeSubscriber, every change is announced to the server with
// notifications/roots/list_changed once the session is ready.
func WithRootsProvider(p roots.Provider) Option {
	return func(s *Session) { s.roots = p }
}

// WithRequestHandler registers h for server-initiated requests of the given
// method, replacing any built-in handler.
func WithRequestHandler(method mcp.Method, h RequestHandler) Option {
	return func(s *Session) {
		if h != nil {
			s.handlers[method] = h
		}
	}
}

// WithNotificationHandler adds h to the handlers invoked, in stream order,
// for server notifications of the given method.
func WithNotificationHandler(method mcp.Method, h NotificationHandler) Option {
	return func(s *Session) {
		if h != nil {
			s.notifyHandlers[method] = append(s.notifyHandlers[method], h)
		}
	}
}

// WithNotificationBroker publishes every notification received from the
// server to b under namespace. An empty namespace uses the session id.
func WithNotificationBroker(b broker.Broker, namespace string) Option {
	return func(s *Session) {
		s.broker = b
		s.brokerNS = namespace
	}
}

// WithToolArgumentValidation makes CallTool validate arguments against the
// input schema returned by the most recent ListTools for that tool.
func WithToolArgumentValidation() Option {
	return func(s *Session) { s.validateToolArgs = true }
}
