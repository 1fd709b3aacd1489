package client

import (
	"errors"
	"fmt"

	"github.com/ggoodman/mcp-client-go/internal/jsonrpc"
)

var (
	// ErrUnsupportedProtocolVersion matches any *ProtocolVersionError.
	ErrUnsupportedProtocolVersion = errors.New("unsupported protocol version")
	// ErrTransportClosed indicates the inbound stream reached end of input.
	ErrTransportClosed = errors.New("transport closed")
	// ErrSessionClosed is returned for requests that were pending when the
	// session was torn down, and for operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrInvalidState indicates the operation is not allowed in the
	// session's current state.
	ErrInvalidState = errors.New("invalid session state")
	// ErrSessionFailed is returned by every operation once the session has
	// failed.
	ErrSessionFailed = errors.New("session failed")
)

// JSON-RPC error codes a RequestHandler may return through *RPCError.
const (
	CodeParseError     = int(jsonrpc.ErrorCodeParseError)
	CodeInvalidRequest = int(jsonrpc.ErrorCodeInvalidRequest)
	CodeMethodNotFound = int(jsonrpc.ErrorCodeMethodNotFound)
	CodeInvalidParams  = int(jsonrpc.ErrorCodeInvalidParams)
	CodeInternalError  = int(jsonrpc.ErrorCodeInternalError)
)

// ProtocolVersionError is returned by Initialize when the server answers
// with a protocol version the client does not support.
type ProtocolVersionError struct {
	Version string
}

func (e *ProtocolVersionError) Error() string {
	return fmt.Sprintf("unsupported protocol version %q", e.Version)
}

func (e *ProtocolVersionError) Is(target error) bool {
	return target == ErrUnsupportedProtocolVersion
}

// MalformedMessageError describes an inbound message that could not be
// decoded. The consumer loop logs and skips such messages.
type MalformedMessageError struct {
	Raw []byte
	Err error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message: %v", e.Err)
}

func (e *MalformedMessageError) Unwrap() error { return e.Err }

// RPCError is a JSON-RPC error object. The server returns it for failed
// requests; request handlers return it to control the code sent back.
type RPCError struct {
	Code    int
	Message string
	Data    any
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func invalidParams(err error) *RPCError {
	return &RPCError{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
}

// ToolArgumentsError is returned by CallTool when argument validation is
// enabled and the arguments do not satisfy the tool's input schema. The
// request is never sent.
type ToolArgumentsError struct {
	Tool string
	Err  error
}

func (e *ToolArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %q: %v", e.Tool, e.Err)
}

func (e *ToolArgumentsError) Unwrap() error { return e.Err }
