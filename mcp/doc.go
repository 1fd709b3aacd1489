// Package mcp contains protocol data types and constants used by the client
// session. It mirrors the wire representation specified by the Model Context
// Protocol while keeping the surface Go-friendly (exported structs with json
// tags, string constants for method names and enumerations, helper
// validation functions).
//
// The package is free of transport logic. Package client builds requests
// from these types, hands them to the correlator and decodes results back
// into them.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod). Using the constants avoids typographical mistakes
// and keeps the wire contract in one place.
//
// # Protocol Versions
//
// The client requests LatestProtocolVersion during initialize and accepts any
// version listed in SupportedProtocolVersions in the server's reply. Anything
// else is fatal to the session.
//
// # Tool Schemas
//
// Tool.InputSchema and Tool.OutputSchema are kept as raw JSON so callers can
// compile them for validation without a lossy round trip.
//
// # Logging Levels
//
// LoggingLevel values mirror syslog severities defined by the protocol. Use
// IsValidLoggingLevel to validate user-provided values before calling
// logging/setLevel.
package mcp
