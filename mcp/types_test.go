package mcp

import (
	"encoding/json"
	"testing"
)

func TestIsSupportedProtocolVersion(t *testing.T) {
	t.Parallel()

	if !IsSupportedProtocolVersion(LatestProtocolVersion) {
		t.Fatalf("latest version must be supported")
	}
	if IsSupportedProtocolVersion("1999-01-01") {
		t.Fatalf("unexpected support for unknown version")
	}
}

func TestInitializeRequest_WireShape(t *testing.T) {
	t.Parallel()

	req := InitializeRequest{
		ProtocolVersion: LatestProtocolVersion,
		Capabilities: ClientCapabilities{
			Sampling: &struct{}{},
			Roots:    &RootsCapability{ListChanged: true},
		},
		ClientInfo: ImplementationInfo{Name: "MCP-Bridge", Version: "0.1.0"},
	}
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"protocolVersion":"2025-06-18","capabilities":{"roots":{"listChanged":true},"sampling":{}},"clientInfo":{"name":"MCP-Bridge","version":"0.1.0"}}`
	if string(b) != want {
		t.Fatalf("got  %s\nwant %s", b, want)
	}
}

func TestReferenceConstructors(t *testing.T) {
	t.Parallel()

	b, _ := json.Marshal(PromptReference("greet"))
	if string(b) != `{"type":"ref/prompt","name":"greet"}` {
		t.Fatalf("prompt ref: %s", b)
	}
	b, _ = json.Marshal(ResourceReference("file:///{path}"))
	if string(b) != `{"type":"ref/resource","uri":"file:///{path}"}` {
		t.Fatalf("resource ref: %s", b)
	}
}
