package sampling

import (
	"testing"

	"github.com/ggoodman/mcp-client-go/mcp"
)

func TestNewCreateMessageBasic(t *testing.T) {
	msg := UserText("hello")
	r := NewCreateMessage([]mcp.SamplingMessage{msg}, WithSystemPrompt("system"), WithMaxTokens(10))
	if err := ValidateCreateMessage(r); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := r.SystemPrompt; got != "system" {
		t.Fatalf("systemPrompt mismatch: %s", got)
	}
	if r.MaxTokens != 10 {
		t.Fatalf("maxTokens mismatch: %d", r.MaxTokens)
	}
	if len(r.Messages) != 1 || r.Messages[0].Content.Text != "hello" {
		t.Fatalf("unexpected messages: %#v", r.Messages)
	}
}

func TestValidateCreateMessageErrors(t *testing.T) {
	if err := ValidateCreateMessage(nil); err == nil {
		t.Fatal("expected error for nil request")
	}
	if err := ValidateCreateMessage(&mcp.CreateMessageRequest{}); err == nil {
		t.Fatal("expected error for empty messages")
	}
	bad := NewCreateMessage([]mcp.SamplingMessage{{Role: "system", Content: TextBlock("x")}})
	if err := ValidateCreateMessage(bad); err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestLastUserText(t *testing.T) {
	r := NewCreateMessage([]mcp.SamplingMessage{
		UserText("first"),
		AssistantText("reply"),
		UserText("second"),
		AssistantText("another"),
	})
	got, ok := LastUserText(r)
	if !ok || got != "second" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
	if _, ok := LastUserText(NewCreateMessage(nil)); ok {
		t.Fatal("expected no user text")
	}
}

func TestTextResult(t *testing.T) {
	res := TextResult("m", "hi")
	if res.Role != mcp.RoleAssistant || res.Content.Text != "hi" || res.Model != "m" {
		t.Fatalf("unexpected result %#v", res)
	}
}
