package sampling

import (
	"context"
	"errors"
	"fmt"

	"github.com/ggoodman/mcp-client-go/mcp"
)

// Handler services a server-initiated sampling/createMessage request. It is
// the client's hook into whatever model the host application uses.
type Handler func(ctx context.Context, req *mcp.CreateMessageRequest) (*mcp.CreateMessageResult, error)

// TextBlock constructs a text content block.
func TextBlock(text string) mcp.ContentBlock {
	return mcp.ContentBlock{Type: mcp.ContentTypeText, Text: text}
}

// UserText returns a SamplingMessage authored by the user with a single text block.
func UserText(text string) mcp.SamplingMessage {
	return mcp.SamplingMessage{Role: mcp.RoleUser, Content: TextBlock(text)}
}

// AssistantText returns a SamplingMessage authored by the assistant with a single text block.
func AssistantText(text string) mcp.SamplingMessage {
	return mcp.SamplingMessage{Role: mcp.RoleAssistant, Content: TextBlock(text)}
}

// TextResult builds an assistant text result as returned to the server.
func TextResult(model, text string) *mcp.CreateMessageResult {
	return &mcp.CreateMessageResult{
		Role:       mcp.RoleAssistant,
		Content:    TextBlock(text),
		Model:      model,
		StopReason: "endTurn",
	}
}

// CreateOption mutates a CreateMessageRequest during construction.
type CreateOption func(*mcp.CreateMessageRequest)

// WithSystemPrompt sets the system prompt.
func WithSystemPrompt(prompt string) CreateOption {
	return func(r *mcp.CreateMessageRequest) { r.SystemPrompt = prompt }
}

// WithMaxTokens sets the MaxTokens field.
func WithMaxTokens(n int) CreateOption {
	return func(r *mcp.CreateMessageRequest) { r.MaxTokens = n }
}

// WithTemperature sets the Temperature field.
func WithTemperature(t float64) CreateOption {
	return func(r *mcp.CreateMessageRequest) { r.Temperature = t }
}

// WithStopSequences sets stop sequences.
func WithStopSequences(stops ...string) CreateOption {
	return func(r *mcp.CreateMessageRequest) { r.StopSequences = append([]string(nil), stops...) }
}

// WithModelPreferences sets model preferences.
func WithModelPreferences(prefs *mcp.ModelPreferences) CreateOption {
	return func(r *mcp.CreateMessageRequest) { r.ModelPreferences = prefs }
}

// NewCreateMessage constructs a *CreateMessageRequest with the provided messages and options.
func NewCreateMessage(msgs []mcp.SamplingMessage, opts ...CreateOption) *mcp.CreateMessageRequest {
	r := &mcp.CreateMessageRequest{Messages: append([]mcp.SamplingMessage(nil), msgs...)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ValidateCreateMessage performs sanity checks on an incoming
// CreateMessageRequest before it reaches a Handler.
func ValidateCreateMessage(r *mcp.CreateMessageRequest) error {
	if r == nil {
		return errors.New("nil request")
	}
	if len(r.Messages) == 0 {
		return errors.New("no messages provided")
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("maxTokens must not be negative, got %d", r.MaxTokens)
	}
	for i, m := range r.Messages {
		if m.Role != mcp.RoleUser && m.Role != mcp.RoleAssistant {
			return fmt.Errorf("invalid role %q in message %d", m.Role, i)
		}
		if m.Content.Type == "" {
			return fmt.Errorf("empty content type in message %d", i)
		}
	}
	return nil
}

// LastUserText returns the text of the most recent user text message, which
// is what simple handlers forward to their model.
func LastUserText(r *mcp.CreateMessageRequest) (string, bool) {
	if r == nil {
		return "", false
	}
	for i := len(r.Messages) - 1; i >= 0; i-- {
		m := r.Messages[i]
		if m.Role == mcp.RoleUser && m.Content.Type == mcp.ContentTypeText {
			return m.Content.Text, true
		}
	}
	return "", false
}
