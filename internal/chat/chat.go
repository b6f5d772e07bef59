// Package chat defines the chat-model boundary of the core: a minimal
// Complete(messages) → text interface, plus an adapter over the Eino
// chat-model components so any configured backend (Ollama, OpenAI, Azure,
// Bedrock-compatible, Gemini) satisfies it.
package chat

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Role identifies the author of a chat message.
type Role string

const (
	// RoleSystem carries instructions and grounding context.
	RoleSystem Role = "system"
	// RoleUser carries the caller's query.
	RoleUser Role = "user"
	// RoleAssistant carries a prior model response.
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat completion request.
type Message struct {
	// Role is the author of the message.
	Role Role
	// Content is the message text.
	Content string
}

// Model produces a single completion for an ordered message list.
// Implementations must be safe to call from multiple goroutines.
type Model interface {
	// Complete sends the messages to the backing model and returns the
	// text of the first completion.
	Complete(ctx context.Context, messages []Message) (string, error)
}

// EinoModel adapts an Eino chat model to the Model interface.
type EinoModel struct {
	// m is the underlying Eino chat model built by the provider factory.
	m model.BaseChatModel
}

// NewEinoModel wraps an Eino chat model.
func NewEinoModel(m model.BaseChatModel) *EinoModel {
	return &EinoModel{m: m}
}

// Complete converts the messages to Eino schema messages, performs one
// blocking Generate call, and returns the completion text.
func (e *EinoModel) Complete(ctx context.Context, messages []Message) (string, error) {
	schemaMsgs := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			schemaMsgs = append(schemaMsgs, schema.SystemMessage(m.Content))
		case RoleAssistant:
			schemaMsgs = append(schemaMsgs, schema.AssistantMessage(m.Content, nil))
		default:
			schemaMsgs = append(schemaMsgs, schema.UserMessage(m.Content))
		}
	}

	resp, err := e.m.Generate(ctx, schemaMsgs)
	if err != nil {
		return "", fmt.Errorf("chat: generate failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("chat: model returned nil response")
	}

	return resp.Content, nil
}
