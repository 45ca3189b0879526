// Package model defines the provider-agnostic generation boundary used by the
// orchestration graph. Adapters for concrete vendors live in subpackages and
// translate the normalized Request/Response structures into SDK calls.
package model

import (
	"context"
	"fmt"

	"github.com/zelfhosted/server/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by the graph. Tool
// declarations are omitted for tool-less passes such as quality review.
type Request struct {
	Contents []core.Content   `json:"contents"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
	Stream   bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface the graph needs to drive generation.
// Generate returns a response channel and an error channel; both are closed
// when the pass completes. Exactly one non-partial Response terminates a
// successful pass.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockTurn scripts one model pass for MockModel: optional answer text plus
// optional tool invocations to request.
type MockTurn struct {
	Text  string
	Calls []core.FunctionCall
	Err   error
}

// MockModel replays scripted turns in order, one per Generate call. It is the
// test double for graph scenarios where the same instance serves both the
// answering pass and the tool-less review pass.
type MockModel struct {
	info  Info
	turns []MockTurn
	next  int
	reqs  []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(turns ...MockTurn) *MockModel {
	return &MockModel{
		info: Info{
			Name:          "mock",
			Provider:      "mock",
			SupportsTools: true,
		},
		turns: turns,
	}
}

// Calls reports how many Generate passes have been consumed.
func (m *MockModel) Calls() int { return m.next }

// Requests returns the recorded inputs, one per Generate call.
func (m *MockModel) Requests() []Request { return m.reqs }

// Generate implements Model; emits per-rune partial chunks when streaming was
// requested, then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)
	m.reqs = append(m.reqs, req)

	if m.next >= len(m.turns) {
		close(respCh)
		errCh <- fmt.Errorf("mock model: no scripted turn for pass %d", m.next+1)
		close(errCh)
		return respCh, errCh
	}
	turn := m.turns[m.next]
	m.next++

	go func() {
		defer close(respCh)
		defer close(errCh)
		if turn.Err != nil {
			errCh <- turn.Err
			return
		}
		if req.Stream && turn.Text != "" {
			for _, r := range turn.Text {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.NewTextContent(core.RoleAssistant, string(r)),
				}:
				}
			}
		}
		parts := make([]core.Part, 0, len(turn.Calls)+1)
		if turn.Text != "" {
			parts = append(parts, core.TextPart{Text: turn.Text})
		}
		for _, fc := range turn.Calls {
			parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
		}
		finish := "stop"
		if len(turn.Calls) > 0 {
			finish = "tool_calls"
		}
		respCh <- Response{
			Partial:      false,
			Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
			FinishReason: finish,
		}
	}()
	return respCh, errCh
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
