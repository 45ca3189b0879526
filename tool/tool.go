// Package tool implements the function calling subsystem: schema validated
// capabilities the model can invoke, a registry resolving call names, and the
// embed extraction trait tools opt into when their results carry structured
// media payloads.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/zelfhosted/server/internal/util"
	"github.com/zelfhosted/server/stream"
)

// ErrUnknownTool is returned by Registry.Get when no tool carries the
// requested name. The orchestrator treats it as fatal for the run.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is a callable capability exposed to the model.
//
// Call executes with already-parsed arguments and returns the terminal result
// text. Expected domain failures (upstream API errors, empty lookups) belong
// in the returned string so the model can react to them; a non-nil error
// means the tool itself broke and aborts the run.
//
// Implementations must be safe for concurrent use.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description is shown to the model to guide tool selection.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// EmbedResult is the outcome of extracting structured media from a tool's
// raw result: the text to hand to the model plus the embed events to surface
// to the caller.
type EmbedResult struct {
	Text   string
	Events []stream.Event
}

// Embedder is implemented by tools whose results carry an embeddable payload.
// ExtractEmbeds reports ok=false when the raw result does not parse as the
// expected payload shape; the caller then passes the raw text through
// unchanged and surfaces no embeds.
type Embedder interface {
	ExtractEmbeds(raw string) (EmbedResult, bool)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Registry holds the tools available to one orchestrator instance. Lookup is
// by exact name; List preserves registration order so tool declarations reach
// the model deterministically. A Registry is built once at startup and read
// only afterwards, so no locking is needed.
type Registry struct {
	byName map[string]Tool
	order  []Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Register adds a tool. Registering a name twice replaces the earlier entry
// in place, keeping its position.
func (r *Registry) Register(t Tool) {
	if _, exists := r.byName[t.Name()]; exists {
		for i, existing := range r.order {
			if existing.Name() == t.Name() {
				r.order[i] = t
				break
			}
		}
	} else {
		r.order = append(r.order, t)
	}
	r.byName[t.Name()] = t
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return t, nil
}

// List returns all tools in registration order.
func (r *Registry) List() []Tool {
	out := make([]Tool, len(r.order))
	copy(out, r.order)
	return out
}
