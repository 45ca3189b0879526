package tool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() *FunctionTool {
	return NewFunctionTool(
		"echo",
		"Echo the given text back",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		func(ctx context.Context, args map[string]any) (string, error) {
			return args["text"].(string), nil
		},
	)
}

func TestFunctionToolCall(t *testing.T) {
	out, err := echoTool().Call(context.Background(), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestFunctionToolValidation(t *testing.T) {
	_, err := echoTool().Call(context.Background(), map[string]any{})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "echo", toolErr.Tool)
}

func TestFunctionToolWrapsExecutionError(t *testing.T) {
	boom := NewFunctionTool("boom", "always fails", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (string, error) {
			return "", fmt.Errorf("kaput")
		})

	_, err := boom.Call(context.Background(), nil)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Equal(t, "kaput", toolErr.Message)
}

func TestFunctionToolFromStruct(t *testing.T) {
	type args struct {
		Text string `json:"text" description:"Text to echo"`
	}
	echo := NewFunctionToolFromStruct("echo", "Echo the given text back", args{},
		func(ctx context.Context, a map[string]any) (string, error) {
			return a["text"].(string), nil
		})

	params := echo.Parameters()
	assert.Equal(t, []string{"text"}, params["required"])

	out, err := echo.Call(context.Background(), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)

	_, err = echo.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool())

	got, err := r.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", got.Name())

	_, err = r.Get("missing")
	assert.True(t, errors.Is(err, ErrUnknownTool))
}

func TestRegistryOrderAndReplace(t *testing.T) {
	r := NewRegistry()
	a := NewFunctionTool("a", "first", map[string]any{"type": "object"}, nil)
	b := NewFunctionTool("b", "second", map[string]any{"type": "object"}, nil)
	r.Register(a)
	r.Register(b)

	names := func() []string {
		var out []string
		for _, t := range r.List() {
			out = append(out, t.Name())
		}
		return out
	}
	assert.Equal(t, []string{"a", "b"}, names())

	// Re-registering keeps the slot.
	r.Register(NewFunctionTool("a", "replacement", map[string]any{"type": "object"}, nil))
	assert.Equal(t, []string{"a", "b"}, names())
	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "replacement", got.Description())
}
