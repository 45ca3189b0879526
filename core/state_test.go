package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateCopiesHistory(t *testing.T) {
	history := []Content{NewTextContent(RoleUser, "hi")}
	st := NewState(history, nil)

	st.Append(NewTextContent(RoleAssistant, "hello"))

	assert.Len(t, history, 1)
	assert.Len(t, st.Messages, 2)
	assert.Equal(t, 0, st.IterationCount)
	assert.Equal(t, 0, st.SupervisorTurns)
}

func TestPendingToolCalls(t *testing.T) {
	st := NewState([]Content{NewTextContent(RoleUser, "weather?")}, nil)
	assert.Nil(t, st.PendingToolCalls())

	st.Append(Content{Role: RoleAssistant, Parts: []Part{
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "get_weather", Arguments: `{"location":"NYC"}`}},
	}})

	calls := st.PendingToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)

	// A tool-result message on top means nothing is pending anymore.
	st.Append(NewToolResultContent("c1", "get_weather", "Sunny"))
	assert.Nil(t, st.PendingToolCalls())
}

func TestWithSystemPromptPrependsOnce(t *testing.T) {
	st := NewState([]Content{NewTextContent(RoleUser, "hi")}, nil)

	first := st.WithSystemPrompt("be helpful")
	require.Equal(t, RoleSystem, first[0].Role)
	assert.Equal(t, "be helpful", first[0].Text())

	// The stored sequence is untouched; repeated calls never double-inject.
	assert.Equal(t, RoleUser, st.Messages[0].Role)
	again := st.WithSystemPrompt("be helpful")
	var systemCount int
	for _, m := range again {
		if m.Role == RoleSystem {
			systemCount++
		}
	}
	assert.Equal(t, 1, systemCount)
}

func TestWithSystemPromptRespectsCallerDirective(t *testing.T) {
	st := NewState([]Content{
		NewTextContent(RoleSystem, "caller directive"),
		NewTextContent(RoleUser, "hi"),
	}, nil)

	msgs := st.WithSystemPrompt("default directive")
	require.Len(t, msgs, 2)
	assert.Equal(t, "caller directive", msgs[0].Text())
}

func TestLastAssistantText(t *testing.T) {
	st := NewState(nil, nil)
	assert.Empty(t, st.LastAssistantText())

	st.Append(NewTextContent(RoleAssistant, "first"))
	st.Append(NewToolResultContent("c1", "get_weather", "Sunny"))
	st.Append(NewTextContent(RoleAssistant, "second"))

	assert.Equal(t, "second", st.LastAssistantText())
}
