package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zelfhosted/server/core"
	"github.com/zelfhosted/server/model"
	"github.com/zelfhosted/server/stream"
	"github.com/zelfhosted/server/tool"
)

func testRegistry() *tool.Registry {
	r := tool.NewRegistry()
	r.Register(tool.NewFunctionTool("get_weather", "weather lookup",
		map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (string, error) {
			return "Sunny, 72F", nil
		}))
	return r
}

func weatherCall(id string) core.FunctionCall {
	return core.FunctionCall{ID: id, Name: "get_weather", Arguments: `{"location":"NYC"}`}
}

func userMessages(text string) []core.Content {
	return []core.Content{core.NewTextContent(core.RoleUser, text)}
}

// --- routing ---

func TestShouldContinueRouting(t *testing.T) {
	g := New(model.NewMockModel(), testRegistry())

	mkState := func(last core.Content, iterations, turns int) *core.State {
		st := core.NewState(nil, nil)
		st.Append(last)
		st.IterationCount = iterations
		st.SupervisorTurns = turns
		return st
	}
	toolMsg := core.Content{Role: core.RoleAssistant, Parts: []core.Part{
		core.FunctionCallPart{FunctionCall: weatherCall("c1")},
	}}
	textMsg := core.NewTextContent(core.RoleAssistant, "done")

	cases := []struct {
		name       string
		last       core.Content
		iterations int
		turns      int
		want       route
	}{
		{"tool calls pending", toolMsg, 0, 0, routeTools},
		{"tool calls below ceiling", toolMsg, DefaultMaxIterations - 1, 0, routeTools},
		{"tool calls at ceiling", toolMsg, DefaultMaxIterations, 0, routeExit},
		{"tool calls above ceiling", toolMsg, DefaultMaxIterations + 5, 0, routeExit},
		{"direct answer no tools used", textMsg, 0, 0, routeExit},
		{"answer after tool use", textMsg, 1, 0, routeSupervisor},
		{"answer with review turns spent", textMsg, 1, DefaultMaxSupervisorTurns + 1, routeExit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := g.shouldContinue(mkState(tc.last, tc.iterations, tc.turns))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSupervisorShouldContinue(t *testing.T) {
	g := New(model.NewMockModel(), testRegistry())

	cases := []struct {
		name     string
		turns    int
		decision string
		want     route
	}{
		{"retry routes back", 1, DecisionRetry, routeChatbot},
		{"pass terminates", 1, DecisionPass, routeExit},
		{"past ceiling forces exit", DefaultMaxSupervisorTurns + 1, DecisionRetry, routeExit},
		{"at ceiling retry allowed", DefaultMaxSupervisorTurns, DecisionRetry, routeChatbot},
		{"empty decision terminates", 0, "", routeExit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := core.NewState(nil, nil)
			st.SupervisorTurns = tc.turns
			st.SupervisorDecision = tc.decision
			assert.Equal(t, tc.want, g.supervisorShouldContinue(st))
		})
	}
}

func TestIsRetryVerdict(t *testing.T) {
	assert.True(t, isRetryVerdict("RETRY - response is incomplete"))
	assert.True(t, isRetryVerdict("  retry: missing details"))
	assert.False(t, isRetryVerdict("PASS"))
	assert.False(t, isRetryVerdict("The answer should be retried")) // verdict is positional
	assert.False(t, isRetryVerdict(""))
}

// --- end to end scenarios ---

func TestRunDirectAnswer(t *testing.T) {
	m := model.NewMockModel(model.MockTurn{Text: "Hello! How can I help?"})
	g := New(m, testRegistry())
	rec := &stream.Recorder{}

	answer, err := g.Run(context.Background(), rec, Request{Messages: userMessages("hi")})
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", answer)

	// One model pass and no review: the answer came without tool use.
	assert.Equal(t, 1, m.Calls())
	assert.Empty(t, rec.OfType(stream.TypeSupervisorEvaluation))
	assert.Empty(t, rec.OfType(stream.TypeToolCall))

	decisions := rec.OfType(stream.TypePostProcessor)
	require.Len(t, decisions, 1)
	assert.Equal(t, false, decisions[0].Data["should_continue"])
}

func TestRunToolRoundThenReview(t *testing.T) {
	m := model.NewMockModel(
		model.MockTurn{Calls: []core.FunctionCall{weatherCall("c1")}},
		model.MockTurn{Text: "It is sunny and 72F."},
		model.MockTurn{Text: "PASS"},
	)
	g := New(m, testRegistry())
	rec := &stream.Recorder{}

	answer, err := g.Run(context.Background(), rec, Request{Messages: userMessages("weather in NYC?")})
	require.NoError(t, err)
	assert.Equal(t, "It is sunny and 72F.", answer)

	calls := rec.OfType(stream.TypeToolCall)
	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Data["tool"])

	results := rec.OfType(stream.TypeToolResult)
	require.Len(t, results, 1)
	assert.Equal(t, "Sunny, 72F", results[0].Data["result"])

	evals := rec.OfType(stream.TypeSupervisorEvaluation)
	require.Len(t, evals, 1)
	assert.Equal(t, DecisionPass, evals[0].Data["decision"])
	assert.Equal(t, 1, evals[0].Data["turn"])
}

func TestRunIterationCeiling(t *testing.T) {
	// The model requests a tool on every pass; the loop must stop after the
	// ceiling even though calls keep coming.
	turns := make([]model.MockTurn, 0, DefaultMaxIterations+1)
	for i := 0; i <= DefaultMaxIterations; i++ {
		turns = append(turns, model.MockTurn{Calls: []core.FunctionCall{weatherCall("c1")}})
	}
	m := model.NewMockModel(turns...)
	g := New(m, testRegistry())
	rec := &stream.Recorder{}

	_, err := g.Run(context.Background(), rec, Request{Messages: userMessages("loop")})
	require.NoError(t, err)

	assert.Len(t, rec.OfType(stream.TypeToolCall), DefaultMaxIterations)
	assert.Equal(t, DefaultMaxIterations+1, m.Calls())

	decisions := rec.OfType(stream.TypePostProcessor)
	last := decisions[len(decisions)-1]
	assert.Equal(t, false, last.Data["should_continue"])
	assert.Equal(t, DefaultMaxIterations, last.Data["iteration_count"])
}

func TestRunReviewRetry(t *testing.T) {
	m := model.NewMockModel(
		model.MockTurn{Calls: []core.FunctionCall{weatherCall("c1")}},
		model.MockTurn{Text: "It is weather."},
		model.MockTurn{Text: "RETRY - the answer ignores the tool result"},
		model.MockTurn{Text: "It is sunny and 72F in NYC."},
		model.MockTurn{Text: "PASS"},
	)
	g := New(m, testRegistry())
	rec := &stream.Recorder{}

	answer, err := g.Run(context.Background(), rec, Request{Messages: userMessages("weather?")})
	require.NoError(t, err)
	assert.Equal(t, "It is sunny and 72F in NYC.", answer)
	assert.Equal(t, 5, m.Calls())

	evals := rec.OfType(stream.TypeSupervisorEvaluation)
	require.Len(t, evals, 2)
	assert.Equal(t, DecisionRetry, evals[0].Data["decision"])
	assert.Equal(t, DecisionPass, evals[1].Data["decision"])
	assert.Equal(t, 2, evals[1].Data["turn"])
}

func TestRunReviewRetryCeiling(t *testing.T) {
	// Both evaluations demand a retry; the second one lands past the turn
	// ceiling and is overruled.
	m := model.NewMockModel(
		model.MockTurn{Calls: []core.FunctionCall{weatherCall("c1")}},
		model.MockTurn{Text: "first answer"},
		model.MockTurn{Text: "RETRY - bad"},
		model.MockTurn{Text: "second answer"},
		model.MockTurn{Text: "RETRY - still bad"},
	)
	g := New(m, testRegistry())
	rec := &stream.Recorder{}

	answer, err := g.Run(context.Background(), rec, Request{Messages: userMessages("q")})
	require.NoError(t, err)
	assert.Equal(t, "second answer", answer)
	assert.Equal(t, 5, m.Calls())
	assert.Len(t, rec.OfType(stream.TypeSupervisorEvaluation), 2)
}

func TestRunInjectsSystemPromptOnce(t *testing.T) {
	m := model.NewMockModel(
		model.MockTurn{Calls: []core.FunctionCall{weatherCall("c1")}},
		model.MockTurn{Text: "answer"},
		model.MockTurn{Text: "PASS"},
	)
	g := New(m, testRegistry())

	_, err := g.Run(context.Background(), stream.Discard, Request{Messages: userMessages("weather?")})
	require.NoError(t, err)

	reqs := m.Requests()
	require.Len(t, reqs, 3)

	// Both answering passes carry the directive exactly once, up front.
	for _, req := range reqs[:2] {
		require.Equal(t, core.RoleSystem, req.Contents[0].Role)
		assert.Equal(t, SystemPrompt, req.Contents[0].Text())
		count := 0
		for _, c := range req.Contents {
			if c.Role == core.RoleSystem {
				count++
			}
		}
		assert.Equal(t, 1, count)
	}

	// The review pass swaps in its own directive and declares no tools.
	review := reqs[2]
	assert.Equal(t, SupervisorPrompt, review.Contents[0].Text())
	assert.Empty(t, review.Tools)
	assert.NotEmpty(t, reqs[0].Tools)
}

func TestRunUnknownToolFails(t *testing.T) {
	m := model.NewMockModel(model.MockTurn{Calls: []core.FunctionCall{
		{ID: "c1", Name: "launch_rocket", Arguments: "{}"},
	}})
	g := New(m, testRegistry())

	_, err := g.Run(context.Background(), stream.Discard, Request{Messages: userMessages("go")})
	require.Error(t, err)
	assert.ErrorIs(t, err, tool.ErrUnknownTool)
}

func TestRunLocationInjection(t *testing.T) {
	var seen map[string]any
	r := tool.NewRegistry()
	r.Register(tool.NewFunctionTool("get_nearby_subway_stations", "",
		map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (string, error) {
			seen = args
			return "Station nearby", nil
		}))

	m := model.NewMockModel(
		model.MockTurn{Calls: []core.FunctionCall{{
			ID: "c1", Name: "get_nearby_subway_stations", Arguments: `{"location":"near me"}`,
		}}},
		model.MockTurn{Text: "The closest station is right there."},
		model.MockTurn{Text: "PASS"},
	)
	g := New(m, r)
	rec := &stream.Recorder{}

	_, err := g.Run(context.Background(), rec, Request{
		Messages: userMessages("stations near me?"),
		Location: &core.Location{Lat: 40.7, Lon: -74.0},
	})
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, 40.7, seen["user_lat"])
	assert.Equal(t, -74.0, seen["user_lon"])

	// The tool_call event reflects the injected arguments.
	calls := rec.OfType(stream.TypeToolCall)
	require.Len(t, calls, 1)
	args := calls[0].Data["args"].(map[string]any)
	assert.Equal(t, 40.7, args["user_lat"])
}

func TestRunStreamsTokens(t *testing.T) {
	m := model.NewMockModel(model.MockTurn{Text: "hi"})
	g := New(m, testRegistry())
	rec := &stream.Recorder{}

	_, err := g.Run(context.Background(), rec, Request{Messages: userMessages("hey"), Stream: true})
	require.NoError(t, err)

	tokens := rec.OfType(stream.TypeToken)
	require.Len(t, tokens, 2)
	assert.Equal(t, "h", tokens[0].Data["content"])
	assert.Equal(t, "i", tokens[1].Data["content"])
}

func TestRunNodeEventOrder(t *testing.T) {
	m := model.NewMockModel(model.MockTurn{Text: "hello"})
	g := New(m, testRegistry())
	rec := &stream.Recorder{}

	_, err := g.Run(context.Background(), rec, Request{Messages: userMessages("hi")})
	require.NoError(t, err)

	var nodes []string
	for _, ev := range rec.OfType(stream.TypeNodeStart) {
		nodes = append(nodes, ev.Data["node"].(string))
	}
	assert.Equal(t, []string{"preprocessor", "chatbot", "formatter", "exit"}, nodes)

	complete := rec.OfType(stream.TypeFormatterComplete)
	require.Len(t, complete, 1)
	assert.Equal(t, 5, complete[0].Data["raw_length"])
	assert.Equal(t, 5, complete[0].Data["formatted_length"])
}
