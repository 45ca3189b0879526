// Package graph implements the orchestration state machine that turns one
// inbound conversation into a final answer: an answering model pass that may
// request tool invocations, a bounded tool execution loop, an optional
// tool-less quality review that can trigger one extra answering pass, and a
// terminal formatting stage. Every stage reports progress through a
// stream.Writer.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zelfhosted/server/core"
	"github.com/zelfhosted/server/logging"
	"github.com/zelfhosted/server/model"
	"github.com/zelfhosted/server/stream"
	"github.com/zelfhosted/server/tool"
)

// Default ceilings bounding the run loop.
const (
	DefaultMaxIterations       = 5
	DefaultMaxSupervisorTurns  = 1
	DefaultMaxToolResultLength = 4000
)

// Verdicts produced by the quality review stage.
const (
	DecisionPass  = "PASS"
	DecisionRetry = "RETRY"
)

// Node names reported in node_start / node_complete events.
const (
	nodePreprocessor = "preprocessor"
	nodeChatbot      = "chatbot"
	nodeSupervisor   = "supervisor"
	nodeFormatter    = "formatter"
	nodeExit         = "exit"
)

// Options configure a Graph.
type Options struct {
	Logger              logging.Logger
	MaxIterations       int
	MaxSupervisorTurns  int
	MaxToolResultLength int
	SystemPrompt        string
	SupervisorPrompt    string
}

// Graph drives one conversation run at a time. It holds no per-run state and
// is safe for concurrent use.
type Graph struct {
	model model.Model
	tools *tool.Registry
	opts  Options
}

// New creates a Graph over the given model and tool registry.
func New(m model.Model, tools *tool.Registry, optFns ...func(o *Options)) *Graph {
	opts := Options{
		Logger:              logging.NoOpLogger{},
		MaxIterations:       DefaultMaxIterations,
		MaxSupervisorTurns:  DefaultMaxSupervisorTurns,
		MaxToolResultLength: DefaultMaxToolResultLength,
		SystemPrompt:        SystemPrompt,
		SupervisorPrompt:    SupervisorPrompt,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Graph{model: m, tools: tools, opts: opts}
}

// Request is one conversation run: the caller's message history plus
// optional coordinates for location-aware tools. Stream controls whether
// incremental token events are emitted.
type Request struct {
	Messages []core.Content
	Location *core.Location
	Stream   bool
}

// route is an internal edge selection after a model or review pass.
type route int

const (
	routeTools route = iota
	routeSupervisor
	routeChatbot
	routeExit
)

// Run executes the state machine to completion and returns the formatted
// final answer. Events are written to w in emission order; the caller owns
// stream termination (the done event is not emitted here).
func (g *Graph) Run(ctx context.Context, w stream.Writer, req Request) (string, error) {
	runID := uuid.NewString()
	start := time.Now()
	logger := g.opts.Logger

	st := core.NewState(req.Messages, req.Location)
	logger.Info("run started", "run_id", runID, "messages", len(st.Messages))

	g.preprocess(w)

run:
	for {
		if err := g.chatbot(ctx, w, st, req.Stream); err != nil {
			logger.Error("model pass failed", "run_id", runID, "error", err)
			return "", err
		}

		next, reasoning := g.shouldContinue(st)
		w.Write(stream.PostProcessorDecision(next != routeExit, reasoning, st.IterationCount))

		switch next {
		case routeTools:
			if err := g.toolNode(ctx, w, st); err != nil {
				logger.Error("tool stage failed", "run_id", runID, "error", err)
				return "", err
			}
		case routeSupervisor:
			if err := g.supervisor(ctx, w, st); err != nil {
				logger.Error("review pass failed", "run_id", runID, "error", err)
				return "", err
			}
			if g.supervisorShouldContinue(st) != routeChatbot {
				break run
			}
		default:
			break run
		}
	}

	answer := g.formatter(w, st)
	g.exit(w)

	logger.Info("run completed", "run_id", runID,
		"iterations", st.IterationCount,
		"review_turns", st.SupervisorTurns,
		"duration_ms", time.Since(start).Milliseconds())
	return answer, nil
}

// preprocess is the entry stage. It currently only announces itself; request
// normalization hooks belong here.
func (g *Graph) preprocess(w stream.Writer) {
	w.Write(stream.NodeStart(nodePreprocessor))
	w.Write(stream.NodeComplete(nodePreprocessor))
}

// chatbot runs one answering model pass with tools declared, streaming token
// events for partial text, and appends the assistant message to the state.
func (g *Graph) chatbot(ctx context.Context, w stream.Writer, st *core.State, streamTokens bool) error {
	w.Write(stream.NodeStart(nodeChatbot))

	content, err := g.invokeModel(ctx, w, model.Request{
		Contents: st.WithSystemPrompt(g.opts.SystemPrompt),
		Tools:    g.toolDefinitions(),
		Stream:   streamTokens,
	}, streamTokens)
	if err != nil {
		return fmt.Errorf("model pass: %w", err)
	}

	st.Append(content)
	w.Write(stream.NodeComplete(nodeChatbot))
	return nil
}

// invokeModel drains one Generate call, forwarding partial text as token
// events when streaming, and returns the final content.
func (g *Graph) invokeModel(ctx context.Context, w stream.Writer, req model.Request, emitTokens bool) (core.Content, error) {
	start := time.Now()
	respCh, errCh := g.model.Generate(ctx, req)

	var final core.Content
	for resp := range respCh {
		if resp.Partial {
			if emitTokens {
				if text := resp.Content.Text(); text != "" {
					w.Write(stream.Token(text))
				}
			}
			continue
		}
		final = resp.Content
	}
	if err := <-errCh; err != nil {
		return core.Content{}, err
	}
	g.logModelCall(start, nil)
	return final, nil
}

func (g *Graph) logModelCall(start time.Time, err error) {
	if rl, ok := g.opts.Logger.(*logging.RunLogger); ok {
		rl.LogModelCall(g.model.Info().Name, time.Since(start), err == nil, err)
	}
}

// shouldContinue selects the edge taken after an answering pass.
//
// Pending tool calls run the tool stage unless the iteration ceiling has been
// reached. A plain answer goes to quality review once tools have been used at
// least once and review turns remain; otherwise the run terminates.
func (g *Graph) shouldContinue(st *core.State) (route, string) {
	if len(st.PendingToolCalls()) > 0 {
		if st.IterationCount >= g.opts.MaxIterations {
			return routeExit, fmt.Sprintf("iteration ceiling reached (%d)", g.opts.MaxIterations)
		}
		return routeTools, "tool calls pending"
	}
	if st.IterationCount > 0 && st.SupervisorTurns <= g.opts.MaxSupervisorTurns {
		return routeSupervisor, "answer ready for review"
	}
	return routeExit, "final answer produced"
}

// toolNode executes every pending tool call in order and appends one tool
// message per call. An unknown tool or a crashing tool aborts the whole run.
// The iteration counter advances once per round, not per call.
func (g *Graph) toolNode(ctx context.Context, w stream.Writer, st *core.State) error {
	calls := st.PendingToolCalls()

	for _, call := range calls {
		args := map[string]any{}
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				return fmt.Errorf("tool %s: malformed arguments: %w", call.Name, err)
			}
		}
		injectLocation(call.Name, args, st.UserLocation)

		w.Write(stream.ToolCall(call.Name, args))

		t, err := g.tools.Get(call.Name)
		if err != nil {
			return err
		}

		start := time.Now()
		raw, err := t.Call(ctx, args)
		if rl, ok := g.opts.Logger.(*logging.RunLogger); ok {
			rl.LogToolCall(call.Name, time.Since(start), err == nil, err)
		}
		if err != nil {
			return fmt.Errorf("tool %s: %w", call.Name, err)
		}

		result := postProcessToolResult(t, raw, g.opts.MaxToolResultLength, w)
		w.Write(stream.ToolResult(call.Name, result))
		st.Append(core.NewToolResultContent(call.ID, call.Name, result))
	}

	st.IterationCount++
	return nil
}

// supervisor runs the tool-less review pass: the review directive is
// prepended to the full conversation and the reply's leading token decides
// the verdict. The turn counter advances on every evaluation.
func (g *Graph) supervisor(ctx context.Context, w stream.Writer, st *core.State) error {
	w.Write(stream.NodeStart(nodeSupervisor))

	msgs := make([]core.Content, 0, len(st.Messages)+1)
	msgs = append(msgs, core.NewTextContent(core.RoleSystem, g.opts.SupervisorPrompt))
	msgs = append(msgs, st.Messages...)

	content, err := g.invokeModel(ctx, w, model.Request{Contents: msgs}, false)
	if err != nil {
		return fmt.Errorf("review pass: %w", err)
	}

	detail := content.Text()
	decision := DecisionPass
	if isRetryVerdict(detail) {
		decision = DecisionRetry
	}

	st.SupervisorTurns++
	st.SupervisorDecision = decision
	w.Write(stream.SupervisorEvaluation(decision, detail, st.SupervisorTurns))
	w.Write(stream.NodeComplete(nodeSupervisor))
	return nil
}

// isRetryVerdict reports whether a review reply requests another pass. Only
// a reply beginning with RETRY counts; anything else is approval.
func isRetryVerdict(reply string) bool {
	trimmed := strings.ToUpper(strings.TrimSpace(reply))
	return strings.HasPrefix(trimmed, DecisionRetry)
}

// supervisorShouldContinue selects the edge after a review pass: past the
// turn ceiling the run always terminates, otherwise a retry verdict buys one
// more answering pass.
func (g *Graph) supervisorShouldContinue(st *core.State) route {
	if st.SupervisorTurns > g.opts.MaxSupervisorTurns {
		return routeExit
	}
	if st.SupervisorDecision == DecisionRetry {
		return routeChatbot
	}
	return routeExit
}

// formatter produces the final answer from the last assistant message.
func (g *Graph) formatter(w stream.Writer, st *core.State) string {
	w.Write(stream.NodeStart(nodeFormatter))
	raw := st.LastAssistantText()
	formatted := formatAnswer(raw)
	w.Write(stream.FormatterComplete(len(raw), len(formatted)))
	w.Write(stream.NodeComplete(nodeFormatter))
	return formatted
}

// exit is the terminal stage marker.
func (g *Graph) exit(w stream.Writer) {
	w.Write(stream.NodeStart(nodeExit))
	w.Write(stream.NodeComplete(nodeExit))
}

// toolDefinitions converts the registry into model-facing declarations.
func (g *Graph) toolDefinitions() []model.ToolDefinition {
	tools := g.tools.List()
	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
