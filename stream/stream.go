// Package stream defines the typed event contract between the orchestration
// graph and the serving boundary. Every stage emits progress notifications
// through a Writer; events are delivered to the caller in emission order and
// independently of the final answer.
package stream

import (
	"context"
	"encoding/json"
)

// Event type tags recognized by clients.
const (
	TypeNodeStart            = "node_start"
	TypeNodeComplete         = "node_complete"
	TypeToolCall             = "tool_call"
	TypeToolResult           = "tool_result"
	TypeYouTubeEmbed         = "youtube_embed"
	TypeSpotifyEmbed         = "spotify_embed"
	TypeSupervisorEvaluation = "supervisor_evaluation"
	TypePostProcessor        = "post_processor_decision"
	TypeFormatterComplete    = "formatter_complete"
	TypeToken                = "token"
	TypeError                = "error"
	TypeDone                 = "done"
)

// Event is one progress notification. Data carries the type-specific fields;
// the type tag is folded into the JSON object on marshaling so the wire shape
// matches {"type": ..., <fields>...}.
type Event struct {
	Type string
	Data map[string]any
}

// MarshalJSON flattens the type tag into the payload object.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		m[k] = v
	}
	m["type"] = e.Type
	return json.Marshal(m)
}

// NodeStart signals entry into a graph stage.
func NodeStart(node string) Event {
	return Event{Type: TypeNodeStart, Data: map[string]any{"node": node}}
}

// NodeComplete signals a graph stage finished.
func NodeComplete(node string) Event {
	return Event{Type: TypeNodeComplete, Data: map[string]any{"node": node}}
}

// ToolCall is emitted before a tool executes, carrying the final argument
// mapping (after any context injection).
func ToolCall(tool string, args map[string]any) Event {
	return Event{Type: TypeToolCall, Data: map[string]any{"tool": tool, "args": args}}
}

// ToolResult is emitted once a tool invocation produced its terminal text.
func ToolResult(tool, result string) Event {
	return Event{Type: TypeToolResult, Data: map[string]any{"tool": tool, "result": result}}
}

// YouTubeEmbed describes one embeddable video extracted from a tool payload.
func YouTubeEmbed(videoID, title, channel string) Event {
	return Event{Type: TypeYouTubeEmbed, Data: map[string]any{
		"video_id": videoID,
		"title":    title,
		"channel":  channel,
	}}
}

// SpotifyEmbed describes one embeddable Spotify item extracted from a tool payload.
func SpotifyEmbed(contentType, id, name, artist string) Event {
	return Event{Type: TypeSpotifyEmbed, Data: map[string]any{
		"content_type": contentType,
		"id":           id,
		"name":         name,
		"artist":       artist,
	}}
}

// SupervisorEvaluation carries the quality-review verdict for one turn.
func SupervisorEvaluation(decision, detail string, turn int) Event {
	return Event{Type: TypeSupervisorEvaluation, Data: map[string]any{
		"decision": decision,
		"detail":   detail,
		"turn":     turn,
	}}
}

// PostProcessorDecision records a routing decision after a model pass.
func PostProcessorDecision(shouldContinue bool, reasoning string, iterationCount int) Event {
	return Event{Type: TypePostProcessor, Data: map[string]any{
		"should_continue": shouldContinue,
		"reasoning":       reasoning,
		"iteration_count": iterationCount,
	}}
}

// FormatterComplete records the final-answer formatting pass.
func FormatterComplete(rawLength, formattedLength int) Event {
	return Event{Type: TypeFormatterComplete, Data: map[string]any{
		"raw_length":       rawLength,
		"formatted_length": formattedLength,
	}}
}

// Token carries one incremental fragment of the streamed answer text.
func Token(content string) Event {
	return Event{Type: TypeToken, Data: map[string]any{"content": content}}
}

// Error notifies the caller of a propagated failure before the stream closes.
func Error(message string) Event {
	return Event{Type: TypeError, Data: map[string]any{"message": message}}
}

// Done is always the last event of a stream.
func Done() Event {
	return Event{Type: TypeDone, Data: nil}
}

// Writer is the append-only, one-way sink stages emit progress into.
// Implementations must preserve emission order.
type Writer interface {
	Write(Event)
}

// Discard drops every event. Used for the non-streaming invocation path and
// in tests that only care about the final answer.
var Discard Writer = discard{}

type discard struct{}

func (discard) Write(Event) {}

// Recorder captures every event in order. Test helper.
type Recorder struct {
	events []Event
}

// Write implements Writer.
func (r *Recorder) Write(ev Event) { r.events = append(r.events, ev) }

// Events returns all captured events.
func (r *Recorder) Events() []Event { return r.events }

// OfType returns the captured events carrying the given type tag.
func (r *Recorder) OfType(typ string) []Event {
	var out []Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// ChannelWriter bridges graph emissions onto a channel consumed by the
// serving boundary. Write blocks when the buffer is full (backpressure) and
// drops events once the supplied context is cancelled, so an abandoned
// request never wedges the run goroutine.
type ChannelWriter struct {
	ctx context.Context
	ch  chan Event
}

// NewChannelWriter creates a writer with the given buffer size.
func NewChannelWriter(ctx context.Context, buffer int) *ChannelWriter {
	return &ChannelWriter{ctx: ctx, ch: make(chan Event, buffer)}
}

// Write implements Writer.
func (w *ChannelWriter) Write(ev Event) {
	select {
	case w.ch <- ev:
	case <-w.ctx.Done():
	}
}

// Events returns the receive side consumed by the serving boundary.
func (w *ChannelWriter) Events() <-chan Event { return w.ch }

// Close signals end of stream. Only the producing side may call it, after
// the last Write.
func (w *ChannelWriter) Close() { close(w.ch) }
