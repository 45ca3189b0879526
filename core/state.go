package core

// Location is a caller-supplied coordinate pair, immutable for the lifetime
// of a conversation run. It is consumed only as an injection source for
// location-aware tools.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// State is the per-request record threaded through one orchestration run.
// The message sequence is append-only; counters start at zero and are
// constructed explicitly so a fresh state is never confused with a missing
// field. No State survives a request.
type State struct {
	Messages     []Content
	UserLocation *Location

	// IterationCount is incremented exactly once per completed tool round
	// and bounds the tool-calling loop.
	IterationCount int

	// SupervisorTurns counts quality-review evaluations taken so far;
	// SupervisorDecision holds the last verdict ("PASS" or "RETRY") and is
	// overwritten on every supervisor pass.
	SupervisorTurns    int
	SupervisorDecision string
}

// NewState creates a zero-counter state from caller-supplied history. The
// history slice is copied so appends never alias the caller's backing array.
func NewState(history []Content, loc *Location) *State {
	msgs := make([]Content, len(history))
	copy(msgs, history)
	return &State{Messages: msgs, UserLocation: loc}
}

// Append adds a message to the end of the sequence.
func (s *State) Append(c Content) { s.Messages = append(s.Messages, c) }

// Last returns the most recent message, or nil for an empty sequence.
func (s *State) Last() *Content {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// PendingToolCalls returns the tool invocations requested by the latest
// message, if it is an assistant message carrying function calls.
func (s *State) PendingToolCalls() []FunctionCall {
	last := s.Last()
	if last == nil || last.Role != RoleAssistant {
		return nil
	}
	return last.FunctionCalls()
}

// LastAssistantText returns the text of the most recent assistant message.
func (s *State) LastAssistantText() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Text()
		}
	}
	return ""
}

// WithSystemPrompt returns the message sequence to hand to the model:
// the prompt is prepended unless the first entry already is a system
// directive. The stored sequence is never mutated, so the directive appears
// at most once no matter how many model passes occur.
func (s *State) WithSystemPrompt(prompt string) []Content {
	if len(s.Messages) > 0 && s.Messages[0].Role == RoleSystem {
		return s.Messages
	}
	out := make([]Content, 0, len(s.Messages)+1)
	out = append(out, NewTextContent(RoleSystem, prompt))
	out = append(out, s.Messages...)
	return out
}
