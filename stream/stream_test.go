package stream

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMarshalFlattensType(t *testing.T) {
	data, err := json.Marshal(Token("hel"))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "token", m["type"])
	assert.Equal(t, "hel", m["content"])
}

func TestDoneMarshalsTypeOnly(t *testing.T) {
	data, err := json.Marshal(Done())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"done"}`, string(data))
}

func TestConstructorPayloads(t *testing.T) {
	ev := PostProcessorDecision(true, "tool calls pending", 2)
	assert.Equal(t, TypePostProcessor, ev.Type)
	assert.Equal(t, true, ev.Data["should_continue"])
	assert.Equal(t, 2, ev.Data["iteration_count"])

	ev = SupervisorEvaluation("RETRY", "missing sources", 1)
	assert.Equal(t, "RETRY", ev.Data["decision"])
	assert.Equal(t, 1, ev.Data["turn"])

	ev = SpotifyEmbed("track", "abc", "Song", "Artist")
	assert.Equal(t, "track", ev.Data["content_type"])
	assert.Equal(t, "Artist", ev.Data["artist"])
}

func TestChannelWriterPreservesOrder(t *testing.T) {
	w := NewChannelWriter(context.Background(), 8)
	w.Write(NodeStart("chatbot"))
	w.Write(Token("a"))
	w.Write(NodeComplete("chatbot"))
	w.Close()

	var types []string
	for ev := range w.Events() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{TypeNodeStart, TypeToken, TypeNodeComplete}, types)
}

func TestChannelWriterDropsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewChannelWriter(ctx, 1)
	w.Write(Token("a")) // fills the buffer
	cancel()

	done := make(chan struct{})
	go func() {
		w.Write(Token("b")) // must not block
		close(done)
	}()
	<-done
}
