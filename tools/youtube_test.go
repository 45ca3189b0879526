package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zelfhosted/server/stream"
)

func TestYouTubeExtractEmbeds(t *testing.T) {
	raw := `{"query":"bohemian rhapsody","videos":[` +
		`{"id":"v1","title":"Bohemian Rhapsody","channel":"Queen Official"},` +
		`{"id":"v2","title":"Bohemian Rhapsody (Live)","channel":"Queen Official"}` +
		`],"text":"Found 2 result(s) for 'bohemian rhapsody': Bohemian Rhapsody, Bohemian Rhapsody (Live)"}`

	yt := NewYouTubeTool("")
	res, ok := yt.ExtractEmbeds(raw)
	require.True(t, ok)
	require.Len(t, res.Events, 2)

	assert.Equal(t, stream.TypeYouTubeEmbed, res.Events[0].Type)
	assert.Equal(t, "v1", res.Events[0].Data["video_id"])
	assert.Equal(t, "Queen Official", res.Events[0].Data["channel"])
	assert.Contains(t, res.Text, "Found 2 result(s)")
}

func TestYouTubeExtractEmbedsErrorPayload(t *testing.T) {
	yt := NewYouTubeTool("")
	res, ok := yt.ExtractEmbeds(`{"error":"No songs found for: xyzzy","videos":[]}`)
	require.True(t, ok)
	assert.Equal(t, "No songs found for: xyzzy", res.Text)
	assert.Empty(t, res.Events)
}

func TestYouTubeExtractEmbedsRejectsNonPayload(t *testing.T) {
	yt := NewYouTubeTool("")

	_, ok := yt.ExtractEmbeds("Sunny, 72°F")
	assert.False(t, ok)

	_, ok = yt.ExtractEmbeds(`{"unrelated":true}`)
	assert.False(t, ok)
}

func TestYouTubeSearchWithoutKey(t *testing.T) {
	yt := NewYouTubeTool("")
	out, err := yt.Call(context.Background(), map[string]any{"query": "test"})
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "YouTube API key not configured", payload["error"])
}
