package graph

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zelfhosted/server/core"
	"github.com/zelfhosted/server/stream"
	"github.com/zelfhosted/server/tool"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 4000))
	assert.Equal(t, "", truncate("", 4000))

	exact := strings.Repeat("a", 4000)
	assert.Equal(t, exact, truncate(exact, 4000))

	over := strings.Repeat("a", 4500)
	got := truncate(over, 4000)
	assert.Less(t, len(got), len(over))
	assert.True(t, strings.HasSuffix(got, "[Result truncated]"))
	assert.True(t, strings.HasPrefix(got, strings.Repeat("a", 100)))
}

func TestTruncateNeverSplitsRune(t *testing.T) {
	s := strings.Repeat("a", 3999) + strings.Repeat("é", 300)
	got := truncate(s, 4000)

	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "[Result truncated]"))
	body := strings.TrimSuffix(got, truncationMarker)
	assert.Equal(t, strings.Repeat("a", 3999), body)
}

func TestInjectLocation(t *testing.T) {
	loc := &core.Location{Lat: 40.7, Lon: -74.0}

	t.Run("sentinel triggers injection", func(t *testing.T) {
		args := map[string]any{"location": "near me"}
		injectLocation("get_nearby_subway_stations", args, loc)
		assert.Equal(t, 40.7, args["user_lat"])
		assert.Equal(t, -74.0, args["user_lon"])
	})

	t.Run("weather is location aware", func(t *testing.T) {
		args := map[string]any{"location": "Nearby"}
		injectLocation("get_weather", args, loc)
		assert.Equal(t, 40.7, args["user_lat"])
	})

	t.Run("sentinel matching trims and lowercases", func(t *testing.T) {
		args := map[string]any{"location": "  Current Location  "}
		injectLocation("get_weather", args, loc)
		assert.Contains(t, args, "user_lat")
	})

	t.Run("concrete location untouched", func(t *testing.T) {
		args := map[string]any{"location": "Brooklyn, NY"}
		injectLocation("get_weather", args, loc)
		assert.NotContains(t, args, "user_lat")
	})

	t.Run("no coordinates no injection", func(t *testing.T) {
		args := map[string]any{"location": "near me"}
		injectLocation("get_weather", args, nil)
		assert.NotContains(t, args, "user_lat")
	})

	t.Run("other tools never injected", func(t *testing.T) {
		args := map[string]any{"location": "near me"}
		injectLocation("search_spotify", args, loc)
		assert.NotContains(t, args, "user_lat")
	})
}

// embedTool is a fake embed-capable tool for post-processing tests.
type embedTool struct {
	tool.Tool
	result tool.EmbedResult
	ok     bool
}

func (e embedTool) ExtractEmbeds(string) (tool.EmbedResult, bool) { return e.result, e.ok }

func TestPostProcessToolResultGenericPassThrough(t *testing.T) {
	plain := tool.NewFunctionTool("get_weather", "", map[string]any{"type": "object"}, nil)
	rec := &stream.Recorder{}

	got := postProcessToolResult(plain, "Sunny, 72F", 4000, rec)
	assert.Equal(t, "Sunny, 72F", got)
	assert.Empty(t, rec.Events())
}

func TestPostProcessToolResultGenericTruncates(t *testing.T) {
	plain := tool.NewFunctionTool("get_weather", "", map[string]any{"type": "object"}, nil)
	rec := &stream.Recorder{}

	got := postProcessToolResult(plain, strings.Repeat("x", 4100), 4000, rec)
	assert.True(t, strings.HasSuffix(got, "[Result truncated]"))
}

func TestPostProcessToolResultEmitsEmbeds(t *testing.T) {
	et := embedTool{
		result: tool.EmbedResult{
			Text: "Found 2 videos",
			Events: []stream.Event{
				stream.YouTubeEmbed("abc123", "Test Song", "TestChannel"),
				stream.YouTubeEmbed("def456", "Song 2", "Ch2"),
			},
		},
		ok: true,
	}
	rec := &stream.Recorder{}

	got := postProcessToolResult(et, `{"videos":[...]}`, 4000, rec)
	assert.Equal(t, "Found 2 videos", got)
	embeds := rec.OfType(stream.TypeYouTubeEmbed)
	require.Len(t, embeds, 2)
	assert.Equal(t, "abc123", embeds[0].Data["video_id"])
}

func TestPostProcessToolResultUnparsedPayloadPassesThrough(t *testing.T) {
	et := embedTool{ok: false}
	rec := &stream.Recorder{}

	got := postProcessToolResult(et, "not json", 4000, rec)
	assert.Equal(t, "not json", got)
	assert.Empty(t, rec.Events())
}
