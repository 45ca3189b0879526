package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zelfhosted/server/stream"
)

func TestSpotifyTokenCacheReusesFreshToken(t *testing.T) {
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := newSpotifyTokenCache("id", "secret", func() time.Time { return current })
	cache.seed("tok-1", current.Add(time.Hour))

	assert.Equal(t, "tok-1", cache.Token(context.Background()))

	// Still outside the refresh buffer 54 minutes later.
	current = current.Add(54 * time.Minute)
	assert.Equal(t, "tok-1", cache.Token(context.Background()))
}

func TestSpotifyTokenCacheRefreshesInsideBuffer(t *testing.T) {
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := newSpotifyTokenCache("id", "secret", func() time.Time { return current })
	cache.seed("tok-1", current.Add(4*time.Minute))

	// Expiry is closer than the 5 minute buffer, so the cached token is
	// discarded and the refresh attempt (against an unreachable endpoint)
	// yields no token.
	old := spotifyTokenURL
	spotifyTokenURL = "http://127.0.0.1:0/token"
	defer func() { spotifyTokenURL = old }()

	assert.Empty(t, cache.Token(context.Background()))
}

func TestSpotifyTokenCacheWithoutCredentials(t *testing.T) {
	cache := newSpotifyTokenCache("", "", nil)
	assert.Empty(t, cache.Token(context.Background()))
}

func TestSpotifyExtractEmbeds(t *testing.T) {
	raw := `{"query":"q","results":[` +
		`{"type":"track","id":"t1","name":"Song","artist":"Artist"},` +
		`{"type":"playlist","id":"p1","name":"Mix","owner":"DJ"}` +
		`],"text":"Found 2 result(s) for 'q'."}`

	st := NewSpotifyTool("", "")
	res, ok := st.ExtractEmbeds(raw)
	require.True(t, ok)
	assert.Equal(t, "Found 2 result(s) for 'q'.", res.Text)
	require.Len(t, res.Events, 2)

	assert.Equal(t, stream.TypeSpotifyEmbed, res.Events[0].Type)
	assert.Equal(t, "track", res.Events[0].Data["content_type"])
	assert.Equal(t, "Artist", res.Events[0].Data["artist"])

	// Playlists surface the owner in the artist slot.
	assert.Equal(t, "DJ", res.Events[1].Data["artist"])
}

func TestSpotifyExtractEmbedsErrorPayload(t *testing.T) {
	st := NewSpotifyTool("", "")
	res, ok := st.ExtractEmbeds(`{"error":"Spotify API credentials not configured","results":[]}`)
	require.True(t, ok)
	assert.Equal(t, "Spotify API credentials not configured", res.Text)
	assert.Empty(t, res.Events)
}

func TestSpotifyExtractEmbedsRejectsNonPayload(t *testing.T) {
	st := NewSpotifyTool("", "")

	_, ok := st.ExtractEmbeds("plain text result")
	assert.False(t, ok)

	_, ok = st.ExtractEmbeds(`{"something":"else"}`)
	assert.False(t, ok)
}
