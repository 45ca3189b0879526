package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTweetLengthLimit(t *testing.T) {
	tt := NewTweetTool(Config{})
	out, err := tt.Call(context.Background(), map[string]any{"text": strings.Repeat("a", 281)})
	require.NoError(t, err)
	assert.Equal(t, "Error: Tweet exceeds 280 character limit (281 characters provided)", out)
}

func TestTweetMissingCredentials(t *testing.T) {
	tt := NewTweetTool(Config{TwitterAPIKey: "key"})
	out, err := tt.Call(context.Background(), map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Contains(t, out, "Missing required environment variables")
	assert.Contains(t, out, "X_API_SECRET")
	assert.NotContains(t, out, "X_API_KEY,")
}

func TestTweetConcurrentPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data":{"id":"123"}}`)
	}))
	defer srv.Close()

	orig := twitterAPIURL
	twitterAPIURL = srv.URL
	t.Cleanup(func() { twitterAPIURL = orig })

	tt := NewTweetTool(Config{
		TwitterAPIKey:       "key",
		TwitterAPISecret:    "secret",
		TwitterAccessToken:  "token",
		TwitterAccessSecret: "token-secret",
	})

	const posts = 4
	var wg sync.WaitGroup
	results := make([]string, posts)
	errs := make([]error, posts)
	for i := 0; i < posts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = tt.Call(context.Background(), map[string]any{"text": "hello"})
		}(i)
	}
	wg.Wait()

	for i := 0; i < posts; i++ {
		require.NoError(t, errs[i])
		assert.Contains(t, results[i], "Tweet ID: 123")
	}
}

func TestDefaultRegistryOrder(t *testing.T) {
	r := DefaultRegistry(Config{})
	var names []string
	for _, tl := range r.List() {
		names = append(names, tl.Name())
	}
	assert.Equal(t, []string{
		"get_weather",
		"search_youtube_song",
		"search_spotify",
		"get_polymarket_opportunities",
		"get_nearby_subway_stations",
		"get_subway_line_info",
		"post_tweet",
	}, names)
}
