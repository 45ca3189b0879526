package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/zelfhosted/server/stream"
	"github.com/zelfhosted/server/tool"
)

var youtubeSearchURL = "https://www.googleapis.com/youtube/v3/search"

const youtubeMaxResults = 5

// youtubeVideo is one entry of the structured tool payload.
type youtubeVideo struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Channel string `json:"channel"`
}

// youtubePayload is the JSON envelope the tool returns. The videos are
// surfaced to the caller as embed events while the model only sees the
// summary text.
type youtubePayload struct {
	Query  string         `json:"query,omitempty"`
	Videos []youtubeVideo `json:"videos"`
	Text   string         `json:"text,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// YouTubeTool searches YouTube's music category and returns structured
// results for UI embedding.
type YouTubeTool struct {
	*tool.FunctionTool
	apiKey string
}

// NewYouTubeTool creates the song search tool. An empty API key keeps the
// tool registered but makes every call report the missing configuration.
func NewYouTubeTool(apiKey string) *YouTubeTool {
	t := &YouTubeTool{apiKey: apiKey}
	t.FunctionTool = tool.NewFunctionTool(
		"search_youtube_song",
		"Search for a song on YouTube and return video results. Use this tool when a user "+
			"wants to find music, songs, or music videos on YouTube. The videos will be embedded "+
			"automatically in the UI, just summarize what was found for the user.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": `The song name and/or artist to search for, e.g. "Bohemian Rhapsody Queen"`,
				},
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Number of results to return (default 3, max 5)",
				},
			},
			"required": []string{"query"},
		},
		t.search,
	)
	return t
}

func (t *YouTubeTool) search(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	maxResults := 3
	if n, ok := args["max_results"].(float64); ok && n > 0 {
		maxResults = int(n)
	}
	if maxResults > youtubeMaxResults {
		maxResults = youtubeMaxResults
	}

	if t.apiKey == "" {
		return marshalPayload(youtubePayload{Error: "YouTube API key not configured", Videos: []youtubeVideo{}})
	}

	q := url.Values{
		"part":            {"snippet"},
		"q":               {query + " music"}, // bias toward songs
		"type":            {"video"},
		"videoCategoryId": {"10"},
		"maxResults":      {fmt.Sprintf("%d", maxResults)},
		"key":             {t.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, youtubeSearchURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return marshalPayload(youtubePayload{Error: err.Error(), Videos: []youtubeVideo{}})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		detail := "Unknown error"
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			detail = apiErr.Error.Message
		}
		return marshalPayload(youtubePayload{
			Error:  fmt.Sprintf("YouTube API error: %s", detail),
			Videos: []youtubeVideo{},
		})
	}

	var decoded struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title        string `json:"title"`
				ChannelTitle string `json:"channelTitle"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return marshalPayload(youtubePayload{Error: err.Error(), Videos: []youtubeVideo{}})
	}
	if len(decoded.Items) == 0 {
		return marshalPayload(youtubePayload{
			Error:  fmt.Sprintf("No songs found for: %s", query),
			Videos: []youtubeVideo{},
		})
	}

	videos := make([]youtubeVideo, 0, len(decoded.Items))
	titles := make([]string, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		videos = append(videos, youtubeVideo{
			ID:      item.ID.VideoID,
			Title:   item.Snippet.Title,
			Channel: item.Snippet.ChannelTitle,
		})
		titles = append(titles, item.Snippet.Title)
	}

	return marshalPayload(youtubePayload{
		Query:  query,
		Videos: videos,
		Text:   fmt.Sprintf("Found %d result(s) for '%s': %s", len(videos), query, strings.Join(titles, ", ")),
	})
}

// ExtractEmbeds implements tool.Embedder. A raw result that does not parse
// as the structured payload is reported as ok=false so the caller passes it
// through untouched.
func (t *YouTubeTool) ExtractEmbeds(raw string) (tool.EmbedResult, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return tool.EmbedResult{}, false
	}
	if _, hasVideos := probe["videos"]; !hasVideos {
		if _, hasError := probe["error"]; !hasError {
			return tool.EmbedResult{}, false
		}
	}
	var payload youtubePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return tool.EmbedResult{}, false
	}

	if payload.Error != "" {
		return tool.EmbedResult{Text: payload.Error}, true
	}
	events := make([]stream.Event, 0, len(payload.Videos))
	for _, v := range payload.Videos {
		events = append(events, stream.YouTubeEmbed(v.ID, v.Title, v.Channel))
	}
	text := payload.Text
	if text == "" {
		text = raw
	}
	return tool.EmbedResult{Text: text, Events: events}, true
}

func marshalPayload(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
