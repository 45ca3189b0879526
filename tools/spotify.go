package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/zelfhosted/server/stream"
	"github.com/zelfhosted/server/tool"
)

var (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyAPIURL   = "https://api.spotify.com/v1"
)

// spotifyTokenBuffer is subtracted from the token lifetime so a token is
// refreshed well before it actually expires.
const spotifyTokenBuffer = 5 * time.Minute

// spotifyTokenCache caches a client-credentials access token. The clock is
// injectable so expiry behavior is testable without sleeping.
type spotifyTokenCache struct {
	clientID     string
	clientSecret string
	now          func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func newSpotifyTokenCache(clientID, clientSecret string, now func() time.Time) *spotifyTokenCache {
	if now == nil {
		now = time.Now
	}
	return &spotifyTokenCache{clientID: clientID, clientSecret: clientSecret, now: now}
}

// Token returns a valid access token, refreshing via the Client Credentials
// flow when the cached one is missing or inside the expiry buffer. Returns
// "" when credentials are not configured or the token endpoint fails.
func (c *spotifyTokenCache) Token(ctx context.Context) string {
	if c.clientID == "" || c.clientSecret == "" {
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.expiresAt.Add(-spotifyTokenBuffer)) {
		return c.accessToken
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	body := strings.NewReader(url.Values{"grant_type": {"client_credentials"}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spotifyTokenURL, body)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := slowClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil || decoded.AccessToken == "" {
		return ""
	}

	c.accessToken = decoded.AccessToken
	c.expiresAt = c.now().Add(time.Duration(decoded.ExpiresIn) * time.Second)
	return c.accessToken
}

// seed places a token into the cache directly. Test hook.
func (c *spotifyTokenCache) seed(token string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
	c.expiresAt = expiresAt
}

// spotifyItem is one entry of the structured tool payload. Artist carries the
// track/album artist; playlists use Owner instead.
type spotifyItem struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Genres      string `json:"genres,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
	TotalTracks int    `json:"total_tracks,omitempty"`
	URL         string `json:"url,omitempty"`
}

type spotifyPayload struct {
	Query   string        `json:"query,omitempty"`
	Results []spotifyItem `json:"results"`
	Text    string        `json:"text,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// SpotifyTool searches the Spotify Web API for tracks, artists, albums and
// playlists, returning structured results for UI embedding.
type SpotifyTool struct {
	*tool.FunctionTool
	cache *spotifyTokenCache
}

// NewSpotifyTool creates the search tool with a real-time token cache.
func NewSpotifyTool(clientID, clientSecret string) *SpotifyTool {
	return NewSpotifyToolWithClock(clientID, clientSecret, time.Now)
}

// NewSpotifyToolWithClock creates the search tool with an explicit clock
// driving token expiry.
func NewSpotifyToolWithClock(clientID, clientSecret string, now func() time.Time) *SpotifyTool {
	t := &SpotifyTool{cache: newSpotifyTokenCache(clientID, clientSecret, now)}
	t.FunctionTool = tool.NewFunctionTool(
		"search_spotify",
		"Search Spotify for music content. Use this tool when a user wants to find songs, "+
			"artists, albums, or playlists on Spotify. The content will be embedded automatically "+
			"in the UI, just summarize what was found for the user.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query (song name, artist, album title, or playlist name)",
				},
				"search_type": map[string]any{
					"type":        "string",
					"description": `Type of content to search for: "track", "artist", "album", "playlist", or "all"`,
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Number of results to return per type (default 5, max 10)",
				},
			},
			"required": []string{"query"},
		},
		t.search,
	)
	return t
}

func (t *SpotifyTool) search(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	searchType, _ := args["search_type"].(string)
	limit := 5
	if n, ok := args["limit"].(float64); ok {
		limit = int(n)
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 10 {
		limit = 10
	}

	token := t.cache.Token(ctx)
	if token == "" {
		return marshalPayload(spotifyPayload{
			Error:   "Spotify API credentials not configured",
			Results: []spotifyItem{},
		})
	}

	var types string
	switch searchType {
	case "all":
		types = "track,artist,album,playlist"
	case "track", "artist", "album", "playlist":
		types = searchType
	default:
		types = "track"
	}

	q := url.Values{
		"q":     {query},
		"type":  {types},
		"limit": {fmt.Sprintf("%d", limit)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spotifyAPIURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := slowClient.Do(req)
	if err != nil {
		return marshalPayload(spotifyPayload{Error: err.Error(), Results: []spotifyItem{}})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := "Unknown error"
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return marshalPayload(spotifyPayload{
			Error:   fmt.Sprintf("Spotify API error: %s", msg),
			Results: []spotifyItem{},
		})
	}

	var decoded spotifySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return marshalPayload(spotifyPayload{Error: err.Error(), Results: []spotifyItem{}})
	}

	results, textParts := decoded.collect()
	if len(results) == 0 {
		return marshalPayload(spotifyPayload{
			Error:   fmt.Sprintf("No results found for: %s", query),
			Results: []spotifyItem{},
		})
	}

	return marshalPayload(spotifyPayload{
		Query:   query,
		Results: results,
		Text:    fmt.Sprintf("Found %d result(s) for '%s'. %s", len(results), query, strings.Join(textParts, "; ")),
	})
}

type spotifyAPIEntity struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
	Genres    []string `json:"genres"`
	Followers struct {
		Total int `json:"total"`
	} `json:"followers"`
	ReleaseDate string `json:"release_date"`
	TotalTracks int    `json:"total_tracks"`
	Owner       struct {
		DisplayName string `json:"display_name"`
	} `json:"owner"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

func (e spotifyAPIEntity) artistNames() string {
	names := make([]string, 0, len(e.Artists))
	for _, a := range e.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

type spotifySearchResponse struct {
	Tracks *struct {
		Items []spotifyAPIEntity `json:"items"`
	} `json:"tracks"`
	Artists *struct {
		Items []spotifyAPIEntity `json:"items"`
	} `json:"artists"`
	Albums *struct {
		Items []spotifyAPIEntity `json:"items"`
	} `json:"albums"`
	Playlists *struct {
		Items []*spotifyAPIEntity `json:"items"`
	} `json:"playlists"`
}

// collect flattens the per-type result groups into the payload item list plus
// a short summary fragment per group.
func (r spotifySearchResponse) collect() ([]spotifyItem, []string) {
	var results []spotifyItem
	var textParts []string

	if r.Tracks != nil && len(r.Tracks.Items) > 0 {
		var summaries []string
		for i, tr := range r.Tracks.Items {
			results = append(results, spotifyItem{
				Type:   "track",
				ID:     tr.ID,
				Name:   tr.Name,
				Artist: tr.artistNames(),
				Album:  tr.Album.Name,
				URL:    tr.ExternalURLs.Spotify,
			})
			if i < 3 {
				summaries = append(summaries, fmt.Sprintf("'%s' by %s", tr.Name, tr.artistNames()))
			}
		}
		textParts = append(textParts, "Tracks: "+strings.Join(summaries, ", "))
	}
	if r.Artists != nil && len(r.Artists.Items) > 0 {
		var summaries []string
		for i, ar := range r.Artists.Items {
			genres := ar.Genres
			if len(genres) > 3 {
				genres = genres[:3]
			}
			results = append(results, spotifyItem{
				Type:   "artist",
				ID:     ar.ID,
				Name:   ar.Name,
				Genres: strings.Join(genres, ", "),
				URL:    ar.ExternalURLs.Spotify,
			})
			if i < 3 {
				summaries = append(summaries, ar.Name)
			}
		}
		textParts = append(textParts, "Artists: "+strings.Join(summaries, ", "))
	}
	if r.Albums != nil && len(r.Albums.Items) > 0 {
		var summaries []string
		for i, al := range r.Albums.Items {
			results = append(results, spotifyItem{
				Type:        "album",
				ID:          al.ID,
				Name:        al.Name,
				Artist:      al.artistNames(),
				ReleaseDate: al.ReleaseDate,
				TotalTracks: al.TotalTracks,
				URL:         al.ExternalURLs.Spotify,
			})
			if i < 3 {
				summaries = append(summaries, fmt.Sprintf("'%s' by %s", al.Name, al.artistNames()))
			}
		}
		textParts = append(textParts, "Albums: "+strings.Join(summaries, ", "))
	}
	if r.Playlists != nil && len(r.Playlists.Items) > 0 {
		var summaries []string
		for i, pl := range r.Playlists.Items {
			if pl == nil { // the API returns null slots
				continue
			}
			owner := pl.Owner.DisplayName
			if owner == "" {
				owner = "Unknown"
			}
			results = append(results, spotifyItem{
				Type:        "playlist",
				ID:          pl.ID,
				Name:        pl.Name,
				Owner:       owner,
				TotalTracks: pl.Tracks.Total,
				URL:         pl.ExternalURLs.Spotify,
			})
			if i < 3 {
				summaries = append(summaries, pl.Name)
			}
		}
		if len(summaries) > 0 {
			textParts = append(textParts, "Playlists: "+strings.Join(summaries, ", "))
		}
	}

	return results, textParts
}

// ExtractEmbeds implements tool.Embedder. Playlists have no artist, so the
// owner stands in for that embed field.
func (t *SpotifyTool) ExtractEmbeds(raw string) (tool.EmbedResult, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return tool.EmbedResult{}, false
	}
	if _, hasResults := probe["results"]; !hasResults {
		if _, hasError := probe["error"]; !hasError {
			return tool.EmbedResult{}, false
		}
	}
	var payload spotifyPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return tool.EmbedResult{}, false
	}

	if payload.Error != "" {
		return tool.EmbedResult{Text: payload.Error}, true
	}
	events := make([]stream.Event, 0, len(payload.Results))
	for _, item := range payload.Results {
		artist := item.Artist
		if artist == "" {
			artist = item.Owner
		}
		events = append(events, stream.SpotifyEmbed(item.Type, item.ID, item.Name, artist))
	}
	text := payload.Text
	if text == "" {
		text = raw
	}
	return tool.EmbedResult{Text: text, Events: events}, true
}
