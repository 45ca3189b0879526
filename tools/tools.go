// Package tools contains the built-in capabilities exposed to the model:
// weather lookups, music search with embeddable results, prediction market
// scans, subway station lookups and tweet posting. Each tool wraps an
// external HTTP API and reports expected failures as result text so the
// model can relay them.
package tools

import (
	"net/http"
	"time"

	"github.com/zelfhosted/server/tool"
)

// Config carries the API credentials the built-in tools need. Empty
// credentials disable the corresponding tool gracefully: it stays callable
// and reports the missing configuration as its result.
type Config struct {
	YouTubeAPIKey       string
	SpotifyClientID     string
	SpotifyClientSecret string
	TwitterAPIKey       string
	TwitterAPISecret    string
	TwitterAccessToken  string
	TwitterAccessSecret string
}

// httpClient is shared by the lookup tools. Mutable so tests can point the
// tools at a local server.
var httpClient = &http.Client{Timeout: 10 * time.Second}

// slowClient is used for the heavier upstream calls.
var slowClient = &http.Client{Timeout: 30 * time.Second}

// DefaultRegistry assembles the standard tool set in a fixed order.
func DefaultRegistry(cfg Config) *tool.Registry {
	r := tool.NewRegistry()
	r.Register(NewWeatherTool())
	r.Register(NewYouTubeTool(cfg.YouTubeAPIKey))
	r.Register(NewSpotifyTool(cfg.SpotifyClientID, cfg.SpotifyClientSecret))
	r.Register(NewPolymarketTool())
	r.Register(NewNearbyStationsTool())
	r.Register(NewLineInfoTool())
	r.Register(NewTweetTool(cfg))
	return r
}
