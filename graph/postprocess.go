package graph

import (
	"strings"
	"unicode/utf8"

	"github.com/zelfhosted/server/core"
	"github.com/zelfhosted/server/stream"
	"github.com/zelfhosted/server/tool"
)

// truncationMarker terminates any tool result cut at the length ceiling.
const truncationMarker = "... [Result truncated]"

// truncate caps s at max bytes, appending the marker when anything was cut.
// Text exactly at the ceiling passes unchanged. The cut never splits a rune,
// so the result stays valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}

// locationAware lists the tools that accept injected user coordinates.
var locationAware = map[string]bool{
	"get_weather":                true,
	"get_nearby_subway_stations": true,
}

// locationSentinels are the self-referential location phrases that trigger
// coordinate injection. Matching is case-insensitive on the trimmed value.
var locationSentinels = map[string]bool{
	"me":               true,
	"near me":          true,
	"nearby":           true,
	"my location":      true,
	"current location": true,
	"here":             true,
}

// injectLocation adds the caller's coordinates to a tool's argument mapping
// when the tool is location aware, the model passed a self-referential
// location, and coordinates are known. The mapping is mutated in place so the
// tool_call event shows exactly what the tool receives.
func injectLocation(toolName string, args map[string]any, loc *core.Location) {
	if loc == nil || !locationAware[toolName] {
		return
	}
	locArg, _ := args["location"].(string)
	if !locationSentinels[strings.ToLower(strings.TrimSpace(locArg))] {
		return
	}
	args["user_lat"] = loc.Lat
	args["user_lon"] = loc.Lon
}

// postProcessToolResult runs embed extraction for tools that declare it, then
// applies the length ceiling. Embed events are written before the result text
// is returned; a payload that fails to parse passes through raw with no
// embeds.
func postProcessToolResult(t tool.Tool, raw string, maxLen int, w stream.Writer) string {
	text := raw
	if embedder, ok := t.(tool.Embedder); ok {
		if res, parsed := embedder.ExtractEmbeds(raw); parsed {
			for _, ev := range res.Events {
				w.Write(ev)
			}
			text = res.Text
		}
	}
	return truncate(text, maxLen)
}

// formatAnswer is the terminal formatting pass over the raw assistant text.
func formatAnswer(raw string) string {
	return strings.TrimSpace(raw)
}
