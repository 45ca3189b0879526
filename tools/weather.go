package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/zelfhosted/server/tool"
)

// Upstream endpoints, variables so tests can point at a local server.
var (
	geocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	forecastURL  = "https://api.open-meteo.com/v1/forecast"
)

// WMO weather interpretation codes.
var weatherCodes = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Foggy",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

func weatherCodeDescription(code int) string {
	if desc, ok := weatherCodes[code]; ok {
		return desc
	}
	return "Unknown conditions"
}

type geocodeResult struct {
	Lat  float64
	Lon  float64
	Name string
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Admin1    string  `json:"admin1"`
		Country   string  `json:"country"`
	} `json:"results"`
}

func geocodeQuery(ctx context.Context, name string) (*geocodeResponse, error) {
	q := url.Values{
		"name":     {name},
		"count":    {"1"},
		"language": {"en"},
		"format":   {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, geocodingURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding status %d", resp.StatusCode)
	}
	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

// geocodeLocation resolves a place name to coordinates via the Open-Meteo
// Geocoding API. For "City, State" inputs the city part is tried first, then
// the full string as a fallback.
func geocodeLocation(ctx context.Context, location string) *geocodeResult {
	searchName := location
	if idx := strings.Index(location, ","); idx >= 0 {
		searchName = strings.TrimSpace(location[:idx])
	}

	decoded, err := geocodeQuery(ctx, searchName)
	if err != nil {
		return nil
	}
	if len(decoded.Results) == 0 && searchName != location {
		if retry, err := geocodeQuery(ctx, location); err == nil {
			decoded = retry
		}
	}
	if len(decoded.Results) == 0 {
		return nil
	}

	first := decoded.Results[0]
	displayName := first.Name
	if displayName == "" {
		displayName = location
	}
	if first.Admin1 != "" {
		displayName += ", " + first.Admin1
	}
	if first.Country != "" {
		displayName += ", " + first.Country
	}
	return &geocodeResult{Lat: first.Latitude, Lon: first.Longitude, Name: displayName}
}

// NewWeatherTool returns the current-conditions lookup backed by Open-Meteo.
func NewWeatherTool() tool.Tool {
	return tool.NewFunctionTool(
		"get_weather",
		`Get the current weather for a location. The location is the city and state, e.g. "San Francisco, CA".`,
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": `The city and state, e.g. "San Francisco, CA"`,
				},
			},
			"required": []string{"location"},
		},
		getWeather,
	)
}

func getWeather(ctx context.Context, args map[string]any) (string, error) {
	location, _ := args["location"].(string)

	geo := geocodeLocation(ctx, location)
	if geo == nil {
		return fmt.Sprintf("Could not find location: %s", location), nil
	}

	q := url.Values{
		"latitude":         {fmt.Sprintf("%v", geo.Lat)},
		"longitude":        {fmt.Sprintf("%v", geo.Lon)},
		"current":          {"temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m"},
		"temperature_unit": {"fahrenheit"},
		"wind_speed_unit":  {"mph"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, forecastURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Error fetching weather data for %s", location), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Error fetching weather data for %s", location), nil
	}

	var decoded struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			Humidity    float64 `json:"relative_humidity_2m"`
			WeatherCode int     `json:"weather_code"`
			WindSpeed   float64 `json:"wind_speed_10m"`
		} `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Sprintf("Error fetching weather data for %s", location), nil
	}

	cur := decoded.Current
	return fmt.Sprintf("%s: %s, %g°F, Humidity: %g%%, Wind: %g mph",
		geo.Name, weatherCodeDescription(cur.WeatherCode), cur.Temperature, cur.Humidity, cur.WindSpeed), nil
}
