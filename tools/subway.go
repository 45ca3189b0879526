package tools

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/zelfhosted/server/tool"
)

// station is one subway stop with its coordinates, drawn from the MTA GTFS
// stops feed (parent stations only).
type station struct {
	Name string
	Lat  float64
	Lon  float64
}

var stations = []station{
	{"Times Sq-42 St", 40.754672, -73.986754},
	{"Grand Central-42 St", 40.751776, -73.976848},
	{"34 St-Herald Sq", 40.749567, -73.987950},
	{"34 St-Penn Station", 40.750373, -73.991057},
	{"14 St-Union Sq", 40.734673, -73.989951},
	{"Fulton St", 40.710374, -74.007582},
	{"Atlantic Av-Barclays Ctr", 40.683666, -73.978813},
	{"Canal St", 40.718092, -74.000494},
	{"59 St-Columbus Circle", 40.768296, -73.981736},
	{"Lexington Av/59 St", 40.762526, -73.967967},
	{"86 St", 40.779492, -73.955589},
	{"125 St", 40.804138, -73.937594},
	{"96 St", 40.793919, -73.972323},
	{"72 St", 40.778453, -73.981970},
	{"Bedford Av", 40.717304, -73.956872},
	{"Lorimer St", 40.714063, -73.950275},
	{"Metropolitan Av", 40.712792, -73.951418},
	{"Court Sq", 40.747023, -73.945264},
	{"Jackson Hts-Roosevelt Av", 40.746644, -73.891338},
	{"Flushing-Main St", 40.759600, -73.830030},
	{"Jamaica Center-Parsons/Archer", 40.702147, -73.801109},
	{"Coney Island-Stillwell Av", 40.577422, -73.981233},
	{"Borough Hall", 40.693219, -73.989998},
	{"Jay St-MetroTech", 40.692338, -73.987342},
	{"Hoyt-Schermerhorn Sts", 40.688484, -73.985001},
	{"Broadway Junction", 40.678334, -73.905316},
	{"Yankee Stadium-161 St", 40.827994, -73.925831},
	{"Fordham Rd", 40.862803, -73.901034},
	{"Myrtle-Wyckoff Avs", 40.699814, -73.911586},
	{"Astoria-Ditmars Blvd", 40.775036, -73.912034},
	{"W 4 St-Wash Sq", 40.732338, -74.000495},
	{"Delancey St-Essex St", 40.718315, -73.987437},
	{"Wall St", 40.707557, -74.011862},
	{"Chambers St", 40.714111, -74.008585},
	{"Church Av", 40.644041, -73.979678},
	{"Crown Hts-Utica Av", 40.668897, -73.932942},
	{"Greenpoint Av", 40.731352, -73.954449},
	{"Nassau Av", 40.724635, -73.951277},
	{"7 Av", 40.677862, -73.972367},
	{"Prospect Park", 40.661614, -73.962246},
}

// Subway lines known to the info tool.
var lineNames = map[string]string{
	"1": "Broadway-7th Ave Local",
	"2": "7th Ave Express",
	"3": "7th Ave Express",
	"4": "Lexington Ave Express",
	"5": "Lexington Ave Express",
	"6": "Lexington Ave Local",
	"7": "Flushing Local/Express",
	"A": "8th Ave Express",
	"C": "8th Ave Local",
	"E": "8th Ave Local",
	"B": "6th Ave Express",
	"D": "6th Ave Express",
	"F": "6th Ave Local",
	"M": "6th Ave Local",
	"G": "Brooklyn-Queens Crosstown",
	"J": "Nassau St Local",
	"Z": "Nassau St Express",
	"L": "14th St-Canarsie Local",
	"N": "Broadway Express",
	"Q": "Broadway Express",
	"R": "Broadway Local",
	"W": "Broadway Local",
	"S": "42nd St Shuttle",
	"FS": "Franklin Ave Shuttle",
	"SIR": "Staten Island Railway",
}

func validLines() []string {
	lines := make([]string, 0, len(lineNames))
	for l := range lineNames {
		lines = append(lines, l)
	}
	sort.Strings(lines)
	return lines
}

// haversineKm returns the great-circle distance between two coordinates.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180
	a := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Pow(math.Sin(dlon/2), 2)
	return earthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}

type stationDistance struct {
	station
	km float64
}

// nearestStations returns the n stations closest to the given point.
func nearestStations(lat, lon float64, n int) []stationDistance {
	out := make([]stationDistance, 0, len(stations))
	for _, s := range stations {
		out = append(out, stationDistance{station: s, km: haversineKm(lat, lon, s.Lat, s.Lon)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].km < out[j].km })
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// geocodeNYC resolves a place name with New York City context appended when
// the query does not already carry it.
func geocodeNYC(ctx context.Context, location string) *geocodeResult {
	query := location
	lower := strings.ToLower(location)
	if !strings.Contains(lower, "nyc") && !strings.Contains(lower, "new york") {
		query = location + ", New York City"
	}
	return geocodeLocation(ctx, query)
}

// NewNearbyStationsTool returns the station lookup. Its coordinates
// arguments are filled in by the orchestrator when the user asks about
// "near me" style locations.
func NewNearbyStationsTool() tool.Tool {
	return tool.NewFunctionTool(
		"get_nearby_subway_stations",
		"Find subway stations near a location in New York City.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": `Address, neighborhood, or landmark (e.g. "Williamsburg Brooklyn", "Empire State Building", or "near me")`,
				},
				"num_stations": map[string]any{
					"type":        "integer",
					"description": "Number of nearby stations to return (default 5)",
				},
				"user_lat": map[string]any{
					"type":        "number",
					"description": `User's latitude (auto-injected for "near me" queries)`,
				},
				"user_lon": map[string]any{
					"type":        "number",
					"description": `User's longitude (auto-injected for "near me" queries)`,
				},
			},
			"required": []string{"location"},
		},
		getNearbyStations,
	)
}

func getNearbyStations(ctx context.Context, args map[string]any) (string, error) {
	location, _ := args["location"].(string)
	numStations := 5
	if n, ok := args["num_stations"].(float64); ok && n > 0 {
		numStations = int(n)
	}

	var lat, lon float64
	displayName := "your location"
	userLat, hasLat := args["user_lat"].(float64)
	userLon, hasLon := args["user_lon"].(float64)
	if hasLat && hasLon {
		lat, lon = userLat, userLon
	} else {
		geo := geocodeNYC(ctx, location)
		if geo == nil {
			return fmt.Sprintf("Could not find location: %s", location), nil
		}
		lat, lon, displayName = geo.Lat, geo.Lon, geo.Name
	}

	nearby := nearestStations(lat, lon, numStations)

	var b strings.Builder
	fmt.Fprintf(&b, "Subway stations near %s:\n", displayName)
	for _, s := range nearby {
		miles := s.km * 0.621371
		fmt.Fprintf(&b, "  - %s: %.2f mi (%.2f km)\n", s.Name, miles, s.km)
	}
	b.WriteString("\nUse get_subway_line_info(line) for service details")
	return b.String(), nil
}

// NewLineInfoTool returns the static line description lookup.
func NewLineInfoTool() tool.Tool {
	return tool.NewFunctionTool(
		"get_subway_line_info",
		"Get the service name of a NYC subway line.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"line": map[string]any{
					"type":        "string",
					"description": `Subway line letter/number (e.g. "G", "A", "1", "L")`,
				},
			},
			"required": []string{"line"},
		},
		getLineInfo,
	)
}

func getLineInfo(ctx context.Context, args map[string]any) (string, error) {
	line, _ := args["line"].(string)
	upper := strings.ToUpper(strings.TrimSpace(line))
	name, ok := lineNames[upper]
	if !ok {
		return fmt.Sprintf("Unknown line '%s'. Valid lines: %s", line, strings.Join(validLines(), ", ")), nil
	}
	return fmt.Sprintf("%s Train: %s", upper, name), nil
}
