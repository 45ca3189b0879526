package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNearestStationsOrdering(t *testing.T) {
	// Just south of Union Square.
	nearby := nearestStations(40.7335, -73.9905, 3)
	require.Len(t, nearby, 3)
	assert.Equal(t, "14 St-Union Sq", nearby[0].Name)
	assert.LessOrEqual(t, nearby[0].km, nearby[1].km)
	assert.LessOrEqual(t, nearby[1].km, nearby[2].km)
}

func TestHaversineKnownDistance(t *testing.T) {
	// Times Sq to Grand Central is roughly 0.9 km.
	d := haversineKm(40.754672, -73.986754, 40.751776, -73.976848)
	assert.InDelta(t, 0.9, d, 0.15)
}

func TestNearbyStationsUsesInjectedCoordinates(t *testing.T) {
	out, err := getNearbyStations(context.Background(), map[string]any{
		"location":     "near me",
		"num_stations": float64(2),
		"user_lat":     40.7177,
		"user_lon":     -73.9568,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "your location")
	assert.Contains(t, out, "Bedford Av")
}

func TestLineInfo(t *testing.T) {
	out, err := getLineInfo(context.Background(), map[string]any{"line": "g"})
	require.NoError(t, err)
	assert.Equal(t, "G Train: Brooklyn-Queens Crosstown", out)

	out, err = getLineInfo(context.Background(), map[string]any{"line": "X"})
	require.NoError(t, err)
	assert.Contains(t, out, "Unknown line 'X'")
}
