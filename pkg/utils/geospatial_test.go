package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHaversineDistanceZero(t *testing.T) {
	require.Zero(t, HaversineDistance(-1.2864, 36.8219, -1.2864, 36.8219))
}

func TestHaversineDistanceOneDegreeLatitude(t *testing.T) {
	// One degree of latitude is about 111.19 km everywhere.
	d := HaversineDistance(0, 36.8, 1, 36.8)
	require.InDelta(t, 111.19, d, 0.05)
}

func TestHaversineDistanceKnownPair(t *testing.T) {
	// Nairobi CBD to JKIA is roughly 12 km as the crow flies.
	d := HaversineDistance(-1.2864, 36.8219, -1.3192, 36.9275)
	require.InDelta(t, 12.3, d, 1.0)
}

func TestIsWithinRadius(t *testing.T) {
	require.True(t, IsWithinRadius(0, 0, 0, 0.01, 5))
	require.False(t, IsWithinRadius(0, 0, 0, 1, 5))
}
