package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 3, cfg.BookingMaxAttempts)
	require.EqualValues(t, 5, cfg.SearchRadiusKm)
	require.False(t, cfg.UseRedisGeo)
}

func TestLoadServerConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BOOKING_MAX_ATTEMPTS", "5")
	t.Setenv("SEARCH_RADIUS_KM", "7.5")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, 5, cfg.BookingMaxAttempts)
	require.EqualValues(t, 7.5, cfg.SearchRadiusKm)
	require.True(t, cfg.UseRedisGeo)
}

func TestLoadServerConfigRejectsBadValues(t *testing.T) {
	t.Setenv("BOOKING_MAX_ATTEMPTS", "zero")
	_, err := LoadServerConfig()
	require.Error(t, err)

	t.Setenv("BOOKING_MAX_ATTEMPTS", "0")
	_, err = LoadServerConfig()
	require.Error(t, err)
}
