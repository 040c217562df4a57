package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ServerConfig captures the tunable parameters of the API process.
// Connection strings stay with the packages that open them; this struct
// holds behavior knobs, loaded from environment variables with defaults
// that work locally.
type ServerConfig struct {
	Port string

	// BookingMaxAttempts bounds the reservation retry loop.
	BookingMaxAttempts int
	// SearchRadiusKm is the pickup and dropoff radius applied when a
	// search does not name one.
	SearchRadiusKm float64
	// RideGeoKey is the Redis key holding the pickup geo set.
	RideGeoKey string
	// UseRedisGeo selects the shared Redis geo index over the
	// in-process one.
	UseRedisGeo bool

	LogLevel string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		BookingMaxAttempts: 3,
		SearchRadiusKm:     5,
		RideGeoKey:         "rides:pickup:geo",
		LogLevel:           "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.Port, "PORT")
	setIntFromEnv(&cfg.BookingMaxAttempts, "BOOKING_MAX_ATTEMPTS", &errs)
	setFloatFromEnv(&cfg.SearchRadiusKm, "SEARCH_RADIUS_KM", &errs)
	setStringFromEnv(&cfg.RideGeoKey, "RIDE_GEO_KEY")
	cfg.UseRedisGeo = strings.TrimSpace(os.Getenv("REDIS_URL")) != ""

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.BookingMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("BOOKING_MAX_ATTEMPTS must be >= 1"))
	}
	if cfg.SearchRadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("SEARCH_RADIUS_KM must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}
