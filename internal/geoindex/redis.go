package geoindex

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/ridesphere/ridesphere-backend/internal/models"
	"github.com/ridesphere/ridesphere-backend/pkg/utils"
)

// RedisIndex implements Index on top of Redis GEO commands, so multiple
// API processes share one view of ride pickups.
type RedisIndex struct {
	client *redis.Client
	key    string
}

func NewRedisIndex(client *redis.Client, key string) *RedisIndex {
	if key == "" {
		key = "rides:pickup:geo"
	}
	return &RedisIndex{client: client, key: key}
}

func (r *RedisIndex) Insert(ctx context.Context, rideID string, coord models.Coordinate) error {
	if rideID == "" {
		return models.Validationf("rideId", "must not be empty")
	}
	if !coord.Valid() {
		return models.Validationf("coordinates", "must be two finite numbers inside WGS84 bounds")
	}
	err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      rideID,
		Longitude: coord.Lng,
		Latitude:  coord.Lat,
	}).Err()
	return models.Storagef("geoindex insert", err)
}

func (r *RedisIndex) Within(ctx context.Context, p models.Coordinate, radiusKm float64) ([]Match, error) {
	if err := validateQuery(p, radiusKm); err != nil {
		return nil, err
	}
	locs, err := r.client.GeoSearchLocation(ctx, r.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, models.Storagef("geoindex query", err)
	}

	// Redis uses its own geodesic model with slightly different slack
	// at the boundary; re-check against our haversine so the radius
	// stays a hard cutoff, and re-sort for the ID tie-break.
	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		d := utils.HaversineDistance(p.Lat, p.Lng, loc.Latitude, loc.Longitude)
		if d > radiusKm {
			continue
		}
		matches = append(matches, Match{RideID: loc.Name, DistanceKm: d})
	}
	sortMatches(matches)
	return matches, nil
}
