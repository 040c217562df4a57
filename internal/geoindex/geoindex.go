// Package geoindex answers pickup-proximity queries for the search
// planner: which rides start within a radius of a point, nearest first.
package geoindex

import (
	"context"
	"sort"
	"sync"

	"github.com/ridesphere/ridesphere-backend/internal/models"
	"github.com/ridesphere/ridesphere-backend/pkg/utils"
)

// Match is one ride inside the queried radius.
type Match struct {
	RideID     string
	DistanceKm float64
}

// Index is the minimal interface required by the catalog and the search
// planner.
type Index interface {
	// Insert registers (or re-registers) a ride's pickup coordinate.
	Insert(ctx context.Context, rideID string, coord models.Coordinate) error
	// Within returns every registered ride whose pickup lies within
	// radiusKm of p, ordered by ascending great-circle distance, ties
	// broken by ride ID. The radius is a hard cutoff.
	Within(ctx context.Context, p models.Coordinate, radiusKm float64) ([]Match, error)
}

// MemoryIndex is a scan-based Index. Fine for tests and single-node
// deployments; the Redis index covers shared ones.
type MemoryIndex struct {
	mu     sync.RWMutex
	coords map[string]models.Coordinate
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{coords: make(map[string]models.Coordinate)}
}

func (m *MemoryIndex) Insert(_ context.Context, rideID string, coord models.Coordinate) error {
	if rideID == "" {
		return models.Validationf("rideId", "must not be empty")
	}
	if !coord.Valid() {
		return models.Validationf("coordinates", "must be two finite numbers inside WGS84 bounds")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coords[rideID] = coord
	return nil
}

func (m *MemoryIndex) Within(_ context.Context, p models.Coordinate, radiusKm float64) ([]Match, error) {
	if err := validateQuery(p, radiusKm); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0)
	for id, c := range m.coords {
		d := utils.HaversineDistance(p.Lat, p.Lng, c.Lat, c.Lng)
		if d > radiusKm {
			continue
		}
		matches = append(matches, Match{RideID: id, DistanceKm: d})
	}
	sortMatches(matches)
	return matches, nil
}

func validateQuery(p models.Coordinate, radiusKm float64) error {
	if !p.Valid() {
		return models.Validationf("coordinates", "must be two finite numbers inside WGS84 bounds")
	}
	if radiusKm <= 0 {
		return models.Validationf("radiusKm", "must be positive")
	}
	return nil
}

// sortMatches orders by distance ascending, then ride ID ascending so
// equal distances rank deterministically.
func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceKm != matches[j].DistanceKm {
			return matches[i].DistanceKm < matches[j].DistanceKm
		}
		return matches[i].RideID < matches[j].RideID
	})
}
