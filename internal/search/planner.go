// Package search turns a passenger's pickup/dropoff query into a ranked
// list of bookable ride offers.
package search

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ridesphere/ridesphere-backend/internal/catalog"
	"github.com/ridesphere/ridesphere-backend/internal/geoindex"
	"github.com/ridesphere/ridesphere-backend/internal/models"
	"github.com/ridesphere/ridesphere-backend/internal/observability"
	"github.com/ridesphere/ridesphere-backend/pkg/utils"
)

// DefaultRadiusKm matches the 5 km pickup/dropoff radius the mobile
// clients assume.
const DefaultRadiusKm = 5

// DriverInfo is the display data attached to each result. Identity data
// lives with an external collaborator; the planner only references it.
type DriverInfo struct {
	Name         string `json:"name"`
	MobileNumber string `json:"mobileNumber"`
}

// IdentityDirectory resolves a driver reference to display info.
type IdentityDirectory interface {
	DriverInfo(ctx context.Context, driverID string) (DriverInfo, error)
}

// Query is one search request. RadiusKm and Now fall back to
// DefaultRadiusKm and the wall clock when zero.
type Query struct {
	RequesterID string
	Pickup      models.Coordinate
	Dropoff     models.Coordinate
	RadiusKm    float64
	Now         time.Time
}

// Candidate is a ride offer that survived every filter, carrying its
// pickup distance and the driver's display info.
type Candidate struct {
	Ride             models.RideOffer `json:"ride"`
	PickupDistanceKm float64          `json:"pickupDistanceKm"`
	Driver           DriverInfo       `json:"driver"`
}

// Planner composes the geo index, the catalog and the identity
// directory into the search flow.
type Planner struct {
	Geo      geoindex.Index
	Catalog  catalog.Catalog
	Identity IdentityDirectory
	Logger   *slog.Logger

	// RadiusKm applies when a query does not name a radius.
	RadiusKm float64
}

func NewPlanner(geo geoindex.Index, cat catalog.Catalog, identity IdentityDirectory, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{Geo: geo, Catalog: cat, Identity: identity, Logger: logger, RadiusKm: DefaultRadiusKm}
}

// Search returns bookable candidates ordered by ascending pickup
// distance. The ordering comes straight from the geo index; every later
// stage is a stable filter, never a re-sort.
func (p *Planner) Search(ctx context.Context, q Query) ([]Candidate, error) {
	if !q.Pickup.Valid() {
		return nil, models.Validationf("pickup", "coordinates must be two finite numbers inside WGS84 bounds")
	}
	if !q.Dropoff.Valid() {
		return nil, models.Validationf("dropoff", "coordinates must be two finite numbers inside WGS84 bounds")
	}
	if q.RequesterID == "" {
		return nil, models.Validationf("requesterId", "must not be empty")
	}
	radius := q.RadiusKm
	if radius == 0 {
		radius = p.RadiusKm
	}
	if radius < 0 {
		return nil, models.Validationf("radiusKm", "must be positive")
	}
	now := q.Now
	if now.IsZero() {
		now = time.Now()
	}

	timer := prometheus.NewTimer(observability.SearchDuration)
	defer timer.ObserveDuration()

	matches, err := p.Geo.Within(ctx, q.Pickup, radius)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []Candidate{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.RideID
	}
	rides, err := p.Catalog.ListSearchable(ctx, catalog.SearchFilter{
		RideIDs:              ids,
		ExcludeDriver:        q.RequesterID,
		NotAlreadyBookedBy:   q.RequesterID,
		DepartureAfter:       now,
		MinRemainingCapacity: 1,
		AllowedStates:        []models.RideStatus{models.RideStatusOpen},
	})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.RideOffer, len(rides))
	for i := range rides {
		byID[rides[i].ID] = &rides[i]
	}

	out := make([]Candidate, 0, len(rides))
	for _, m := range matches {
		ride, ok := byID[m.RideID]
		if !ok {
			observability.SearchCandidatesDropped.WithLabelValues("business").Inc()
			continue
		}
		// Dropoff proximity is an independent constraint, not part of
		// the pickup bounding query; both must hold.
		if !utils.IsWithinRadius(q.Dropoff.Lat, q.Dropoff.Lng, ride.Dropoff.Lat, ride.Dropoff.Lng, radius) {
			observability.SearchCandidatesDropped.WithLabelValues("dropoff_radius").Inc()
			continue
		}
		info, err := p.driverInfo(ctx, ride.DriverID)
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{
			Ride:             *ride,
			PickupDistanceKm: m.DistanceKm,
			Driver:           info,
		})
	}
	return out, nil
}

func (p *Planner) driverInfo(ctx context.Context, driverID string) (DriverInfo, error) {
	if p.Identity == nil {
		return DriverInfo{}, nil
	}
	info, err := p.Identity.DriverInfo(ctx, driverID)
	if err == nil {
		return info, nil
	}
	// A dangling driver reference should not hide the ride; anything
	// else is an infrastructure failure the caller must see.
	if errors.Is(err, models.ErrUserNotFound) {
		p.Logger.Warn("driver identity missing", slog.String("driverId", driverID))
		return DriverInfo{}, nil
	}
	return DriverInfo{}, err
}
