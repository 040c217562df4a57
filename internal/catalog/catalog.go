// Package catalog is the authoritative store of ride offers. It owns the
// seat-booking invariant: remaining capacity plus booked passengers always
// equals total capacity, enforced by a version-guarded conditional update
// that is the only way seats are ever taken.
package catalog

import (
	"context"
	"time"

	"github.com/ridesphere/ridesphere-backend/internal/models"
)

// CreateRideInput is the offer spec a driver submits.
type CreateRideInput struct {
	DriverID      string
	Pickup        models.Location
	Dropoff       models.Location
	DepartureTime time.Time
	VehicleClass  models.VehicleClass
	TotalCapacity int
	DistanceKm    float64
	Price         float64
}

// SearchFilter narrows ListSearchable. Zero values disable a predicate,
// except AllowedStates which must be set.
type SearchFilter struct {
	// RideIDs restricts the scan to a candidate set (from the geo index).
	RideIDs []string
	// ExcludeDriver drops rides posted by this identity.
	ExcludeDriver string
	// NotAlreadyBookedBy drops rides this identity already has a seat on.
	NotAlreadyBookedBy string
	// DepartureAfter drops rides departing strictly before this instant.
	DepartureAfter time.Time
	// MinRemainingCapacity drops rides with fewer free seats.
	MinRemainingCapacity int
	// AllowedStates keeps only rides in one of these lifecycle states.
	AllowedStates []models.RideStatus
}

// Catalog is the single writer of capacity and passenger state.
type Catalog interface {
	// Create validates the offer spec, stores it as an open ride with
	// all seats free, and registers its pickup in the geo index.
	Create(ctx context.Context, input CreateRideInput) (*models.RideOffer, error)

	// Get returns the ride with its passengers, or models.ErrRideNotFound.
	Get(ctx context.Context, rideID string) (*models.RideOffer, error)

	// ReserveSeat is the storage-level compare-and-swap: in one atomic
	// step, conditioned on the ride still being at expectedVersion, it
	// records the passenger, decrements remaining capacity and flips the
	// ride to fully booked when the last seat goes. Returns
	// models.ErrVersionConflict on a lost race.
	ReserveSeat(ctx context.Context, rideID, passengerID string, expectedVersion int64) (*models.RideOffer, error)

	// UpdateLifecycle moves the ride to the next state. Only the posting
	// driver may call it and only legal transitions are applied.
	UpdateLifecycle(ctx context.Context, rideID, driverID string, next models.RideStatus) (*models.RideOffer, error)

	// ListByDriver returns rides posted by the driver, departure ascending.
	ListByDriver(ctx context.Context, driverID string) ([]models.RideOffer, error)

	// ListByPassenger returns rides the identity holds a seat on,
	// departure ascending.
	ListByPassenger(ctx context.Context, passengerID string) ([]models.RideOffer, error)

	// ListSearchable returns rides matching the filter, in no promised
	// order; the search planner re-applies its own ranking.
	ListSearchable(ctx context.Context, f SearchFilter) ([]models.RideOffer, error)
}

func validateCreate(in CreateRideInput) error {
	if in.DriverID == "" {
		return models.Validationf("driverId", "must not be empty")
	}
	if in.Pickup.Address == "" {
		return models.Validationf("pickup.address", "must not be empty")
	}
	if in.Dropoff.Address == "" {
		return models.Validationf("dropoff.address", "must not be empty")
	}
	if !in.Pickup.Coordinate().Valid() {
		return models.Validationf("pickup.coordinates", "must be two finite numbers inside WGS84 bounds")
	}
	if !in.Dropoff.Coordinate().Valid() {
		return models.Validationf("dropoff.coordinates", "must be two finite numbers inside WGS84 bounds")
	}
	if in.DepartureTime.IsZero() {
		return models.Validationf("departureTime", "must be set")
	}
	switch in.VehicleClass {
	case models.VehicleClassSingleSeat:
		if in.TotalCapacity != 1 {
			return models.Validationf("totalCapacity", "must be exactly 1 for a single-seat vehicle")
		}
	case models.VehicleClassMultiSeat:
		if in.TotalCapacity < 1 {
			return models.Validationf("totalCapacity", "must be at least 1")
		}
	default:
		return models.Validationf("vehicleClass", "must be %q or %q",
			models.VehicleClassSingleSeat, models.VehicleClassMultiSeat)
	}
	if in.Price < 0 {
		return models.Validationf("price", "must not be negative")
	}
	if in.DistanceKm < 0 {
		return models.Validationf("distanceKm", "must not be negative")
	}
	return nil
}

// legalTransitions is the driver-initiated part of the lifecycle. Open and
// fully-booked rides can start or be cancelled; started rides complete.
// Fully-booked itself is never set here: it only flips inside ReserveSeat.
var legalTransitions = map[models.RideStatus][]models.RideStatus{
	models.RideStatusOpen:        {models.RideStatusInProgress, models.RideStatusCancelled},
	models.RideStatusFullyBooked: {models.RideStatusInProgress, models.RideStatusCancelled},
	models.RideStatusInProgress:  {models.RideStatusCompleted},
}

func transitionAllowed(from, to models.RideStatus) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// matchesFilter applies every SearchFilter predicate to a loaded ride.
// Shared by the memory catalog and, for the passenger predicate the SQL
// query cannot express cheaply, by the gorm catalog.
func matchesFilter(r *models.RideOffer, f SearchFilter) bool {
	if f.ExcludeDriver != "" && r.DriverID == f.ExcludeDriver {
		return false
	}
	if f.NotAlreadyBookedBy != "" && r.HasPassenger(f.NotAlreadyBookedBy) {
		return false
	}
	if !f.DepartureAfter.IsZero() && r.DepartureTime.Before(f.DepartureAfter) {
		return false
	}
	if r.RemainingCapacity < f.MinRemainingCapacity {
		return false
	}
	if len(f.AllowedStates) > 0 {
		ok := false
		for _, s := range f.AllowedStates {
			if r.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}
