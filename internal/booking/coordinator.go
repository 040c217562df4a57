// Package booking orchestrates a seat-booking attempt: load, validate,
// then a conditional reservation against the catalog, retried a bounded
// number of times when a concurrent booking wins the race.
package booking

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ridesphere/ridesphere-backend/internal/catalog"
	"github.com/ridesphere/ridesphere-backend/internal/models"
	"github.com/ridesphere/ridesphere-backend/internal/observability"
)

// RejectReason classifies a terminal business rejection. Rejections are
// ordinary results, not errors: they are frequent, expected outcomes.
type RejectReason string

const (
	ReasonNotFound      RejectReason = "not_found"
	ReasonRideNotOpen   RejectReason = "ride_not_open"
	ReasonSelfBooking   RejectReason = "self_booking"
	ReasonAlreadyBooked RejectReason = "already_booked"
	ReasonNoCapacity    RejectReason = "no_capacity"
	ReasonConflict      RejectReason = "conflict"
)

// Result is the outcome of one booking attempt. Exactly one of the two
// arms is populated: Ride when Confirmed, Reason otherwise.
type Result struct {
	Confirmed bool
	Reason    RejectReason
	Ride      *models.RideOffer
}

func rejected(reason RejectReason) Result {
	observability.BookingsTotal.WithLabelValues(string(reason)).Inc()
	return Result{Reason: reason}
}

// DefaultMaxAttempts bounds how often a lost version race is retried
// before the attempt is terminally rejected as a conflict.
const DefaultMaxAttempts = 3

// Coordinator implements the booking protocol over any Catalog.
type Coordinator struct {
	Catalog     catalog.Catalog
	Logger      *slog.Logger
	MaxAttempts int
}

func NewCoordinator(cat catalog.Catalog, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{Catalog: cat, Logger: logger, MaxAttempts: DefaultMaxAttempts}
}

// Book runs one attempt for passengerID on rideID. Business rejections
// come back in the Result; the error return carries only caller mistakes
// (ValidationError) and storage failures, which are never masked as
// rejections.
//
// The validations run against a snapshot at a known version, and the
// reservation commits only if that version still holds, so the decrement
// and the passenger append can never diverge. Capacity-1 rides take the
// exact same path.
func (c *Coordinator) Book(ctx context.Context, rideID, passengerID string) (Result, error) {
	if rideID == "" {
		return Result{}, models.Validationf("rideId", "must not be empty")
	}
	if passengerID == "" {
		return Result{}, models.Validationf("passengerId", "must not be empty")
	}

	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = DefaultMaxAttempts
	}

	for attempt := 0; attempt < attempts; attempt++ {
		ride, err := c.Catalog.Get(ctx, rideID)
		if errors.Is(err, models.ErrRideNotFound) {
			return rejected(ReasonNotFound), nil
		}
		if err != nil {
			return Result{}, err
		}

		// A full ride is a capacity rejection, not a lifecycle one; the
		// status flip on the last seat is bookkeeping, not a driver action.
		if ride.Status == models.RideStatusFullyBooked {
			return rejected(ReasonNoCapacity), nil
		}
		if ride.Status != models.RideStatusOpen {
			return rejected(ReasonRideNotOpen), nil
		}
		if ride.DriverID == passengerID {
			return rejected(ReasonSelfBooking), nil
		}
		if ride.HasPassenger(passengerID) {
			return rejected(ReasonAlreadyBooked), nil
		}
		if ride.RemainingCapacity < 1 {
			return rejected(ReasonNoCapacity), nil
		}

		updated, err := c.Catalog.ReserveSeat(ctx, rideID, passengerID, ride.Version)
		if errors.Is(err, models.ErrVersionConflict) {
			// Lost the race; re-read and re-validate from scratch.
			observability.BookingRetriesTotal.Inc()
			continue
		}
		if errors.Is(err, models.ErrRideNotFound) {
			return rejected(ReasonNotFound), nil
		}
		if err != nil {
			return Result{}, err
		}

		observability.BookingsTotal.WithLabelValues("confirmed").Inc()
		return Result{Confirmed: true, Ride: updated}, nil
	}

	c.Logger.Warn("booking rejected after retry budget",
		slog.String("rideId", rideID),
		slog.Int("attempts", attempts))
	return rejected(ReasonConflict), nil
}
