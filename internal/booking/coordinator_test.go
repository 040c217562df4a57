package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ridesphere/ridesphere-backend/internal/catalog"
	"github.com/ridesphere/ridesphere-backend/internal/geoindex"
	"github.com/ridesphere/ridesphere-backend/internal/models"
)

func newFixture(t *testing.T, class models.VehicleClass, capacity int) (*Coordinator, catalog.Catalog, *models.RideOffer) {
	t.Helper()
	cat := catalog.NewMemory(geoindex.NewMemoryIndex())
	ride, err := cat.Create(context.Background(), catalog.CreateRideInput{
		DriverID:      "driver-1",
		Pickup:        models.Location{Address: "Kencom, Nairobi", Lng: 36.8219, Lat: -1.2864},
		Dropoff:       models.Location{Address: "Thika", Lng: 37.0693, Lat: -1.0388},
		DepartureTime: time.Date(2026, 10, 1, 7, 30, 0, 0, time.UTC),
		VehicleClass:  class,
		TotalCapacity: capacity,
		DistanceKm:    42,
		Price:         300,
	})
	require.NoError(t, err)
	return NewCoordinator(cat, nil), cat, ride
}

func TestSingleSeatScenario(t *testing.T) {
	ctx := context.Background()
	coord, _, ride := newFixture(t, models.VehicleClassSingleSeat, 1)

	resA, err := coord.Book(ctx, ride.ID, "passenger-a")
	require.NoError(t, err)
	require.True(t, resA.Confirmed)
	require.Zero(t, resA.Ride.RemainingCapacity)
	require.Equal(t, models.RideStatusFullyBooked, resA.Ride.Status)

	// The ride flipped to fully booked with the last seat; the second
	// passenger still sees a capacity rejection, not a lifecycle one.
	resB, err := coord.Book(ctx, ride.ID, "passenger-b")
	require.NoError(t, err)
	require.False(t, resB.Confirmed)
	require.Equal(t, ReasonNoCapacity, resB.Reason)
}

func TestMultiSeatSequentialFill(t *testing.T) {
	ctx := context.Background()
	coord, _, ride := newFixture(t, models.VehicleClassMultiSeat, 3)

	wantRemaining := []int{2, 1, 0}
	for i, p := range []string{"p1", "p2", "p3"} {
		res, err := coord.Book(ctx, ride.ID, p)
		require.NoError(t, err)
		require.True(t, res.Confirmed)
		require.Equal(t, wantRemaining[i], res.Ride.RemainingCapacity)
		require.Equal(t, res.Ride.TotalCapacity, res.Ride.RemainingCapacity+len(res.Ride.Passengers))
	}

	res, err := coord.Book(ctx, ride.ID, "p4")
	require.NoError(t, err)
	require.False(t, res.Confirmed)
	require.Equal(t, ReasonNoCapacity, res.Reason)
}

func TestSelfBookingRejected(t *testing.T) {
	ctx := context.Background()
	coord, cat, ride := newFixture(t, models.VehicleClassMultiSeat, 3)

	res, err := coord.Book(ctx, ride.ID, "driver-1")
	require.NoError(t, err)
	require.False(t, res.Confirmed)
	require.Equal(t, ReasonSelfBooking, res.Reason)

	// Capacity untouched.
	current, err := cat.Get(ctx, ride.ID)
	require.NoError(t, err)
	require.Equal(t, 3, current.RemainingCapacity)
}

func TestAlreadyBookedRejected(t *testing.T) {
	ctx := context.Background()
	coord, cat, ride := newFixture(t, models.VehicleClassMultiSeat, 3)

	res, err := coord.Book(ctx, ride.ID, "p1")
	require.NoError(t, err)
	require.True(t, res.Confirmed)

	res, err = coord.Book(ctx, ride.ID, "p1")
	require.NoError(t, err)
	require.False(t, res.Confirmed)
	require.Equal(t, ReasonAlreadyBooked, res.Reason)

	current, err := cat.Get(ctx, ride.ID)
	require.NoError(t, err)
	require.Equal(t, 2, current.RemainingCapacity)
}

func TestCancelledRideWithSeatsRejects(t *testing.T) {
	ctx := context.Background()
	coord, cat, ride := newFixture(t, models.VehicleClassMultiSeat, 3)

	_, err := cat.UpdateLifecycle(ctx, ride.ID, "driver-1", models.RideStatusCancelled)
	require.NoError(t, err)

	res, err := coord.Book(ctx, ride.ID, "p1")
	require.NoError(t, err)
	require.False(t, res.Confirmed)
	require.Equal(t, ReasonRideNotOpen, res.Reason)
}

func TestUnknownRideRejected(t *testing.T) {
	coord, _, _ := newFixture(t, models.VehicleClassMultiSeat, 3)
	res, err := coord.Book(context.Background(), "no-such-ride", "p1")
	require.NoError(t, err)
	require.Equal(t, ReasonNotFound, res.Reason)
}

func TestBookInputValidation(t *testing.T) {
	coord, _, ride := newFixture(t, models.VehicleClassMultiSeat, 3)
	_, err := coord.Book(context.Background(), "", "p1")
	require.True(t, models.IsValidation(err))
	_, err = coord.Book(context.Background(), ride.ID, "")
	require.True(t, models.IsValidation(err))
}

func TestNoOverbookingUnderRace(t *testing.T) {
	ctx := context.Background()
	const capacity = 3
	const extra = 4
	coord, cat, ride := newFixture(t, models.VehicleClassMultiSeat, capacity)
	// Raise the retry budget so losses on this highly contended ride
	// resolve to NoCapacity rather than Conflict exhaustion.
	coord.MaxAttempts = capacity + extra

	var wg sync.WaitGroup
	results := make([]Result, capacity+extra)
	errs := make([]error, capacity+extra)
	for i := 0; i < capacity+extra; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = coord.Book(ctx, ride.ID, fmt.Sprintf("passenger-%d", i))
		}(i)
	}
	wg.Wait()

	confirmed := 0
	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, res := range results {
		if res.Confirmed {
			confirmed++
		} else {
			require.Contains(t, []RejectReason{ReasonNoCapacity, ReasonConflict}, res.Reason)
		}
	}
	require.Equal(t, capacity, confirmed)

	final, err := cat.Get(ctx, ride.ID)
	require.NoError(t, err)
	require.Zero(t, final.RemainingCapacity)
	require.Len(t, final.Passengers, capacity)
	require.Equal(t, models.RideStatusFullyBooked, final.Status)
	require.Equal(t, final.TotalCapacity, final.RemainingCapacity+len(final.Passengers))
}

func TestNoDoubleBookingUnderRace(t *testing.T) {
	ctx := context.Background()
	coord, cat, ride := newFixture(t, models.VehicleClassMultiSeat, 5)
	coord.MaxAttempts = 10

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]Result, attempts)
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = coord.Book(ctx, ride.ID, "same-passenger")
		}(i)
	}
	wg.Wait()

	confirmed := 0
	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, res := range results {
		if res.Confirmed {
			confirmed++
		} else {
			require.Contains(t, []RejectReason{ReasonAlreadyBooked, ReasonConflict}, res.Reason)
		}
	}
	require.Equal(t, 1, confirmed)

	final, err := cat.Get(ctx, ride.ID)
	require.NoError(t, err)
	require.Equal(t, 4, final.RemainingCapacity)
	require.Len(t, final.Passengers, 1)
}

// conflictingCatalog always loses the reservation race.
type conflictingCatalog struct {
	catalog.Catalog
	calls int
}

func (c *conflictingCatalog) ReserveSeat(ctx context.Context, rideID, passengerID string, expectedVersion int64) (*models.RideOffer, error) {
	c.calls++
	return nil, models.ErrVersionConflict
}

func TestConflictAfterRetryBudget(t *testing.T) {
	ctx := context.Background()
	coord, cat, ride := newFixture(t, models.VehicleClassMultiSeat, 3)

	wrapped := &conflictingCatalog{Catalog: cat}
	coord.Catalog = wrapped
	coord.MaxAttempts = 3

	res, err := coord.Book(ctx, ride.ID, "p1")
	require.NoError(t, err)
	require.False(t, res.Confirmed)
	require.Equal(t, ReasonConflict, res.Reason)
	require.Equal(t, 3, wrapped.calls)
}

// flakyCatalog conflicts once, then delegates.
type flakyCatalog struct {
	catalog.Catalog
	failed bool
}

func (f *flakyCatalog) ReserveSeat(ctx context.Context, rideID, passengerID string, expectedVersion int64) (*models.RideOffer, error) {
	if !f.failed {
		f.failed = true
		return nil, models.ErrVersionConflict
	}
	return f.Catalog.ReserveSeat(ctx, rideID, passengerID, expectedVersion)
}

func TestRetryRecoversFromSingleConflict(t *testing.T) {
	ctx := context.Background()
	coord, cat, ride := newFixture(t, models.VehicleClassMultiSeat, 3)
	coord.Catalog = &flakyCatalog{Catalog: cat}

	res, err := coord.Book(ctx, ride.ID, "p1")
	require.NoError(t, err)
	require.True(t, res.Confirmed)
	require.Equal(t, 2, res.Ride.RemainingCapacity)
}

// brokenCatalog fails every read with an infrastructure error.
type brokenCatalog struct {
	catalog.Catalog
}

func (b *brokenCatalog) Get(ctx context.Context, rideID string) (*models.RideOffer, error) {
	return nil, models.Storagef("get ride", fmt.Errorf("connection refused"))
}

func TestStorageFailurePropagates(t *testing.T) {
	ctx := context.Background()
	coord, cat, ride := newFixture(t, models.VehicleClassMultiSeat, 3)
	coord.Catalog = &brokenCatalog{Catalog: cat}

	res, err := coord.Book(ctx, ride.ID, "p1")
	require.Error(t, err)
	var se *models.StorageError
	require.ErrorAs(t, err, &se)
	// Never converted into a business rejection.
	require.False(t, res.Confirmed)
	require.Empty(t, res.Reason)
}
