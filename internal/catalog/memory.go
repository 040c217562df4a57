package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ridesphere/ridesphere-backend/internal/geoindex"
	"github.com/ridesphere/ridesphere-backend/internal/models"
)

// Memory is an in-process Catalog. It backs the test suite and
// single-node deployments; the gorm catalog covers shared stores. The
// mutex makes every mutation a true atomic step, mirroring what the
// version-predicated UPDATE gives the SQL implementation.
type Memory struct {
	mu    sync.Mutex
	rides map[string]*models.RideOffer
	geo   geoindex.Index
	now   func() time.Time
}

func NewMemory(geo geoindex.Index) *Memory {
	return &Memory{
		rides: make(map[string]*models.RideOffer),
		geo:   geo,
		now:   time.Now,
	}
}

func (m *Memory) Create(ctx context.Context, input CreateRideInput) (*models.RideOffer, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}
	now := m.now()
	ride := &models.RideOffer{
		ID:                uuid.NewString(),
		DriverID:          input.DriverID,
		Pickup:            input.Pickup,
		Dropoff:           input.Dropoff,
		DepartureTime:     input.DepartureTime,
		VehicleClass:      input.VehicleClass,
		TotalCapacity:     input.TotalCapacity,
		RemainingCapacity: input.TotalCapacity,
		DistanceKm:        input.DistanceKm,
		Price:             input.Price,
		Status:            models.RideStatusOpen,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	m.mu.Lock()
	m.rides[ride.ID] = ride
	m.mu.Unlock()

	if err := m.geo.Insert(ctx, ride.ID, ride.Pickup.Coordinate()); err != nil {
		return nil, err
	}
	return copyRide(ride), nil
}

func (m *Memory) Get(_ context.Context, rideID string) (*models.RideOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return nil, models.ErrRideNotFound
	}
	return copyRide(ride), nil
}

func (m *Memory) ReserveSeat(_ context.Context, rideID, passengerID string, expectedVersion int64) (*models.RideOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ride, ok := m.rides[rideID]
	if !ok {
		return nil, models.ErrRideNotFound
	}
	// The version check alone closes the race: any committed mutation
	// bumps the version, so a stale caller always lands here.
	if ride.Version != expectedVersion {
		return nil, models.ErrVersionConflict
	}
	if ride.Status != models.RideStatusOpen || ride.RemainingCapacity < 1 || ride.HasPassenger(passengerID) {
		return nil, models.ErrVersionConflict
	}

	ride.Passengers = append(ride.Passengers, models.RidePassenger{
		RideID:      ride.ID,
		PassengerID: passengerID,
		CreatedAt:   m.now(),
	})
	ride.RemainingCapacity--
	if ride.RemainingCapacity == 0 {
		ride.Status = models.RideStatusFullyBooked
	}
	ride.Version++
	ride.UpdatedAt = m.now()
	return copyRide(ride), nil
}

func (m *Memory) UpdateLifecycle(_ context.Context, rideID, driverID string, next models.RideStatus) (*models.RideOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ride, ok := m.rides[rideID]
	if !ok {
		return nil, models.ErrRideNotFound
	}
	if ride.DriverID != driverID {
		return nil, models.Validationf("driverId", "only the posting driver may change ride status")
	}
	if !transitionAllowed(ride.Status, next) {
		return nil, models.Validationf("status", "cannot move from %q to %q", ride.Status, next)
	}
	ride.Status = next
	ride.Version++
	ride.UpdatedAt = m.now()
	return copyRide(ride), nil
}

func (m *Memory) ListByDriver(_ context.Context, driverID string) ([]models.RideOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.RideOffer, 0)
	for _, r := range m.rides {
		if r.DriverID == driverID {
			out = append(out, *copyRide(r))
		}
	}
	sortByDeparture(out)
	return out, nil
}

func (m *Memory) ListByPassenger(_ context.Context, passengerID string) ([]models.RideOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.RideOffer, 0)
	for _, r := range m.rides {
		if r.HasPassenger(passengerID) {
			out = append(out, *copyRide(r))
		}
	}
	sortByDeparture(out)
	return out, nil
}

func (m *Memory) ListSearchable(_ context.Context, f SearchFilter) ([]models.RideOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.RideOffer, 0)
	if f.RideIDs != nil {
		for _, id := range f.RideIDs {
			if r, ok := m.rides[id]; ok && matchesFilter(r, f) {
				out = append(out, *copyRide(r))
			}
		}
		return out, nil
	}
	for _, r := range m.rides {
		if matchesFilter(r, f) {
			out = append(out, *copyRide(r))
		}
	}
	return out, nil
}

func sortByDeparture(rides []models.RideOffer) {
	sort.Slice(rides, func(i, j int) bool {
		if !rides[i].DepartureTime.Equal(rides[j].DepartureTime) {
			return rides[i].DepartureTime.Before(rides[j].DepartureTime)
		}
		return rides[i].ID < rides[j].ID
	})
}

// copyRide returns a detached copy so callers never alias the record the
// mutex protects.
func copyRide(r *models.RideOffer) *models.RideOffer {
	c := *r
	c.Passengers = make([]models.RidePassenger, len(r.Passengers))
	copy(c.Passengers, r.Passengers)
	return &c
}
