package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ridesphere/ridesphere-backend/internal/geoindex"
	"github.com/ridesphere/ridesphere-backend/internal/models"
)

// GormCatalog is the Postgres-backed Catalog. Seat reservation relies on
// the database executing the version-predicated UPDATE and the passenger
// INSERT as one transaction; correctness does not depend on any
// application-side locking.
type GormCatalog struct {
	db  *gorm.DB
	geo geoindex.Index
}

func NewGormCatalog(db *gorm.DB, geo geoindex.Index) *GormCatalog {
	return &GormCatalog{db: db, geo: geo}
}

func (g *GormCatalog) Create(ctx context.Context, input CreateRideInput) (*models.RideOffer, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}
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
	}
	if err := g.db.WithContext(ctx).Create(ride).Error; err != nil {
		return nil, models.Storagef("create ride", err)
	}
	if err := g.geo.Insert(ctx, ride.ID, ride.Pickup.Coordinate()); err != nil {
		return nil, err
	}
	return ride, nil
}

func (g *GormCatalog) Get(ctx context.Context, rideID string) (*models.RideOffer, error) {
	var ride models.RideOffer
	err := g.db.WithContext(ctx).
		Preload("Passengers").
		First(&ride, "id = ?", rideID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrRideNotFound
	}
	if err != nil {
		return nil, models.Storagef("get ride", err)
	}
	return &ride, nil
}

func (g *GormCatalog) ReserveSeat(ctx context.Context, rideID, passengerID string, expectedVersion int64) (*models.RideOffer, error) {
	var reserved models.RideOffer
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Column references on the right-hand side read the pre-update
		// row, so "remaining_capacity = 1" means this booking takes the
		// last seat.
		res := tx.Model(&models.RideOffer{}).
			Where("id = ? AND version = ? AND remaining_capacity >= 1 AND status = ?",
				rideID, expectedVersion, models.RideStatusOpen).
			Updates(map[string]interface{}{
				"remaining_capacity": gorm.Expr("remaining_capacity - 1"),
				"version":            gorm.Expr("version + 1"),
				"status": gorm.Expr("CASE WHEN remaining_capacity = 1 THEN ? ELSE status END",
					string(models.RideStatusFullyBooked)),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.RideOffer{}).Where("id = ?", rideID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return models.ErrRideNotFound
			}
			return models.ErrVersionConflict
		}
		// The composite primary key is the last line of defence against
		// the same passenger landing twice; a violation rolls back the
		// decrement above.
		if err := tx.Create(&models.RidePassenger{RideID: rideID, PassengerID: passengerID}).Error; err != nil {
			return err
		}
		// Re-read inside the transaction: the snapshot this reservation
		// produced, before any later booking can touch the row. A read
		// failure here rolls the reservation back rather than reporting
		// a committed seat as a storage error.
		return tx.Preload("Passengers").First(&reserved, "id = ?", rideID).Error
	})
	switch {
	case err == nil:
	case errors.Is(err, models.ErrRideNotFound), errors.Is(err, models.ErrVersionConflict):
		return nil, err
	case isUniqueViolation(err):
		return nil, models.ErrVersionConflict
	default:
		return nil, models.Storagef("reserve seat", err)
	}
	return &reserved, nil
}

func (g *GormCatalog) UpdateLifecycle(ctx context.Context, rideID, driverID string, next models.RideStatus) (*models.RideOffer, error) {
	ride, err := g.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, models.Validationf("driverId", "only the posting driver may change ride status")
	}
	if !transitionAllowed(ride.Status, next) {
		return nil, models.Validationf("status", "cannot move from %q to %q", ride.Status, next)
	}
	res := g.db.WithContext(ctx).Model(&models.RideOffer{}).
		Where("id = ? AND version = ?", rideID, ride.Version).
		Updates(map[string]interface{}{
			"status":     next,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, models.Storagef("update lifecycle", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, models.ErrVersionConflict
	}
	return g.Get(ctx, rideID)
}

func (g *GormCatalog) ListByDriver(ctx context.Context, driverID string) ([]models.RideOffer, error) {
	var rides []models.RideOffer
	err := g.db.WithContext(ctx).
		Preload("Passengers").
		Where("driver_id = ?", driverID).
		Order("departure_time ASC, id ASC").
		Find(&rides).Error
	if err != nil {
		return nil, models.Storagef("list rides by driver", err)
	}
	return rides, nil
}

func (g *GormCatalog) ListByPassenger(ctx context.Context, passengerID string) ([]models.RideOffer, error) {
	var rides []models.RideOffer
	err := g.db.WithContext(ctx).
		Preload("Passengers").
		Joins("JOIN ride_passengers rp ON rp.ride_id = rides.id").
		Where("rp.passenger_id = ?", passengerID).
		Order("departure_time ASC, rides.id ASC").
		Find(&rides).Error
	if err != nil {
		return nil, models.Storagef("list rides by passenger", err)
	}
	return rides, nil
}

func (g *GormCatalog) ListSearchable(ctx context.Context, f SearchFilter) ([]models.RideOffer, error) {
	q := g.db.WithContext(ctx).Model(&models.RideOffer{}).Preload("Passengers")
	if f.RideIDs != nil {
		q = q.Where("id IN ?", f.RideIDs)
	}
	if f.ExcludeDriver != "" {
		q = q.Where("driver_id <> ?", f.ExcludeDriver)
	}
	if f.NotAlreadyBookedBy != "" {
		q = q.Where("NOT EXISTS (SELECT 1 FROM ride_passengers rp WHERE rp.ride_id = rides.id AND rp.passenger_id = ?)",
			f.NotAlreadyBookedBy)
	}
	if !f.DepartureAfter.IsZero() {
		q = q.Where("departure_time >= ?", f.DepartureAfter)
	}
	if f.MinRemainingCapacity > 0 {
		q = q.Where("remaining_capacity >= ?", f.MinRemainingCapacity)
	}
	if len(f.AllowedStates) > 0 {
		q = q.Where("status IN ?", f.AllowedStates)
	}
	var rides []models.RideOffer
	if err := q.Find(&rides).Error; err != nil {
		return nil, models.Storagef("list searchable rides", err)
	}
	return rides, nil
}

// WarmGeoIndex re-registers every stored pickup in the geo index. Run
// at startup when the index is in-process and lost its entries with the
// previous process.
func (g *GormCatalog) WarmGeoIndex(ctx context.Context) error {
	var rides []models.RideOffer
	if err := g.db.WithContext(ctx).Select("id", "pickup_lng", "pickup_lat").Find(&rides).Error; err != nil {
		return models.Storagef("warm geo index", err)
	}
	for _, r := range rides {
		if err := g.geo.Insert(ctx, r.ID, r.Pickup.Coordinate()); err != nil {
			return err
		}
	}
	return nil
}

// isUniqueViolation matches Postgres error code 23505 without importing
// the driver here.
func isUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }
	var c coder
	if errors.As(err, &c) {
		return c.SQLState() == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
