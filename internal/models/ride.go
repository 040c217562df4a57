package models

import (
	"math"
	"time"
)

type VehicleClass string

const (
	// VehicleClassSingleSeat is the bike-like class; capacity is fixed at 1.
	VehicleClassSingleSeat VehicleClass = "single_seat"
	// VehicleClassMultiSeat is the car-like class; capacity is N >= 1.
	VehicleClassMultiSeat VehicleClass = "multi_seat"
)

type RideStatus string

const (
	RideStatusOpen        RideStatus = "open"
	RideStatusFullyBooked RideStatus = "fully_booked"
	RideStatusInProgress  RideStatus = "in_progress"
	RideStatusCompleted   RideStatus = "completed"
	RideStatusCancelled   RideStatus = "cancelled"
)

// Coordinate is a WGS84 point, longitude first (GeoJSON order).
type Coordinate struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Valid reports whether both components are finite and inside WGS84 bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) || math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) {
		return false
	}
	return c.Lng >= -180 && c.Lng <= 180 && c.Lat >= -90 && c.Lat <= 90
}

// Location is an address plus its coordinate.
type Location struct {
	Address string  `json:"address" gorm:"not null"`
	Lng     float64 `json:"lng" gorm:"not null"`
	Lat     float64 `json:"lat" gorm:"not null"`
}

func (l Location) Coordinate() Coordinate {
	return Coordinate{Lng: l.Lng, Lat: l.Lat}
}

// RideOffer is a driver's posted trip. Capacity fields and the passenger
// set are only mutated through the catalog's reservation and lifecycle
// entry points; Version backs their conditional updates.
type RideOffer struct {
	ID                string          `json:"id" gorm:"primaryKey"`
	DriverID          string          `json:"driverId" gorm:"index;not null"`
	Pickup            Location        `json:"pickup" gorm:"embedded;embeddedPrefix:pickup_"`
	Dropoff           Location        `json:"dropoff" gorm:"embedded;embeddedPrefix:dropoff_"`
	DepartureTime     time.Time       `json:"departureTime" gorm:"index;not null"`
	VehicleClass      VehicleClass    `json:"vehicleClass" gorm:"not null"`
	TotalCapacity     int             `json:"totalCapacity" gorm:"not null"`
	RemainingCapacity int             `json:"remainingCapacity" gorm:"not null"`
	DistanceKm        float64         `json:"distanceKm"`
	Price             float64         `json:"price" gorm:"not null"`
	Status            RideStatus      `json:"status" gorm:"not null;default:'open'"`
	Version           int64           `json:"-" gorm:"not null;default:1"`
	Passengers        []RidePassenger `json:"passengers" gorm:"foreignKey:RideID"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func (RideOffer) TableName() string {
	return "rides"
}

// HasPassenger reports whether the given identity already holds a seat.
func (r *RideOffer) HasPassenger(passengerID string) bool {
	for _, p := range r.Passengers {
		if p.PassengerID == passengerID {
			return true
		}
	}
	return false
}

// PassengerIDs returns the booked identities in booking order.
func (r *RideOffer) PassengerIDs() []string {
	ids := make([]string, 0, len(r.Passengers))
	for _, p := range r.Passengers {
		ids = append(ids, p.PassengerID)
	}
	return ids
}

// RidePassenger is one committed seat on a ride. The composite primary
// key keeps an identity from appearing twice on the same ride.
type RidePassenger struct {
	RideID      string    `json:"-" gorm:"primaryKey"`
	PassengerID string    `json:"passengerId" gorm:"primaryKey"`
	CreatedAt   time.Time `json:"bookedAt"`
}

func (RidePassenger) TableName() string {
	return "ride_passengers"
}
