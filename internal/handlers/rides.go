package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ridesphere/ridesphere-backend/internal/booking"
	"github.com/ridesphere/ridesphere-backend/internal/catalog"
	"github.com/ridesphere/ridesphere-backend/internal/models"
	"github.com/ridesphere/ridesphere-backend/internal/observability"
	"github.com/ridesphere/ridesphere-backend/internal/search"
)

// Lng/Lat carry no binding tags: "required" would reject the zero
// value, and 0 is a legitimate coordinate. Range checks live in the
// catalog's validation.
type locationInput struct {
	Address string  `json:"address" binding:"required"`
	Lng     float64 `json:"lng"`
	Lat     float64 `json:"lat"`
}

type createRideInput struct {
	Pickup        locationInput `json:"pickup" binding:"required"`
	Dropoff       locationInput `json:"dropoff" binding:"required"`
	DepartureTime time.Time     `json:"departureTime" binding:"required"`
	VehicleClass  string        `json:"vehicleClass" binding:"required,oneof=bike car single_seat multi_seat"`
	TotalCapacity int           `json:"totalCapacity" binding:"required"`
	DistanceKm    float64       `json:"distanceKm"`
	Price         float64       `json:"price"`
}

// vehicleClassFromInput keeps the mobile clients' bike/car vocabulary
// working while the core speaks in capacity models.
func vehicleClassFromInput(v string) models.VehicleClass {
	switch v {
	case "bike", string(models.VehicleClassSingleSeat):
		return models.VehicleClassSingleSeat
	default:
		return models.VehicleClassMultiSeat
	}
}

// CreateRide handles the posting of a new ride offer by a driver
func CreateRide(cat catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetString("userId")

		var input createRideInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		// Check if the scheduled time is in the future
		if input.DepartureTime.Before(time.Now()) {
			c.JSON(400, gin.H{"error": "Ride departure time must be in the future"})
			return
		}

		ride, err := cat.Create(c.Request.Context(), catalog.CreateRideInput{
			DriverID:      userId,
			Pickup:        models.Location(input.Pickup),
			Dropoff:       models.Location(input.Dropoff),
			DepartureTime: input.DepartureTime,
			VehicleClass:  vehicleClassFromInput(input.VehicleClass),
			TotalCapacity: input.TotalCapacity,
			DistanceKm:    input.DistanceKm,
			Price:         input.Price,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		observability.RidesCreatedTotal.Inc()
		c.JSON(201, ride)
	}
}

// SearchRides returns bookable rides near the requested pickup and
// dropoff points, nearest pickup first
func SearchRides(planner *search.Planner) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetString("userId")

		pickupLng, err1 := strconv.ParseFloat(c.Query("pickupLng"), 64)
		pickupLat, err2 := strconv.ParseFloat(c.Query("pickupLat"), 64)
		dropoffLng, err3 := strconv.ParseFloat(c.Query("dropoffLng"), 64)
		dropoffLat, err4 := strconv.ParseFloat(c.Query("dropoffLat"), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			c.JSON(400, gin.H{"error": "Pickup and drop-off coordinates are required"})
			return
		}

		var radiusKm float64
		if raw := c.Query("radiusKm"); raw != "" {
			radiusKm, err1 = strconv.ParseFloat(raw, 64)
			if err1 != nil {
				c.JSON(400, gin.H{"error": "Invalid radius"})
				return
			}
		}

		results, err := planner.Search(c.Request.Context(), search.Query{
			RequesterID: userId,
			Pickup:      models.Coordinate{Lng: pickupLng, Lat: pickupLat},
			Dropoff:     models.Coordinate{Lng: dropoffLng, Lat: dropoffLat},
			RadiusKm:    radiusKm,
		})
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(200, results)
	}
}

// BookRide attempts to reserve one seat on a ride for the requester
func BookRide(coordinator *booking.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetString("userId")
		rideId := c.Param("rideId")

		result, err := coordinator.Book(c.Request.Context(), rideId, userId)
		if err != nil {
			writeError(c, err)
			return
		}

		if !result.Confirmed {
			status, message := rejectionResponse(result.Reason)
			c.JSON(status, gin.H{"error": message, "reason": string(result.Reason)})
			return
		}

		c.JSON(200, gin.H{"message": "Ride booked successfully", "ride": result.Ride})
	}
}

func rejectionResponse(reason booking.RejectReason) (int, string) {
	switch reason {
	case booking.ReasonNotFound:
		return 404, "Ride not found"
	case booking.ReasonRideNotOpen:
		return 409, "Ride is no longer open for booking"
	case booking.ReasonSelfBooking:
		return 409, "You cannot book your own ride"
	case booking.ReasonAlreadyBooked:
		return 409, "You have already booked this ride"
	case booking.ReasonNoCapacity:
		return 409, "No seats available for this ride"
	default:
		return 409, "Ride was booked by someone else, please retry"
	}
}

// GetMyRides retrieves all rides posted by the logged-in driver
func GetMyRides(cat catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetString("userId")

		rides, err := cat.ListByDriver(c.Request.Context(), userId)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(200, rides)
	}
}

// GetMyBookings retrieves all rides the logged-in user holds a seat on
func GetMyBookings(cat catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetString("userId")

		rides, err := cat.ListByPassenger(c.Request.Context(), userId)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(200, rides)
	}
}

// UpdateRideStatus lets the posting driver start, complete or cancel a ride
func UpdateRideStatus(cat catalog.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetString("userId")
		rideId := c.Param("rideId")

		var input struct {
			Status string `json:"status" binding:"required,oneof=in_progress completed cancelled"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		ride, err := cat.UpdateLifecycle(c.Request.Context(), rideId, userId, models.RideStatus(input.Status))
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(200, ride)
	}
}

// writeError maps core errors onto client responses. Storage failures
// stay 500s; they are never downgraded to business rejections.
func writeError(c *gin.Context, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(400, gin.H{"error": ve.Error()})
	case errors.Is(err, models.ErrRideNotFound):
		c.JSON(404, gin.H{"error": "Ride not found"})
	case errors.Is(err, models.ErrUserNotFound):
		c.JSON(404, gin.H{"error": "User not found"})
	case errors.Is(err, models.ErrVersionConflict):
		c.JSON(409, gin.H{"error": "Conflicting update, please retry"})
	default:
		c.JSON(500, gin.H{"error": "Internal server error"})
	}
}
