package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ridesphere/ridesphere-backend/internal/booking"
	"github.com/ridesphere/ridesphere-backend/internal/catalog"
	"github.com/ridesphere/ridesphere-backend/internal/geoindex"
	"github.com/ridesphere/ridesphere-backend/internal/search"
)

// testAuth stands in for the JWT middleware: the requester identity
// comes from a header instead of a token.
func testAuth(c *gin.Context) {
	c.Set("userId", c.GetHeader("X-Test-User"))
}

func setupRouter() (*gin.Engine, *catalog.Memory) {
	gin.SetMode(gin.TestMode)
	geo := geoindex.NewMemoryIndex()
	cat := catalog.NewMemory(geo)
	coordinator := booking.NewCoordinator(cat, nil)
	planner := search.NewPlanner(geo, cat, nil, nil)

	r := gin.New()
	rides := r.Group("/api/rides", testAuth)
	{
		rides.POST("", CreateRide(cat))
		rides.GET("/search", SearchRides(planner))
		rides.POST("/:rideId/book", BookRide(coordinator))
		rides.PATCH("/:rideId/status", UpdateRideStatus(cat))
		rides.GET("/mine", GetMyRides(cat))
		rides.GET("/bookings", GetMyBookings(cat))
	}
	return r, cat
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", user)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func rideBody(departure time.Time) map[string]any {
	return map[string]any{
		"pickup":        map[string]any{"address": "Kencom, Nairobi", "lng": 36.8219, "lat": -1.2864},
		"dropoff":       map[string]any{"address": "Thika", "lng": 37.0693, "lat": -1.0388},
		"departureTime": departure.Format(time.RFC3339),
		"vehicleClass":  "car",
		"totalCapacity": 2,
		"distanceKm":    42,
		"price":         300,
	}
}

func TestCreateRideEndpoint(t *testing.T) {
	r, _ := setupRouter()

	w := doJSON(t, r, http.MethodPost, "/api/rides", "driver-1", rideBody(time.Now().Add(24*time.Hour)))
	require.Equal(t, 201, w.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Equal(t, "driver-1", out["driverId"])
	require.Equal(t, "open", out["status"])
	require.EqualValues(t, 2, out["remainingCapacity"])
}

func TestCreateRideRejectsPastDeparture(t *testing.T) {
	r, _ := setupRouter()
	w := doJSON(t, r, http.MethodPost, "/api/rides", "driver-1", rideBody(time.Now().Add(-time.Hour)))
	require.Equal(t, 400, w.Code)
}

func TestCreateRideAcceptsZeroCoordinates(t *testing.T) {
	r, _ := setupRouter()
	body := rideBody(time.Now().Add(24 * time.Hour))
	// A pickup on the equator at the prime meridian is unusual but valid.
	body["pickup"] = map[string]any{"address": "Null Island buoy", "lng": 0, "lat": 0}
	w := doJSON(t, r, http.MethodPost, "/api/rides", "driver-1", body)
	require.Equal(t, 201, w.Code)
}

func TestCreateRideRejectsBikeWithTwoSeats(t *testing.T) {
	r, _ := setupRouter()
	body := rideBody(time.Now().Add(24 * time.Hour))
	body["vehicleClass"] = "bike"
	w := doJSON(t, r, http.MethodPost, "/api/rides", "driver-1", body)
	require.Equal(t, 400, w.Code)
}

func TestBookRideEndpoint(t *testing.T) {
	r, _ := setupRouter()

	w := doJSON(t, r, http.MethodPost, "/api/rides", "driver-1", rideBody(time.Now().Add(24*time.Hour)))
	require.Equal(t, 201, w.Code)
	var ride map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ride))
	rideID := ride["id"].(string)

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/rides/%s/book", rideID), "passenger-1", nil)
	require.Equal(t, 200, w.Code)

	// Same passenger again.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/rides/%s/book", rideID), "passenger-1", nil)
	require.Equal(t, 409, w.Code)
	var rej map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rej))
	require.Equal(t, "already_booked", rej["reason"])

	// Driver booking own ride.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/rides/%s/book", rideID), "driver-1", nil)
	require.Equal(t, 409, w.Code)

	// Unknown ride.
	w = doJSON(t, r, http.MethodPost, "/api/rides/nope/book", "passenger-1", nil)
	require.Equal(t, 404, w.Code)
}

func TestSearchEndpointValidation(t *testing.T) {
	r, _ := setupRouter()
	w := doJSON(t, r, http.MethodGet, "/api/rides/search?pickupLng=36.82", "passenger-1", nil)
	require.Equal(t, 400, w.Code)
}

func TestSearchEndpoint(t *testing.T) {
	r, _ := setupRouter()

	w := doJSON(t, r, http.MethodPost, "/api/rides", "driver-1", rideBody(time.Now().Add(24*time.Hour)))
	require.Equal(t, 201, w.Code)

	path := "/api/rides/search?pickupLng=36.8219&pickupLat=-1.2864&dropoffLng=37.0693&dropoffLat=-1.0388"
	w = doJSON(t, r, http.MethodGet, path, "passenger-1", nil)
	require.Equal(t, 200, w.Code)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)

	// The poster must not see their own ride.
	w = doJSON(t, r, http.MethodGet, path, "driver-1", nil)
	require.Equal(t, 200, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Empty(t, out)
}

func TestUpdateRideStatusEndpoint(t *testing.T) {
	r, _ := setupRouter()

	w := doJSON(t, r, http.MethodPost, "/api/rides", "driver-1", rideBody(time.Now().Add(24*time.Hour)))
	require.Equal(t, 201, w.Code)
	var ride map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ride))
	rideID := ride["id"].(string)

	// Someone else cannot cancel.
	w = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/rides/%s/status", rideID), "other",
		map[string]any{"status": "cancelled"})
	require.Equal(t, 400, w.Code)

	w = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/rides/%s/status", rideID), "driver-1",
		map[string]any{"status": "cancelled"})
	require.Equal(t, 200, w.Code)

	// A cancelled ride with free seats still rejects bookings.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/rides/%s/book", rideID), "passenger-1", nil)
	require.Equal(t, 409, w.Code)
	var rej map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rej))
	require.Equal(t, "ride_not_open", rej["reason"])
}

func TestMyRidesAndBookings(t *testing.T) {
	r, _ := setupRouter()

	w := doJSON(t, r, http.MethodPost, "/api/rides", "driver-1", rideBody(time.Now().Add(24*time.Hour)))
	require.Equal(t, 201, w.Code)
	var ride map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ride))
	rideID := ride["id"].(string)

	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/rides/%s/book", rideID), "passenger-1", nil)
	require.Equal(t, 200, w.Code)

	var rides []map[string]any
	w = doJSON(t, r, http.MethodGet, "/api/rides/mine", "driver-1", nil)
	require.Equal(t, 200, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rides))
	require.Len(t, rides, 1)

	w = doJSON(t, r, http.MethodGet, "/api/rides/bookings", "passenger-1", nil)
	require.Equal(t, 200, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rides))
	require.Len(t, rides, 1)
	require.Equal(t, rideID, rides[0]["id"])

	w = doJSON(t, r, http.MethodGet, "/api/rides/bookings", "driver-1", nil)
	require.Equal(t, 200, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rides))
	require.Empty(t, rides)
}
