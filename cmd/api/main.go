package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ridesphere/ridesphere-backend/internal/booking"
	"github.com/ridesphere/ridesphere-backend/internal/catalog"
	"github.com/ridesphere/ridesphere-backend/internal/config"
	"github.com/ridesphere/ridesphere-backend/internal/database"
	"github.com/ridesphere/ridesphere-backend/internal/geoindex"
	"github.com/ridesphere/ridesphere-backend/internal/handlers"
	"github.com/ridesphere/ridesphere-backend/internal/logging"
	"github.com/ridesphere/ridesphere-backend/internal/middleware"
	"github.com/ridesphere/ridesphere-backend/internal/search"
	"github.com/ridesphere/ridesphere-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.NewLogger(cfg.LogLevel)

	// Initialize database with better error handling
	db, err := database.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Get underlying SQL DB instance
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Pick the geo index: shared Redis set when configured, otherwise
	// an in-process index warmed from the database.
	var geo geoindex.Index
	if cfg.UseRedisGeo {
		if err := services.InitRedis(); err != nil {
			log.Fatalf("Failed to initialize Redis: %v", err)
		}
		geo = geoindex.NewRedisIndex(services.RedisClient, cfg.RideGeoKey)
	} else {
		geo = geoindex.NewMemoryIndex()
	}

	cat := catalog.NewGormCatalog(db, geo)
	if !cfg.UseRedisGeo {
		if err := cat.WarmGeoIndex(context.Background()); err != nil {
			log.Fatalf("Failed to warm geo index: %v", err)
		}
	}

	coordinator := booking.NewCoordinator(cat, logger)
	coordinator.MaxAttempts = cfg.BookingMaxAttempts
	planner := search.NewPlanner(geo, cat, services.NewUserDirectory(db), logger)
	planner.RadiusKm = cfg.SearchRadiusKm

	// Initialize router
	r := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsConfig))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Routes
	api := r.Group("/api")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db))
			auth.POST("/login", handlers.Login(db))
		}

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			users := protected.Group("/users")
			{
				users.GET("/profile", handlers.GetProfile(db))
			}

			rides := protected.Group("/rides")
			{
				rides.POST("", handlers.CreateRide(cat))
				rides.GET("/search", handlers.SearchRides(planner))
				rides.POST("/:rideId/book", handlers.BookRide(coordinator))
				rides.PATCH("/:rideId/status", handlers.UpdateRideStatus(cat))
				rides.GET("/mine", handlers.GetMyRides(cat))
				rides.GET("/bookings", handlers.GetMyBookings(cat))
			}
		}
	}

	logger.Info("starting api", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
