package database

import (
	"gorm.io/gorm"

	"github.com/ridesphere/ridesphere-backend/internal/models"
)

func RunMigrations(db *gorm.DB) error {
	// Create tables if they don't exist
	err := db.AutoMigrate(
		&models.User{},
		&models.RideOffer{},
		&models.RidePassenger{},
	)
	if err != nil {
		return err
	}

	// Older rows predate the version column; the reservation CAS needs
	// every row to carry one.
	if db.Migrator().HasTable(&models.RideOffer{}) {
		if err := db.Exec(`UPDATE rides SET version = 1 WHERE version IS NULL OR version < 1`).Error; err != nil {
			return err
		}
		db.Exec(`ALTER TABLE rides DROP CONSTRAINT IF EXISTS rides_capacity_check`)
		if err := db.Exec(`ALTER TABLE rides ADD CONSTRAINT rides_capacity_check CHECK (remaining_capacity >= 0 AND remaining_capacity <= total_capacity)`).Error; err != nil {
			return err
		}
	}

	return nil
}
