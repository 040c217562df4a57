package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ridesphere/ridesphere-backend/internal/models"
	"github.com/ridesphere/ridesphere-backend/internal/search"
)

// UserDirectory resolves driver references against the users table. It
// is the identity collaborator the search planner depends on; the core
// never reads identity data any other way.
type UserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) DriverInfo(ctx context.Context, driverID string) (search.DriverInfo, error) {
	var user models.User
	err := d.db.WithContext(ctx).First(&user, "id = ?", driverID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return search.DriverInfo{}, models.ErrUserNotFound
	}
	if err != nil {
		return search.DriverInfo{}, models.Storagef("load driver info", err)
	}
	return search.DriverInfo{Name: user.Name, MobileNumber: user.MobileNumber}, nil
}
