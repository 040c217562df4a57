package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is the identity record behind driver and passenger references.
// The booking core only ever sees the opaque ID.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"column:name;not null"`
	Email        string    `json:"email" gorm:"column:email;unique;not null"`
	Password     string    `json:"-" gorm:"-"` // Temporary field for password handling
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null"`
	MobileNumber string    `json:"mobileNumber" gorm:"column:mobile_number"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

func (u *User) HashPassword() error {
	if u.Password == "" {
		return nil
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}
