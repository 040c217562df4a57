package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ridesphere/ridesphere-backend/internal/models"
)

// GetProfile retrieves the user's profile
func GetProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetString("userId")

		var user models.User
		if err := db.First(&user, "id = ?", userId).Error; err != nil {
			c.JSON(404, gin.H{"error": "User not found"})
			return
		}

		c.JSON(200, gin.H{
			"id":           user.ID,
			"name":         user.Name,
			"email":        user.Email,
			"mobileNumber": user.MobileNumber,
		})
	}
}
