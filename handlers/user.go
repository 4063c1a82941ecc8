package handlers

import (
	"net/http"

	"wastemap-api/config"
	"wastemap-api/middleware"
	"wastemap-api/models"

	"github.com/gin-gonic/gin"
)

// GetProfile returns the authenticated user's profile
func GetProfile(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	var user models.User
	if err := config.DB.First(&user, identity.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type UpdateProfileRequest struct {
	Name    string          `json:"name"`
	Phone   string          `json:"phone"`
	Address *models.Address `json:"address"`
}

// UpdateProfile lets a user change their own contact details. Role and email
// are deliberately not updatable here — role changes go through the admin
// endpoint.
func UpdateProfile(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := config.DB.First(&user, identity.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if req.Address != nil {
		user.Address = *req.Address
	}

	if err := config.DB.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "user": user})
}

// ListCollectors returns the collector directory, used by assignment views
func ListCollectors(c *gin.Context) {
	var collectors []models.User
	config.DB.Where("role = ?", models.RoleCollector).
		Select("id", "name", "email", "phone").
		Find(&collectors)
	c.JSON(http.StatusOK, gin.H{"count": len(collectors), "collectors": collectors})
}
