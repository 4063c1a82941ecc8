package handlers

import (
	"net/http"
	"time"

	"wastemap-api/config"
	"wastemap-api/middleware"
	"wastemap-api/models"

	"github.com/gin-gonic/gin"
)

// AdminGetAllUsers returns all users — admin only
func AdminGetAllUsers(c *gin.Context) {
	var users []models.User
	query := config.DB
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	query.Order("created_at desc").Find(&users)
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}

type UpdateRoleRequest struct {
	Role models.UserRole `json:"role" binding:"required"`
}

// AdminUpdateUserRole changes a user's role — admin only
func AdminUpdateUserRole(c *gin.Context) {
	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.ValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role. Must be: user, collector, or admin"})
		return
	}

	var user models.User
	if err := config.DB.First(&user, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := config.DB.Model(&user).Update("role", req.Role).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update role"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role updated", "user_id": user.ID, "role": req.Role})
}

// AdminGetStats returns system-wide counters and recent activity — admin only
func AdminGetStats(c *gin.Context) {
	var totalUsers, totalCollectors, totalPickups, completedPickups, openPickups int64
	config.DB.Model(&models.User{}).Count(&totalUsers)
	config.DB.Model(&models.User{}).Where("role = ?", models.RoleCollector).Count(&totalCollectors)
	config.DB.Model(&models.Pickup{}).Count(&totalPickups)
	config.DB.Model(&models.Pickup{}).Where("status = ?", models.StatusCompleted).Count(&completedPickups)
	config.DB.Model(&models.Pickup{}).
		Where("status IN ?", []models.PickupStatus{models.StatusPending, models.StatusAssigned}).
		Count(&openPickups)

	// Recent activity: last 7 days
	sevenDaysAgo := time.Now().AddDate(0, 0, -7)
	var recent []models.Pickup
	config.DB.Preload("User").Preload("AssignedCollector").
		Where("created_at >= ?", sevenDaysAgo).
		Order("created_at desc").
		Limit(10).
		Find(&recent)

	c.JSON(http.StatusOK, gin.H{
		"total_users":       totalUsers,
		"total_collectors":  totalCollectors,
		"total_pickups":     totalPickups,
		"completed_pickups": completedPickups,
		"pending_pickups":   openPickups,
		"recent_pickups":    recent,
	})
}

type AssignRequest struct {
	CollectorID uint `json:"collector_id" binding:"required"`
}

// AdminAssignCollector assigns (or reassigns) a collector to a pickup — admin only
func AdminAssignCollector(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	id, ok := pickupID(c)
	if !ok {
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pickup, err := svc.Assign(id, req.CollectorID, identity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Collector assigned",
		"pickup_id": pickup.ID,
		"status":    pickup.Status,
	})
}

type OverrideStatusRequest struct {
	Status models.PickupStatus `json:"status" binding:"required"`
	Reason string              `json:"reason"`
}

// AdminOverrideStatus lets an admin force any pickup status, bypassing the
// transition table. The change lands in the status history flagged as an
// override.
func AdminOverrideStatus(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	id, ok := pickupID(c)
	if !ok {
		return
	}

	var req OverrideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var prev models.PickupStatus
	if p, err := svc.Get(id, identity); err == nil {
		prev = p.Status
	}

	pickup, err := svc.Override(id, req.Status, req.Reason, identity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Pickup status force-updated by admin",
		"pickup_id":       pickup.ID,
		"previous_status": prev,
		"new_status":      pickup.Status,
	})
}
