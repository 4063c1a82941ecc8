package handlers

import (
	"net/http"

	"wastemap-api/config"
	"wastemap-api/middleware"
	"wastemap-api/models"

	"github.com/gin-gonic/gin"
)

// GetAvailablePickups shows pending pickups that no collector has claimed yet,
// oldest first so long-waiting requests surface on top
func GetAvailablePickups(c *gin.Context) {
	var pickups []models.Pickup
	config.DB.Preload("User").
		Where("status = ? AND assigned_collector_id IS NULL", models.StatusPending).
		Order("created_at asc").
		Find(&pickups)
	c.JSON(http.StatusOK, gin.H{
		"count":   len(pickups),
		"pickups": pickups,
	})
}

// GetMyAssignments returns all pickups assigned to the logged-in collector
func GetMyAssignments(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	var pickups []models.Pickup
	query := config.DB.Preload("User").
		Where("assigned_collector_id = ?", identity.UserID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	query.Order("updated_at desc").Find(&pickups)
	c.JSON(http.StatusOK, gin.H{"count": len(pickups), "pickups": pickups})
}

// ClaimPickup self-assigns a pending pickup to the logged-in collector.
// First collector wins; the loser of a near-simultaneous claim gets a conflict.
func ClaimPickup(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	id, ok := pickupID(c)
	if !ok {
		return
	}

	pickup, err := svc.Assign(id, identity.UserID, identity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Pickup claimed successfully",
		"pickup_id": pickup.ID,
		"status":    pickup.Status,
	})
}
