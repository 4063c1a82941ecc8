package handlers

import (
	"net/http"
	"strconv"
	"time"

	"wastemap-api/config"
	"wastemap-api/lifecycle"
	"wastemap-api/middleware"
	"wastemap-api/models"

	"github.com/gin-gonic/gin"
)

// svc is the single lifecycle service instance, wired after the DB is up.
var svc *lifecycle.Service

// InitLifecycle wires the lifecycle service. Call this AFTER config.InitDB.
func InitLifecycle() {
	svc = lifecycle.NewService(config.DB)
}

// respondError maps a lifecycle error onto the wire. Internal errors render a
// generic message so storage failures never leak to clients.
func respondError(c *gin.Context, err error) {
	status := lifecycle.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "Server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func pickupID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pickup id"})
		return 0, false
	}
	return uint(id), true
}

type CreatePickupRequest struct {
	Address           models.Address   `json:"address" binding:"required"`
	WasteType         models.WasteType `json:"waste_type" binding:"required,oneof=plastic paper glass metal organic electronic other"`
	Quantity          models.Quantity  `json:"quantity" binding:"required,oneof=small medium large"`
	Description       string           `json:"description"`
	Images            []string         `json:"images"`
	ScheduledDate     time.Time        `json:"scheduled_date" binding:"required"`
	EstimatedDuration int              `json:"estimated_duration_minutes"`
}

// CreatePickup registers a new pickup request owned by the caller
func CreatePickup(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	var req CreatePickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pickup, err := svc.Create(identity, lifecycle.CreateParams{
		Address:           req.Address,
		WasteType:         req.WasteType,
		Quantity:          req.Quantity,
		Description:       req.Description,
		Images:            req.Images,
		ScheduledDate:     req.ScheduledDate,
		EstimatedDuration: req.EstimatedDuration,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Pickup requested successfully",
		"pickup":  pickup,
	})
}

// GetMyPickups returns all pickups owned by the caller, newest first
func GetMyPickups(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	var pickups []models.Pickup
	config.DB.Preload("AssignedCollector").
		Where("user_id = ?", identity.UserID).
		Order("created_at desc").
		Find(&pickups)
	c.JSON(http.StatusOK, gin.H{"count": len(pickups), "pickups": pickups})
}

// ListPickups returns pickups with optional status filter and pagination.
// Plain users only ever see their own; collectors and admins see everything.
func ListPickups(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		limit = 50
	}

	query := config.DB.Model(&models.Pickup{})
	if identity.Role == models.RoleUser {
		query = query.Where("user_id = ?", identity.UserID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var pickups []models.Pickup
	query.Preload("User").Preload("AssignedCollector").
		Order("created_at desc").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&pickups)

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	c.JSON(http.StatusOK, gin.H{
		"pickups":     pickups,
		"total":       total,
		"totalPages":  totalPages,
		"currentPage": page,
	})
}

// GetPickupDetail returns a single pickup with relations and history
func GetPickupDetail(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	id, ok := pickupID(c)
	if !ok {
		return
	}

	pickup, err := svc.Get(id, identity)
	if err != nil {
		respondError(c, err)
		return
	}

	elapsed := time.Since(pickup.CreatedAt).Minutes()
	c.JSON(http.StatusOK, gin.H{
		"pickup":          pickup,
		"minutes_elapsed": int(elapsed),
	})
}

type AdvanceRequest struct {
	Status         models.PickupStatus `json:"status" binding:"required"`
	ActualDuration *int                `json:"actual_duration_minutes"`
}

// AdvancePickup moves a pickup forward along the lifecycle. Only the assigned
// collector or an admin gets past the service's checks.
func AdvancePickup(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	id, ok := pickupID(c)
	if !ok {
		return
	}

	var req AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pickup, err := svc.Advance(id, req.Status, identity, req.ActualDuration)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Pickup status updated",
		"pickup_id": pickup.ID,
		"status":    pickup.Status,
	})
}

// CancelPickup cancels a non-terminal pickup (owner, assigned collector, or admin)
func CancelPickup(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	id, ok := pickupID(c)
	if !ok {
		return
	}

	pickup, err := svc.Cancel(id, identity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Pickup cancelled successfully", "pickup_id": pickup.ID})
}

type RateRequest struct {
	Score   int    `json:"score" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// RatePickup records the owner's one-time rating of a completed pickup
func RatePickup(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	id, ok := pickupID(c)
	if !ok {
		return
	}

	var req RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pickup, err := svc.Rate(id, req.Score, req.Comment, identity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Thanks for your rating",
		"pickup_id": pickup.ID,
		"score":     req.Score,
	})
}

// GetLifecycleInfo returns the full transition table for informational purposes
func GetLifecycleInfo(c *gin.Context) {
	var info []gin.H
	for _, t := range lifecycle.GetAllTransitions() {
		info = append(info, gin.H{"from": t.From, "to": t.To})
	}
	c.JSON(http.StatusOK, gin.H{
		"transitions":     info,
		"terminal_states": []models.PickupStatus{models.StatusCompleted, models.StatusCancelled},
		"description":     "Waste Pickup Lifecycle State Machine",
	})
}
