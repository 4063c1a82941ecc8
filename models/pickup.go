package models

import "time"

// PickupStatus represents all possible states of a waste pickup request
type PickupStatus string

const (
	StatusPending    PickupStatus = "pending"
	StatusAssigned   PickupStatus = "assigned"
	StatusInProgress PickupStatus = "in-progress"
	StatusCompleted  PickupStatus = "completed"
	StatusCancelled  PickupStatus = "cancelled"
)

// ValidStatus reports whether s is one of the known pickup statuses.
func ValidStatus(s PickupStatus) bool {
	switch s {
	case StatusPending, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// WasteType categorizes what is being collected
type WasteType string

const (
	WastePlastic    WasteType = "plastic"
	WastePaper      WasteType = "paper"
	WasteGlass      WasteType = "glass"
	WasteMetal      WasteType = "metal"
	WasteOrganic    WasteType = "organic"
	WasteElectronic WasteType = "electronic"
	WasteOther      WasteType = "other"
)

func ValidWasteType(w WasteType) bool {
	switch w {
	case WastePlastic, WastePaper, WasteGlass, WasteMetal, WasteOrganic, WasteElectronic, WasteOther:
		return true
	}
	return false
}

// Quantity is a rough size class, not an exact measure
type Quantity string

const (
	QuantitySmall  Quantity = "small"
	QuantityMedium Quantity = "medium"
	QuantityLarge  Quantity = "large"
)

func ValidQuantity(q Quantity) bool {
	switch q {
	case QuantitySmall, QuantityMedium, QuantityLarge:
		return true
	}
	return false
}

type Pickup struct {
	ID                  uint                  `json:"id" gorm:"primaryKey"`
	UserID              uint                  `json:"user_id" gorm:"not null"`
	User                User                  `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Address             Address               `json:"address" gorm:"embedded;embeddedPrefix:address_"`
	WasteType           WasteType             `json:"waste_type" gorm:"not null"`
	Quantity            Quantity              `json:"quantity" gorm:"not null"`
	Description         string                `json:"description"`
	Images              []string              `json:"images,omitempty" gorm:"serializer:json"`
	Status              PickupStatus          `json:"status" gorm:"not null;default:'pending'"`
	AssignedCollectorID *uint                 `json:"assigned_collector_id"`
	AssignedCollector   *User                 `json:"assigned_collector,omitempty" gorm:"foreignKey:AssignedCollectorID"`
	ScheduledDate       time.Time             `json:"scheduled_date" gorm:"not null"`
	CompletedDate       *time.Time            `json:"completed_date"`
	EstimatedDuration   int                   `json:"estimated_duration_minutes"`
	ActualDuration      *int                  `json:"actual_duration_minutes"`
	RatingScore         *int                  `json:"rating_score,omitempty"`
	RatingComment       string                `json:"rating_comment,omitempty"`
	StatusHistory       []PickupStatusHistory `json:"status_history,omitempty" gorm:"foreignKey:PickupID"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// Rated reports whether the owner has already rated this pickup.
func (p *Pickup) Rated() bool {
	return p.RatingScore != nil
}

// PickupStatusHistory tracks every status change, including admin overrides
type PickupStatusHistory struct {
	ID         uint         `json:"id" gorm:"primaryKey"`
	PickupID   uint         `json:"pickup_id" gorm:"not null"`
	FromStatus PickupStatus `json:"from_status"`
	ToStatus   PickupStatus `json:"to_status" gorm:"not null"`
	ChangedBy  uint         `json:"changed_by"` // user ID who triggered the transition
	Override   bool         `json:"override"`   // true when an admin bypassed the transition table
	Note       string       `json:"note"`
	CreatedAt  time.Time    `json:"created_at"`
}
