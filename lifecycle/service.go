package lifecycle

import (
	"errors"
	"time"

	"wastemap-api/models"

	"gorm.io/gorm"
)

// Service is the sole authority for pickup status, assignment and rating
// writes. Every mutation validates the transition and applies it as a single
// conditional update guarded on the previously observed state, so two
// concurrent calls can never both succeed past the same precondition.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// CreateParams carries the owner-supplied fields for a new pickup request.
// Status is always pending; it is never settable by direct input.
type CreateParams struct {
	Address           models.Address
	WasteType         models.WasteType
	Quantity          models.Quantity
	Description       string
	Images            []string
	ScheduledDate     time.Time
	EstimatedDuration int
}

// Create registers a new pickup request owned by the acting user.
func (s *Service) Create(actor Identity, params CreateParams) (*models.Pickup, error) {
	if !models.ValidWasteType(params.WasteType) {
		return nil, Errorf(ErrValidation, "unknown waste type %q", params.WasteType)
	}
	if !models.ValidQuantity(params.Quantity) {
		return nil, Errorf(ErrValidation, "unknown quantity %q", params.Quantity)
	}
	if params.Address.Street == "" || params.Address.City == "" ||
		params.Address.State == "" || params.Address.ZipCode == "" {
		return nil, Errorf(ErrValidation, "address street, city, state and zip code are required")
	}
	if params.ScheduledDate.IsZero() {
		return nil, Errorf(ErrValidation, "scheduled date is required")
	}

	pickup := models.Pickup{
		UserID:            actor.UserID,
		Address:           params.Address,
		WasteType:         params.WasteType,
		Quantity:          params.Quantity,
		Description:       params.Description,
		Images:            params.Images,
		Status:            models.StatusPending,
		ScheduledDate:     params.ScheduledDate,
		EstimatedDuration: params.EstimatedDuration,
	}
	if err := s.db.Create(&pickup).Error; err != nil {
		return nil, Errorf(ErrInternal, "create pickup: %v", err)
	}

	s.recordHistory(pickup.ID, "", models.StatusPending, actor.UserID, false, "Pickup requested")
	return s.reload(pickup.ID)
}

// Assign binds a collector to a pending pickup. Admins may assign (or
// reassign) any collector; a collector may only claim an unassigned pending
// pickup for themselves, first one wins.
func (s *Service) Assign(pickupID, collectorID uint, actor Identity) (*models.Pickup, error) {
	pickup, err := s.getPickup(pickupID)
	if err != nil {
		return nil, err
	}

	var collector models.User
	if err := s.db.First(&collector, collectorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Errorf(ErrForbidden, "invalid collector")
		}
		return nil, Errorf(ErrInternal, "load collector: %v", err)
	}
	if collector.Role != models.RoleCollector {
		return nil, Errorf(ErrForbidden, "user %d does not have the collector role", collectorID)
	}

	prev := pickup.Status
	if actor.IsAdmin() {
		// Admins may also swap the collector on an already-assigned pickup.
		if prev != models.StatusPending && prev != models.StatusAssigned {
			return nil, Errorf(ErrInvalidTransition,
				"cannot assign a pickup in status %q; valid transitions are: %s", prev, describeValidFrom(prev))
		}
		res := s.db.Model(&models.Pickup{}).
			Where("id = ? AND status = ?", pickup.ID, prev).
			Updates(map[string]interface{}{
				"status":                models.StatusAssigned,
				"assigned_collector_id": collectorID,
			})
		if res.Error != nil {
			return nil, Errorf(ErrInternal, "assign pickup: %v", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, Errorf(ErrConflict, "pickup was modified concurrently")
		}
		s.recordHistory(pickup.ID, prev, models.StatusAssigned, actor.UserID, false, "Collector assigned by admin")
		return s.reload(pickup.ID)
	}

	if !actor.IsCollector() || actor.UserID != collectorID {
		return nil, Errorf(ErrForbidden, "collectors may only claim pickups for themselves")
	}
	if prev != models.StatusPending {
		return nil, Errorf(ErrForbidden, "pickup is not open for claiming (status %q)", prev)
	}

	// First-wins: the guard on status and the empty assignment slot means a
	// losing concurrent claim affects zero rows.
	res := s.db.Model(&models.Pickup{}).
		Where("id = ? AND status = ? AND assigned_collector_id IS NULL", pickup.ID, models.StatusPending).
		Updates(map[string]interface{}{
			"status":                models.StatusAssigned,
			"assigned_collector_id": collectorID,
		})
	if res.Error != nil {
		return nil, Errorf(ErrInternal, "claim pickup: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, Errorf(ErrConflict, "pickup has already been claimed")
	}
	s.recordHistory(pickup.ID, prev, models.StatusAssigned, actor.UserID, false, "Collector claimed pickup")
	return s.reload(pickup.ID)
}

// Advance moves an assigned pickup forward: assigned → in-progress or
// in-progress → completed. Only the assigned collector or an admin may call
// it. Completing sets the completion timestamp and stores the actual duration
// when given, atomically with the status write.
func (s *Service) Advance(pickupID uint, newStatus models.PickupStatus, actor Identity, actualDuration *int) (*models.Pickup, error) {
	if newStatus != models.StatusInProgress && newStatus != models.StatusCompleted {
		return nil, Errorf(ErrValidation,
			"advance only accepts %q or %q; use cancel or assign for other changes",
			models.StatusInProgress, models.StatusCompleted)
	}

	pickup, err := s.getPickup(pickupID)
	if err != nil {
		return nil, err
	}

	note := "Status advanced by admin"
	if !actor.IsAdmin() {
		if pickup.AssignedCollectorID == nil || *pickup.AssignedCollectorID != actor.UserID {
			return nil, Errorf(ErrForbidden, "you are not the assigned collector for this pickup")
		}
		note = "Status advanced by assigned collector"
	}

	prev := pickup.Status
	if !CanTransition(prev, newStatus) {
		return nil, Errorf(ErrInvalidTransition,
			"%s → %s is not allowed; valid transitions from %s are: %s",
			prev, newStatus, prev, describeValidFrom(prev))
	}

	updates := map[string]interface{}{"status": newStatus}
	if newStatus == models.StatusCompleted {
		updates["completed_date"] = time.Now()
		if actualDuration != nil {
			updates["actual_duration"] = *actualDuration
		}
	}

	res := s.db.Model(&models.Pickup{}).
		Where("id = ? AND status = ?", pickup.ID, prev).
		Updates(updates)
	if res.Error != nil {
		return nil, Errorf(ErrInternal, "advance pickup: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, Errorf(ErrConflict, "pickup was modified concurrently")
	}

	s.recordHistory(pickup.ID, prev, newStatus, actor.UserID, false, note)
	return s.reload(pickup.ID)
}

// Cancel moves a non-terminal pickup to cancelled. Allowed for the owner, an
// admin, or the assigned collector (treated as resigning the assignment).
func (s *Service) Cancel(pickupID uint, actor Identity) (*models.Pickup, error) {
	pickup, err := s.getPickup(pickupID)
	if err != nil {
		return nil, err
	}

	prev := pickup.Status
	if IsTerminal(prev) {
		return nil, Errorf(ErrConflict, "pickup is already %s", prev)
	}

	note := "Pickup cancelled by owner"
	switch {
	case pickup.UserID == actor.UserID:
	case actor.IsAdmin():
		note = "Pickup cancelled by admin"
	case actor.IsCollector() && pickup.AssignedCollectorID != nil && *pickup.AssignedCollectorID == actor.UserID:
		note = "Collector resigned the assignment"
	default:
		return nil, Errorf(ErrForbidden, "only the owner, the assigned collector, or an admin may cancel")
	}

	res := s.db.Model(&models.Pickup{}).
		Where("id = ? AND status = ?", pickup.ID, prev).
		Update("status", models.StatusCancelled)
	if res.Error != nil {
		return nil, Errorf(ErrInternal, "cancel pickup: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, Errorf(ErrConflict, "pickup was modified concurrently")
	}

	s.recordHistory(pickup.ID, prev, models.StatusCancelled, actor.UserID, false, note)
	return s.reload(pickup.ID)
}

// Rate records the owner's one-time rating of a completed pickup.
func (s *Service) Rate(pickupID uint, score int, comment string, actor Identity) (*models.Pickup, error) {
	if score < 1 || score > 5 {
		return nil, Errorf(ErrValidation, "score must be between 1 and 5")
	}

	pickup, err := s.getPickup(pickupID)
	if err != nil {
		return nil, err
	}
	if pickup.UserID != actor.UserID {
		return nil, Errorf(ErrForbidden, "only the pickup owner may rate it")
	}
	if pickup.Status != models.StatusCompleted {
		return nil, Errorf(ErrPrecondition, "only completed pickups can be rated (status %q)", pickup.Status)
	}
	if pickup.Rated() {
		return nil, Errorf(ErrConflict, "pickup has already been rated")
	}

	res := s.db.Model(&models.Pickup{}).
		Where("id = ? AND status = ? AND rating_score IS NULL", pickup.ID, models.StatusCompleted).
		Updates(map[string]interface{}{
			"rating_score":   score,
			"rating_comment": comment,
		})
	if res.Error != nil {
		return nil, Errorf(ErrInternal, "rate pickup: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, Errorf(ErrConflict, "pickup has already been rated")
	}
	return s.reload(pickup.ID)
}

// Override lets an admin set any status directly, bypassing the transition
// table. The change is recorded in the history as an override. The completion
// timestamp follows the status so it is set exactly when status is completed.
func (s *Service) Override(pickupID uint, newStatus models.PickupStatus, reason string, actor Identity) (*models.Pickup, error) {
	if !actor.IsAdmin() {
		return nil, Errorf(ErrForbidden, "status override requires the admin role")
	}
	if !models.ValidStatus(newStatus) {
		return nil, Errorf(ErrValidation, "unknown status %q", newStatus)
	}

	pickup, err := s.getPickup(pickupID)
	if err != nil {
		return nil, err
	}

	prev := pickup.Status
	updates := map[string]interface{}{"status": newStatus}
	if newStatus == models.StatusCompleted {
		if pickup.CompletedDate == nil {
			updates["completed_date"] = time.Now()
		}
	} else {
		updates["completed_date"] = nil
	}

	res := s.db.Model(&models.Pickup{}).
		Where("id = ? AND status = ?", pickup.ID, prev).
		Updates(updates)
	if res.Error != nil {
		return nil, Errorf(ErrInternal, "override pickup status: %v", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, Errorf(ErrConflict, "pickup was modified concurrently")
	}

	s.recordHistory(pickup.ID, prev, newStatus, actor.UserID, true, "[ADMIN OVERRIDE] "+reason)
	return s.reload(pickup.ID)
}

// Get loads a pickup with its relations, enforcing read scope: plain users
// may only see their own pickups, collectors and admins see all.
func (s *Service) Get(pickupID uint, actor Identity) (*models.Pickup, error) {
	pickup, err := s.reload(pickupID)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleUser && pickup.UserID != actor.UserID {
		return nil, Errorf(ErrForbidden, "this pickup does not belong to you")
	}
	return pickup, nil
}

func (s *Service) getPickup(id uint) (*models.Pickup, error) {
	var pickup models.Pickup
	if err := s.db.First(&pickup, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Errorf(ErrNotFound, "pickup not found")
		}
		return nil, Errorf(ErrInternal, "load pickup: %v", err)
	}
	return &pickup, nil
}

func (s *Service) reload(id uint) (*models.Pickup, error) {
	var pickup models.Pickup
	if err := s.db.Preload("User").Preload("AssignedCollector").Preload("StatusHistory").
		First(&pickup, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Errorf(ErrNotFound, "pickup not found")
		}
		return nil, Errorf(ErrInternal, "load pickup: %v", err)
	}
	return &pickup, nil
}

func (s *Service) recordHistory(pickupID uint, from, to models.PickupStatus, changedBy uint, override bool, note string) {
	history := models.PickupStatusHistory{
		PickupID:   pickupID,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  changedBy,
		Override:   override,
		Note:       note,
	}
	// Audit only; the status write already committed.
	s.db.Create(&history)
}
