package lifecycle

import "wastemap-api/models"

// Identity is the verified caller identity produced by the auth middleware.
// The service trusts it completely and never re-derives role or user ID from
// request payloads.
type Identity struct {
	UserID uint
	Role   models.UserRole
}

func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

func (i Identity) IsCollector() bool {
	return i.Role == models.RoleCollector
}
