package services

import (
	"slices"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

// Identity is the authenticated caller of a service operation.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

// IsAdmin reports whether the caller holds the ADMIN role.
func (id Identity) IsAdmin() bool {
	return id.Role == models.RoleAdmin
}

// authorize rejects anonymous callers and callers whose role is not listed.
// With no roles listed any authenticated caller passes.
func authorize(id Identity, roles ...string) error {
	if id.UserID == "" {
		return apperr.New(apperr.KindUnauthenticated, "authentication required")
	}
	if len(roles) > 0 && !slices.Contains(roles, id.Role) {
		return apperr.Forbidden("role %q may not perform this operation", id.Role)
	}
	return nil
}
