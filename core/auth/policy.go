package auth

import (
	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/user"
)

var ErrForbidden = core.NewError(core.KindForbidden, "Forbidden", "Access denied. Insufficient permissions.")

// RequireRole allows usr if it has any of roles.
func RequireRole(usr user.User, roles ...string) error {
	for _, role := range roles {
		if usr.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// RequireOwnerOrAdmin allows admins and the owner of a resource.
func RequireOwnerOrAdmin(usr user.User, ownerID string) error {
	if usr.IsAdmin() || (ownerID != "" && usr.ID == ownerID) {
		return nil
	}
	return ErrForbidden
}
