// Package authz decides whether an authenticated caller may perform an action.
//
// Three families of decisions live here:
//
//   - user-creation authority, driven by the creationAuthority table;
//   - resource access, either self-or-elevated ownership or a role allow-list;
//   - tenant-scoped learning-path visibility, which is a query returning a
//     plain boolean rather than a guard.
//
// Guards are pure and synchronous. They return an *errs.Error of kind
// errs.ErrForbidden carrying a reason code, and never mutate anything.
package authz

import (
	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/models"
)

// Caller is the identity derived from a verified access token. OrganisationID
// is only resolved when a decision needs it.
type Caller struct {
	SubjectID      string
	Email          string
	Role           models.UserRole
	OrganisationID *string
}

// creationAuthority lists, per caller role, the roles it may create. A role
// absent from the table has no authority and is reported as invalid.
var creationAuthority = map[models.UserRole][]models.UserRole{
	models.UserRoleSuperAdmin: {models.UserRoleUser, models.UserRoleAdmin, models.UserRoleSuperAdmin},
	models.UserRoleAdmin:      {models.UserRoleUser},
	models.UserRoleUser:       {},
}

// CanCreate checks whether caller may create a user with role target.
func CanCreate(caller *Caller, target models.UserRole) error {
	if caller == nil {
		return errs.Forbidden(errs.ReasonAuthenticationRequired, "authentication required")
	}

	allowed, known := creationAuthority[caller.Role]
	if !known {
		return errs.Forbidden(errs.ReasonInvalidRole, "invalid role")
	}
	if len(allowed) == 0 {
		return errs.Forbidden(errs.ReasonRoleNotPermitted, "users cannot create users")
	}
	if !target.Valid() {
		return errs.Invalid("role", "role must be one of user, admin, superadmin")
	}
	for _, role := range allowed {
		if role == target {
			return nil
		}
	}
	return errs.Forbidden(errs.ReasonAdminCannotCreatePeer, "admins cannot create other admins or superadmins")
}

// CheckOwnership applies the self-or-elevated rule: admin and superadmin act on
// any resource, a plain user only on resources it owns.
func CheckOwnership(caller *Caller, ownerID string) error {
	if caller == nil {
		return errs.Forbidden(errs.ReasonAuthenticationRequired, "authentication required")
	}
	if caller.Role.Elevated() {
		return nil
	}
	if caller.Role != models.UserRoleUser {
		return errs.Forbidden(errs.ReasonInvalidRole, "invalid role")
	}
	if caller.SubjectID == "" || caller.SubjectID != ownerID {
		return errs.Forbidden(errs.ReasonNotOwner, "you can only access your own resources")
	}
	return nil
}

// CheckSelf is the ownership rule without the elevated bypass. Password
// changes use it for every role.
func CheckSelf(caller *Caller, ownerID string) error {
	if caller == nil {
		return errs.Forbidden(errs.ReasonAuthenticationRequired, "authentication required")
	}
	if caller.SubjectID == "" || caller.SubjectID != ownerID {
		return errs.Forbidden(errs.ReasonNotOwner, "you can only change your own password")
	}
	return nil
}

// RequireRole admits callers whose role is in allowed.
func RequireRole(caller *Caller, allowed ...models.UserRole) error {
	if caller == nil {
		return errs.Forbidden(errs.ReasonAuthenticationRequired, "authentication required")
	}
	for _, role := range allowed {
		if caller.Role == role {
			return nil
		}
	}
	return errs.Forbidden(errs.ReasonRoleNotPermitted, "role cannot perform this action")
}

// CheckOrganisationMember admits superadmins and callers belonging to orgID.
func CheckOrganisationMember(caller *Caller, orgID string) error {
	if caller == nil {
		return errs.Forbidden(errs.ReasonAuthenticationRequired, "authentication required")
	}
	if caller.Role == models.UserRoleSuperAdmin {
		return nil
	}
	if caller.OrganisationID == nil || *caller.OrganisationID != orgID {
		return errs.Forbidden(errs.ReasonNotOwner, "organisation belongs to another tenant")
	}
	return nil
}
