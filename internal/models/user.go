package models

import "time"

type UserRole string

const (
	UserRoleUser       UserRole = "user"
	UserRoleAdmin      UserRole = "admin"
	UserRoleSuperAdmin UserRole = "superadmin"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleUser, UserRoleAdmin, UserRoleSuperAdmin:
		return true
	}
	return false
}

// Elevated reports whether r bypasses ownership checks.
func (r UserRole) Elevated() bool {
	return r == UserRoleAdmin || r == UserRoleSuperAdmin
}

const DefaultLanguageCode = "FR"

type User struct {
	ID             string
	Email          string
	PasswordHash   []byte
	Nom            string
	Prenom         string
	Role           UserRole
	Age            int
	LanguageCode   string
	OrganisationID *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InOrganisation reports whether the user is a member of orgID.
func (u User) InOrganisation(orgID string) bool {
	return u.OrganisationID != nil && *u.OrganisationID == orgID
}
