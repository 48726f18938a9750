package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bytesecuritas/sensi-back/internal/authz"
	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/models"
	"github.com/bytesecuritas/sensi-back/internal/security"
)

// UserService is the credential store. Ownership rules are re-checked here
// even though the route policy already applied them.
type UserService struct {
	directory Directory
	log       zerolog.Logger
}

func NewUserService(directory Directory, log zerolog.Logger) *UserService {
	return &UserService{directory: directory, log: log}
}

func (s *UserService) List(ctx context.Context, caller *authz.Caller) ([]models.User, error) {
	if err := authz.RequireRole(caller, models.UserRoleSuperAdmin, models.UserRoleAdmin); err != nil {
		return nil, err
	}
	return s.directory.ListUsers(ctx)
}

func (s *UserService) ListByRole(ctx context.Context, caller *authz.Caller, role models.UserRole) ([]models.User, error) {
	if err := authz.RequireRole(caller, models.UserRoleSuperAdmin, models.UserRoleAdmin); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, errs.Invalid("role", "role must be one of user, admin, superadmin")
	}
	return s.directory.ListUsersByRole(ctx, role)
}

func (s *UserService) Get(ctx context.Context, caller *authz.Caller, id string) (models.User, error) {
	if err := authz.CheckOwnership(caller, id); err != nil {
		return models.User{}, err
	}
	return s.directory.GetUser(ctx, id)
}

// UpdateInput lists the mutable fields of a user. Nil fields are left alone.
type UpdateInput struct {
	Nom          *string
	Prenom       *string
	Age          *int
	LanguageCode *string

	// Elevated callers only.
	Email          *string
	Role           *models.UserRole
	OrganisationID *string
	// ClearOrganisation detaches the user; only meaningful for superadmins.
	ClearOrganisation bool
}

func (in UpdateInput) touchesPrivilegedFields() bool {
	return in.Email != nil || in.Role != nil || in.OrganisationID != nil || in.ClearOrganisation
}

func (s *UserService) Update(ctx context.Context, caller *authz.Caller, id string, input UpdateInput) (models.User, error) {
	if err := authz.CheckOwnership(caller, id); err != nil {
		return models.User{}, err
	}
	if input.touchesPrivilegedFields() && !caller.Role.Elevated() {
		return models.User{}, errs.Forbidden(errs.ReasonRoleNotPermitted, "only administrators can change email, role or organisation")
	}
	if input.Role != nil {
		if err := authz.CanCreate(caller, *input.Role); err != nil {
			return models.User{}, err
		}
	}

	var updated models.User
	err := s.directory.InTx(ctx, func(tx DirectoryTx) error {
		current, err := tx.LockUser(ctx, id)
		if err != nil {
			return err
		}
		if caller.Role == models.UserRoleAdmin {
			if current.ID == caller.SubjectID {
				if input.touchesPrivilegedFields() {
					return errs.Forbidden(errs.ReasonRoleNotPermitted, "admins cannot change their own email, role or organisation")
				}
			} else if err := s.checkAdminManages(ctx, tx, caller, current, "update"); err != nil {
				return err
			}
		}

		next, err := applyUpdate(current, input)
		if err != nil {
			return err
		}
		if err := requireOrganisation(next.Role, next.OrganisationID); err != nil {
			return err
		}
		if next.OrganisationID != nil && !current.InOrganisation(*next.OrganisationID) {
			if caller.Role == models.UserRoleAdmin {
				if err := authz.CheckOrganisationMember(caller, *next.OrganisationID); err != nil {
					return err
				}
			}
			if _, err := tx.LockOrganisation(ctx, *next.OrganisationID); err != nil {
				if errors.Is(err, errs.ErrNotFound) {
					return errs.Invalid("organisation_id", "organisation does not exist")
				}
				return err
			}
		}
		if leavesAdminSeat(current, next) {
			if err := ensureAnotherAdmin(ctx, tx, *current.OrganisationID); err != nil {
				return err
			}
		}

		if err := tx.UpdateUser(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return models.User{}, err
	}

	s.log.Info().Str("user_id", id).Str("updated_by", caller.SubjectID).Msg("user updated")
	return s.directory.GetUser(ctx, updated.ID)
}

func applyUpdate(user models.User, in UpdateInput) (models.User, error) {
	if in.Nom != nil {
		if strings.TrimSpace(*in.Nom) == "" {
			return user, errs.Invalid("nom", "nom must not be empty")
		}
		user.Nom = strings.TrimSpace(*in.Nom)
	}
	if in.Prenom != nil {
		if strings.TrimSpace(*in.Prenom) == "" {
			return user, errs.Invalid("prenom", "prenom must not be empty")
		}
		user.Prenom = strings.TrimSpace(*in.Prenom)
	}
	if in.Age != nil {
		if *in.Age < 0 {
			return user, errs.Invalid("age", "age must not be negative")
		}
		user.Age = *in.Age
	}
	if in.LanguageCode != nil {
		user.LanguageCode = languageOrDefault(*in.LanguageCode)
	}
	if in.Email != nil {
		email := normaliseEmail(*in.Email)
		if err := ValidateEmail(email); err != nil {
			return user, err
		}
		user.Email = email
	}
	if in.Role != nil {
		user.Role = *in.Role
	}
	if in.OrganisationID != nil {
		orgID := strings.TrimSpace(*in.OrganisationID)
		user.OrganisationID = &orgID
	}
	if in.ClearOrganisation {
		user.OrganisationID = nil
	}
	return user, nil
}

// leavesAdminSeat reports whether the change removes current from the admins
// of its organisation.
func leavesAdminSeat(current, next models.User) bool {
	if current.Role != models.UserRoleAdmin || current.OrganisationID == nil {
		return false
	}
	return next.Role != models.UserRoleAdmin || !next.InOrganisation(*current.OrganisationID)
}

// ensureAnotherAdmin refuses to remove an admin when it holds the last admin
// seat of organisationID.
func ensureAnotherAdmin(ctx context.Context, tx DirectoryTx, organisationID string) error {
	if _, err := tx.LockOrganisation(ctx, organisationID); err != nil {
		return err
	}
	counts, err := tx.MemberCounts(ctx, organisationID)
	if err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	if counts.Admins <= 1 {
		return errs.Invariant("organisation must keep at least one admin")
	}
	return nil
}

// checkAdminManages limits an admin to users of its own organisation whose
// role it could have created. action names the refused operation in the
// error message.
func (s *UserService) checkAdminManages(ctx context.Context, tx DirectoryTx, caller *authz.Caller, target models.User, action string) error {
	if target.Role != models.UserRoleUser {
		return errs.Forbidden(errs.ReasonAdminCannotCreatePeer, "admins cannot "+action+" other admins or superadmins")
	}
	if caller.OrganisationID == nil {
		self, err := tx.LockUser(ctx, caller.SubjectID)
		if err != nil {
			return err
		}
		caller.OrganisationID = self.OrganisationID
	}
	if target.OrganisationID == nil {
		return errs.Forbidden(errs.ReasonNotOwner, "user belongs to another tenant")
	}
	return authz.CheckOrganisationMember(caller, *target.OrganisationID)
}

// Delete removes a user. Removing the last admin of an organisation that
// still has other members is refused.
func (s *UserService) Delete(ctx context.Context, caller *authz.Caller, id string) error {
	if err := authz.RequireRole(caller, models.UserRoleSuperAdmin, models.UserRoleAdmin); err != nil {
		return err
	}

	err := s.directory.InTx(ctx, func(tx DirectoryTx) error {
		target, err := tx.LockUser(ctx, id)
		if err != nil {
			return err
		}
		if caller.Role == models.UserRoleAdmin {
			if err := s.checkAdminManages(ctx, tx, caller, target, "delete"); err != nil {
				return err
			}
		}
		if target.Role == models.UserRoleAdmin && target.OrganisationID != nil {
			if _, err := tx.LockOrganisation(ctx, *target.OrganisationID); err != nil {
				return err
			}
			counts, err := tx.MemberCounts(ctx, *target.OrganisationID)
			if err != nil {
				return fmt.Errorf("count members: %w", err)
			}
			if counts.Admins <= 1 && counts.TotalUsers > 1 {
				return errs.Invariant("organisation must keep at least one admin")
			}
		}
		return tx.DeleteUser(ctx, id)
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("user_id", id).Str("deleted_by", caller.SubjectID).Msg("user deleted")
	return nil
}

// ChangePassword is self-service only, for every role.
func (s *UserService) ChangePassword(ctx context.Context, caller *authz.Caller, id, current, next string) error {
	if err := authz.CheckSelf(caller, id); err != nil {
		return err
	}
	if err := ValidatePassword(next); err != nil {
		return err
	}

	err := s.directory.InTx(ctx, func(tx DirectoryTx) error {
		user, err := tx.LockUser(ctx, id)
		if err != nil {
			return err
		}
		ok, err := security.VerifyPassword(current, user.PasswordHash)
		if err != nil || !ok {
			return errs.Unauthenticated()
		}
		hash, err := security.HashPassword(next)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		return tx.UpdatePassword(ctx, id, hash)
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("user_id", id).Msg("password changed")
	return nil
}
