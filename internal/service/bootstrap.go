package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytesecuritas/sensi-back/internal/authz"
	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/models"
)

var ErrSuperadminExists = errors.New("a superadmin already exists")

// BootstrapSuperadmin creates the first superadmin. It refuses once any
// superadmin exists, so it cannot be used to mint further accounts.
func (s *AuthService) BootstrapSuperadmin(ctx context.Context, input RegisterInput) (models.User, error) {
	existing, err := s.directory.ListUsersByRole(ctx, models.UserRoleSuperAdmin)
	if err != nil {
		return models.User{}, fmt.Errorf("list superadmins: %w", err)
	}
	if len(existing) > 0 {
		return models.User{}, errs.Conflict(ErrSuperadminExists.Error())
	}

	input.Role = models.UserRoleSuperAdmin
	input.OrganisationID = nil
	// The bootstrap identity holds exactly the authority the table grants a
	// superadmin and is never persisted.
	bootstrap := &authz.Caller{SubjectID: "bootstrap", Role: models.UserRoleSuperAdmin}
	return s.Register(ctx, bootstrap, input)
}
