package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/ids"
	"github.com/bytesecuritas/sensi-back/internal/models"
)

// OrganisationService is the tenant directory. Callers are authorized by the
// route policy before reaching it; it only guards data invariants.
type OrganisationService struct {
	directory Directory
	now       func() time.Time
	log       zerolog.Logger
}

func NewOrganisationService(directory Directory, log zerolog.Logger) *OrganisationService {
	return &OrganisationService{directory: directory, now: time.Now, log: log}
}

type OrganisationInput struct {
	Name         string
	Type         models.OrganisationType
	CountryCode  string
	CreationDate *time.Time
}

func (s *OrganisationService) Create(ctx context.Context, input OrganisationInput) (models.Organisation, error) {
	org := models.Organisation{
		ID:          ids.New(),
		Name:        strings.TrimSpace(input.Name),
		Type:        input.Type,
		CountryCode: strings.ToUpper(strings.TrimSpace(input.CountryCode)),
	}
	if org.Type == "" {
		org.Type = models.OrganisationTypeAutre
	}
	if input.CreationDate != nil {
		org.CreationDate = *input.CreationDate
	} else {
		org.CreationDate = s.today()
	}
	if err := s.validate(org); err != nil {
		return models.Organisation{}, err
	}

	if err := s.directory.InTx(ctx, func(tx DirectoryTx) error {
		return tx.CreateOrganisation(ctx, org)
	}); err != nil {
		return models.Organisation{}, err
	}

	s.log.Info().Str("organisation_id", org.ID).Str("name", org.Name).Msg("organisation created")
	return s.directory.GetOrganisation(ctx, org.ID)
}

func (s *OrganisationService) validate(org models.Organisation) error {
	if err := validateOrganisationName(org.Name); err != nil {
		return err
	}
	if !org.Type.Valid() {
		return errs.Invalid("type", "type must be one of entreprise, ecole, association, autre")
	}
	if err := validateCountryCode(org.CountryCode); err != nil {
		return err
	}
	if org.CreationDate.After(s.today().Add(24*time.Hour - time.Nanosecond)) {
		return errs.Invalid("date_creation", "creation date must not be in the future")
	}
	return nil
}

func (s *OrganisationService) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *OrganisationService) Get(ctx context.Context, id string) (models.Organisation, error) {
	return s.directory.GetOrganisation(ctx, id)
}

func (s *OrganisationService) List(ctx context.Context) ([]models.Organisation, error) {
	return s.directory.ListOrganisations(ctx)
}

func (s *OrganisationService) Stats(ctx context.Context, id string) (models.OrganisationStats, error) {
	return s.directory.MemberCounts(ctx, id)
}

func (s *OrganisationService) Members(ctx context.Context, id string) ([]models.User, error) {
	if _, err := s.directory.GetOrganisation(ctx, id); err != nil {
		return nil, err
	}
	return s.directory.ListMembers(ctx, id)
}

type OrganisationUpdate struct {
	Name         *string
	Type         *models.OrganisationType
	CountryCode  *string
	CreationDate *time.Time
}

// Update applies a partial edit. When name, type or country change, an
// organisation with members must still have an admin.
func (s *OrganisationService) Update(ctx context.Context, id string, input OrganisationUpdate) (models.Organisation, error) {
	err := s.directory.InTx(ctx, func(tx DirectoryTx) error {
		current, err := tx.LockOrganisation(ctx, id)
		if err != nil {
			return err
		}

		next := current
		if input.Name != nil {
			next.Name = strings.TrimSpace(*input.Name)
		}
		if input.Type != nil {
			next.Type = *input.Type
		}
		if input.CountryCode != nil {
			next.CountryCode = strings.ToUpper(strings.TrimSpace(*input.CountryCode))
		}
		if input.CreationDate != nil {
			next.CreationDate = *input.CreationDate
		}
		if err := s.validate(next); err != nil {
			return err
		}

		identityChanged := next.Name != current.Name || next.Type != current.Type || next.CountryCode != current.CountryCode
		if identityChanged {
			counts, err := tx.MemberCounts(ctx, id)
			if err != nil {
				return fmt.Errorf("count members: %w", err)
			}
			if counts.TotalUsers > 0 && counts.Admins == 0 {
				return errs.Invariant("organisation must have at least one admin")
			}
		}
		return tx.UpdateOrganisation(ctx, next)
	})
	if err != nil {
		return models.Organisation{}, err
	}

	s.log.Info().Str("organisation_id", id).Msg("organisation updated")
	return s.directory.GetOrganisation(ctx, id)
}

// Delete removes an organisation that has no members.
func (s *OrganisationService) Delete(ctx context.Context, id string) error {
	err := s.directory.InTx(ctx, func(tx DirectoryTx) error {
		if _, err := tx.LockOrganisation(ctx, id); err != nil {
			return err
		}
		counts, err := tx.MemberCounts(ctx, id)
		if err != nil {
			return fmt.Errorf("count members: %w", err)
		}
		if counts.TotalUsers > 0 {
			return errs.Invariant(fmt.Sprintf("organisation still has %d members", counts.TotalUsers))
		}
		return tx.DeleteOrganisation(ctx, id)
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("organisation_id", id).Msg("organisation deleted")
	return nil
}

// DetachMember clears userID's organisation reference. The user record stays.
func (s *OrganisationService) DetachMember(ctx context.Context, organisationID, userID string) error {
	err := s.directory.InTx(ctx, func(tx DirectoryTx) error {
		if _, err := tx.LockOrganisation(ctx, organisationID); err != nil {
			return err
		}
		user, err := tx.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		if !user.InOrganisation(organisationID) {
			return errs.NotFound("member", userID)
		}
		if user.Role == models.UserRoleAdmin {
			counts, err := tx.MemberCounts(ctx, organisationID)
			if err != nil {
				return fmt.Errorf("count members: %w", err)
			}
			if counts.Admins <= 1 {
				return errs.Invariant("cannot remove the last admin of the organisation")
			}
		}
		user.OrganisationID = nil
		return tx.UpdateUser(ctx, user)
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("organisation_id", organisationID).Str("user_id", userID).Msg("member detached")
	return nil
}
