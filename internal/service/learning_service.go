package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bytesecuritas/sensi-back/internal/authz"
	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/ids"
	"github.com/bytesecuritas/sensi-back/internal/models"
)

// LearningService manages which organisations see which learning paths.
type LearningService struct {
	directory Directory
	store     LearningStore
	engine    *authz.Engine
	log       zerolog.Logger
}

func NewLearningService(directory Directory, store LearningStore, engine *authz.Engine, log zerolog.Logger) *LearningService {
	return &LearningService{directory: directory, store: store, engine: engine, log: log}
}

func (s *LearningService) Associate(ctx context.Context, organisationID, learningPathID string) (models.OrganisationLearningPath, error) {
	if _, err := s.directory.GetOrganisation(ctx, organisationID); err != nil {
		return models.OrganisationLearningPath{}, err
	}
	if _, err := s.store.GetLearningPath(ctx, learningPathID); err != nil {
		return models.OrganisationLearningPath{}, err
	}

	link, err := s.store.AddAssociation(ctx, models.OrganisationLearningPath{
		ID:             ids.New(),
		OrganisationID: organisationID,
		LearningPathID: learningPathID,
	})
	if err != nil {
		return models.OrganisationLearningPath{}, err
	}

	s.log.Info().
		Str("organisation_id", organisationID).
		Str("learning_path_id", learningPathID).
		Msg("learning path associated")
	return link, nil
}

func (s *LearningService) Retract(ctx context.Context, organisationID, learningPathID string) error {
	if err := s.store.RetractAssociation(ctx, organisationID, learningPathID); err != nil {
		return err
	}
	s.log.Info().
		Str("organisation_id", organisationID).
		Str("learning_path_id", learningPathID).
		Msg("learning path retracted")
	return nil
}

func (s *LearningService) OrganisationPaths(ctx context.Context, organisationID string) ([]models.LearningPath, error) {
	if _, err := s.directory.GetOrganisation(ctx, organisationID); err != nil {
		return nil, err
	}
	return s.store.ListActivePaths(ctx, organisationID)
}

// AvailablePaths lists the paths active for the caller's organisation.
func (s *LearningService) AvailablePaths(ctx context.Context, caller *authz.Caller) ([]models.LearningPath, error) {
	if caller == nil {
		return nil, errs.Unauthenticated()
	}
	user, err := s.directory.GetUser(ctx, caller.SubjectID)
	if err != nil {
		return nil, err
	}
	if user.OrganisationID == nil {
		return nil, errs.NotFound("organisation", "of user "+user.ID)
	}
	return s.store.ListActivePaths(ctx, *user.OrganisationID)
}

// HasAccess never fails; every lookup problem reads as no access.
func (s *LearningService) HasAccess(ctx context.Context, caller *authz.Caller, learningPathID string) bool {
	if caller == nil {
		return false
	}
	return s.engine.HasPathAccess(ctx, caller.SubjectID, learningPathID)
}
