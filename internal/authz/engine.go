package authz

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/models"
)

// UserReader is the read side of the credential store needed for decisions.
type UserReader interface {
	GetUser(ctx context.Context, id string) (models.User, error)
}

// AssociationReader is the read side of the tenant directory needed for
// learning-path visibility.
type AssociationReader interface {
	HasActiveAssociation(ctx context.Context, organisationID, learningPathID string) (bool, error)
}

// Engine evaluates decisions that need stored data.
type Engine struct {
	users        UserReader
	associations AssociationReader
	log          zerolog.Logger
}

func NewEngine(users UserReader, associations AssociationReader, log zerolog.Logger) *Engine {
	return &Engine{
		users:        users,
		associations: associations,
		log:          log,
	}
}

// Authorize evaluates policy for caller against resourceID, resolving the
// caller's organisation first when the policy is organisation scoped.
func (e *Engine) Authorize(ctx context.Context, caller *Caller, policy RoutePolicy, resourceID string) error {
	if policy.NeedsOrganisation(caller) && caller.OrganisationID == nil {
		user, err := e.users.GetUser(ctx, caller.SubjectID)
		if errors.Is(err, errs.ErrNotFound) {
			// Token outlived its subject.
			return errs.Unauthenticated()
		}
		if err != nil {
			return err
		}
		caller.OrganisationID = user.OrganisationID
	}

	if err := policy.Evaluate(caller, resourceID); err != nil {
		event := e.log.Debug().Err(err).Str("ownership", policy.Ownership.String())
		if caller != nil {
			event = event.Str("subject_id", caller.SubjectID).Str("role", string(caller.Role))
		}
		event.Msg("authorization denied")
		return err
	}
	return nil
}

// HasPathAccess reports whether userID may see learningPathID: the user must
// belong to an organisation holding an active association to the path.
// Lookup failures resolve to false.
func (e *Engine) HasPathAccess(ctx context.Context, userID, learningPathID string) bool {
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		e.log.Debug().Err(err).Str("user_id", userID).Msg("path access: user lookup failed")
		return false
	}
	if user.OrganisationID == nil {
		return false
	}

	ok, err := e.associations.HasActiveAssociation(ctx, *user.OrganisationID, learningPathID)
	if err != nil {
		e.log.Error().Err(err).
			Str("organisation_id", *user.OrganisationID).
			Str("learning_path_id", learningPathID).
			Msg("path access: association lookup failed")
		return false
	}
	return ok
}
