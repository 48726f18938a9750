package service

import (
	"context"

	"github.com/bytesecuritas/sensi-back/internal/models"
)

// Directory is the persistence port shared by the credential store and the
// tenant directory. Reads run outside a transaction; every mutation goes
// through InTx so count checks and writes commit together.
//
// Implementations report missing rows with errs.NotFound and uniqueness
// violations with errs.Conflict.
type Directory interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListUsersByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
	ListMembers(ctx context.Context, organisationID string) ([]models.User, error)

	GetOrganisation(ctx context.Context, id string) (models.Organisation, error)
	ListOrganisations(ctx context.Context) ([]models.Organisation, error)
	MemberCounts(ctx context.Context, organisationID string) (models.OrganisationStats, error)

	InTx(ctx context.Context, fn func(tx DirectoryTx) error) error
}

// DirectoryTx is one unit of work. Lock* and Get* reads hold their rows until
// the transaction ends.
type DirectoryTx interface {
	LockOrganisation(ctx context.Context, id string) (models.Organisation, error)
	LockUser(ctx context.Context, id string) (models.User, error)
	MemberCounts(ctx context.Context, organisationID string) (models.OrganisationStats, error)

	CreateUser(ctx context.Context, user models.User) error
	UpdateUser(ctx context.Context, user models.User) error
	UpdatePassword(ctx context.Context, id string, hash []byte) error
	DeleteUser(ctx context.Context, id string) error

	CreateOrganisation(ctx context.Context, org models.Organisation) error
	UpdateOrganisation(ctx context.Context, org models.Organisation) error
	DeleteOrganisation(ctx context.Context, id string) error
}

// LearningStore exposes the parts of the learning catalogue that access
// decisions and profile statistics depend on.
type LearningStore interface {
	GetLearningPath(ctx context.Context, id string) (models.LearningPath, error)

	// AddAssociation activates the link between an organisation and a path,
	// reviving a retracted one. An already active link is a conflict.
	AddAssociation(ctx context.Context, link models.OrganisationLearningPath) (models.OrganisationLearningPath, error)
	// RetractAssociation marks an active link inactive.
	RetractAssociation(ctx context.Context, organisationID, learningPathID string) error
	ListActivePaths(ctx context.Context, organisationID string) ([]models.LearningPath, error)
	HasActiveAssociation(ctx context.Context, organisationID, learningPathID string) (bool, error)

	UserProgress(ctx context.Context, userID string) ([]models.PathProgress, error)
	CountCertifications(ctx context.Context, userID string) (int, error)
}

// LoginLimiter throttles failed logins per email.
type LoginLimiter interface {
	Allow(ctx context.Context, email string) (bool, error)
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}
