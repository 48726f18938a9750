package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bytesecuritas/sensi-back/internal/authz"
	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/ids"
	"github.com/bytesecuritas/sensi-back/internal/metrics"
	"github.com/bytesecuritas/sensi-back/internal/models"
	"github.com/bytesecuritas/sensi-back/internal/security"
)

// AuthService validates credentials, registers users and issues tokens.
type AuthService struct {
	directory Directory
	learning  LearningStore
	tokens    *security.TokenIssuer
	limiter   LoginLimiter
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// NewAuthService wires the service. limiter and m may be nil.
func NewAuthService(
	directory Directory,
	learning LearningStore,
	tokens *security.TokenIssuer,
	limiter LoginLimiter,
	m *metrics.Metrics,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		directory: directory,
		learning:  learning,
		tokens:    tokens,
		limiter:   limiter,
		metrics:   m,
		log:       log,
	}
}

// Authenticate returns the identity behind email and password, or nil when
// either is wrong. The error is reserved for storage failures.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*security.Identity, error) {
	user, err := s.directory.FindUserByEmail(ctx, normaliseEmail(email))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// Spend the same hashing work as a real comparison.
			_, _ = security.VerifyPassword(password, dummyHash)
			return nil, nil
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	return &security.Identity{Email: user.Email, SubjectID: user.ID, Role: string(user.Role)}, nil
}

func (s *AuthService) IssueTokens(identity security.Identity) (security.TokenPair, error) {
	return s.tokens.Issue(identity)
}

// Login authenticates and issues a token pair. Every failure, including a
// throttled email, surfaces as the same unauthenticated error.
func (s *AuthService) Login(ctx context.Context, email, password string) (security.TokenPair, error) {
	email = normaliseEmail(email)

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, email)
		if err != nil {
			s.log.Warn().Err(err).Msg("login limiter unavailable")
		} else if !allowed {
			s.log.Warn().Str("email", email).Msg("login throttled")
			s.metrics.LoginAttempt(metrics.LoginThrottled)
			return security.TokenPair{}, errs.Unauthenticated()
		}
	}

	identity, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return security.TokenPair{}, err
	}
	if identity == nil {
		s.metrics.LoginAttempt(metrics.LoginFailed)
		if s.limiter != nil {
			if err := s.limiter.RecordFailure(ctx, email); err != nil {
				s.log.Warn().Err(err).Msg("record login failure")
			}
		}
		return security.TokenPair{}, errs.Unauthenticated()
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, email); err != nil {
			s.log.Warn().Err(err).Msg("reset login failures")
		}
	}
	s.metrics.LoginAttempt(metrics.LoginSucceeded)
	return s.IssueTokens(*identity)
}

// Refresh exchanges a refresh token for a new pair. Claims are rebuilt from the
// stored user so role changes and deletions take effect.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (security.TokenPair, error) {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return security.TokenPair{}, errs.Unauthenticated()
	}

	user, err := s.directory.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return security.TokenPair{}, errs.Unauthenticated()
		}
		return security.TokenPair{}, fmt.Errorf("load refresh subject: %w", err)
	}
	return s.IssueTokens(security.Identity{Email: user.Email, SubjectID: user.ID, Role: string(user.Role)})
}

type RegisterInput struct {
	Email          string
	Password       string
	Nom            string
	Prenom         string
	Age            int
	Role           models.UserRole
	LanguageCode   string
	OrganisationID *string
}

// Register creates a user on behalf of caller. Creation authority is checked
// before any input is looked at further; admins may only register members of
// their own organisation.
func (s *AuthService) Register(ctx context.Context, caller *authz.Caller, input RegisterInput) (models.User, error) {
	if input.Role == "" {
		input.Role = models.UserRoleUser
	}
	if err := authz.CanCreate(caller, input.Role); err != nil {
		return models.User{}, err
	}

	input.Email = normaliseEmail(input.Email)
	if err := ValidateEmail(input.Email); err != nil {
		return models.User{}, err
	}
	if err := ValidatePassword(input.Password); err != nil {
		return models.User{}, err
	}
	if err := validateProfile(input.Nom, input.Prenom, input.Age); err != nil {
		return models.User{}, err
	}
	if input.OrganisationID != nil {
		trimmed := strings.TrimSpace(*input.OrganisationID)
		input.OrganisationID = &trimmed
		if trimmed == "" {
			input.OrganisationID = nil
		}
	}
	if err := requireOrganisation(input.Role, input.OrganisationID); err != nil {
		return models.User{}, err
	}

	if caller.Role == models.UserRoleAdmin {
		if err := s.requireSameOrganisation(ctx, caller, *input.OrganisationID); err != nil {
			return models.User{}, err
		}
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:             ids.New(),
		Email:          input.Email,
		PasswordHash:   hash,
		Nom:            strings.TrimSpace(input.Nom),
		Prenom:         strings.TrimSpace(input.Prenom),
		Role:           input.Role,
		Age:            input.Age,
		LanguageCode:   languageOrDefault(input.LanguageCode),
		OrganisationID: input.OrganisationID,
	}

	err = s.directory.InTx(ctx, func(tx DirectoryTx) error {
		if user.OrganisationID != nil {
			if _, err := tx.LockOrganisation(ctx, *user.OrganisationID); err != nil {
				if errors.Is(err, errs.ErrNotFound) {
					return errs.Invalid("organisation_id", "organisation does not exist")
				}
				return err
			}
		}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return models.User{}, err
	}

	created, err := s.directory.GetUser(ctx, user.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("reload created user: %w", err)
	}

	s.log.Info().
		Str("user_id", created.ID).
		Str("role", string(created.Role)).
		Str("created_by", caller.SubjectID).
		Msg("user registered")
	return created, nil
}

func (s *AuthService) requireSameOrganisation(ctx context.Context, caller *authz.Caller, organisationID string) error {
	if caller.OrganisationID == nil {
		self, err := s.directory.GetUser(ctx, caller.SubjectID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errs.Unauthenticated()
			}
			return fmt.Errorf("load caller: %w", err)
		}
		caller.OrganisationID = self.OrganisationID
	}
	return authz.CheckOrganisationMember(caller, organisationID)
}

type Profile struct {
	User  models.User
	Stats ProfileStats
}

type ProfileStats struct {
	Paths            []models.PathProgress
	TotalPaths       int
	CompletedPaths   int
	TotalTimeMinutes int
	Certificates     int
}

// Profile returns the caller's own record with learning statistics.
func (s *AuthService) Profile(ctx context.Context, caller *authz.Caller) (Profile, error) {
	if caller == nil {
		return Profile{}, errs.Unauthenticated()
	}
	user, err := s.directory.GetUser(ctx, caller.SubjectID)
	if err != nil {
		return Profile{}, err
	}

	progress, err := s.learning.UserProgress(ctx, user.ID)
	if err != nil {
		return Profile{}, fmt.Errorf("load progress: %w", err)
	}
	certificates, err := s.learning.CountCertifications(ctx, user.ID)
	if err != nil {
		return Profile{}, fmt.Errorf("count certifications: %w", err)
	}

	stats := ProfileStats{
		Paths:        progress,
		TotalPaths:   len(progress),
		Certificates: certificates,
	}
	for _, p := range progress {
		stats.TotalTimeMinutes += p.TimeSpentMinutes
		if p.Completed() {
			stats.CompletedPaths++
		}
	}
	return Profile{User: user, Stats: stats}, nil
}

// dummyHash is compared against when the email is unknown.
var dummyHash = mustHash("sensi-timing-equaliser")

func mustHash(password string) []byte {
	hash, err := security.HashPassword(password)
	if err != nil {
		panic(err)
	}
	return hash
}
