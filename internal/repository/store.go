package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bytesecuritas/sensi-back/internal/models"
	"github.com/bytesecuritas/sensi-back/internal/service"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the same query
// code serves plain reads and transactional work.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements service.Directory and service.LearningStore on Postgres.
type Store struct {
	pool *pgxpool.Pool
	users
	organisations
	learning
}

var (
	_ service.Directory     = (*Store)(nil)
	_ service.LearningStore = (*Store)(nil)
	_ service.DirectoryTx   = (*directoryTx)(nil)
)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:          pool,
		users:         users{db: pool},
		organisations: organisations{db: pool},
		learning:      learning{db: pool},
	}
}

// MemberCounts reports a missing organisation as not found rather than as
// zero members.
func (s *Store) MemberCounts(ctx context.Context, organisationID string) (models.OrganisationStats, error) {
	if _, err := s.organisations.GetOrganisation(ctx, organisationID); err != nil {
		return models.OrganisationStats{}, err
	}
	return s.organisations.MemberCounts(ctx, organisationID)
}

// InTx runs fn in a read-committed transaction. Row locks taken through the
// Lock* methods serialise concurrent count-then-write sequences.
func (s *Store) InTx(ctx context.Context, fn func(tx service.DirectoryTx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&directoryTx{
			users:         users{db: tx},
			organisations: organisations{db: tx},
		})
	})
}

type directoryTx struct {
	users
	organisations
}

func (t *directoryTx) LockUser(ctx context.Context, id string) (models.User, error) {
	return t.users.getUser(ctx, id, true)
}

func (t *directoryTx) LockOrganisation(ctx context.Context, id string) (models.Organisation, error) {
	return t.organisations.getOrganisation(ctx, id, true)
}

func (t *directoryTx) MemberCounts(ctx context.Context, organisationID string) (models.OrganisationStats, error) {
	return t.organisations.MemberCounts(ctx, organisationID)
}

func pgCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
