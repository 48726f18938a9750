package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/models"
)

type users struct {
	db querier
}

const userColumns = `id, email, password_hash, nom, prenom, role, age, language_code, organisation_id, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user models.User
		role string
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Nom,
		&user.Prenom,
		&role,
		&user.Age,
		&user.LanguageCode,
		&user.OrganisationID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	user.Role = models.UserRole(role)
	return user, err
}

func (r users) GetUser(ctx context.Context, id string) (models.User, error) {
	return r.getUser(ctx, id, false)
}

func (r users) getUser(ctx context.Context, id string, lock bool) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, errs.NotFound("user", id)
		}
		return models.User{}, wrap("get user", err)
	}
	return user, nil
}

func (r users) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, errs.NotFound("user", email)
		}
		return models.User{}, wrap("find user by email", err)
	}
	return user, nil
}

func (r users) ListUsers(ctx context.Context) ([]models.User, error) {
	return r.listUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY email`)
}

func (r users) ListUsersByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	return r.listUsers(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY email`, string(role))
}

func (r users) ListMembers(ctx context.Context, organisationID string) ([]models.User, error) {
	return r.listUsers(ctx, `SELECT `+userColumns+` FROM users WHERE organisation_id = $1 ORDER BY email`, organisationID)
}

func (r users) listUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("list users", err)
	}
	defer rows.Close()

	items := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, wrap("scan user", err)
		}
		items = append(items, user)
	}
	return items, rows.Err()
}

func (r users) CreateUser(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, email, password_hash, nom, prenom, role, age, language_code, organisation_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()
		)
	`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Nom,
		user.Prenom,
		string(user.Role),
		user.Age,
		user.LanguageCode,
		user.OrganisationID,
	)
	return userWriteError("create user", err)
}

// UpdateUser writes every mutable column except the password hash.
func (r users) UpdateUser(ctx context.Context, user models.User) error {
	const query = `
		UPDATE users
		SET email = $2,
		    nom = $3,
		    prenom = $4,
		    role = $5,
		    age = $6,
		    language_code = $7,
		    organisation_id = $8,
		    updated_at = NOW()
		WHERE id = $1
	`

	cmd, err := r.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Nom,
		user.Prenom,
		string(user.Role),
		user.Age,
		user.LanguageCode,
		user.OrganisationID,
	)
	if err != nil {
		return userWriteError("update user", err)
	}
	if cmd.RowsAffected() == 0 {
		return errs.NotFound("user", user.ID)
	}
	return nil
}

func (r users) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`

	cmd, err := r.db.Exec(ctx, query, id, hash)
	if err != nil {
		return wrap("update password", err)
	}
	if cmd.RowsAffected() == 0 {
		return errs.NotFound("user", id)
	}
	return nil
}

func (r users) DeleteUser(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return wrap("delete user", err)
	}
	if cmd.RowsAffected() == 0 {
		return errs.NotFound("user", id)
	}
	return nil
}

func userWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch code, _ := pgCode(err); code {
	case codeUniqueViolation:
		return errs.Conflict("email already registered")
	case codeForeignKeyViolation:
		return errs.Invalid("organisation_id", "organisation does not exist")
	}
	return wrap(op, err)
}
