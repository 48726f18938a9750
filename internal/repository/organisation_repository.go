package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/models"
)

type organisations struct {
	db querier
}

const organisationColumns = `id, name, type, country_code, creation_date, created_at, updated_at`

func scanOrganisation(row pgx.Row) (models.Organisation, error) {
	var (
		org     models.Organisation
		orgType string
	)
	err := row.Scan(
		&org.ID,
		&org.Name,
		&orgType,
		&org.CountryCode,
		&org.CreationDate,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	org.Type = models.OrganisationType(orgType)
	return org, err
}

func (r organisations) GetOrganisation(ctx context.Context, id string) (models.Organisation, error) {
	return r.getOrganisation(ctx, id, false)
}

func (r organisations) getOrganisation(ctx context.Context, id string, lock bool) (models.Organisation, error) {
	query := `SELECT ` + organisationColumns + ` FROM organisations WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	org, err := scanOrganisation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Organisation{}, errs.NotFound("organisation", id)
		}
		return models.Organisation{}, wrap("get organisation", err)
	}
	return org, nil
}

func (r organisations) ListOrganisations(ctx context.Context) ([]models.Organisation, error) {
	rows, err := r.db.Query(ctx, `SELECT `+organisationColumns+` FROM organisations ORDER BY name`)
	if err != nil {
		return nil, wrap("list organisations", err)
	}
	defer rows.Close()

	items := make([]models.Organisation, 0)
	for rows.Next() {
		org, err := scanOrganisation(rows)
		if err != nil {
			return nil, wrap("scan organisation", err)
		}
		items = append(items, org)
	}
	return items, rows.Err()
}

func (r organisations) MemberCounts(ctx context.Context, organisationID string) (models.OrganisationStats, error) {
	const query = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE role = 'admin'),
		       COUNT(*) FILTER (WHERE role = 'user')
		FROM users
		WHERE organisation_id = $1
	`

	var stats models.OrganisationStats
	if err := r.db.QueryRow(ctx, query, organisationID).Scan(&stats.TotalUsers, &stats.Admins, &stats.Users); err != nil {
		return models.OrganisationStats{}, wrap("count members", err)
	}
	return stats, nil
}

func (r organisations) CreateOrganisation(ctx context.Context, org models.Organisation) error {
	const query = `
		INSERT INTO organisations (
			id, name, type, country_code, creation_date, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, NOW(), NOW()
		)
	`

	_, err := r.db.Exec(ctx, query, org.ID, org.Name, string(org.Type), org.CountryCode, org.CreationDate)
	return organisationWriteError("create organisation", err)
}

func (r organisations) UpdateOrganisation(ctx context.Context, org models.Organisation) error {
	const query = `
		UPDATE organisations
		SET name = $2,
		    type = $3,
		    country_code = $4,
		    creation_date = $5,
		    updated_at = NOW()
		WHERE id = $1
	`

	cmd, err := r.db.Exec(ctx, query, org.ID, org.Name, string(org.Type), org.CountryCode, org.CreationDate)
	if err != nil {
		return organisationWriteError("update organisation", err)
	}
	if cmd.RowsAffected() == 0 {
		return errs.NotFound("organisation", org.ID)
	}
	return nil
}

// DeleteOrganisation relies on the users foreign key to refuse organisations
// that still have members.
func (r organisations) DeleteOrganisation(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM organisations WHERE id = $1`, id)
	if err != nil {
		return organisationWriteError("delete organisation", err)
	}
	if cmd.RowsAffected() == 0 {
		return errs.NotFound("organisation", id)
	}
	return nil
}

func organisationWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	switch code, _ := pgCode(err); code {
	case codeUniqueViolation:
		return errs.Conflict("organisation name already exists")
	case codeForeignKeyViolation:
		return errs.Invariant("organisation still has members")
	}
	return wrap(op, err)
}
