package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/models"
)

type learning struct {
	db querier
}

func (r learning) GetLearningPath(ctx context.Context, id string) (models.LearningPath, error) {
	const query = `
		SELECT id, title, description, target_audience, created_at, updated_at
		FROM learning_paths WHERE id = $1
	`

	var (
		path     models.LearningPath
		audience string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&path.ID,
		&path.Title,
		&path.Description,
		&audience,
		&path.CreatedAt,
		&path.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.LearningPath{}, errs.NotFound("learning_path", id)
		}
		return models.LearningPath{}, wrap("get learning path", err)
	}
	path.TargetAudience = models.TargetAudience(audience)
	return path, nil
}

// AddAssociation inserts the link or revives a retracted one. The conditional
// upsert returns no row when an active link already exists.
func (r learning) AddAssociation(ctx context.Context, link models.OrganisationLearningPath) (models.OrganisationLearningPath, error) {
	const query = `
		INSERT INTO organisation_learning_paths (id, organisation_id, learning_path_id, active, added_at)
		VALUES ($1, $2, $3, TRUE, NOW())
		ON CONFLICT (organisation_id, learning_path_id)
		DO UPDATE SET active = TRUE, added_at = NOW()
		WHERE organisation_learning_paths.active = FALSE
		RETURNING id, organisation_id, learning_path_id, active, added_at
	`

	var saved models.OrganisationLearningPath
	err := r.db.QueryRow(ctx, query, link.ID, link.OrganisationID, link.LearningPathID).Scan(
		&saved.ID,
		&saved.OrganisationID,
		&saved.LearningPathID,
		&saved.Active,
		&saved.AddedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.OrganisationLearningPath{}, errs.Conflict("learning path already associated with organisation")
		}
		if code, constraint := pgCode(err); code == codeForeignKeyViolation {
			if constraint == "organisation_learning_paths_organisation_id_fkey" {
				return models.OrganisationLearningPath{}, errs.NotFound("organisation", link.OrganisationID)
			}
			return models.OrganisationLearningPath{}, errs.NotFound("learning_path", link.LearningPathID)
		}
		return models.OrganisationLearningPath{}, wrap("add association", err)
	}
	return saved, nil
}

func (r learning) RetractAssociation(ctx context.Context, organisationID, learningPathID string) error {
	const query = `
		UPDATE organisation_learning_paths
		SET active = FALSE
		WHERE organisation_id = $1 AND learning_path_id = $2 AND active
	`

	cmd, err := r.db.Exec(ctx, query, organisationID, learningPathID)
	if err != nil {
		return wrap("retract association", err)
	}
	if cmd.RowsAffected() == 0 {
		return errs.NotFound("association", organisationID+"/"+learningPathID)
	}
	return nil
}

func (r learning) ListActivePaths(ctx context.Context, organisationID string) ([]models.LearningPath, error) {
	const query = `
		SELECT p.id, p.title, p.description, p.target_audience, p.created_at, p.updated_at
		FROM learning_paths p
		JOIN organisation_learning_paths olp ON olp.learning_path_id = p.id
		WHERE olp.organisation_id = $1 AND olp.active
		ORDER BY p.title
	`

	rows, err := r.db.Query(ctx, query, organisationID)
	if err != nil {
		return nil, wrap("list active paths", err)
	}
	defer rows.Close()

	items := make([]models.LearningPath, 0)
	for rows.Next() {
		var (
			path     models.LearningPath
			audience string
		)
		if err := rows.Scan(&path.ID, &path.Title, &path.Description, &audience, &path.CreatedAt, &path.UpdatedAt); err != nil {
			return nil, wrap("scan learning path", err)
		}
		path.TargetAudience = models.TargetAudience(audience)
		items = append(items, path)
	}
	return items, rows.Err()
}

func (r learning) HasActiveAssociation(ctx context.Context, organisationID, learningPathID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM organisation_learning_paths
			WHERE organisation_id = $1 AND learning_path_id = $2 AND active
		)
	`

	var ok bool
	if err := r.db.QueryRow(ctx, query, organisationID, learningPathID).Scan(&ok); err != nil {
		return false, wrap("check association", err)
	}
	return ok, nil
}

// UserProgress aggregates module progress per path the user has touched.
func (r learning) UserProgress(ctx context.Context, userID string) ([]models.PathProgress, error) {
	const query = `
		SELECT p.id,
		       p.title,
		       (SELECT COUNT(*) FROM learning_modules m WHERE m.learning_path_id = p.id),
		       COUNT(*) FILTER (WHERE mp.status = 'termine'),
		       COALESCE(SUM(mp.time_spent), 0)
		FROM module_progress mp
		JOIN learning_modules lm ON lm.id = mp.module_id
		JOIN learning_paths p ON p.id = lm.learning_path_id
		WHERE mp.user_id = $1
		GROUP BY p.id, p.title
		ORDER BY p.title
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, wrap("user progress", err)
	}
	defer rows.Close()

	items := make([]models.PathProgress, 0)
	for rows.Next() {
		var p models.PathProgress
		if err := rows.Scan(&p.LearningPathID, &p.Title, &p.ModulesTotal, &p.ModulesCompleted, &p.TimeSpentMinutes); err != nil {
			return nil, wrap("scan progress", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r learning) CountCertifications(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM certifications WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, wrap("count certifications", err)
	}
	return count, nil
}
