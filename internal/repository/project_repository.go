package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"saasboard/api/internal/models"
)

var ErrProjectNotFound = errors.New("project not found")

// Owner-scoped lookups mask ownership mismatches as not-found: every
// query on a single project filters by user_id, so a non-owner cannot
// distinguish "exists but not yours" from "does not exist".
type ProjectRepository struct {
	pool *pgxpool.Pool
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

const projectColumns = `id, user_id, name, description, status, metadata, created_at, updated_at`

func scanProject(row pgx.Row) (models.Project, error) {
	var project models.Project
	err := row.Scan(
		&project.ID,
		&project.UserID,
		&project.Name,
		&project.Description,
		&project.Status,
		&project.Metadata,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Project{}, ErrProjectNotFound
		}
		return models.Project{}, err
	}
	return project, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project models.Project) (models.Project, error) {
	const query = `
		INSERT INTO projects (user_id, name, description, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + projectColumns

	if project.Metadata == nil {
		project.Metadata = map[string]any{}
	}
	return scanProject(r.pool.QueryRow(ctx, query,
		project.UserID,
		project.Name,
		project.Description,
		project.Status,
		project.Metadata,
	))
}

func (r *ProjectRepository) GetForUser(ctx context.Context, id, userID int64) (models.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 AND user_id = $2`
	return scanProject(r.pool.QueryRow(ctx, query, id, userID))
}

func (r *ProjectRepository) ListByUser(ctx context.Context, userID int64) ([]models.Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE user_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

type ProjectPatch struct {
	Name        *string
	Description *string
	Status      *models.ProjectStatus
	Metadata    map[string]any
}

func (r *ProjectRepository) UpdateForUser(ctx context.Context, id, userID int64, patch ProjectPatch) (models.Project, error) {
	const query = `
		UPDATE projects SET
			name = COALESCE($3, name),
			description = COALESCE($4, description),
			status = COALESCE($5, status),
			metadata = COALESCE($6, metadata),
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + projectColumns

	var meta any
	if patch.Metadata != nil {
		meta = patch.Metadata
	}
	return scanProject(r.pool.QueryRow(ctx, query, id, userID, patch.Name, patch.Description, patch.Status, meta))
}

func (r *ProjectRepository) DeleteForUser(ctx context.Context, id, userID int64) error {
	const query = `DELETE FROM projects WHERE id = $1 AND user_id = $2`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrProjectNotFound
	}
	return nil
}
