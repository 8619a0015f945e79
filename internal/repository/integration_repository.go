package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"saasboard/api/internal/models"
)

var ErrIntegrationNotFound = errors.New("integration not found")

type IntegrationRepository struct {
	pool *pgxpool.Pool
}

func NewIntegrationRepository(pool *pgxpool.Pool) *IntegrationRepository {
	return &IntegrationRepository{pool: pool}
}

const integrationColumns = `id, user_id, type, name, config, status, last_synced, created_at, updated_at`

func scanIntegration(row pgx.Row) (models.Integration, error) {
	var integration models.Integration
	err := row.Scan(
		&integration.ID,
		&integration.UserID,
		&integration.Type,
		&integration.Name,
		&integration.Config,
		&integration.Status,
		&integration.LastSynced,
		&integration.CreatedAt,
		&integration.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Integration{}, ErrIntegrationNotFound
		}
		return models.Integration{}, err
	}
	return integration, nil
}

func (r *IntegrationRepository) Create(ctx context.Context, integration models.Integration) (models.Integration, error) {
	const query = `
		INSERT INTO integrations (user_id, type, name, config, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + integrationColumns

	if integration.Config == nil {
		integration.Config = map[string]any{}
	}
	return scanIntegration(r.pool.QueryRow(ctx, query,
		integration.UserID,
		integration.Type,
		integration.Name,
		integration.Config,
		integration.Status,
	))
}

func (r *IntegrationRepository) GetForUser(ctx context.Context, id, userID int64) (models.Integration, error) {
	const query = `SELECT ` + integrationColumns + ` FROM integrations WHERE id = $1 AND user_id = $2`
	return scanIntegration(r.pool.QueryRow(ctx, query, id, userID))
}

func (r *IntegrationRepository) ListByUser(ctx context.Context, userID int64) ([]models.Integration, error) {
	const query = `SELECT ` + integrationColumns + ` FROM integrations WHERE user_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var integrations []models.Integration
	for rows.Next() {
		integration, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		integrations = append(integrations, integration)
	}
	return integrations, rows.Err()
}

type IntegrationPatch struct {
	Name       *string
	Config     map[string]any
	Status     *models.IntegrationStatus
	LastSynced *time.Time
}

func (r *IntegrationRepository) UpdateForUser(ctx context.Context, id, userID int64, patch IntegrationPatch) (models.Integration, error) {
	const query = `
		UPDATE integrations SET
			name = COALESCE($3, name),
			config = COALESCE($4, config),
			status = COALESCE($5, status),
			last_synced = COALESCE($6, last_synced),
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + integrationColumns

	var cfg any
	if patch.Config != nil {
		cfg = patch.Config
	}
	return scanIntegration(r.pool.QueryRow(ctx, query, id, userID, patch.Name, cfg, patch.Status, patch.LastSynced))
}

func (r *IntegrationRepository) DeleteForUser(ctx context.Context, id, userID int64) error {
	const query = `DELETE FROM integrations WHERE id = $1 AND user_id = $2`
	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrIntegrationNotFound
	}
	return nil
}
