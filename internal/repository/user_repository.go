package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"saasboard/api/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
)

const uniqueViolation = "23505"

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `
	id, external_id, email, display_name, avatar_url, password_hash,
	roles, plan, status, metadata, last_login, created_at, updated_at
`

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user  models.User
		roles []string
	)
	err := row.Scan(
		&user.ID,
		&user.ExternalID,
		&user.Email,
		&user.DisplayName,
		&user.AvatarURL,
		&user.PasswordHash,
		&roles,
		&user.Plan,
		&user.Status,
		&user.Metadata,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	user.Roles = make([]models.Role, 0, len(roles))
	for _, r := range roles {
		user.Roles = append(user.Roles, models.Role(r))
	}
	return user, nil
}

func rolesToStrings(roles []models.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

// Create inserts a new user. A uniqueness violation on email or
// external_id surfaces as ErrDuplicateUser so callers racing a first
// login can re-fetch instead of failing.
func (r *UserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (
			external_id, email, display_name, avatar_url, password_hash,
			roles, plan, status, metadata, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()
		)
		RETURNING ` + userColumns

	if user.Metadata == nil {
		user.Metadata = map[string]any{}
	}

	created, err := scanUser(r.pool.QueryRow(ctx, query,
		user.ExternalID,
		user.Email,
		user.DisplayName,
		user.AvatarURL,
		user.PasswordHash,
		rolesToStrings(user.Roles),
		user.Plan,
		user.Status,
		user.Metadata,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, ErrDuplicateUser
		}
		return models.User{}, err
	}
	return created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, externalID))
}

// TouchLastLogin is last-write-wins; concurrent logins may race on it
// with no correctness requirement beyond that.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id int64) error {
	const query = `UPDATE users SET last_login = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// UpdateProfile applies self-service edits. Nil fields keep the stored
// value.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, displayName, avatarURL *string, metadata map[string]any) (models.User, error) {
	const query = `
		UPDATE users SET
			display_name = COALESCE($2, display_name),
			avatar_url = COALESCE($3, avatar_url),
			metadata = COALESCE($4, metadata),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	var meta any
	if metadata != nil {
		meta = metadata
	}
	return scanUser(r.pool.QueryRow(ctx, query, id, displayName, avatarURL, meta))
}

type AdminUserUpdate struct {
	Roles    []models.Role
	Plan     *models.Plan
	Status   *models.UserStatus
	Metadata map[string]any
}

func (r *UserRepository) AdminUpdate(ctx context.Context, id int64, update AdminUserUpdate) (models.User, error) {
	const query = `
		UPDATE users SET
			roles = COALESCE($2, roles),
			plan = COALESCE($3, plan),
			status = COALESCE($4, status),
			metadata = COALESCE($5, metadata),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	var roles any
	if update.Roles != nil {
		roles = rolesToStrings(update.Roles)
	}
	var meta any
	if update.Metadata != nil {
		meta = update.Metadata
	}
	return scanUser(r.pool.QueryRow(ctx, query, id, roles, update.Plan, update.Status, meta))
}

// Delete removes the user; projects and integrations cascade via FK.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM users WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) SetAvatarURL(ctx context.Context, id int64, avatarURL string) error {
	const query = `UPDATE users SET avatar_url = $2, updated_at = NOW() WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, avatarURL)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
