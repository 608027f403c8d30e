// Package repo implements the domain repository interfaces on pgxpool.
// These are the worker-side persistence gateway; HTTP handlers use the
// marker-checked SQL runner instead.
package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

// UpsertByGoogleSub inserts or updates a user keyed on the Google subject.
func (r *UserRepositoryPG) UpsertByGoogleSub(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
INSERT INTO users (id, google_sub, email, name, avatar_url, locale, plan, properties)
VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, '{}'::jsonb)
ON CONFLICT (google_sub) DO UPDATE
SET email = EXCLUDED.email,
    name = EXCLUDED.name,
    avatar_url = EXCLUDED.avatar_url,
    locale = EXCLUDED.locale,
    updated_at = NOW()
RETURNING id, google_sub, email, name, avatar_url, locale, plan, created_at, updated_at;
`
	row := r.pool.QueryRow(ctx, query,
		user.GoogleSub,
		user.Email,
		user.Name,
		user.AvatarURL,
		user.Locale,
		user.Plan,
	)
	return scanUser(row)
}

// GetByID fetches a user by UUID.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, google_sub, email, name, avatar_url, locale, plan, created_at, updated_at
FROM users
WHERE id = $1;
`, id)
	return scanUser(row)
}

// GetDailyUsage counts generation jobs the user enqueued today.
func (r *UserRepositoryPG) GetDailyUsage(ctx context.Context, userID string) (int, error) {
	row := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM generation_jobs
WHERE user_id = $1
  AND created_at::date = CURRENT_DATE;
`, userID)
	var total int
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.GoogleSub, &u.Email, &u.Name, &u.AvatarURL, &u.Locale, &u.Plan, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
