package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillswap-backend/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, email, full_name, avatar_url, skills, skills_to_learn, sessions_completed, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	var skills, toLearn []byte
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.AvatarURL, &skills, &toLearn, &u.SessionsCompleted, &u.CreatedAt); err != nil {
		return nil, err
	}
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &u.Skills); err != nil {
			return nil, fmt.Errorf("decode skills for user %s: %w", u.ID, err)
		}
	}
	if len(toLearn) > 0 {
		if err := json.Unmarshal(toLearn, &u.SkillsToLearn); err != nil {
			return nil, fmt.Errorf("decode skills_to_learn for user %s: %w", u.ID, err)
		}
	}
	return u, nil
}

func collectUsers(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()
	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (r *UserRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY sessions_completed DESC, full_name`, ids)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (r *UserRepo) IncrementSessionsCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE users SET sessions_completed = sessions_completed + 1 WHERE id = $1", id)
	return err
}

// FindPeers lists users other than exclude who teach skill at intermediate
// or advanced proficiency, most experienced first.
func (r *UserRepo) FindPeers(ctx context.Context, skill string, exclude uuid.UUID, limit int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE id <> $2 AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(skills) s
			WHERE s->>'skill_name' = $1 AND s->>'proficiency' IN ('intermediate', 'advanced')
		)
		ORDER BY sessions_completed DESC, full_name
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, skill, exclude, limit)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}
