package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillswap-backend/internal/models"
)

type ConnectionRepo struct {
	pool *pgxpool.Pool
}

func NewConnectionRepo(pool *pgxpool.Pool) *ConnectionRepo {
	return &ConnectionRepo{pool: pool}
}

const connectionColumns = `id, from_user_id, to_user_id, status, created_at, responded_at`

func scanConnection(row pgx.Row) (*models.ConnectionRequest, error) {
	c := &models.ConnectionRequest{}
	err := row.Scan(&c.ID, &c.FromUserID, &c.ToUserID, &c.Status, &c.CreatedAt, &c.RespondedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Create inserts a pending request. The partial unique index on the
// unordered pair turns a concurrent duplicate into ErrDuplicate.
func (r *ConnectionRepo) Create(ctx context.Context, from, to uuid.UUID) (*models.ConnectionRequest, error) {
	query := `INSERT INTO connection_requests (id, from_user_id, to_user_id, status)
		VALUES ($1, $2, $3, 'pending')
		ON CONFLICT DO NOTHING
		RETURNING ` + connectionColumns

	c, err := scanConnection(r.pool.QueryRow(ctx, query, uuid.New(), from, to))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDuplicate
	}
	return c, err
}

func (r *ConnectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ConnectionRequest, error) {
	c, err := scanConnection(r.pool.QueryRow(ctx,
		`SELECT `+connectionColumns+` FROM connection_requests WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// ActiveBetween returns the pending or accepted request between a and b in
// either direction.
func (r *ConnectionRepo) ActiveBetween(ctx context.Context, a, b uuid.UUID) (*models.ConnectionRequest, error) {
	query := `SELECT ` + connectionColumns + ` FROM connection_requests
		WHERE ((from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1))
		AND status IN ('pending', 'accepted')
		LIMIT 1`

	c, err := scanConnection(r.pool.QueryRow(ctx, query, a, b))
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// Respond moves a pending request to status. A request that was already
// answered yields ErrStateConflict.
func (r *ConnectionRepo) Respond(ctx context.Context, id uuid.UUID, status models.ConnectionStatus) (*models.ConnectionRequest, error) {
	query := `UPDATE connection_requests SET status = $2, responded_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + connectionColumns

	c, err := scanConnection(r.pool.QueryRow(ctx, query, id, status))
	if err != nil {
		return nil, conflict(err)
	}
	return c, nil
}

func (r *ConnectionRepo) AreConnected(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(
		SELECT 1 FROM connection_requests
		WHERE status = 'accepted'
		AND ((from_user_id = $1 AND to_user_id = $2) OR (from_user_id = $2 AND to_user_id = $1)))`,
		a, b,
	).Scan(&ok)
	return ok, err
}

func (r *ConnectionRepo) ConnectedUserIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT CASE WHEN from_user_id = $1 THEN to_user_id ELSE from_user_id END
		FROM connection_requests
		WHERE status = 'accepted' AND (from_user_id = $1 OR to_user_id = $1)`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (r *ConnectionRepo) ListPendingFor(ctx context.Context, userID uuid.UUID) ([]*models.PendingRequest, error) {
	query := `SELECT c.id, c.from_user_id, c.to_user_id, c.status, c.created_at, c.responded_at,
			u.id, u.full_name, u.avatar_url, u.sessions_completed
		FROM connection_requests c
		JOIN users u ON u.id = c.from_user_id
		WHERE c.to_user_id = $1 AND c.status = 'pending'
		ORDER BY c.created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []*models.PendingRequest
	for rows.Next() {
		p := &models.PendingRequest{}
		err := rows.Scan(&p.ID, &p.FromUserID, &p.ToUserID, &p.Status, &p.CreatedAt, &p.RespondedAt,
			&p.FromUser.ID, &p.FromUser.FullName, &p.FromUser.AvatarURL, &p.FromUser.SessionsCompleted)
		if err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}
