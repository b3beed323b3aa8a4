package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillswap-backend/internal/models"
)

type QuizRepo struct {
	pool *pgxpool.Pool
}

func NewQuizRepo(pool *pgxpool.Pool) *QuizRepo {
	return &QuizRepo{pool: pool}
}

func (r *QuizRepo) Create(ctx context.Context, q *models.Quiz) error {
	q.ID = uuid.New()
	if q.Status == "" {
		q.Status = models.QuizStatusPending
	}
	if len(q.QuestionsJSON) == 0 {
		q.QuestionsJSON = []byte("[]")
	}

	query := `INSERT INTO quizzes (id, user_id, skill, type, status, questions_json, question_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		q.ID, q.UserID, q.Skill, q.Type, q.Status, []byte(q.QuestionsJSON), q.QuestionCount,
	).Scan(&q.CreatedAt)
}

func (r *QuizRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	q := &models.Quiz{}
	query := `SELECT id, user_id, skill, type, status, questions_json, question_count, created_at
		FROM quizzes WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&q.ID, &q.UserID, &q.Skill, &q.Type, &q.Status, &q.QuestionsJSON, &q.QuestionCount, &q.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return q, nil
}

// SaveQuestions stores generated questions and marks the quiz ready.
func (r *QuizRepo) SaveQuestions(ctx context.Context, id uuid.UUID, questions []byte, count int) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE quizzes SET questions_json = $1, question_count = $2, status = $3 WHERE id = $4",
		questions, count, models.QuizStatusReady, id,
	)
	return err
}

func (r *QuizRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, "UPDATE quizzes SET status = $1 WHERE id = $2", status, id)
	return err
}
