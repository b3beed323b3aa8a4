package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillswap-backend/internal/models"
)

const dateLayout = "2006-01-02"

// SessionRepo performs every state transition as a single conditional
// UPDATE so that concurrent callers cannot both succeed.
type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

const sessionColumns = `id, teacher_id, student_id, skill, status, slot_date, start_time, end_time,
	is_booked, booked_by, duration, price, video_call_room, teacher_joined_at, student_joined_at,
	feedback, created_at, updated_at`

func scanSession(row pgx.Row) (*models.Session, error) {
	s := &models.Session{}
	var slotDate time.Time
	var feedback []byte
	err := row.Scan(
		&s.ID, &s.TeacherID, &s.StudentID, &s.Skill, &s.Status, &slotDate,
		&s.TimeSlot.StartTime, &s.TimeSlot.EndTime, &s.TimeSlot.IsBooked, &s.TimeSlot.BookedBy,
		&s.Duration, &s.Price, &s.VideoCallRoom, &s.JoinedAt.Teacher, &s.JoinedAt.Student,
		&feedback, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.TimeSlot.Date = slotDate.Format(dateLayout)
	if len(feedback) > 0 {
		s.Feedback = &models.Feedback{}
		if err := json.Unmarshal(feedback, s.Feedback); err != nil {
			return nil, fmt.Errorf("decode feedback for session %s: %w", s.ID, err)
		}
	}
	return s, nil
}

func collectSessions(rows pgx.Rows) ([]*models.Session, error) {
	defer rows.Close()
	var sessions []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// CreateMany inserts all sessions in one transaction.
func (r *SessionRepo) CreateMany(ctx context.Context, sessions []*models.Session) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO sessions (id, teacher_id, skill, status, slot_date, start_time, end_time, is_booked, duration, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9)
		RETURNING created_at, updated_at`

	for _, s := range sessions {
		date, err := time.Parse(dateLayout, s.TimeSlot.Date)
		if err != nil {
			return fmt.Errorf("invalid slot date %q: %w", s.TimeSlot.Date, err)
		}
		s.ID = uuid.New()
		err = tx.QueryRow(ctx, query,
			s.ID, s.TeacherID, s.Skill, s.Status, date, s.TimeSlot.StartTime, s.TimeSlot.EndTime, s.Duration, s.Price,
		).Scan(&s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// Book assigns studentID to an available session and assigns room if the
// session has none yet. ErrStateConflict means the session was not
// available at the time of the update.
func (r *SessionRepo) Book(ctx context.Context, id, studentID uuid.UUID, room string) (*models.Session, error) {
	query := `UPDATE sessions SET
			student_id = $2, booked_by = $2, status = 'booked', is_booked = TRUE,
			video_call_room = COALESCE(video_call_room, $3), updated_at = NOW()
		WHERE id = $1 AND status = 'available'
		RETURNING ` + sessionColumns

	s, err := scanSession(r.pool.QueryRow(ctx, query, id, studentID, room))
	if err != nil {
		return nil, conflict(err)
	}
	return s, nil
}

// Join records the join time for role and moves the session to ongoing.
// Only booked or ongoing sessions match.
func (r *SessionRepo) Join(ctx context.Context, id uuid.UUID, role string, at time.Time, room string) (*models.Session, error) {
	query := `UPDATE sessions SET
			status = 'ongoing',
			teacher_joined_at = CASE WHEN $2::text = 'teacher' THEN $3 ELSE teacher_joined_at END,
			student_joined_at = CASE WHEN $2::text = 'student' THEN $3 ELSE student_joined_at END,
			video_call_room = COALESCE(video_call_room, $4), updated_at = NOW()
		WHERE id = $1 AND status IN ('booked', 'ongoing')
		RETURNING ` + sessionColumns

	s, err := scanSession(r.pool.QueryRow(ctx, query, id, role, at, room))
	if err != nil {
		return nil, conflict(err)
	}
	return s, nil
}

// Complete ends a booked or ongoing session, storing feedback when given.
func (r *SessionRepo) Complete(ctx context.Context, id uuid.UUID, feedback *models.Feedback) (*models.Session, error) {
	var raw []byte
	if feedback != nil {
		var err error
		if raw, err = json.Marshal(feedback); err != nil {
			return nil, err
		}
	}

	query := `UPDATE sessions SET
			status = 'completed', feedback = COALESCE($2::jsonb, feedback), updated_at = NOW()
		WHERE id = $1 AND status IN ('booked', 'ongoing')
		RETURNING ` + sessionColumns

	s, err := scanSession(r.pool.QueryRow(ctx, query, id, raw))
	if err != nil {
		return nil, conflict(err)
	}
	return s, nil
}

func (r *SessionRepo) Cancel(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `UPDATE sessions SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('available', 'booked', 'ongoing')
		RETURNING ` + sessionColumns

	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, conflict(err)
	}
	return s, nil
}

// ListAvailable returns open sessions for skill taught by any of
// teacherIDs, dated on or after from.
func (r *SessionRepo) ListAvailable(ctx context.Context, skill string, teacherIDs []uuid.UUID, from string) ([]*models.Session, error) {
	if len(teacherIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE status = 'available' AND skill = $1 AND teacher_id = ANY($2) AND slot_date >= $3::date
		ORDER BY slot_date, start_time`

	rows, err := r.pool.Query(ctx, query, skill, teacherIDs, from)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// CountAvailableByTeacher is ListAvailable grouped by teacher.
func (r *SessionRepo) CountAvailableByTeacher(ctx context.Context, skill string, teacherIDs []uuid.UUID, from string) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int)
	if len(teacherIDs) == 0 {
		return counts, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT teacher_id, COUNT(*) FROM sessions
		WHERE status = 'available' AND skill = $1 AND teacher_id = ANY($2) AND slot_date >= $3::date
		GROUP BY teacher_id`, skill, teacherIDs, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (r *SessionRepo) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE teacher_id = $1 OR student_id = $1
		ORDER BY slot_date DESC, start_time DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// ListUnremindedBooked returns booked sessions dated between from and to
// (inclusive) that have not had a reminder sent.
func (r *SessionRepo) ListUnremindedBooked(ctx context.Context, from, to string) ([]*models.Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions
		WHERE status = 'booked' AND reminder_sent_at IS NULL AND slot_date BETWEEN $1::date AND $2::date`, from, to)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// MarkReminderSent reports false when another run already claimed the
// session.
func (r *SessionRepo) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		"UPDATE sessions SET reminder_sent_at = NOW() WHERE id = $1 AND reminder_sent_at IS NULL", id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
