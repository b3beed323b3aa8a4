//go:build integration

// Run with a disposable database:
//
//	TEST_DATABASE_URL=postgres://... go test -tags integration ./internal/repository/
package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillswap-backend/internal/database"
	"skillswap-backend/internal/models"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	pool, err := database.NewPostgresPool(url)
	if err != nil {
		t.Fatalf("NewPostgresPool: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := database.RunMigrations(pool, ""); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	return pool
}

func insertUser(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, email, full_name) VALUES ($1, $2, $3)`, id, id.String()+"@example.com", "user "+id.String()[:8])
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

func insertSlot(t *testing.T, repo *SessionRepo, teacherID uuid.UUID) *models.Session {
	t.Helper()
	s := &models.Session{
		TeacherID: teacherID,
		Skill:     "Go",
		Status:    models.SessionAvailable,
		TimeSlot:  models.TimeSlot{Date: "2030-01-01", StartTime: "10:00", EndTime: "11:00"},
		Duration:  60,
	}
	if err := repo.CreateMany(context.Background(), []*models.Session{s}); err != nil {
		t.Fatalf("CreateMany: %v", err)
	}
	return s
}

func TestSessionRepo_ConcurrentBookHasOneWinner(t *testing.T) {
	pool := newTestPool(t)
	repo := NewSessionRepo(pool)
	slot := insertSlot(t, repo, insertUser(t, pool))

	const students = 8
	ids := make([]uuid.UUID, students)
	for i := range ids {
		ids[i] = insertUser(t, pool)
	}

	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		mu        sync.Mutex
		winners   []uuid.UUID
		conflicts int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			<-start
			room := "room-" + id.String()
			_, err := repo.Book(context.Background(), slot.ID, id, room)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, id)
			case errors.Is(err, ErrStateConflict):
				conflicts++
			default:
				t.Errorf("Book: %v", err)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	if len(winners) != 1 || conflicts != students-1 {
		t.Fatalf("expected 1 winner and %d conflicts, got %d and %d", students-1, len(winners), conflicts)
	}

	got, err := repo.GetByID(context.Background(), slot.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.SessionBooked || !got.TimeSlot.IsBooked || got.StudentID == nil || *got.StudentID != winners[0] {
		t.Fatalf("unexpected booked session: %+v", got)
	}
	if got.VideoCallRoom == nil || *got.VideoCallRoom != "room-"+winners[0].String() {
		t.Fatalf("room should come from the winning booking, got %v", got.VideoCallRoom)
	}
}

func TestSessionRepo_JoinKeepsFirstRoomAndCompleteIsTerminal(t *testing.T) {
	pool := newTestPool(t)
	repo := NewSessionRepo(pool)
	ctx := context.Background()
	slot := insertSlot(t, repo, insertUser(t, pool))

	if _, err := repo.Join(ctx, slot.ID, models.RoleTeacher, time.Now(), "room-early"); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("joining an available session should conflict, got %v", err)
	}

	if _, err := repo.Book(ctx, slot.ID, insertUser(t, pool), "room-first"); err != nil {
		t.Fatalf("Book: %v", err)
	}
	joined, err := repo.Join(ctx, slot.ID, models.RoleTeacher, time.Now(), "room-second")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if joined.Status != models.SessionOngoing || joined.JoinedAt.Teacher == nil || joined.JoinedAt.Student != nil {
		t.Fatalf("unexpected joined session: %+v", joined)
	}
	if *joined.VideoCallRoom != "room-first" {
		t.Fatalf("room must not change once assigned, got %q", *joined.VideoCallRoom)
	}

	fb := &models.Feedback{Rating: 5, Comment: "great", GivenBy: joined.TeacherID}
	done, err := repo.Complete(ctx, slot.ID, fb)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != models.SessionCompleted || done.Feedback == nil || done.Feedback.Rating != 5 {
		t.Fatalf("unexpected completed session: %+v", done)
	}

	if _, err := repo.Complete(ctx, slot.ID, nil); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("second Complete should conflict, got %v", err)
	}
	if _, err := repo.Cancel(ctx, slot.ID); !errors.Is(err, ErrStateConflict) {
		t.Fatalf("Cancel after completion should conflict, got %v", err)
	}
}

func TestSessionRepo_MarkReminderSentOnce(t *testing.T) {
	pool := newTestPool(t)
	repo := NewSessionRepo(pool)
	ctx := context.Background()
	slot := insertSlot(t, repo, insertUser(t, pool))

	first, err := repo.MarkReminderSent(ctx, slot.ID)
	if err != nil || !first {
		t.Fatalf("first MarkReminderSent = %v, %v", first, err)
	}
	second, err := repo.MarkReminderSent(ctx, slot.ID)
	if err != nil || second {
		t.Fatalf("second MarkReminderSent = %v, %v", second, err)
	}
}

func TestConnectionRepo_DuplicateActivePair(t *testing.T) {
	pool := newTestPool(t)
	repo := NewConnectionRepo(pool)
	ctx := context.Background()
	a, b := insertUser(t, pool), insertUser(t, pool)

	if _, err := repo.Create(ctx, a, b); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.Create(ctx, b, a); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("reverse request on an active pair should be a duplicate, got %v", err)
	}
}
