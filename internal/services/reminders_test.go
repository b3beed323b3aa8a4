package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap-backend/internal/models"
)

type memReminderStore struct {
	mu       sync.Mutex
	sessions []*models.Session
	reminded map[uuid.UUID]bool
	from, to string
}

func (m *memReminderStore) ListUnremindedBooked(ctx context.Context, from, to string) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.from, m.to = from, to
	var out []*models.Session
	for _, s := range m.sessions {
		if s.Status == models.SessionBooked && !m.reminded[s.ID] && s.TimeSlot.Date >= from && s.TimeSlot.Date <= to {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memReminderStore) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reminded[id] {
		return false, nil
	}
	m.reminded[id] = true
	return true, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []SessionReminder
}

func (r *recordingMailer) SendSessionReminder(rem SessionReminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, rem)
	return nil
}

type reminderFixture struct {
	sched   *ReminderScheduler
	store   *memReminderStore
	mailer  *recordingMailer
	teacher *models.User
	student *models.User
}

func newReminderFixture(t *testing.T, now time.Time) *reminderFixture {
	t.Helper()
	users := newMemUsers()
	f := &reminderFixture{
		store:   &memReminderStore{reminded: map[uuid.UUID]bool{}},
		mailer:  &recordingMailer{},
		teacher: users.add("teacher"),
		student: users.add("student"),
	}
	sched, err := NewReminderScheduler(f.store, users, f.mailer, time.UTC, "*/5 * * * *", time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("NewReminderScheduler: %v", err)
	}
	sched.now = func() time.Time { return now }
	f.sched = sched
	return f
}

func (f *reminderFixture) booked(date, start, end string) *models.Session {
	studentID := f.student.ID
	s := &models.Session{
		ID:        uuid.New(),
		TeacherID: f.teacher.ID,
		StudentID: &studentID,
		Skill:     "Go",
		Status:    models.SessionBooked,
		TimeSlot:  models.TimeSlot{Date: date, StartTime: start, EndTime: end, IsBooked: true, BookedBy: &studentID},
	}
	f.store.sessions = append(f.store.sessions, s)
	return s
}

func TestReminderScheduler_RemindsBothParticipantsOnce(t *testing.T) {
	f := newReminderFixture(t, at("09:15"))
	f.booked("2024-01-01", "10:00", "11:00")

	if n := f.sched.RunOnce(context.Background()); n != 1 {
		t.Fatalf("expected 1 session reminded, got %d", n)
	}
	if len(f.mailer.sent) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(f.mailer.sent))
	}

	roles := map[string]SessionReminder{}
	for _, r := range f.mailer.sent {
		roles[r.Role] = r
	}
	if roles[models.RoleTeacher].To != f.teacher.Email || roles[models.RoleTeacher].Counterpart != "student" {
		t.Fatalf("unexpected teacher reminder: %+v", roles[models.RoleTeacher])
	}
	if roles[models.RoleStudent].To != f.student.Email || roles[models.RoleStudent].Counterpart != "teacher" {
		t.Fatalf("unexpected student reminder: %+v", roles[models.RoleStudent])
	}

	if n := f.sched.RunOnce(context.Background()); n != 0 {
		t.Fatalf("expected second pass to send nothing, got %d", n)
	}
	if len(f.mailer.sent) != 2 {
		t.Fatalf("expected no new emails, got %d total", len(f.mailer.sent))
	}
}

func TestReminderScheduler_OnlyWithinLeadTime(t *testing.T) {
	f := newReminderFixture(t, at("09:15"))
	f.booked("2024-01-01", "11:00", "12:00") // beyond the hour
	f.booked("2024-01-01", "09:00", "10:00") // already started

	if n := f.sched.RunOnce(context.Background()); n != 0 {
		t.Fatalf("expected no reminders, got %d", n)
	}
	if len(f.store.reminded) != 0 {
		t.Fatalf("sessions outside the lead time must stay unclaimed")
	}
}

func TestReminderScheduler_LeadTimeCrossesMidnight(t *testing.T) {
	f := newReminderFixture(t, at("23:30"))
	f.booked("2024-01-02", "00:15", "01:00")

	if n := f.sched.RunOnce(context.Background()); n != 1 {
		t.Fatalf("expected next-day session to be reminded, got %d", n)
	}
	if f.store.from != "2024-01-01" || f.store.to != "2024-01-02" {
		t.Fatalf("unexpected date range %s..%s", f.store.from, f.store.to)
	}
}

func TestNewReminderScheduler_RejectsBadSchedule(t *testing.T) {
	_, err := NewReminderScheduler(&memReminderStore{}, newMemUsers(), &recordingMailer{}, time.UTC, "not a schedule", time.Hour, zap.NewNop())
	if err == nil {
		t.Fatalf("expected invalid schedule error")
	}
}

func TestRenderSessionReminder(t *testing.T) {
	body := renderSessionReminder(SessionReminder{
		Name: "Asha", Skill: "Go", Date: "2024-01-01", StartTime: "10:00", EndTime: "11:00",
		Role: models.RoleTeacher, Counterpart: "Ravi",
	}, "https://skillswap.example")

	for _, want := range []string{"Hi Asha", "teaching <strong>Go</strong>", "with <strong>Ravi</strong>", "https://skillswap.example/sessions"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %q", want)
		}
	}
}
