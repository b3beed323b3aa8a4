package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"skillswap-backend/internal/logger"
	"skillswap-backend/internal/models"
)

const reminderRunTimeout = 2 * time.Minute

type ReminderStore interface {
	ListUnremindedBooked(ctx context.Context, from, to string) ([]*models.Session, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error)
}

type ReminderMailer interface {
	SendSessionReminder(r SessionReminder) error
}

// ReminderScheduler emails both participants of a booked session once,
// shortly before it starts.
type ReminderScheduler struct {
	cron   *cron.Cron
	store  ReminderStore
	users  UserDirectory
	mailer ReminderMailer
	loc    *time.Location
	lead   time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewReminderScheduler(
	store ReminderStore,
	users UserDirectory,
	mailer ReminderMailer,
	loc *time.Location,
	schedule string,
	lead time.Duration,
	log *zap.Logger,
) (*ReminderScheduler, error) {
	log = log.With(zap.String(logger.FieldOperation, "session_reminders"))
	cl := cronLogger{log.Sugar()}

	s := &ReminderScheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		store:  store,
		users:  users,
		mailer: mailer,
		loc:    loc,
		lead:   lead,
		logger: log,
		now:    time.Now,
	}

	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *ReminderScheduler) Start() {
	s.cron.Start()
	s.logger.Info("reminder scheduler started", zap.Duration("lead", s.lead))
}

// Stop waits for a running pass to finish.
func (s *ReminderScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *ReminderScheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), reminderRunTimeout)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce sends reminders for sessions starting within the lead time and
// returns how many sessions were reminded.
func (s *ReminderScheduler) RunOnce(ctx context.Context) int {
	now := s.now().In(s.loc)
	horizon := now.Add(s.lead)

	candidates, err := s.store.ListUnremindedBooked(ctx, now.Format(slotDateLayout), horizon.Format(slotDateLayout))
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		return 0
	}

	sent := 0
	for _, sess := range candidates {
		start, _, err := SlotWindow(sess.TimeSlot, s.loc)
		if err != nil {
			s.logger.Warn("skipping session with unreadable slot", zap.String(logger.FieldSessionID, sess.ID.String()), zap.Error(err))
			continue
		}
		if start.Before(now) || start.After(horizon) {
			continue
		}

		claimed, err := s.store.MarkReminderSent(ctx, sess.ID)
		if err != nil {
			s.logger.Error("failed to mark reminder", zap.String(logger.FieldSessionID, sess.ID.String()), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}

		s.remind(ctx, sess)
		sent++
	}

	if sent > 0 {
		s.logger.Info("session reminders sent", zap.Int("sessions", sent))
	}
	return sent
}

func (s *ReminderScheduler) remind(ctx context.Context, sess *models.Session) {
	if sess.StudentID == nil {
		return
	}

	people, err := s.users.ListByIDs(ctx, []uuid.UUID{sess.TeacherID, *sess.StudentID})
	if err != nil {
		s.logger.Error("failed to load participants", zap.String(logger.FieldSessionID, sess.ID.String()), zap.Error(err))
		return
	}
	byID := make(map[uuid.UUID]*models.User, len(people))
	for _, u := range people {
		byID[u.ID] = u
	}

	teacher, student := byID[sess.TeacherID], byID[*sess.StudentID]
	for _, p := range []struct {
		to, other *models.User
		role      string
	}{
		{teacher, student, models.RoleTeacher},
		{student, teacher, models.RoleStudent},
	} {
		if p.to == nil || p.to.Email == "" {
			continue
		}
		r := SessionReminder{
			To:        p.to.Email,
			Name:      p.to.FullName,
			Skill:     sess.Skill,
			Date:      sess.TimeSlot.Date,
			StartTime: sess.TimeSlot.StartTime,
			EndTime:   sess.TimeSlot.EndTime,
			Role:      p.role,
		}
		if p.other != nil {
			r.Counterpart = p.other.FullName
		}
		if err := s.mailer.SendSessionReminder(r); err != nil {
			s.logger.Error("failed to send reminder",
				zap.String(logger.FieldSessionID, sess.ID.String()),
				zap.String(logger.FieldUserID, p.to.ID.String()),
				zap.Error(err),
			)
		}
	}
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
