package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap-backend/internal/logger"
	"skillswap-backend/internal/models"
	"skillswap-backend/internal/repository"
)

type SessionStore interface {
	CreateMany(ctx context.Context, sessions []*models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Book(ctx context.Context, id, studentID uuid.UUID, room string) (*models.Session, error)
	Join(ctx context.Context, id uuid.UUID, role string, at time.Time, room string) (*models.Session, error)
	Complete(ctx context.Context, id uuid.UUID, feedback *models.Feedback) (*models.Session, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListAvailable(ctx context.Context, skill string, teacherIDs []uuid.UUID, from string) ([]*models.Session, error)
	CountAvailableByTeacher(ctx context.Context, skill string, teacherIDs []uuid.UUID, from string) (map[uuid.UUID]int, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Session, error)
}

type ConnectionGraph interface {
	AreConnected(ctx context.Context, a, b uuid.UUID) (bool, error)
	ConnectedUserIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error)
	IncrementSessionsCompleted(ctx context.Context, id uuid.UUID) error
	FindPeers(ctx context.Context, skill string, exclude uuid.UUID, limit int) ([]*models.User, error)
}

// Notifier delivers an event to a user's live connection. Offline users
// are silently skipped.
type Notifier interface {
	EmitToUser(userID uuid.UUID, evt models.Event)
}

type SessionService struct {
	sessions SessionStore
	graph    ConnectionGraph
	users    UserDirectory
	notifier Notifier
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

func NewSessionService(sessions SessionStore, graph ConnectionGraph, users UserDirectory, notifier Notifier, loc *time.Location, log *zap.Logger) *SessionService {
	if loc == nil {
		loc = time.UTC
	}
	return &SessionService{
		sessions: sessions,
		graph:    graph,
		users:    users,
		notifier: notifier,
		loc:      loc,
		logger:   log,
		now:      time.Now,
	}
}

func (s *SessionService) CreateTimeSlots(ctx context.Context, teacherID uuid.UUID, req models.CreateSlotsRequest) ([]*models.Session, error) {
	skill := strings.TrimSpace(req.Skill)
	if skill == "" {
		return nil, &ValidationError{Fields: map[string]string{"skill": "Skill is required"}}
	}
	if len(req.Slots) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"slots": "At least one time slot is required"}}
	}
	if req.Price < 0 {
		return nil, &ValidationError{Fields: map[string]string{"price": "Price cannot be negative"}}
	}

	durations := make([]int, len(req.Slots))
	for i, slot := range req.Slots {
		minutes, fields := validateSlot(slot, s.loc)
		if fields != nil {
			return nil, &ValidationError{Fields: fields}
		}
		durations[i] = minutes
	}

	teacher, err := s.users.GetByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "User not found"}
		}
		return nil, fmt.Errorf("load teacher: %w", err)
	}
	if !teacher.Teaches(skill) {
		return nil, &IneligibleSkillError{Message: "You can only create sessions for skills you teach"}
	}

	sessions := make([]*models.Session, len(req.Slots))
	for i, slot := range req.Slots {
		sessions[i] = &models.Session{
			TeacherID: teacherID,
			Skill:     skill,
			Status:    models.SessionAvailable,
			TimeSlot: models.TimeSlot{
				Date:      slot.Date,
				StartTime: slot.StartTime,
				EndTime:   slot.EndTime,
			},
			Duration: durations[i],
			Price:    req.Price,
		}
	}
	if err := s.sessions.CreateMany(ctx, sessions); err != nil {
		return nil, fmt.Errorf("create sessions: %w", err)
	}

	s.logger.Info("time slots created",
		zap.String(logger.FieldUserID, teacherID.String()),
		zap.String("skill", skill),
		zap.Int("count", len(sessions)),
	)

	s.invite(ctx, teacher, req.InvitedUserIDs, sessions)
	return sessions, nil
}

// invite notifies the invited users that are connections of the teacher.
func (s *SessionService) invite(ctx context.Context, teacher *models.User, invited []uuid.UUID, sessions []*models.Session) {
	if len(invited) == 0 {
		return
	}

	connected, err := s.connectedSet(ctx, teacher.ID)
	if err != nil {
		s.logger.Warn("skipping invitations", zap.String(logger.FieldUserID, teacher.ID.String()), zap.Error(err))
		return
	}

	evt := models.SessionInvitationEvent{
		Teacher:    teacher.Summary(),
		Skill:      sessions[0].Skill,
		Price:      sessions[0].Price,
		Slots:      make([]models.TimeSlot, len(sessions)),
		SessionIDs: make([]uuid.UUID, len(sessions)),
	}
	for i, sess := range sessions {
		evt.Slots[i] = sess.TimeSlot
		evt.SessionIDs[i] = sess.ID
	}

	seen := make(map[uuid.UUID]bool, len(invited))
	for _, id := range invited {
		if seen[id] || !connected[id] {
			continue
		}
		seen[id] = true
		s.notifier.EmitToUser(id, evt)
	}
}

func (s *SessionService) BookSession(ctx context.Context, sessionID, studentID uuid.UUID) (*models.Session, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionAvailable {
		return nil, &InvalidStateError{Message: "Session is not available for booking"}
	}
	if sess.TeacherID == studentID {
		return nil, &SelfBookingError{Message: "You cannot book your own session"}
	}

	booked, err := s.sessions.Book(ctx, sessionID, studentID, RoomID(sessionID, s.now()))
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, &InvalidStateError{Message: "Session is not available for booking"}
		}
		return nil, fmt.Errorf("book session: %w", err)
	}

	s.logger.Info("session booked",
		zap.String(logger.FieldSessionID, sessionID.String()),
		zap.String(logger.FieldUserID, studentID.String()),
	)
	return booked, nil
}

func (s *SessionService) GetAvailableSessions(ctx context.Context, requesterID uuid.UUID, skill string) ([]*models.Session, error) {
	skill = strings.TrimSpace(skill)
	if skill == "" {
		return nil, &ValidationError{Fields: map[string]string{"skill": "Skill is required"}}
	}

	teacherIDs, err := s.graph.ConnectedUserIDs(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}
	if len(teacherIDs) == 0 {
		return []*models.Session{}, nil
	}

	sessions, err := s.sessions.ListAvailable(ctx, skill, teacherIDs, s.today())
	if err != nil {
		return nil, fmt.Errorf("list available sessions: %w", err)
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	return sessions, nil
}

func (s *SessionService) JoinVideoCall(ctx context.Context, sessionID, requesterID uuid.UUID) (*models.JoinResult, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	role := sess.RoleOf(requesterID)
	invited := false
	if role == "" && sess.StudentID == nil {
		ok, err := s.graph.AreConnected(ctx, sess.TeacherID, requesterID)
		if err != nil {
			return nil, fmt.Errorf("check connection: %w", err)
		}
		invited = ok
	}
	if role == "" && !invited {
		return nil, &ForbiddenError{Message: "You are not authorized to join this session"}
	}

	switch {
	case sess.Status == models.SessionCompleted:
		return nil, &InvalidStateError{Message: "Session has already ended"}
	case sess.Status == models.SessionCancelled:
		return nil, &InvalidStateError{Message: "Session has been cancelled"}
	case sess.Status == models.SessionAvailable && role == models.RoleTeacher:
		return nil, &InvalidStateError{Message: "Session has not been booked yet"}
	}

	now := s.now()
	if err := checkJoinWindow(sess.TimeSlot, s.loc, now); err != nil {
		return nil, err
	}

	room := RoomID(sessionID, now)
	if invited {
		// Joining first books the session for the invited user.
		if _, err := s.sessions.Book(ctx, sessionID, requesterID, room); err != nil {
			if !errors.Is(err, repository.ErrStateConflict) {
				return nil, fmt.Errorf("book session on join: %w", err)
			}
			current, err := s.getSession(ctx, sessionID)
			if err != nil {
				return nil, err
			}
			if current.RoleOf(requesterID) != models.RoleStudent {
				return nil, &ForbiddenError{Message: "You are not authorized to join this session"}
			}
		}
		role = models.RoleStudent
	}

	joined, err := s.sessions.Join(ctx, sessionID, role, now, room)
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, &InvalidStateError{Message: "Session is no longer joinable"}
		}
		return nil, fmt.Errorf("join session: %w", err)
	}

	s.logger.Info("session joined",
		zap.String(logger.FieldSessionID, sessionID.String()),
		zap.String(logger.FieldUserID, requesterID.String()),
		zap.String("role", role),
	)

	if role == models.RoleTeacher {
		s.announceGoingLive(ctx, joined)
	}

	return &models.JoinResult{
		Session:       joined,
		VideoCallRoom: *joined.VideoCallRoom,
		UserRole:      role,
	}, nil
}

func (s *SessionService) announceGoingLive(ctx context.Context, sess *models.Session) {
	summary := models.UserSummary{ID: sess.TeacherID}
	if teacher, err := s.users.GetByID(ctx, sess.TeacherID); err == nil {
		summary = teacher.Summary()
	} else {
		s.logger.Warn("going live without teacher profile", zap.String(logger.FieldUserID, sess.TeacherID.String()), zap.Error(err))
	}

	ids, err := s.graph.ConnectedUserIDs(ctx, sess.TeacherID)
	if err != nil {
		s.logger.Warn("skipping going-live broadcast", zap.String(logger.FieldSessionID, sess.ID.String()), zap.Error(err))
		return
	}

	evt := models.SessionGoingLiveEvent{SessionID: sess.ID, Skill: sess.Skill, Teacher: summary}
	for _, id := range ids {
		if id == sess.TeacherID {
			continue
		}
		s.notifier.EmitToUser(id, evt)
	}
}

func (s *SessionService) EndSession(ctx context.Context, sessionID, requesterID uuid.UUID, input *models.FeedbackInput) (*models.Session, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.RoleOf(requesterID) == "" {
		return nil, &ForbiddenError{Message: "Only session participants can end this session"}
	}

	var feedback *models.Feedback
	if input != nil {
		if input.Rating < 1 || input.Rating > 5 {
			return nil, &ValidationError{Fields: map[string]string{"rating": "Rating must be between 1 and 5"}}
		}
		feedback = &models.Feedback{Rating: input.Rating, Comment: strings.TrimSpace(input.Comment), GivenBy: requesterID}
	}

	switch sess.Status {
	case models.SessionCompleted, models.SessionCancelled:
		return nil, &InvalidStateError{Message: "Session has already ended"}
	case models.SessionAvailable:
		return nil, &InvalidStateError{Message: "Session has not been booked yet"}
	}

	ended, err := s.sessions.Complete(ctx, sessionID, feedback)
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, &InvalidStateError{Message: "Session has already ended"}
		}
		return nil, fmt.Errorf("complete session: %w", err)
	}

	s.recordCompletion(ctx, ended)
	return ended, nil
}

// recordCompletion bumps the participants' counters. Failures are logged
// only; the session itself is already completed.
func (s *SessionService) recordCompletion(ctx context.Context, sess *models.Session) {
	participants := []uuid.UUID{sess.TeacherID}
	if sess.StudentID != nil {
		participants = append(participants, *sess.StudentID)
	}
	for _, id := range participants {
		if err := s.users.IncrementSessionsCompleted(ctx, id); err != nil {
			s.logger.Error("failed to increment sessions completed",
				zap.String(logger.FieldUserID, id.String()),
				zap.String(logger.FieldSessionID, sess.ID.String()),
				zap.Error(err),
			)
		}
	}
}

// CancelSession lets the teacher withdraw a session that has not finished.
func (s *SessionService) CancelSession(ctx context.Context, sessionID, requesterID uuid.UUID) (*models.Session, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.TeacherID != requesterID {
		return nil, &ForbiddenError{Message: "Only the teacher can cancel this session"}
	}
	if sess.Status.Terminal() {
		return nil, &InvalidStateError{Message: "Session has already ended"}
	}

	cancelled, err := s.sessions.Cancel(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, &InvalidStateError{Message: "Session has already ended"}
		}
		return nil, fmt.Errorf("cancel session: %w", err)
	}
	return cancelled, nil
}

func (s *SessionService) GetConnectedTeachersWithAvailability(ctx context.Context, requesterID uuid.UUID, skill string) ([]models.TeacherAvailability, error) {
	skill = strings.TrimSpace(skill)
	if skill == "" {
		return nil, &ValidationError{Fields: map[string]string{"skill": "Skill is required"}}
	}

	ids, err := s.graph.ConnectedUserIDs(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}
	connections, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load connected users: %w", err)
	}

	var qualified []*models.User
	var qualifiedIDs []uuid.UUID
	for _, u := range connections {
		if u.TeachesProficiently(skill) {
			qualified = append(qualified, u)
			qualifiedIDs = append(qualifiedIDs, u.ID)
		}
	}

	counts, err := s.sessions.CountAvailableByTeacher(ctx, skill, qualifiedIDs, s.today())
	if err != nil {
		return nil, fmt.Errorf("count available sessions: %w", err)
	}

	result := []models.TeacherAvailability{}
	for _, u := range qualified {
		if counts[u.ID] == 0 {
			continue
		}
		sk, _ := u.FindSkill(skill)
		result = append(result, models.TeacherAvailability{
			Teacher:        u.Summary(),
			Proficiency:    sk.Proficiency,
			AvailableSlots: counts[u.ID],
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Teacher.SessionsCompleted > result[j].Teacher.SessionsCompleted
	})
	return result, nil
}

func (s *SessionService) ListMySessions(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	sessions, err := s.sessions.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	return sessions, nil
}

func (s *SessionService) getSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Session not found"}
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

func (s *SessionService) connectedSet(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	ids, err := s.graph.ConnectedUserIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// today is the current date in the session time zone.
func (s *SessionService) today() string {
	return s.now().In(s.loc).Format(slotDateLayout)
}
