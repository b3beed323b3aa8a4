package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"skillswap-backend/internal/models"
	"skillswap-backend/internal/repository"
)

// memSessions holds its lock across each check and write so conditional
// updates behave like the single-statement SQL versions.
type memSessions struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Session
}

func newMemSessions() *memSessions {
	return &memSessions{byID: make(map[uuid.UUID]*models.Session)}
}

func copySession(s *models.Session) *models.Session {
	c := *s
	return &c
}

func (m *memSessions) CreateMany(ctx context.Context, sessions []*models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sessions {
		s.ID = uuid.New()
		s.CreatedAt = time.Now()
		s.UpdatedAt = s.CreatedAt
		m.byID[s.ID] = copySession(s)
	}
	return nil
}

func (m *memSessions) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copySession(s), nil
}

func (m *memSessions) update(id uuid.UUID, allowed []models.SessionStatus, apply func(s *models.Session)) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrStateConflict
	}
	match := false
	for _, st := range allowed {
		if s.Status == st {
			match = true
		}
	}
	if !match {
		return nil, repository.ErrStateConflict
	}
	apply(s)
	s.UpdatedAt = time.Now()
	return copySession(s), nil
}

func assignRoom(s *models.Session, room string) {
	if s.VideoCallRoom == nil {
		r := room
		s.VideoCallRoom = &r
	}
}

func (m *memSessions) Book(ctx context.Context, id, studentID uuid.UUID, room string) (*models.Session, error) {
	return m.update(id, []models.SessionStatus{models.SessionAvailable}, func(s *models.Session) {
		student := studentID
		s.StudentID = &student
		s.TimeSlot.BookedBy = &student
		s.TimeSlot.IsBooked = true
		s.Status = models.SessionBooked
		assignRoom(s, room)
	})
}

func (m *memSessions) Join(ctx context.Context, id uuid.UUID, role string, at time.Time, room string) (*models.Session, error) {
	return m.update(id, []models.SessionStatus{models.SessionBooked, models.SessionOngoing}, func(s *models.Session) {
		t := at
		if role == models.RoleTeacher {
			s.JoinedAt.Teacher = &t
		} else {
			s.JoinedAt.Student = &t
		}
		s.Status = models.SessionOngoing
		assignRoom(s, room)
	})
}

func (m *memSessions) Complete(ctx context.Context, id uuid.UUID, feedback *models.Feedback) (*models.Session, error) {
	return m.update(id, []models.SessionStatus{models.SessionBooked, models.SessionOngoing}, func(s *models.Session) {
		s.Status = models.SessionCompleted
		if feedback != nil {
			s.Feedback = feedback
		}
	})
}

func (m *memSessions) Cancel(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return m.update(id, []models.SessionStatus{models.SessionAvailable, models.SessionBooked, models.SessionOngoing}, func(s *models.Session) {
		s.Status = models.SessionCancelled
	})
}

func (m *memSessions) available(skill string, teacherIDs []uuid.UUID, from string) []*models.Session {
	teachers := make(map[uuid.UUID]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		teachers[id] = true
	}
	var out []*models.Session
	for _, s := range m.byID {
		if s.Status == models.SessionAvailable && s.Skill == skill && teachers[s.TeacherID] && s.TimeSlot.Date >= from {
			out = append(out, copySession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimeSlot.Date != out[j].TimeSlot.Date {
			return out[i].TimeSlot.Date < out[j].TimeSlot.Date
		}
		return out[i].TimeSlot.StartTime < out[j].TimeSlot.StartTime
	})
	return out
}

func (m *memSessions) ListAvailable(ctx context.Context, skill string, teacherIDs []uuid.UUID, from string) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available(skill, teacherIDs, from), nil
}

func (m *memSessions) CountAvailableByTeacher(ctx context.Context, skill string, teacherIDs []uuid.UUID, from string) (map[uuid.UUID]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[uuid.UUID]int)
	for _, s := range m.available(skill, teacherIDs, from) {
		counts[s.TeacherID]++
	}
	return counts, nil
}

func (m *memSessions) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Session
	for _, s := range m.byID {
		if s.RoleOf(userID) != "" {
			out = append(out, copySession(s))
		}
	}
	return out, nil
}

type memConnections struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*models.ConnectionRequest
}

func newMemConnections() *memConnections {
	return &memConnections{requests: make(map[uuid.UUID]*models.ConnectionRequest)}
}

func samePair(c *models.ConnectionRequest, a, b uuid.UUID) bool {
	return (c.FromUserID == a && c.ToUserID == b) || (c.FromUserID == b && c.ToUserID == a)
}

func isActive(c *models.ConnectionRequest) bool {
	return c.Status == models.ConnectionPending || c.Status == models.ConnectionAccepted
}

// connect records an accepted request between a and b.
func (m *memConnections) connect(a, b uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.requests[id] = &models.ConnectionRequest{ID: id, FromUserID: a, ToUserID: b, Status: models.ConnectionAccepted, CreatedAt: time.Now()}
}

func (m *memConnections) Create(ctx context.Context, from, to uuid.UUID) (*models.ConnectionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.requests {
		if samePair(c, from, to) && isActive(c) {
			return nil, repository.ErrDuplicate
		}
	}
	c := &models.ConnectionRequest{ID: uuid.New(), FromUserID: from, ToUserID: to, Status: models.ConnectionPending, CreatedAt: time.Now()}
	m.requests[c.ID] = c
	cp := *c
	return &cp, nil
}

func (m *memConnections) GetByID(ctx context.Context, id uuid.UUID) (*models.ConnectionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memConnections) ActiveBetween(ctx context.Context, a, b uuid.UUID) (*models.ConnectionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.requests {
		if samePair(c, a, b) && isActive(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memConnections) Respond(ctx context.Context, id uuid.UUID, status models.ConnectionStatus) (*models.ConnectionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.requests[id]
	if !ok || c.Status != models.ConnectionPending {
		return nil, repository.ErrStateConflict
	}
	now := time.Now()
	c.Status = status
	c.RespondedAt = &now
	cp := *c
	return &cp, nil
}

func (m *memConnections) AreConnected(ctx context.Context, a, b uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.requests {
		if samePair(c, a, b) && c.Status == models.ConnectionAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (m *memConnections) ConnectedUserIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, c := range m.requests {
		if c.Status != models.ConnectionAccepted {
			continue
		}
		switch userID {
		case c.FromUserID:
			ids = append(ids, c.ToUserID)
		case c.ToUserID:
			ids = append(ids, c.FromUserID)
		}
	}
	return ids, nil
}

func (m *memConnections) ListPendingFor(ctx context.Context, userID uuid.UUID) ([]*models.PendingRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PendingRequest
	for _, c := range m.requests {
		if c.ToUserID == userID && c.Status == models.ConnectionPending {
			out = append(out, &models.PendingRequest{ConnectionRequest: *c, FromUser: models.UserSummary{ID: c.FromUserID}})
		}
	}
	return out, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[uuid.UUID]*models.User)}
}

func (m *memUsers) add(name string, skills ...models.Skill) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{ID: uuid.New(), FullName: name, Email: name + "@example.com", Skills: skills}
	m.users[u.ID] = u
	return u
}

func (m *memUsers) completed(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].SessionsCompleted
}

func (m *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memUsers) IncrementSessionsCompleted(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.SessionsCompleted++
	}
	return nil
}

func (m *memUsers) FindPeers(ctx context.Context, skill string, exclude uuid.UUID, limit int) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.User
	for _, u := range m.users {
		if u.ID != exclude && u.TeachesProficiently(skill) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionsCompleted > out[j].SessionsCompleted })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type sentEvent struct {
	userID uuid.UUID
	event  models.Event
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (n *recordingNotifier) EmitToUser(userID uuid.UUID, evt models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEvent{userID: userID, event: evt})
}

func (n *recordingNotifier) to(userID uuid.UUID) []models.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Event
	for _, s := range n.sent {
		if s.userID == userID {
			out = append(out, s.event)
		}
	}
	return out
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
