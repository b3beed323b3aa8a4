package models

import "github.com/google/uuid"

const (
	EventSessionInvitation          = "session_invitation"
	EventSessionGoingLive           = "session_going_live"
	EventConnectionRequestCreated   = "connection_request_created"
	EventConnectionRequestResponded = "connection_request_responded"
	EventOnlineUsers                = "online_users"
	EventQuizReady                  = "quiz_ready"
	EventQuizFailed                 = "quiz_failed"
)

// Event is implemented only by the payload types below. The unexported
// method keeps the set closed.
type Event interface {
	EventName() string
	event()
}

type SessionInvitationEvent struct {
	Teacher    UserSummary `json:"teacher"`
	Skill      string      `json:"skill"`
	Price      int         `json:"price"`
	Slots      []TimeSlot  `json:"slots"`
	SessionIDs []uuid.UUID `json:"session_ids"`
}

type SessionGoingLiveEvent struct {
	SessionID uuid.UUID   `json:"session_id"`
	Skill     string      `json:"skill"`
	Teacher   UserSummary `json:"teacher"`
}

type ConnectionRequestCreatedEvent struct {
	Request  ConnectionRequest `json:"request"`
	FromUser UserSummary       `json:"from_user"`
}

type ConnectionRequestRespondedEvent struct {
	Request  ConnectionRequest `json:"request"`
	ToUser   UserSummary       `json:"to_user"`
	Accepted bool              `json:"accepted"`
}

type OnlineUsersEvent struct {
	UserIDs []uuid.UUID `json:"user_ids"`
}

type QuizReadyEvent struct {
	QuizID uuid.UUID `json:"quiz_id"`
	JobID  uuid.UUID `json:"job_id"`
	Skill  string    `json:"skill"`
}

type QuizFailedEvent struct {
	QuizID  uuid.UUID `json:"quiz_id"`
	JobID   uuid.UUID `json:"job_id"`
	Message string    `json:"message"`
}

func (SessionInvitationEvent) EventName() string          { return EventSessionInvitation }
func (SessionGoingLiveEvent) EventName() string           { return EventSessionGoingLive }
func (ConnectionRequestCreatedEvent) EventName() string   { return EventConnectionRequestCreated }
func (ConnectionRequestRespondedEvent) EventName() string { return EventConnectionRequestResponded }
func (OnlineUsersEvent) EventName() string                { return EventOnlineUsers }
func (QuizReadyEvent) EventName() string                  { return EventQuizReady }
func (QuizFailedEvent) EventName() string                 { return EventQuizFailed }

func (SessionInvitationEvent) event()          {}
func (SessionGoingLiveEvent) event()           {}
func (ConnectionRequestCreatedEvent) event()   {}
func (ConnectionRequestRespondedEvent) event() {}
func (OnlineUsersEvent) event()                {}
func (QuizReadyEvent) event()                  {}
func (QuizFailedEvent) event()                 {}

// WSMessage is the envelope written to sockets and Redis channels.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func NewWSMessage(e Event) WSMessage {
	return WSMessage{Type: e.EventName(), Payload: e}
}
