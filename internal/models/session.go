package models

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionAvailable SessionStatus = "available"
	SessionBooked    SessionStatus = "booked"
	SessionOngoing   SessionStatus = "ongoing"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

type TimeSlot struct {
	Date      string     `json:"date"`       // YYYY-MM-DD
	StartTime string     `json:"start_time"` // HH:MM
	EndTime   string     `json:"end_time"`   // HH:MM
	IsBooked  bool       `json:"is_booked"`
	BookedBy  *uuid.UUID `json:"booked_by,omitempty"`
}

type JoinedAt struct {
	Teacher *time.Time `json:"teacher,omitempty"`
	Student *time.Time `json:"student,omitempty"`
}

type Feedback struct {
	Rating  int       `json:"rating"`
	Comment string    `json:"comment,omitempty"`
	GivenBy uuid.UUID `json:"given_by"`
}

type Session struct {
	ID            uuid.UUID     `json:"id"`
	TeacherID     uuid.UUID     `json:"teacher_id"`
	StudentID     *uuid.UUID    `json:"student_id"`
	Skill         string        `json:"skill"`
	Status        SessionStatus `json:"status"`
	TimeSlot      TimeSlot      `json:"time_slot"`
	Duration      int           `json:"duration"`
	Price         int           `json:"price"`
	VideoCallRoom *string       `json:"video_call_room,omitempty"`
	JoinedAt      JoinedAt      `json:"joined_at"`
	Feedback      *Feedback     `json:"feedback,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// RoleOf returns the participant role of userID, or "" for outsiders.
func (s *Session) RoleOf(userID uuid.UUID) string {
	switch {
	case s.TeacherID == userID:
		return RoleTeacher
	case s.StudentID != nil && *s.StudentID == userID:
		return RoleStudent
	default:
		return ""
	}
}

type SlotInput struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
}

type CreateSlotsRequest struct {
	Skill          string      `json:"skill" validate:"required,max=100"`
	Slots          []SlotInput `json:"slots" validate:"required,min=1,max=50,dive"`
	Price          int         `json:"price" validate:"gte=0"`
	InvitedUserIDs []uuid.UUID `json:"invited_user_ids"`
}

type FeedbackInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

type EndSessionRequest struct {
	Feedback *FeedbackInput `json:"feedback" validate:"omitempty"`
}

type JoinResult struct {
	Session       *Session `json:"session"`
	VideoCallRoom string   `json:"video_call_room"`
	UserRole      string   `json:"user_role"`
}

type TeacherAvailability struct {
	Teacher        UserSummary `json:"teacher"`
	Proficiency    string      `json:"proficiency"`
	AvailableSlots int         `json:"available_slots"`
}
