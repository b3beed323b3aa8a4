package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"

	"skillswap-backend/internal/middleware"
	"skillswap-backend/internal/models"
)

type sessionService interface {
	CreateTimeSlots(ctx context.Context, teacherID uuid.UUID, req models.CreateSlotsRequest) ([]*models.Session, error)
	BookSession(ctx context.Context, sessionID, studentID uuid.UUID) (*models.Session, error)
	GetAvailableSessions(ctx context.Context, requesterID uuid.UUID, skill string) ([]*models.Session, error)
	JoinVideoCall(ctx context.Context, sessionID, requesterID uuid.UUID) (*models.JoinResult, error)
	EndSession(ctx context.Context, sessionID, requesterID uuid.UUID, input *models.FeedbackInput) (*models.Session, error)
	CancelSession(ctx context.Context, sessionID, requesterID uuid.UUID) (*models.Session, error)
	GetConnectedTeachersWithAvailability(ctx context.Context, requesterID uuid.UUID, skill string) ([]models.TeacherAvailability, error)
	ListMySessions(ctx context.Context, userID uuid.UUID) ([]*models.Session, error)
}

type SessionHandler struct {
	sessions sessionService
}

func NewSessionHandler(sessions sessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) CreateSlots(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSlotsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	created, err := h.sessions.CreateTimeSlots(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"sessions": created})
}

func (h *SessionHandler) Available(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.GetAvailableSessions(r.Context(), middleware.GetUserID(r.Context()), r.URL.Query().Get("skill"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *SessionHandler) Teachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.sessions.GetConnectedTeachersWithAvailability(r.Context(), middleware.GetUserID(r.Context()), r.URL.Query().Get("skill"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"teachers": teachers})
}

func (h *SessionHandler) MySessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.ListMySessions(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *SessionHandler) Book(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "session")
	if !ok {
		return
	}

	sess, err := h.sessions.BookSession(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "session")
	if !ok {
		return
	}

	result, err := h.sessions.JoinVideoCall(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// End accepts an empty body; feedback is optional.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "session")
	if !ok {
		return
	}

	var req models.EndSessionRequest
	if r.ContentLength != 0 {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
			return
		}
		if len(bytes.TrimSpace(body)) > 0 && !decodeBytes(w, r, body, &req) {
			return
		}
	}

	sess, err := h.sessions.EndSession(r.Context(), id, middleware.GetUserID(r.Context()), req.Feedback)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "session")
	if !ok {
		return
	}

	sess, err := h.sessions.CancelSession(r.Context(), id, middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}
