package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"skillswap-backend/internal/middleware"
	"skillswap-backend/internal/models"
)

type connectionService interface {
	SendRequest(ctx context.Context, fromID, toID uuid.UUID) (*models.ConnectionRequest, error)
	RespondToRequest(ctx context.Context, requestID, userID uuid.UUID, accept bool) (*models.ConnectionRequest, error)
	ListPending(ctx context.Context, userID uuid.UUID) ([]*models.PendingRequest, error)
	ListConnections(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error)
	FindPeers(ctx context.Context, requesterID uuid.UUID, skill string) ([]models.UserSummary, error)
}

// presenceSource reports which users hold a live notification socket.
type presenceSource interface {
	OnlineUserIDs() []uuid.UUID
}

type ConnectionHandler struct {
	connections connectionService
	presence    presenceSource
}

func NewConnectionHandler(connections connectionService, presence presenceSource) *ConnectionHandler {
	return &ConnectionHandler{connections: connections, presence: presence}
}

func (h *ConnectionHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req models.SendConnectionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	created, err := h.connections.SendRequest(r.Context(), middleware.GetUserID(r.Context()), req.ToUserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *ConnectionHandler) Respond(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "request")
	if !ok {
		return
	}

	var req models.RespondConnectionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := h.connections.RespondToRequest(r.Context(), id, middleware.GetUserID(r.Context()), *req.Accept)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *ConnectionHandler) Pending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.connections.ListPending(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": pending})
}

func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	connections, err := h.connections.ListConnections(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"connections": connections})
}

func (h *ConnectionHandler) Peers(w http.ResponseWriter, r *http.Request) {
	peers, err := h.connections.FindPeers(r.Context(), middleware.GetUserID(r.Context()), r.URL.Query().Get("skill"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"peers": peers})
}

func (h *ConnectionHandler) Online(w http.ResponseWriter, r *http.Request) {
	ids := []uuid.UUID{}
	if h.presence != nil {
		ids = append(ids, h.presence.OnlineUserIDs()...)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"user_ids": ids})
}
