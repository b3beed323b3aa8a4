package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap-backend/internal/logger"
	"skillswap-backend/internal/models"
	"skillswap-backend/internal/repository"
)

const maxPeerResults = 50

type ConnectionStore interface {
	ConnectionGraph
	Create(ctx context.Context, from, to uuid.UUID) (*models.ConnectionRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ConnectionRequest, error)
	ActiveBetween(ctx context.Context, a, b uuid.UUID) (*models.ConnectionRequest, error)
	Respond(ctx context.Context, id uuid.UUID, status models.ConnectionStatus) (*models.ConnectionRequest, error)
	ListPendingFor(ctx context.Context, userID uuid.UUID) ([]*models.PendingRequest, error)
}

type ConnectionService struct {
	store    ConnectionStore
	users    UserDirectory
	notifier Notifier
	logger   *zap.Logger
}

func NewConnectionService(store ConnectionStore, users UserDirectory, notifier Notifier, log *zap.Logger) *ConnectionService {
	return &ConnectionService{store: store, users: users, notifier: notifier, logger: log}
}

func (s *ConnectionService) SendRequest(ctx context.Context, fromID, toID uuid.UUID) (*models.ConnectionRequest, error) {
	if fromID == toID {
		return nil, &ValidationError{Fields: map[string]string{"to_user_id": "Cannot send connection request to yourself"}}
	}

	sender, err := s.lookupUser(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if _, err := s.lookupUser(ctx, toID); err != nil {
		return nil, err
	}

	existing, err := s.store.ActiveBetween(ctx, fromID, toID)
	switch {
	case err == nil:
		if existing.Status == models.ConnectionAccepted {
			return nil, &ConflictError{Message: "Users are already connected"}
		}
		return nil, &ConflictError{Message: "Connection request already exists"}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("check existing request: %w", err)
	}

	req, err := s.store.Create(ctx, fromID, toID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, &ConflictError{Message: "Connection request already exists"}
		}
		return nil, fmt.Errorf("create connection request: %w", err)
	}

	s.logger.Info("connection request sent",
		zap.String(logger.FieldUserID, fromID.String()),
		zap.String("to_user_id", toID.String()),
	)
	s.notifier.EmitToUser(toID, models.ConnectionRequestCreatedEvent{Request: *req, FromUser: sender.Summary()})
	return req, nil
}

// RespondToRequest answers a pending request exactly once. Only the
// recipient may answer.
func (s *ConnectionService) RespondToRequest(ctx context.Context, requestID, userID uuid.UUID, accept bool) (*models.ConnectionRequest, error) {
	req, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Connection request not found"}
		}
		return nil, fmt.Errorf("load connection request: %w", err)
	}
	if req.ToUserID != userID {
		return nil, &ForbiddenError{Message: "Only the recipient can respond to this request"}
	}
	if req.Status != models.ConnectionPending {
		return nil, &InvalidStateError{Message: "Connection request has already been answered"}
	}

	status := models.ConnectionDeclined
	if accept {
		status = models.ConnectionAccepted
	}

	updated, err := s.store.Respond(ctx, requestID, status)
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return nil, &InvalidStateError{Message: "Connection request has already been answered"}
		}
		return nil, fmt.Errorf("respond to connection request: %w", err)
	}

	responder := models.UserSummary{ID: userID}
	if u, err := s.users.GetByID(ctx, userID); err == nil {
		responder = u.Summary()
	}
	s.notifier.EmitToUser(updated.FromUserID, models.ConnectionRequestRespondedEvent{
		Request:  *updated,
		ToUser:   responder,
		Accepted: accept,
	})
	return updated, nil
}

func (s *ConnectionService) ListPending(ctx context.Context, userID uuid.UUID) ([]*models.PendingRequest, error) {
	pending, err := s.store.ListPendingFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	if pending == nil {
		pending = []*models.PendingRequest{}
	}
	return pending, nil
}

func (s *ConnectionService) ListConnections(ctx context.Context, userID uuid.UUID) ([]models.UserSummary, error) {
	ids, err := s.store.ConnectedUserIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load connected users: %w", err)
	}
	return summaries(users), nil
}

// FindPeers lists users teaching skill at intermediate or advanced level.
func (s *ConnectionService) FindPeers(ctx context.Context, requesterID uuid.UUID, skill string) ([]models.UserSummary, error) {
	skill = strings.TrimSpace(skill)
	if skill == "" {
		return nil, &ValidationError{Fields: map[string]string{"skill": "Skill is required"}}
	}
	users, err := s.users.FindPeers(ctx, skill, requesterID, maxPeerResults)
	if err != nil {
		return nil, fmt.Errorf("find peers: %w", err)
	}
	return summaries(users), nil
}

func (s *ConnectionService) lookupUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "User not found"}
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func summaries(users []*models.User) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out
}
