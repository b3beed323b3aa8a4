package models

import (
	"time"

	"github.com/google/uuid"
)

type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionDeclined ConnectionStatus = "declined"
)

type ConnectionRequest struct {
	ID          uuid.UUID        `json:"id"`
	FromUserID  uuid.UUID        `json:"from_user_id"`
	ToUserID    uuid.UUID        `json:"to_user_id"`
	Status      ConnectionStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	RespondedAt *time.Time       `json:"responded_at,omitempty"`
}

type SendConnectionRequest struct {
	ToUserID uuid.UUID `json:"to_user_id" validate:"required"`
}

type RespondConnectionRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

type PendingRequest struct {
	ConnectionRequest
	FromUser UserSummary `json:"from_user"`
}
