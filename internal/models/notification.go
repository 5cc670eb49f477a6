package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationFriendRequestReceived NotificationType = "friend_request_received"
	NotificationFriendRequestAccepted NotificationType = "friend_request_accepted"
)

type Notification struct {
	ID              uuid.UUID        `json:"id"`
	UserID          uuid.UUID        `json:"user_id"`
	Type            NotificationType `json:"type"`
	ActorUserID     *uuid.UUID       `json:"actor_user_id,omitempty"`
	ActorUsername   *string          `json:"actor_username,omitempty"`
	FriendRequestID *uuid.UUID       `json:"friend_request_id,omitempty"`
	ReadAt          *time.Time       `json:"read_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

type DeviceToken struct {
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
}
