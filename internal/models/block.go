package models

import (
	"time"

	"github.com/google/uuid"
)

// BlockedUser is one entry in the caller's block list.
type BlockedUser struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	BlockedAt time.Time `json:"blocked_at"`
}
