package models

import (
	"time"

	"github.com/google/uuid"
)

// FriendInvite is a shareable link that becomes an accepted friendship when
// another user redeems it. The token itself is never stored.
type FriendInvite struct {
	ID         uuid.UUID  `json:"id"`
	InviterID  uuid.UUID  `json:"inviter_id"`
	ExpiresAt  time.Time  `json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	AcceptedBy *uuid.UUID `json:"accepted_by,omitempty"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
