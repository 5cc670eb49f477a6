package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendRequestStatus string

const (
	FriendRequestPending   FriendRequestStatus = "pending"
	FriendRequestAccepted  FriendRequestStatus = "accepted"
	FriendRequestRejected  FriendRequestStatus = "rejected"
	FriendRequestCancelled FriendRequestStatus = "cancelled"
	FriendRequestRemoved   FriendRequestStatus = "removed"
)

// Active reports whether a request in this status blocks a new request
// between the same pair.
func (s FriendRequestStatus) Active() bool {
	return s == FriendRequestPending || s == FriendRequestAccepted
}

// Terminal reports whether no further transition is allowed.
func (s FriendRequestStatus) Terminal() bool {
	switch s {
	case FriendRequestRejected, FriendRequestCancelled, FriendRequestRemoved:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal move.
func (s FriendRequestStatus) CanTransition(to FriendRequestStatus) bool {
	switch s {
	case FriendRequestPending:
		return to == FriendRequestAccepted || to == FriendRequestRejected || to == FriendRequestCancelled
	case FriendRequestAccepted:
		return to == FriendRequestRemoved
	}
	return false
}

type FriendRequest struct {
	ID          uuid.UUID           `json:"id"`
	RequesterID uuid.UUID           `json:"requester_id"`
	AddresseeID uuid.UUID           `json:"addressee_id"`
	Status      FriendRequestStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`
}

// Counterpart returns the other side of the request from userID's view.
func (r *FriendRequest) Counterpart(userID uuid.UUID) uuid.UUID {
	if r.RequesterID == userID {
		return r.AddresseeID
	}
	return r.RequesterID
}

// Involves reports whether userID is either side of the request.
func (r *FriendRequest) Involves(userID uuid.UUID) bool {
	return r.RequesterID == userID || r.AddresseeID == userID
}

// FriendRequestWithUser is an inbox/outbox row with the counterpart's
// profile projection.
type FriendRequestWithUser struct {
	FriendRequest
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Friend is a materialized friendship seen from one side.
type Friend struct {
	RequestID uuid.UUID `json:"request_id"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	Since     time.Time `json:"since"`
}
