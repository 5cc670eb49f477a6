package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FriendLocation is a user's sharing flag and last known position.
type FriendLocation struct {
	UserID            uuid.UUID  `json:"user_id"`
	IsSharing         bool       `json:"is_sharing"`
	Latitude          *float64   `json:"latitude,omitempty"`
	Longitude         *float64   `json:"longitude,omitempty"`
	LocationTimestamp *time.Time `json:"location_timestamp,omitempty"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// HasFix reports whether both coordinates are present.
func (l *FriendLocation) HasFix() bool {
	return l.Latitude != nil && l.Longitude != nil
}

type LocationVisibility string

const (
	LocationVisible    LocationVisibility = "visible"
	LocationNotVisible LocationVisibility = "not_visible"
	LocationNoData     LocationVisibility = "no_data"
)

// LocationView is what a viewer is allowed to see of an owner's location.
// Coordinates are only set when Visibility is LocationVisible.
type LocationView struct {
	UserID     uuid.UUID          `json:"user_id"`
	Username   string             `json:"username,omitempty"`
	Visibility LocationVisibility `json:"visibility"`
	Latitude   *float64           `json:"latitude,omitempty"`
	Longitude  *float64           `json:"longitude,omitempty"`
	Timestamp  *time.Time         `json:"location_timestamp,omitempty"`
	LastSeen   string             `json:"last_seen,omitempty"`
}

// LocationUpdate is the realtime message published for every accepted fix.
type LocationUpdate struct {
	UserID    uuid.UUID `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"location_timestamp"`
}

// Staleness renders the age of a location fix for display.
func Staleness(now, ts time.Time) string {
	age := now.Sub(ts)
	if age < time.Minute {
		return "Just now"
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age/time.Minute))
	}
	return fmt.Sprintf("%dh ago", int(age/time.Hour))
}
