package models

import (
	"time"

	"github.com/google/uuid"
)

type EmergencyContact struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Relationship string    `json:"relationship,omitempty"`
	IsPrimary    bool      `json:"is_primary"`
	CreatedAt    time.Time `json:"created_at"`
}

type ContactParams struct {
	Name         string
	Phone        string
	Relationship string
}
