package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Username     string    `json:"username"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	Searchable   bool      `json:"searchable"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	Username     string
	Searchable   bool
}

// UpdateProfileParams carries a partial profile update; nil fields are left
// unchanged.
type UpdateProfileParams struct {
	Username   *string
	AvatarURL  *string
	Searchable *bool
}

// UserSearchResult is the projection returned by user search. It is never
// persisted.
type UserSearchResult struct {
	ID        uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
}
