package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campussafe/internal/apperr"
	"github.com/HammerMeetNail/campussafe/internal/models"
)

var (
	ErrUserNotFound          = apperr.New(apperr.KindNotFound, "user not found")
	ErrEmailAlreadyExists    = apperr.New(apperr.KindAlreadyExists, "email already exists")
	ErrUsernameAlreadyExists = apperr.New(apperr.KindAlreadyExists, "username already exists")
)

const userColumns = "id, email, password_hash, username, avatar_url, searchable, created_at, updated_at"

type UserService struct {
	db DB
}

func NewUserService(db DB) *UserService {
	return &UserService{db: db}
}

func scanUser(row Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Username, &user.AvatarURL, &user.Searchable, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

func (s *UserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", params.Email).Scan(&exists)
	if err != nil {
		return nil, apperr.Transient("checking email existence", err)
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	err = s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))", params.Username).Scan(&exists)
	if err != nil {
		return nil, apperr.Transient("checking username existence", err)
	}
	if exists {
		return nil, ErrUsernameAlreadyExists
	}

	user, err := scanUser(s.db.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, username, searchable)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+userColumns,
		params.Email, params.PasswordHash, params.Username, params.Searchable,
	))
	if err != nil {
		return nil, apperr.Transient("creating user", err)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.Transient("getting user by id", err)
	}
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.Transient("getting user by email", err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of params and returns the
// updated user.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error) {
	setClauses := []string{}
	args := []any{}
	idx := 1

	if params.Username != nil {
		var taken bool
		err := s.db.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1) AND id != $2)",
			*params.Username, userID,
		).Scan(&taken)
		if err != nil {
			return nil, apperr.Transient("checking username existence", err)
		}
		if taken {
			return nil, ErrUsernameAlreadyExists
		}
		setClauses = append(setClauses, fmt.Sprintf("username = $%d", idx))
		args = append(args, *params.Username)
		idx++
	}
	if params.AvatarURL != nil {
		setClauses = append(setClauses, fmt.Sprintf("avatar_url = NULLIF($%d, '')", idx))
		args = append(args, *params.AvatarURL)
		idx++
	}
	if params.Searchable != nil {
		setClauses = append(setClauses, fmt.Sprintf("searchable = $%d", idx))
		args = append(args, *params.Searchable)
		idx++
	}

	if len(setClauses) == 0 {
		return s.GetByID(ctx, userID)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, userID)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s", strings.Join(setClauses, ", "), idx, userColumns)

	user, err := scanUser(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.Transient("updating profile", err)
	}
	return user, nil
}

func (s *UserService) UpdatePassword(ctx context.Context, userID uuid.UUID, newPasswordHash string) error {
	result, err := s.db.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		newPasswordHash, userID,
	)
	if err != nil {
		return apperr.Transient("updating password", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
