package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/campussafe/internal/apperr"
	"github.com/HammerMeetNail/campussafe/internal/logging"
	"github.com/HammerMeetNail/campussafe/internal/metrics"
	"github.com/HammerMeetNail/campussafe/internal/models"
)

var (
	ErrInviteNotFound   = apperr.New(apperr.KindNotFound, "invite not found or expired")
	ErrTooManyInvites   = apperr.New(apperr.KindInvalidState, "too many open invites, revoke one first")
	ErrInvalidInviteTTL = apperr.New(apperr.KindInvalidInput, "expires_in_days must be between 1 and 30")
	ErrOwnInvite        = apperr.New(apperr.KindInvalidInput, "cannot accept your own invite")
)

const (
	DefaultInviteDays = 7
	maxInviteDays     = 30
	maxOpenInvites    = 10
)

// FriendInviteService hands out single-use links that turn straight into an
// accepted friendship when redeemed. Only the SHA-256 of a token is stored.
type FriendInviteService struct {
	db       DB
	notifier FriendNotifier
}

func NewFriendInviteService(db DB) *FriendInviteService {
	return &FriendInviteService{db: db}
}

func (s *FriendInviteService) SetNotifier(notifier FriendNotifier) {
	s.notifier = notifier
}

func (s *FriendInviteService) CreateInvite(ctx context.Context, inviterID uuid.UUID, expiresInDays int) (*models.FriendInvite, string, error) {
	if expiresInDays == 0 {
		expiresInDays = DefaultInviteDays
	}
	if expiresInDays < 1 || expiresInDays > maxInviteDays {
		return nil, "", ErrInvalidInviteTTL
	}

	var open int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM friend_invites
		 WHERE inviter_id = $1
		   AND revoked_at IS NULL
		   AND accepted_at IS NULL
		   AND expires_at > NOW()`,
		inviterID,
	).Scan(&open)
	if err != nil {
		return nil, "", apperr.Transient("counting open invites", err)
	}
	if open >= maxOpenInvites {
		return nil, "", ErrTooManyInvites
	}

	token, err := generateInviteToken()
	if err != nil {
		return nil, "", err
	}
	expiresAt := time.Now().Add(time.Duration(expiresInDays) * 24 * time.Hour)

	invite := &models.FriendInvite{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO friend_invites (inviter_id, token_hash, expires_at)
		 VALUES ($1, $2, $3)
		 RETURNING id, inviter_id, expires_at, revoked_at, accepted_by, accepted_at, created_at`,
		inviterID, hashInviteToken(token), expiresAt,
	).Scan(&invite.ID, &invite.InviterID, &invite.ExpiresAt, &invite.RevokedAt, &invite.AcceptedBy, &invite.AcceptedAt, &invite.CreatedAt)
	if err != nil {
		return nil, "", apperr.Transient("creating invite", err)
	}

	return invite, token, nil
}

// ListInvites returns the inviter's invites that can still be redeemed.
func (s *FriendInviteService) ListInvites(ctx context.Context, inviterID uuid.UUID) ([]models.FriendInvite, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, inviter_id, expires_at, revoked_at, accepted_by, accepted_at, created_at
		 FROM friend_invites
		 WHERE inviter_id = $1
		   AND revoked_at IS NULL
		   AND accepted_at IS NULL
		   AND expires_at > NOW()
		 ORDER BY created_at DESC`,
		inviterID,
	)
	if err != nil {
		return nil, apperr.Transient("listing invites", err)
	}
	defer rows.Close()

	invites := []models.FriendInvite{}
	for rows.Next() {
		var invite models.FriendInvite
		if err := rows.Scan(&invite.ID, &invite.InviterID, &invite.ExpiresAt, &invite.RevokedAt, &invite.AcceptedBy, &invite.AcceptedAt, &invite.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning invite: %w", err)
		}
		invites = append(invites, invite)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("listing invites", err)
	}
	return invites, nil
}

func (s *FriendInviteService) RevokeInvite(ctx context.Context, inviterID, inviteID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`UPDATE friend_invites
		 SET revoked_at = NOW()
		 WHERE id = $1 AND inviter_id = $2 AND revoked_at IS NULL AND accepted_at IS NULL`,
		inviteID, inviterID,
	)
	if err != nil {
		return apperr.Transient("revoking invite", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInviteNotFound
	}
	return nil
}

// AcceptInvite redeems a token. The invite row is locked so a token can only
// ever produce one friendship, and the same block and duplicate rules as a
// regular request apply.
func (s *FriendInviteService) AcceptInvite(ctx context.Context, recipientID uuid.UUID, token string) (*models.FriendRequest, *models.UserSearchResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, apperr.Transient("starting invite transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	var inviteID uuid.UUID
	inviter := &models.UserSearchResult{}
	err = tx.QueryRow(ctx,
		`SELECT fi.id, u.id, u.username, u.avatar_url
		 FROM friend_invites fi
		 JOIN users u ON fi.inviter_id = u.id
		 WHERE fi.token_hash = $1
		   AND fi.revoked_at IS NULL
		   AND fi.accepted_at IS NULL
		   AND fi.expires_at > NOW()
		 FOR UPDATE OF fi`,
		hashInviteToken(token),
	).Scan(&inviteID, &inviter.ID, &inviter.Username, &inviter.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, nil, apperr.Transient("loading invite", err)
	}
	if inviter.ID == recipientID {
		return nil, nil, ErrOwnInvite
	}

	var blocked bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM user_blocks
			WHERE (blocker_id = $1 AND blocked_id = $2)
			   OR (blocker_id = $2 AND blocked_id = $1)
		)`,
		inviter.ID, recipientID,
	).Scan(&blocked)
	if err != nil {
		return nil, nil, apperr.Transient("checking block status", err)
	}
	if blocked {
		return nil, nil, ErrUserBlocked
	}

	var activeStatus models.FriendRequestStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM friend_requests
		 WHERE ((requester_id = $1 AND addressee_id = $2)
		     OR (requester_id = $2 AND addressee_id = $1))
		   AND status IN ('pending', 'accepted')
		 LIMIT 1`,
		inviter.ID, recipientID,
	).Scan(&activeStatus)
	switch {
	case err == nil:
		if activeStatus == models.FriendRequestAccepted {
			return nil, nil, ErrAlreadyFriends
		}
		return nil, nil, ErrRequestAlreadyPending
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, nil, apperr.Transient("checking existing requests", err)
	}

	// The inviter asked, the recipient answered by redeeming the link.
	request := &models.FriendRequest{}
	err = tx.QueryRow(ctx,
		`INSERT INTO friend_requests (requester_id, addressee_id, status, responded_at)
		 VALUES ($1, $2, 'accepted', NOW())
		 RETURNING id, requester_id, addressee_id, status, created_at, responded_at`,
		inviter.ID, recipientID,
	).Scan(&request.ID, &request.RequesterID, &request.AddresseeID, &request.Status, &request.CreatedAt, &request.RespondedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, nil, ErrRequestAlreadyPending
		}
		return nil, nil, apperr.Transient("creating friendship from invite", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE friend_invites
		 SET accepted_by = $1, accepted_at = NOW()
		 WHERE id = $2`,
		recipientID, inviteID,
	)
	if err != nil {
		return nil, nil, apperr.Transient("marking invite accepted", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, apperr.Transient("committing invite", err)
	}
	committed = true

	metrics.FriendRequestTransitions.WithLabelValues(string(models.FriendRequestAccepted)).Inc()
	if s.notifier != nil {
		if err := s.notifier.NotifyFriendRequestAccepted(ctx, inviter.ID, recipientID, request.ID); err != nil {
			logging.Warn("Failed to notify invite accepted", map[string]interface{}{
				"error":      err.Error(),
				"request_id": request.ID.String(),
			})
		}
	}

	return request, inviter, nil
}

func generateInviteToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating invite token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashInviteToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
