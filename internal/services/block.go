package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/campussafe/internal/apperr"
	"github.com/HammerMeetNail/campussafe/internal/metrics"
	"github.com/HammerMeetNail/campussafe/internal/models"
)

var (
	ErrCannotBlockSelf = apperr.New(apperr.KindInvalidInput, "cannot block yourself")
	ErrBlockExists     = apperr.New(apperr.KindAlreadyExists, "user is already blocked")
	ErrBlockNotFound   = apperr.New(apperr.KindNotFound, "block not found")
)

const foreignKeyViolation = "23503"

type BlockService struct {
	db DB
}

func NewBlockService(db DB) *BlockService {
	return &BlockService{db: db}
}

// Block records the block and, in the same transaction, closes whatever
// links the pair: a pending request becomes cancelled and a friendship
// becomes removed, which also ends location visibility both ways.
func (s *BlockService) Block(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	if blockerID == blockedID {
		return ErrCannotBlockSelf
	}

	var closed []models.FriendRequestStatus
	err := withTx(ctx, s.db, func(tx Tx) error {
		result, err := tx.Exec(ctx,
			`INSERT INTO user_blocks (blocker_id, blocked_id)
			 VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			blockerID, blockedID,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
				return ErrUserNotFound
			}
			return apperr.Transient("recording block", err)
		}
		if result.RowsAffected() == 0 {
			return ErrBlockExists
		}

		closed, err = closeRequestsBetween(ctx, tx, blockerID, blockedID)
		return err
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindUnknown {
			return err
		}
		return apperr.Transient("blocking user", err)
	}

	for _, status := range closed {
		metrics.FriendRequestTransitions.WithLabelValues(string(status)).Inc()
	}
	return nil
}

func closeRequestsBetween(ctx context.Context, q Querier, a, b uuid.UUID) ([]models.FriendRequestStatus, error) {
	rows, err := q.Query(ctx,
		`UPDATE friend_requests
		 SET status = CASE status WHEN 'pending' THEN 'cancelled' ELSE 'removed' END,
		     responded_at = COALESCE(responded_at, NOW()),
		     updated_at = NOW()
		 WHERE ((requester_id = $1 AND addressee_id = $2)
		     OR (requester_id = $2 AND addressee_id = $1))
		   AND status IN ('pending', 'accepted')
		 RETURNING status`,
		a, b,
	)
	if err != nil {
		return nil, apperr.Transient("closing friend requests", err)
	}
	defer rows.Close()

	var closed []models.FriendRequestStatus
	for rows.Next() {
		var status models.FriendRequestStatus
		if err := rows.Scan(&status); err != nil {
			return nil, fmt.Errorf("scanning closed request: %w", err)
		}
		closed = append(closed, status)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("closing friend requests", err)
	}
	return closed, nil
}

// Unblock lifts the block only. Friendships closed by the block stay
// closed; either side can send a new request afterwards.
func (s *BlockService) Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		"DELETE FROM user_blocks WHERE blocker_id = $1 AND blocked_id = $2",
		blockerID, blockedID,
	)
	if err != nil {
		return apperr.Transient("removing block", err)
	}
	if result.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

// IsBlocked is symmetric: it reports a block in either direction.
func (s *BlockService) IsBlocked(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	var blocked bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM user_blocks
			WHERE (blocker_id = $1 AND blocked_id = $2)
			   OR (blocker_id = $2 AND blocked_id = $1)
		)`,
		userID, otherUserID,
	).Scan(&blocked)
	if err != nil {
		return false, apperr.Transient("checking block status", err)
	}
	return blocked, nil
}

// ListBlocked returns only the caller's own blocks, newest first.
func (s *BlockService) ListBlocked(ctx context.Context, blockerID uuid.UUID) ([]models.BlockedUser, error) {
	rows, err := s.db.Query(ctx,
		`SELECT u.id, u.username, u.avatar_url, ub.created_at
		 FROM user_blocks ub
		 JOIN users u ON ub.blocked_id = u.id
		 WHERE ub.blocker_id = $1
		 ORDER BY ub.created_at DESC`,
		blockerID,
	)
	if err != nil {
		return nil, apperr.Transient("listing blocked users", err)
	}
	defer rows.Close()

	blocked := []models.BlockedUser{}
	for rows.Next() {
		var u models.BlockedUser
		if err := rows.Scan(&u.ID, &u.Username, &u.AvatarURL, &u.BlockedAt); err != nil {
			return nil, fmt.Errorf("scanning blocked user: %w", err)
		}
		blocked = append(blocked, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("listing blocked users", err)
	}
	return blocked, nil
}
