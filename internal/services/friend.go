package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/campussafe/internal/apperr"
	"github.com/HammerMeetNail/campussafe/internal/logging"
	"github.com/HammerMeetNail/campussafe/internal/metrics"
	"github.com/HammerMeetNail/campussafe/internal/models"
)

var (
	ErrCannotFriendSelf      = apperr.New(apperr.KindInvalidInput, "cannot send friend request to yourself")
	ErrUserBlocked           = apperr.New(apperr.KindAuthorization, "user is blocked")
	ErrAlreadyFriends        = apperr.New(apperr.KindAlreadyExists, "already friends with this user")
	ErrRequestAlreadyPending = apperr.New(apperr.KindAlreadyExists, "a friend request between these users is already pending")
	ErrRequestNotFound       = apperr.New(apperr.KindNotFound, "friend request not found")
	ErrNotAddressee          = apperr.New(apperr.KindAuthorization, "only the addressee can respond to this request")
	ErrNotRequester          = apperr.New(apperr.KindAuthorization, "only the requester can cancel this request")
	ErrNotParticipant        = apperr.New(apperr.KindAuthorization, "you are not part of this friendship")
	ErrRequestNotPending     = apperr.New(apperr.KindInvalidState, "friend request is not pending")
	ErrNotFriends            = apperr.New(apperr.KindInvalidState, "friendship is not active")
)

const (
	minSearchLength = 2
	searchLimit     = 20
	uniqueViolation = "23505"
)

// FriendNotifier receives the side effects of successful friend request
// transitions.
type FriendNotifier interface {
	NotifyFriendRequestReceived(ctx context.Context, recipientID, actorID, requestID uuid.UUID) error
	NotifyFriendRequestAccepted(ctx context.Context, recipientID, actorID, requestID uuid.UUID) error
}

type FriendService struct {
	db       DB
	notifier FriendNotifier
}

func NewFriendService(db DB) *FriendService {
	return &FriendService{db: db}
}

func (s *FriendService) SetNotifier(notifier FriendNotifier) {
	s.notifier = notifier
}

func (s *FriendService) SearchUsers(ctx context.Context, currentUserID uuid.UUID, query string) ([]models.UserSearchResult, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minSearchLength {
		return []models.UserSearchResult{}, nil
	}

	searchPattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	rows, err := s.db.Query(ctx,
		`SELECT id, username, avatar_url FROM users
		 WHERE id != $1
		   AND LOWER(username) LIKE $2
		   AND searchable = true
		   AND NOT EXISTS (
		     SELECT 1 FROM user_blocks
		     WHERE (blocker_id = $1 AND blocked_id = users.id)
		        OR (blocker_id = users.id AND blocked_id = $1)
		   )
		 ORDER BY username
		 LIMIT $3`,
		currentUserID, searchPattern, searchLimit,
	)
	if err != nil {
		return nil, apperr.Transient("searching users", err)
	}
	defer rows.Close()

	results := []models.UserSearchResult{}
	for rows.Next() {
		var user models.UserSearchResult
		if err := rows.Scan(&user.ID, &user.Username, &user.AvatarURL); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		results = append(results, user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("searching users", err)
	}

	return results, nil
}

func (s *FriendService) SendRequest(ctx context.Context, requesterID, addresseeID uuid.UUID) (*models.FriendRequest, error) {
	if requesterID == addresseeID {
		return nil, ErrCannotFriendSelf
	}

	var addresseeExists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
		addresseeID,
	).Scan(&addresseeExists)
	if err != nil {
		return nil, apperr.Transient("checking addressee", err)
	}
	if !addresseeExists {
		return nil, ErrUserNotFound
	}

	var isBlocked bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM user_blocks
			WHERE (blocker_id = $1 AND blocked_id = $2)
			   OR (blocker_id = $2 AND blocked_id = $1)
		)`,
		requesterID, addresseeID,
	).Scan(&isBlocked)
	if err != nil {
		return nil, apperr.Transient("checking block status", err)
	}
	if isBlocked {
		return nil, ErrUserBlocked
	}

	// Rejected, cancelled and removed rows never block a new request.
	var activeStatus models.FriendRequestStatus
	err = s.db.QueryRow(ctx,
		`SELECT status FROM friend_requests
		 WHERE ((requester_id = $1 AND addressee_id = $2)
		     OR (requester_id = $2 AND addressee_id = $1))
		   AND status IN ('pending', 'accepted')
		 LIMIT 1`,
		requesterID, addresseeID,
	).Scan(&activeStatus)
	switch {
	case err == nil:
		if activeStatus == models.FriendRequestAccepted {
			return nil, ErrAlreadyFriends
		}
		return nil, ErrRequestAlreadyPending
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, apperr.Transient("checking existing requests", err)
	}

	request := &models.FriendRequest{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO friend_requests (requester_id, addressee_id, status)
		 VALUES ($1, $2, 'pending')
		 RETURNING id, requester_id, addressee_id, status, created_at, responded_at`,
		requesterID, addresseeID,
	).Scan(&request.ID, &request.RequesterID, &request.AddresseeID, &request.Status, &request.CreatedAt, &request.RespondedAt)
	if err != nil {
		// Lost a race with a concurrent request for the same pair.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrRequestAlreadyPending
		}
		return nil, apperr.Transient("creating friend request", err)
	}

	metrics.FriendRequestTransitions.WithLabelValues(string(models.FriendRequestPending)).Inc()
	if s.notifier != nil {
		if err := s.notifier.NotifyFriendRequestReceived(ctx, addresseeID, requesterID, request.ID); err != nil {
			logging.Warn("Failed to notify friend request received", map[string]interface{}{
				"error":      err.Error(),
				"request_id": request.ID.String(),
			})
		}
	}

	return request, nil
}

func (s *FriendService) AcceptRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error) {
	request, err := s.transition(ctx, requestID, models.FriendRequestPending, models.FriendRequestAccepted, func(r *models.FriendRequest) error {
		if r.AddresseeID != actingUserID {
			return ErrNotAddressee
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyFriendRequestAccepted(ctx, request.RequesterID, actingUserID, request.ID); err != nil {
			logging.Warn("Failed to notify friend request accepted", map[string]interface{}{
				"error":      err.Error(),
				"request_id": request.ID.String(),
			})
		}
	}
	return request, nil
}

func (s *FriendService) RejectRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error) {
	return s.transition(ctx, requestID, models.FriendRequestPending, models.FriendRequestRejected, func(r *models.FriendRequest) error {
		if r.AddresseeID != actingUserID {
			return ErrNotAddressee
		}
		return nil
	})
}

// CancelRequest withdraws a pending request. The row is kept with status
// cancelled.
func (s *FriendService) CancelRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error) {
	return s.transition(ctx, requestID, models.FriendRequestPending, models.FriendRequestCancelled, func(r *models.FriendRequest) error {
		if r.RequesterID != actingUserID {
			return ErrNotRequester
		}
		return nil
	})
}

// RemoveFriend ends an accepted friendship. Either side may remove it; the
// row is kept with status removed and stops materializing as a friendship.
func (s *FriendService) RemoveFriend(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error) {
	return s.transition(ctx, requestID, models.FriendRequestAccepted, models.FriendRequestRemoved, func(r *models.FriendRequest) error {
		if !r.Involves(actingUserID) {
			return ErrNotParticipant
		}
		return nil
	})
}

func (s *FriendService) transition(ctx context.Context, requestID uuid.UUID, from, to models.FriendRequestStatus, authorize func(*models.FriendRequest) error) (*models.FriendRequest, error) {
	request, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := authorize(request); err != nil {
		return nil, err
	}
	if request.Status != from || !from.CanTransition(to) {
		return nil, stateError(from)
	}

	// The status guard makes concurrent transitions of the same row lose
	// instead of overwriting each other.
	err = s.db.QueryRow(ctx,
		`UPDATE friend_requests
		 SET status = $1, responded_at = COALESCE(responded_at, NOW()), updated_at = NOW()
		 WHERE id = $2 AND status = $3
		 RETURNING responded_at`,
		to, requestID, from,
	).Scan(&request.RespondedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, stateError(from)
	}
	if err != nil {
		return nil, apperr.Transient(fmt.Sprintf("updating friend request to %s", to), err)
	}

	request.Status = to
	metrics.FriendRequestTransitions.WithLabelValues(string(to)).Inc()
	return request, nil
}

func stateError(from models.FriendRequestStatus) error {
	if from == models.FriendRequestAccepted {
		return ErrNotFriends
	}
	return ErrRequestNotPending
}

func (s *FriendService) GetRequest(ctx context.Context, requestID uuid.UUID) (*models.FriendRequest, error) {
	request := &models.FriendRequest{}
	err := s.db.QueryRow(ctx,
		`SELECT id, requester_id, addressee_id, status, created_at, responded_at
		 FROM friend_requests WHERE id = $1`,
		requestID,
	).Scan(&request.ID, &request.RequesterID, &request.AddresseeID, &request.Status, &request.CreatedAt, &request.RespondedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, apperr.Transient("getting friend request", err)
	}
	return request, nil
}

// ListFriends materializes the accepted requests involving userID, whichever
// side sent them.
func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	rows, err := s.db.Query(ctx,
		`SELECT fr.id, u.id, u.username, u.avatar_url, COALESCE(fr.responded_at, fr.created_at)
		 FROM friend_requests fr
		 JOIN users u ON u.id = CASE WHEN fr.requester_id = $1 THEN fr.addressee_id ELSE fr.requester_id END
		 WHERE (fr.requester_id = $1 OR fr.addressee_id = $1)
		   AND fr.status = 'accepted'
		 ORDER BY u.username`,
		userID,
	)
	if err != nil {
		return nil, apperr.Transient("listing friends", err)
	}
	defer rows.Close()

	friends := []models.Friend{}
	for rows.Next() {
		var f models.Friend
		if err := rows.Scan(&f.RequestID, &f.UserID, &f.Username, &f.AvatarURL, &f.Since); err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("listing friends", err)
	}
	return friends, nil
}

// ListIncoming returns pending requests addressed to userID, newest first.
func (s *FriendService) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	return s.listRequests(ctx, "listing incoming requests",
		`SELECT fr.id, fr.requester_id, fr.addressee_id, fr.status, fr.created_at, fr.responded_at, u.username, u.avatar_url
		 FROM friend_requests fr
		 JOIN users u ON u.id = fr.requester_id
		 WHERE fr.addressee_id = $1 AND fr.status = 'pending'
		 ORDER BY fr.created_at DESC`,
		userID,
	)
}

// ListOutgoing returns pending requests sent by userID, newest first.
func (s *FriendService) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	return s.listRequests(ctx, "listing outgoing requests",
		`SELECT fr.id, fr.requester_id, fr.addressee_id, fr.status, fr.created_at, fr.responded_at, u.username, u.avatar_url
		 FROM friend_requests fr
		 JOIN users u ON u.id = fr.addressee_id
		 WHERE fr.requester_id = $1 AND fr.status = 'pending'
		 ORDER BY fr.created_at DESC`,
		userID,
	)
}

// ListHistory returns every request involving userID in any status.
func (s *FriendService) ListHistory(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	return s.listRequests(ctx, "listing request history",
		`SELECT fr.id, fr.requester_id, fr.addressee_id, fr.status, fr.created_at, fr.responded_at, u.username, u.avatar_url
		 FROM friend_requests fr
		 JOIN users u ON u.id = CASE WHEN fr.requester_id = $1 THEN fr.addressee_id ELSE fr.requester_id END
		 WHERE fr.requester_id = $1 OR fr.addressee_id = $1
		 ORDER BY fr.created_at DESC`,
		userID,
	)
}

func (s *FriendService) listRequests(ctx context.Context, op, query string, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, apperr.Transient(op, err)
	}
	defer rows.Close()

	requests := []models.FriendRequestWithUser{}
	for rows.Next() {
		var r models.FriendRequestWithUser
		if err := rows.Scan(&r.ID, &r.RequesterID, &r.AddresseeID, &r.Status, &r.CreatedAt, &r.RespondedAt, &r.Username, &r.AvatarURL); err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient(op, err)
	}
	return requests, nil
}

// FriendshipExists is symmetric: FriendshipExists(a, b) == FriendshipExists(b, a).
func (s *FriendService) FriendshipExists(ctx context.Context, a, b uuid.UUID) (bool, error) {
	if a == b {
		return false, nil
	}
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM friend_requests
			WHERE ((requester_id = $1 AND addressee_id = $2) OR (requester_id = $2 AND addressee_id = $1))
			  AND status = 'accepted'
		)`,
		a, b,
	).Scan(&exists)
	if err != nil {
		return false, apperr.Transient("checking friendship", err)
	}
	return exists, nil
}

// FriendIDs returns the user ids of everyone userID is currently friends with.
func (s *FriendService) FriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT CASE WHEN requester_id = $1 THEN addressee_id ELSE requester_id END
		 FROM friend_requests
		 WHERE (requester_id = $1 OR addressee_id = $1) AND status = 'accepted'`,
		userID,
	)
	if err != nil {
		return nil, apperr.Transient("listing friend ids", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning friend id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("listing friend ids", err)
	}
	return ids, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
