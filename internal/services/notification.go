package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campussafe/internal/apperr"
	"github.com/HammerMeetNail/campussafe/internal/logging"
	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/notify"
)

var (
	ErrNotificationNotFound = apperr.New(apperr.KindNotFound, "notification not found")
	ErrInvalidDeviceToken   = apperr.New(apperr.KindInvalidInput, "device token and platform (ios, android, web) are required")
)

var devicePlatforms = map[string]struct{}{"ios": {}, "android": {}, "web": {}}

type NotificationListParams struct {
	Limit      int
	Before     *time.Time
	UnreadOnly bool
}

// NotificationService stores in-app notifications and fans them out to
// email and push. Delivery happens after the row is written and never fails
// the caller.
type NotificationService struct {
	db       DB
	email    notify.EmailProvider
	push     notify.PushProvider
	baseURL  string
	async    func(fn func())
	asyncCtx context.Context
}

func NewNotificationService(db DB, email notify.EmailProvider, push notify.PushProvider, baseURL string) *NotificationService {
	return &NotificationService{
		db:      db,
		email:   email,
		push:    push,
		baseURL: strings.TrimRight(baseURL, "/"),
		async: func(fn func()) {
			go fn()
		},
		asyncCtx: context.Background(),
	}
}

func (s *NotificationService) SetAsync(fn func(fn func())) {
	s.async = fn
}

func (s *NotificationService) SetAsyncContext(ctx context.Context) {
	if ctx == nil {
		s.asyncCtx = context.Background()
		return
	}
	s.asyncCtx = ctx
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, params NotificationListParams) ([]models.Notification, error) {
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	conditions := []string{"n.user_id = $1"}
	args := []any{userID}
	idx := 2

	if params.Before != nil {
		conditions = append(conditions, fmt.Sprintf("n.created_at < $%d", idx))
		args = append(args, *params.Before)
		idx++
	}
	if params.UnreadOnly {
		conditions = append(conditions, "n.read_at IS NULL")
	}

	query := fmt.Sprintf(
		`SELECT n.id, n.user_id, n.type, n.actor_user_id, au.username, n.friend_request_id, n.read_at, n.created_at
		 FROM notifications n
		 LEFT JOIN users au ON n.actor_user_id = au.id
		 WHERE %s
		 ORDER BY n.created_at DESC
		 LIMIT $%d`,
		strings.Join(conditions, " AND "),
		idx,
	)
	args = append(args, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Transient("listing notifications", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var nType string
		if err := rows.Scan(&n.ID, &n.UserID, &nType, &n.ActorUserID, &n.ActorUsername, &n.FriendRequestID, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		n.Type = models.NotificationType(nType)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("listing notifications", err)
	}
	return notifications, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		"UPDATE notifications SET read_at = COALESCE(read_at, NOW()) WHERE id = $1 AND user_id = $2",
		notificationID, userID,
	)
	if err != nil {
		return apperr.Transient("marking notification read", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL",
		userID,
	)
	if err != nil {
		return apperr.Transient("marking all notifications read", err)
	}
	return nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL",
		userID,
	).Scan(&count)
	if err != nil {
		return 0, apperr.Transient("counting unread notifications", err)
	}
	return count, nil
}

// RegisterDevice records a push token for userID. A token moves to the
// latest user that registers it.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID uuid.UUID, token, platform string) (*models.DeviceToken, error) {
	token = strings.TrimSpace(token)
	platform = strings.ToLower(strings.TrimSpace(platform))
	if _, ok := devicePlatforms[platform]; !ok || token == "" {
		return nil, ErrInvalidDeviceToken
	}

	device := &models.DeviceToken{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO device_tokens (user_id, token, platform)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform
		 RETURNING user_id, token, platform, created_at`,
		userID, token, platform,
	).Scan(&device.UserID, &device.Token, &device.Platform, &device.CreatedAt)
	if err != nil {
		return nil, apperr.Transient("registering device", err)
	}
	return device, nil
}

func (s *NotificationService) UnregisterDevice(ctx context.Context, userID uuid.UUID, token string) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM device_tokens WHERE user_id = $1 AND token = $2", userID, token); err != nil {
		return apperr.Transient("unregistering device", err)
	}
	return nil
}

func (s *NotificationService) NotifyFriendRequestReceived(ctx context.Context, recipientID, actorID, requestID uuid.UUID) error {
	return s.notifySingle(ctx, recipientID, actorID, requestID, models.NotificationFriendRequestReceived)
}

func (s *NotificationService) NotifyFriendRequestAccepted(ctx context.Context, recipientID, actorID, requestID uuid.UUID) error {
	return s.notifySingle(ctx, recipientID, actorID, requestID, models.NotificationFriendRequestAccepted)
}

func (s *NotificationService) CleanupOld(ctx context.Context) error {
	_, err := s.db.Exec(ctx, "DELETE FROM notifications WHERE created_at < NOW() - INTERVAL '1 year'")
	if err != nil {
		return fmt.Errorf("cleanup notifications: %w", err)
	}
	return nil
}

func (s *NotificationService) notifySingle(ctx context.Context, recipientID, actorID, requestID uuid.UUID, nType models.NotificationType) error {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO notifications (user_id, type, actor_user_id, friend_request_id)
		 SELECT u.id, $2, $3, $4
		 FROM users u
		 WHERE u.id = $1
		   AND NOT EXISTS (
		     SELECT 1 FROM user_blocks
		     WHERE (blocker_id = $1 AND blocked_id = $3)
		        OR (blocker_id = $3 AND blocked_id = $1)
		   )
		 ON CONFLICT DO NOTHING
		 RETURNING id`,
		recipientID, string(nType), actorID, requestID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return apperr.Transient("inserting notification", err)
	}

	s.dispatch(id)
	return nil
}

func (s *NotificationService) dispatch(notificationID uuid.UUID) {
	if s.async == nil || (s.email == nil && s.push == nil) {
		return
	}
	s.async(func() {
		baseCtx := s.asyncCtx
		if baseCtx == nil {
			baseCtx = context.Background()
		}
		ctx, cancel := context.WithTimeout(baseCtx, 10*time.Second)
		defer cancel()
		s.deliver(ctx, notificationID)
	})
}

func (s *NotificationService) deliver(ctx context.Context, notificationID uuid.UUID) {
	var (
		recipientID    uuid.UUID
		nType          string
		recipientEmail string
		actorName      *string
	)
	err := s.db.QueryRow(ctx,
		`SELECT n.user_id, n.type, u.email, au.username
		 FROM notifications n
		 JOIN users u ON n.user_id = u.id
		 LEFT JOIN users au ON n.actor_user_id = au.id
		 WHERE n.id = $1`,
		notificationID,
	).Scan(&recipientID, &nType, &recipientEmail, &actorName)
	if err != nil {
		logging.Error("Failed to load notification for delivery", map[string]interface{}{
			"error":           err.Error(),
			"notification_id": notificationID.String(),
		})
		return
	}

	subject, message := notificationMessage(models.NotificationType(nType), actorName)

	if s.push != nil {
		tokens, err := s.deviceTokens(ctx, recipientID)
		if err != nil {
			logging.Error("Failed to load device tokens", map[string]interface{}{"error": err.Error(), "user_id": recipientID.String()})
		} else if len(tokens) > 0 {
			push := &notify.Push{
				Tokens: tokens,
				Title:  subject,
				Body:   message,
				Data: map[string]string{
					"type":            nType,
					"notification_id": notificationID.String(),
				},
			}
			if err := s.push.Send(ctx, push); err != nil {
				logging.Error("Failed to send push notification", map[string]interface{}{"error": err.Error(), "notification_id": notificationID.String()})
			}
		}
	}

	if s.email != nil {
		htmlBody, text := s.renderEmail(message)
		email := &notify.Email{To: recipientEmail, Subject: subject, HTML: htmlBody, Text: text}
		if err := s.email.Send(ctx, email); err != nil {
			logging.Error("Failed to send notification email", map[string]interface{}{"error": err.Error(), "notification_id": notificationID.String()})
			return
		}
		if _, err := s.db.Exec(ctx, "UPDATE notifications SET email_sent_at = NOW() WHERE id = $1", notificationID); err != nil {
			logging.Error("Failed to mark notification email sent", map[string]interface{}{"error": err.Error(), "notification_id": notificationID.String()})
		}
	}
}

func (s *NotificationService) deviceTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.db.Query(ctx, "SELECT token FROM device_tokens WHERE user_id = $1", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func notificationMessage(nType models.NotificationType, actorName *string) (subject, message string) {
	actor := "Someone"
	if actorName != nil && *actorName != "" {
		actor = *actorName
	}
	switch nType {
	case models.NotificationFriendRequestReceived:
		return "New friend request", fmt.Sprintf("%s sent you a friend request.", actor)
	case models.NotificationFriendRequestAccepted:
		return "Friend request accepted", fmt.Sprintf("%s accepted your friend request. You can now see each other's shared location.", actor)
	default:
		return "New notification", "You have a new notification."
	}
}

func (s *NotificationService) renderEmail(message string) (htmlBody, text string) {
	friendsURL := s.baseURL + "/friends"
	htmlBody = fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="color: #333; font-size: 24px;">CampusSafe</h1>
  <p style="font-size: 16px;">%s</p>
  <p><a href="%s" style="display: inline-block; background: #B91C1C; color: white; padding: 10px 18px; text-decoration: none; border-radius: 6px;">Open friends</a></p>
</body>
</html>`, html.EscapeString(message), friendsURL)

	text = fmt.Sprintf("%s\n\nOpen friends: %s\n\n--\nCampusSafe", message, friendsURL)
	return htmlBody, text
}
