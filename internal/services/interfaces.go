package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campussafe/internal/models"
)

// UserServiceInterface defines the contract for user operations.
type UserServiceInterface interface {
	Create(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, newPasswordHash string) error
}

// AuthServiceInterface defines the contract for authentication operations.
type AuthServiceInterface interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hash, password string) bool
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	CreateSession(ctx context.Context, userID uuid.UUID) (token string, err error)
	ValidateSession(ctx context.Context, token string) (*models.User, error)
	DeleteSession(ctx context.Context, token string) error
}

// FriendServiceInterface defines the contract for friend request operations.
type FriendServiceInterface interface {
	SearchUsers(ctx context.Context, currentUserID uuid.UUID, query string) ([]models.UserSearchResult, error)
	SendRequest(ctx context.Context, requesterID, addresseeID uuid.UUID) (*models.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error)
	RejectRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error)
	CancelRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error)
	RemoveFriend(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error)
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
	ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
	ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
	ListHistory(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
	FriendshipExists(ctx context.Context, a, b uuid.UUID) (bool, error)
}

// FriendInviteServiceInterface defines the contract for invite links.
type FriendInviteServiceInterface interface {
	CreateInvite(ctx context.Context, inviterID uuid.UUID, expiresInDays int) (*models.FriendInvite, string, error)
	ListInvites(ctx context.Context, inviterID uuid.UUID) ([]models.FriendInvite, error)
	RevokeInvite(ctx context.Context, inviterID, inviteID uuid.UUID) error
	AcceptInvite(ctx context.Context, recipientID uuid.UUID, token string) (*models.FriendRequest, *models.UserSearchResult, error)
}

// BlockServiceInterface defines the contract for block operations.
type BlockServiceInterface interface {
	Block(ctx context.Context, blockerID, blockedID uuid.UUID) error
	Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error
	IsBlocked(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	ListBlocked(ctx context.Context, blockerID uuid.UUID) ([]models.BlockedUser, error)
}

// LocationServiceInterface defines the contract for location sharing.
type LocationServiceInterface interface {
	SetSharing(ctx context.Context, userID uuid.UUID, enabled bool) (*models.FriendLocation, error)
	PublishLocation(ctx context.Context, userID uuid.UUID, lat, lng float64, timestamp time.Time) (*models.FriendLocation, error)
	GetOwnLocation(ctx context.Context, userID uuid.UUID) (*models.FriendLocation, error)
	GetVisibleLocation(ctx context.Context, viewerID, ownerID uuid.UUID) (*models.LocationView, error)
	ListFriendLocations(ctx context.Context, viewerID uuid.UUID) ([]models.LocationView, error)
}

// IncidentServiceInterface defines the contract for incident reports.
type IncidentServiceInterface interface {
	Report(ctx context.Context, params models.ReportIncidentParams) (*models.Incident, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ListRecent(ctx context.Context, category *models.IncidentCategory, limit int) ([]models.Incident, error)
	ListNearby(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyIncident, error)
	AttachPhoto(ctx context.Context, incidentID, reporterID uuid.UUID, data []byte) (*models.Incident, error)
}

// ContactServiceInterface defines the contract for emergency contacts.
type ContactServiceInterface interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.EmergencyContact, error)
	Create(ctx context.Context, userID uuid.UUID, params models.ContactParams) (*models.EmergencyContact, error)
	Update(ctx context.Context, userID, contactID uuid.UUID, params models.ContactParams) (*models.EmergencyContact, error)
	Delete(ctx context.Context, userID, contactID uuid.UUID) error
	SetPrimary(ctx context.Context, userID, contactID uuid.UUID) (*models.EmergencyContact, error)
}

// TipServiceInterface defines the contract for the safety tips catalogue.
type TipServiceInterface interface {
	Categories() []models.TipCategory
	ByCategory(name string) (*models.TipCategory, error)
}

// NotificationServiceInterface defines the contract for in-app notifications.
type NotificationServiceInterface interface {
	List(ctx context.Context, userID uuid.UUID, params NotificationListParams) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	RegisterDevice(ctx context.Context, userID uuid.UUID, token, platform string) (*models.DeviceToken, error)
	UnregisterDevice(ctx context.Context, userID uuid.UUID, token string) error
}

var (
	_ UserServiceInterface         = (*UserService)(nil)
	_ AuthServiceInterface         = (*AuthService)(nil)
	_ FriendServiceInterface       = (*FriendService)(nil)
	_ FriendInviteServiceInterface = (*FriendInviteService)(nil)
	_ BlockServiceInterface        = (*BlockService)(nil)
	_ LocationServiceInterface     = (*LocationService)(nil)
	_ IncidentServiceInterface     = (*IncidentService)(nil)
	_ ContactServiceInterface      = (*ContactService)(nil)
	_ TipServiceInterface          = (*TipService)(nil)
	_ NotificationServiceInterface = (*NotificationService)(nil)
	_ FriendNotifier               = (*NotificationService)(nil)
)
