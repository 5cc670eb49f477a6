package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/services"
)

// withUser attaches an authenticated user to the request context.
func withUser(req *http.Request, user *models.User) *http.Request {
	return req.WithContext(SetUserInContext(req.Context(), user))
}

func newAuthedRequest(method, target string, body string) (*http.Request, *models.User) {
	user := &models.User{ID: uuid.New(), Email: "sam@example.edu", Username: "sam"}
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return withUser(req, user), user
}

type mockUserService struct {
	CreateFunc         func(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByIDFunc        func(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.User, error)
	UpdateProfileFunc  func(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error)
	UpdatePasswordFunc func(ctx context.Context, userID uuid.UUID, newPasswordHash string) error
}

func (m *mockUserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return &models.User{ID: uuid.New(), Email: params.Email, Username: params.Username}, nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, services.ErrUserNotFound
}

func (m *mockUserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, services.ErrUserNotFound
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, params)
	}
	return &models.User{ID: userID}, nil
}

func (m *mockUserService) UpdatePassword(ctx context.Context, userID uuid.UUID, newPasswordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, userID, newPasswordHash)
	}
	return nil
}

type mockAuthService struct {
	HashPasswordFunc    func(password string) (string, error)
	VerifyPasswordFunc  func(hash, password string) bool
	AuthenticateFunc    func(ctx context.Context, email, password string) (*models.User, error)
	CreateSessionFunc   func(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateSessionFunc func(ctx context.Context, token string) (*models.User, error)
	DeleteSessionFunc   func(ctx context.Context, token string) error
}

func (m *mockAuthService) HashPassword(password string) (string, error) {
	if m.HashPasswordFunc != nil {
		return m.HashPasswordFunc(password)
	}
	return "hashed_" + password, nil
}

func (m *mockAuthService) VerifyPassword(hash, password string) bool {
	if m.VerifyPasswordFunc != nil {
		return m.VerifyPasswordFunc(hash, password)
	}
	return hash == "hashed_"+password
}

func (m *mockAuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, email, password)
	}
	return nil, services.ErrInvalidCredentials
}

func (m *mockAuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, userID)
	}
	return "session-token", nil
}

func (m *mockAuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	if m.ValidateSessionFunc != nil {
		return m.ValidateSessionFunc(ctx, token)
	}
	return nil, services.ErrSessionNotFound
}

func (m *mockAuthService) DeleteSession(ctx context.Context, token string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, token)
	}
	return nil
}

type mockFriendService struct {
	SearchUsersFunc   func(ctx context.Context, userID uuid.UUID, query string) ([]models.UserSearchResult, error)
	SendRequestFunc   func(ctx context.Context, requesterID, addresseeID uuid.UUID) (*models.FriendRequest, error)
	AcceptRequestFunc func(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error)
	RejectRequestFunc func(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error)
	CancelRequestFunc func(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error)
	RemoveFriendFunc  func(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error)
	ListFriendsFunc   func(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
	ListIncomingFunc  func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
	ListOutgoingFunc  func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
	ListHistoryFunc   func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
}

func (m *mockFriendService) SearchUsers(ctx context.Context, userID uuid.UUID, query string) ([]models.UserSearchResult, error) {
	if m.SearchUsersFunc != nil {
		return m.SearchUsersFunc(ctx, userID, query)
	}
	return []models.UserSearchResult{}, nil
}

func (m *mockFriendService) SendRequest(ctx context.Context, requesterID, addresseeID uuid.UUID) (*models.FriendRequest, error) {
	if m.SendRequestFunc != nil {
		return m.SendRequestFunc(ctx, requesterID, addresseeID)
	}
	return &models.FriendRequest{ID: uuid.New(), RequesterID: requesterID, AddresseeID: addresseeID, Status: models.FriendRequestPending}, nil
}

func (m *mockFriendService) AcceptRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error) {
	if m.AcceptRequestFunc != nil {
		return m.AcceptRequestFunc(ctx, requestID, actingUserID)
	}
	return &models.FriendRequest{ID: requestID, Status: models.FriendRequestAccepted}, nil
}

func (m *mockFriendService) RejectRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error) {
	if m.RejectRequestFunc != nil {
		return m.RejectRequestFunc(ctx, requestID, actingUserID)
	}
	return &models.FriendRequest{ID: requestID, Status: models.FriendRequestRejected}, nil
}

func (m *mockFriendService) CancelRequest(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error) {
	if m.CancelRequestFunc != nil {
		return m.CancelRequestFunc(ctx, requestID, actingUserID)
	}
	return &models.FriendRequest{ID: requestID, Status: models.FriendRequestCancelled}, nil
}

func (m *mockFriendService) RemoveFriend(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error) {
	if m.RemoveFriendFunc != nil {
		return m.RemoveFriendFunc(ctx, requestID, actingUserID)
	}
	return &models.FriendRequest{ID: requestID, Status: models.FriendRequestRemoved}, nil
}

func (m *mockFriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	if m.ListFriendsFunc != nil {
		return m.ListFriendsFunc(ctx, userID)
	}
	return []models.Friend{}, nil
}

func (m *mockFriendService) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	if m.ListIncomingFunc != nil {
		return m.ListIncomingFunc(ctx, userID)
	}
	return []models.FriendRequestWithUser{}, nil
}

func (m *mockFriendService) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	if m.ListOutgoingFunc != nil {
		return m.ListOutgoingFunc(ctx, userID)
	}
	return []models.FriendRequestWithUser{}, nil
}

func (m *mockFriendService) ListHistory(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	if m.ListHistoryFunc != nil {
		return m.ListHistoryFunc(ctx, userID)
	}
	return []models.FriendRequestWithUser{}, nil
}

func (m *mockFriendService) FriendshipExists(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return false, nil
}

type mockBlockService struct {
	BlockFunc       func(ctx context.Context, blockerID, blockedID uuid.UUID) error
	UnblockFunc     func(ctx context.Context, blockerID, blockedID uuid.UUID) error
	ListBlockedFunc func(ctx context.Context, blockerID uuid.UUID) ([]models.BlockedUser, error)
}

func (m *mockBlockService) Block(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	if m.BlockFunc != nil {
		return m.BlockFunc(ctx, blockerID, blockedID)
	}
	return nil
}

func (m *mockBlockService) Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	if m.UnblockFunc != nil {
		return m.UnblockFunc(ctx, blockerID, blockedID)
	}
	return nil
}

func (m *mockBlockService) IsBlocked(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	return false, nil
}

func (m *mockBlockService) ListBlocked(ctx context.Context, blockerID uuid.UUID) ([]models.BlockedUser, error) {
	if m.ListBlockedFunc != nil {
		return m.ListBlockedFunc(ctx, blockerID)
	}
	return nil, nil
}

type mockLocationService struct {
	SetSharingFunc          func(ctx context.Context, userID uuid.UUID, enabled bool) (*models.FriendLocation, error)
	PublishLocationFunc     func(ctx context.Context, userID uuid.UUID, lat, lng float64, ts time.Time) (*models.FriendLocation, error)
	GetVisibleLocationFunc  func(ctx context.Context, viewerID, ownerID uuid.UUID) (*models.LocationView, error)
	ListFriendLocationsFunc func(ctx context.Context, viewerID uuid.UUID) ([]models.LocationView, error)
}

func (m *mockLocationService) SetSharing(ctx context.Context, userID uuid.UUID, enabled bool) (*models.FriendLocation, error) {
	if m.SetSharingFunc != nil {
		return m.SetSharingFunc(ctx, userID, enabled)
	}
	return &models.FriendLocation{UserID: userID, IsSharing: enabled}, nil
}

func (m *mockLocationService) PublishLocation(ctx context.Context, userID uuid.UUID, lat, lng float64, ts time.Time) (*models.FriendLocation, error) {
	if m.PublishLocationFunc != nil {
		return m.PublishLocationFunc(ctx, userID, lat, lng, ts)
	}
	return &models.FriendLocation{UserID: userID, IsSharing: true, Latitude: &lat, Longitude: &lng}, nil
}

func (m *mockLocationService) GetOwnLocation(ctx context.Context, userID uuid.UUID) (*models.FriendLocation, error) {
	return nil, nil
}

func (m *mockLocationService) GetVisibleLocation(ctx context.Context, viewerID, ownerID uuid.UUID) (*models.LocationView, error) {
	if m.GetVisibleLocationFunc != nil {
		return m.GetVisibleLocationFunc(ctx, viewerID, ownerID)
	}
	return &models.LocationView{UserID: ownerID, Visibility: models.LocationNotVisible}, nil
}

func (m *mockLocationService) ListFriendLocations(ctx context.Context, viewerID uuid.UUID) ([]models.LocationView, error) {
	if m.ListFriendLocationsFunc != nil {
		return m.ListFriendLocationsFunc(ctx, viewerID)
	}
	return nil, nil
}

type mockIncidentService struct {
	ReportFunc      func(ctx context.Context, params models.ReportIncidentParams) (*models.Incident, error)
	GetFunc         func(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ListRecentFunc  func(ctx context.Context, category *models.IncidentCategory, limit int) ([]models.Incident, error)
	ListNearbyFunc  func(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyIncident, error)
	AttachPhotoFunc func(ctx context.Context, incidentID, reporterID uuid.UUID, data []byte) (*models.Incident, error)
}

func (m *mockIncidentService) Report(ctx context.Context, params models.ReportIncidentParams) (*models.Incident, error) {
	if m.ReportFunc != nil {
		return m.ReportFunc(ctx, params)
	}
	return &models.Incident{ID: uuid.New(), ReporterID: params.ReporterID, Category: params.Category, Description: params.Description}, nil
}

func (m *mockIncidentService) Get(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, services.ErrIncidentNotFound
}

func (m *mockIncidentService) ListRecent(ctx context.Context, category *models.IncidentCategory, limit int) ([]models.Incident, error) {
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, category, limit)
	}
	return nil, nil
}

func (m *mockIncidentService) ListNearby(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyIncident, error) {
	if m.ListNearbyFunc != nil {
		return m.ListNearbyFunc(ctx, lat, lng, radiusKm)
	}
	return nil, nil
}

func (m *mockIncidentService) AttachPhoto(ctx context.Context, incidentID, reporterID uuid.UUID, data []byte) (*models.Incident, error) {
	if m.AttachPhotoFunc != nil {
		return m.AttachPhotoFunc(ctx, incidentID, reporterID, data)
	}
	return &models.Incident{ID: incidentID, ReporterID: reporterID}, nil
}

type mockContactService struct {
	ListFunc       func(ctx context.Context, userID uuid.UUID) ([]models.EmergencyContact, error)
	CreateFunc     func(ctx context.Context, userID uuid.UUID, params models.ContactParams) (*models.EmergencyContact, error)
	UpdateFunc     func(ctx context.Context, userID, contactID uuid.UUID, params models.ContactParams) (*models.EmergencyContact, error)
	DeleteFunc     func(ctx context.Context, userID, contactID uuid.UUID) error
	SetPrimaryFunc func(ctx context.Context, userID, contactID uuid.UUID) (*models.EmergencyContact, error)
}

func (m *mockContactService) List(ctx context.Context, userID uuid.UUID) ([]models.EmergencyContact, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockContactService) Create(ctx context.Context, userID uuid.UUID, params models.ContactParams) (*models.EmergencyContact, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, params)
	}
	return &models.EmergencyContact{ID: uuid.New(), UserID: userID, Name: params.Name, Phone: params.Phone}, nil
}

func (m *mockContactService) Update(ctx context.Context, userID, contactID uuid.UUID, params models.ContactParams) (*models.EmergencyContact, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, userID, contactID, params)
	}
	return &models.EmergencyContact{ID: contactID, UserID: userID, Name: params.Name, Phone: params.Phone}, nil
}

func (m *mockContactService) Delete(ctx context.Context, userID, contactID uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID, contactID)
	}
	return nil
}

func (m *mockContactService) SetPrimary(ctx context.Context, userID, contactID uuid.UUID) (*models.EmergencyContact, error) {
	if m.SetPrimaryFunc != nil {
		return m.SetPrimaryFunc(ctx, userID, contactID)
	}
	return &models.EmergencyContact{ID: contactID, UserID: userID, IsPrimary: true}, nil
}

type mockTipService struct {
	categories []models.TipCategory
}

func (m *mockTipService) Categories() []models.TipCategory {
	return m.categories
}

func (m *mockTipService) ByCategory(name string) (*models.TipCategory, error) {
	for i := range m.categories {
		if m.categories[i].Name == name {
			return &m.categories[i], nil
		}
	}
	return nil, services.ErrTipCategoryNotFound
}

type mockNotificationService struct {
	ListFunc             func(ctx context.Context, userID uuid.UUID, params services.NotificationListParams) ([]models.Notification, error)
	MarkReadFunc         func(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllReadFunc      func(ctx context.Context, userID uuid.UUID) error
	UnreadCountFunc      func(ctx context.Context, userID uuid.UUID) (int, error)
	RegisterDeviceFunc   func(ctx context.Context, userID uuid.UUID, token, platform string) (*models.DeviceToken, error)
	UnregisterDeviceFunc func(ctx context.Context, userID uuid.UUID, token string) error
}

func (m *mockNotificationService) List(ctx context.Context, userID uuid.UUID, params services.NotificationListParams) ([]models.Notification, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID, params)
	}
	return nil, nil
}

func (m *mockNotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, userID, notificationID)
	}
	return nil
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	if m.MarkAllReadFunc != nil {
		return m.MarkAllReadFunc(ctx, userID)
	}
	return nil
}

func (m *mockNotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	if m.UnreadCountFunc != nil {
		return m.UnreadCountFunc(ctx, userID)
	}
	return 0, nil
}

func (m *mockNotificationService) RegisterDevice(ctx context.Context, userID uuid.UUID, token, platform string) (*models.DeviceToken, error) {
	if m.RegisterDeviceFunc != nil {
		return m.RegisterDeviceFunc(ctx, userID, token, platform)
	}
	return &models.DeviceToken{UserID: userID, Token: token, Platform: platform}, nil
}

func (m *mockNotificationService) UnregisterDevice(ctx context.Context, userID uuid.UUID, token string) error {
	if m.UnregisterDeviceFunc != nil {
		return m.UnregisterDeviceFunc(ctx, userID, token)
	}
	return nil
}

type mockFriendInviteService struct {
	CreateInviteFunc func(ctx context.Context, inviterID uuid.UUID, expiresInDays int) (*models.FriendInvite, string, error)
	ListInvitesFunc  func(ctx context.Context, inviterID uuid.UUID) ([]models.FriendInvite, error)
	RevokeInviteFunc func(ctx context.Context, inviterID, inviteID uuid.UUID) error
	AcceptInviteFunc func(ctx context.Context, recipientID uuid.UUID, token string) (*models.FriendRequest, *models.UserSearchResult, error)
}

func (m *mockFriendInviteService) CreateInvite(ctx context.Context, inviterID uuid.UUID, expiresInDays int) (*models.FriendInvite, string, error) {
	if m.CreateInviteFunc != nil {
		return m.CreateInviteFunc(ctx, inviterID, expiresInDays)
	}
	return &models.FriendInvite{ID: uuid.New(), InviterID: inviterID}, "token", nil
}

func (m *mockFriendInviteService) ListInvites(ctx context.Context, inviterID uuid.UUID) ([]models.FriendInvite, error) {
	if m.ListInvitesFunc != nil {
		return m.ListInvitesFunc(ctx, inviterID)
	}
	return []models.FriendInvite{}, nil
}

func (m *mockFriendInviteService) RevokeInvite(ctx context.Context, inviterID, inviteID uuid.UUID) error {
	if m.RevokeInviteFunc != nil {
		return m.RevokeInviteFunc(ctx, inviterID, inviteID)
	}
	return nil
}

func (m *mockFriendInviteService) AcceptInvite(ctx context.Context, recipientID uuid.UUID, token string) (*models.FriendRequest, *models.UserSearchResult, error) {
	if m.AcceptInviteFunc != nil {
		return m.AcceptInviteFunc(ctx, recipientID, token)
	}
	return nil, nil, services.ErrInviteNotFound
}

var (
	_ services.UserServiceInterface         = (*mockUserService)(nil)
	_ services.AuthServiceInterface         = (*mockAuthService)(nil)
	_ services.FriendServiceInterface       = (*mockFriendService)(nil)
	_ services.FriendInviteServiceInterface = (*mockFriendInviteService)(nil)
	_ services.BlockServiceInterface        = (*mockBlockService)(nil)
	_ services.LocationServiceInterface     = (*mockLocationService)(nil)
	_ services.IncidentServiceInterface     = (*mockIncidentService)(nil)
	_ services.ContactServiceInterface      = (*mockContactService)(nil)
	_ services.TipServiceInterface          = (*mockTipService)(nil)
	_ services.NotificationServiceInterface = (*mockNotificationService)(nil)
)
