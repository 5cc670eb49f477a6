package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/services"
)

func TestFriendInviteHandler_Create_Unauthenticated(t *testing.T) {
	handler := NewFriendInviteHandler(&mockFriendInviteService{})

	req := httptest.NewRequest(http.MethodPost, "/api/friends/invites", nil)
	rr := httptest.NewRecorder()
	handler.Create(rr, req)
	assertErrorResponse(t, rr, http.StatusUnauthorized, "Authentication required")
}

func TestFriendInviteHandler_Create_EmptyBodyUsesDefault(t *testing.T) {
	var gotDays = -1
	handler := NewFriendInviteHandler(&mockFriendInviteService{
		CreateInviteFunc: func(ctx context.Context, inviterID uuid.UUID, expiresInDays int) (*models.FriendInvite, string, error) {
			gotDays = expiresInDays
			return &models.FriendInvite{ID: uuid.New(), InviterID: inviterID}, "abc123", nil
		},
	})

	req, _ := newAuthedRequest(http.MethodPost, "/api/friends/invites", "")
	rr := httptest.NewRecorder()
	handler.Create(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotDays != 0 {
		t.Fatalf("expected zero days to be passed through, got %d", gotDays)
	}

	var resp InviteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Token != "abc123" || resp.Path != "/invite/abc123" {
		t.Fatalf("unexpected token fields: %+v", resp)
	}
}

func TestFriendInviteHandler_Create_InvalidTTL(t *testing.T) {
	handler := NewFriendInviteHandler(&mockFriendInviteService{
		CreateInviteFunc: func(ctx context.Context, inviterID uuid.UUID, expiresInDays int) (*models.FriendInvite, string, error) {
			if expiresInDays != 90 {
				t.Fatalf("expected 90 days, got %d", expiresInDays)
			}
			return nil, "", services.ErrInvalidInviteTTL
		},
	})

	req, _ := newAuthedRequest(http.MethodPost, "/api/friends/invites", `{"expires_in_days":90}`)
	rr := httptest.NewRecorder()
	handler.Create(rr, req)
	assertErrorResponse(t, rr, http.StatusBadRequest, "expires_in_days must be between 1 and 30")
}

func TestFriendInviteHandler_List(t *testing.T) {
	handler := NewFriendInviteHandler(&mockFriendInviteService{
		ListInvitesFunc: func(ctx context.Context, inviterID uuid.UUID) ([]models.FriendInvite, error) {
			return []models.FriendInvite{{ID: uuid.New(), InviterID: inviterID}}, nil
		},
	})

	req, _ := newAuthedRequest(http.MethodGet, "/api/friends/invites", "")
	rr := httptest.NewRecorder()
	handler.List(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp InviteListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Invites) != 1 {
		t.Fatalf("expected 1 invite, got %d", len(resp.Invites))
	}
}

func TestFriendInviteHandler_Revoke_InvalidID(t *testing.T) {
	handler := NewFriendInviteHandler(&mockFriendInviteService{})

	req, _ := newAuthedRequest(http.MethodDelete, "/api/friends/invites/nope", "")
	req.SetPathValue("id", "nope")
	rr := httptest.NewRecorder()
	handler.Revoke(rr, req)
	assertErrorResponse(t, rr, http.StatusBadRequest, "Invalid invite ID")
}

func TestFriendInviteHandler_Revoke_NotFound(t *testing.T) {
	handler := NewFriendInviteHandler(&mockFriendInviteService{
		RevokeInviteFunc: func(ctx context.Context, inviterID, inviteID uuid.UUID) error {
			return services.ErrInviteNotFound
		},
	})

	id := uuid.New().String()
	req, _ := newAuthedRequest(http.MethodDelete, "/api/friends/invites/"+id, "")
	req.SetPathValue("id", id)
	rr := httptest.NewRecorder()
	handler.Revoke(rr, req)
	assertErrorResponse(t, rr, http.StatusNotFound, "invite not found or expired")
}

func TestFriendInviteHandler_Accept_MissingToken(t *testing.T) {
	handler := NewFriendInviteHandler(&mockFriendInviteService{
		AcceptInviteFunc: func(ctx context.Context, recipientID uuid.UUID, token string) (*models.FriendRequest, *models.UserSearchResult, error) {
			t.Fatal("AcceptInvite should not be called without a token")
			return nil, nil, nil
		},
	})

	req, _ := newAuthedRequest(http.MethodPost, "/api/friends/invites/accept", `{}`)
	rr := httptest.NewRecorder()
	handler.Accept(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestFriendInviteHandler_Accept_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"own invite", services.ErrOwnInvite, http.StatusBadRequest, "cannot accept your own invite"},
		{"blocked", services.ErrUserBlocked, http.StatusForbidden, "user is blocked"},
		{"already friends", services.ErrAlreadyFriends, http.StatusConflict, "already friends with this user"},
		{"expired", services.ErrInviteNotFound, http.StatusNotFound, "invite not found or expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewFriendInviteHandler(&mockFriendInviteService{
				AcceptInviteFunc: func(ctx context.Context, recipientID uuid.UUID, token string) (*models.FriendRequest, *models.UserSearchResult, error) {
					return nil, nil, tt.err
				},
			})

			req, _ := newAuthedRequest(http.MethodPost, "/api/friends/invites/accept", `{"token":"abc"}`)
			rr := httptest.NewRecorder()
			handler.Accept(rr, req)
			assertErrorResponse(t, rr, tt.status, tt.message)
		})
	}
}

func TestFriendInviteHandler_Accept_Success(t *testing.T) {
	inviterID := uuid.New()
	handler := NewFriendInviteHandler(&mockFriendInviteService{
		AcceptInviteFunc: func(ctx context.Context, recipientID uuid.UUID, token string) (*models.FriendRequest, *models.UserSearchResult, error) {
			request := &models.FriendRequest{ID: uuid.New(), RequesterID: inviterID, AddresseeID: recipientID, Status: models.FriendRequestAccepted}
			return request, &models.UserSearchResult{ID: inviterID, Username: "alex"}, nil
		},
	})

	req, _ := newAuthedRequest(http.MethodPost, "/api/friends/invites/accept", `{"token":"abc"}`)
	rr := httptest.NewRecorder()
	handler.Accept(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp InviteAcceptResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Inviter.Username != "alex" || resp.Request.Status != models.FriendRequestAccepted {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
