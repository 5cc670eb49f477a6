package handlers

import (
	"net/http"

	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/services"
)

type FriendInviteHandler struct {
	inviteService services.FriendInviteServiceInterface
}

func NewFriendInviteHandler(inviteService services.FriendInviteServiceInterface) *FriendInviteHandler {
	return &FriendInviteHandler{inviteService: inviteService}
}

type CreateInviteRequest struct {
	ExpiresInDays int `json:"expires_in_days"`
}

type AcceptInviteRequest struct {
	Token string `json:"token" validate:"required"`
}

type InviteResponse struct {
	Invite *models.FriendInvite `json:"invite,omitempty"`
	Token  string               `json:"token,omitempty"`
	// Path is what the mobile app opens as a deep link.
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

type InviteListResponse struct {
	Invites []models.FriendInvite `json:"invites"`
}

type InviteAcceptResponse struct {
	Request *models.FriendRequest   `json:"request"`
	Inviter models.UserSearchResult `json:"inviter"`
	Message string                  `json:"message,omitempty"`
}

// Create issues a new invite. The raw token is only ever returned here.
func (h *FriendInviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateInviteRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	invite, token, err := h.inviteService.CreateInvite(r.Context(), user.ID, req.ExpiresInDays)
	if err != nil {
		writeServiceError(w, r, "create invite", err)
		return
	}

	writeJSON(w, http.StatusCreated, InviteResponse{Invite: invite, Token: token, Path: "/invite/" + token})
}

func (h *FriendInviteHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	invites, err := h.inviteService.ListInvites(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "list invites", err)
		return
	}

	writeJSON(w, http.StatusOK, InviteListResponse{Invites: invites})
}

func (h *FriendInviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	inviteID, ok := pathUUID(w, r, "id", "invite ID")
	if !ok {
		return
	}

	if err := h.inviteService.RevokeInvite(r.Context(), user.ID, inviteID); err != nil {
		writeServiceError(w, r, "revoke invite", err)
		return
	}

	writeJSON(w, http.StatusOK, InviteResponse{Message: "Invite revoked"})
}

func (h *FriendInviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req AcceptInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	request, inviter, err := h.inviteService.AcceptInvite(r.Context(), user.ID, req.Token)
	if err != nil {
		writeServiceError(w, r, "accept invite", err)
		return
	}

	writeJSON(w, http.StatusOK, InviteAcceptResponse{Request: request, Inviter: *inviter, Message: "Invite accepted"})
}
