package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/services"
)

type FriendHandler struct {
	friendService services.FriendServiceInterface
}

func NewFriendHandler(friendService services.FriendServiceInterface) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

type SendRequestRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type FriendListResponse struct {
	Friends  []models.Friend                `json:"friends"`
	Incoming []models.FriendRequestWithUser `json:"incoming"`
	Outgoing []models.FriendRequestWithUser `json:"outgoing"`
}

type FriendRequestResponse struct {
	Request *models.FriendRequest `json:"request"`
	Message string                `json:"message,omitempty"`
}

type FriendHistoryResponse struct {
	Requests []models.FriendRequestWithUser `json:"requests"`
}

type UserSearchResponse struct {
	Users []models.UserSearchResult `json:"users"`
}

// List returns friends plus pending requests in both directions.
func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	friends, err := h.friendService.ListFriends(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "list friends", err)
		return
	}
	incoming, err := h.friendService.ListIncoming(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "list incoming requests", err)
		return
	}
	outgoing, err := h.friendService.ListOutgoing(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "list outgoing requests", err)
		return
	}

	writeJSON(w, http.StatusOK, FriendListResponse{Friends: friends, Incoming: incoming, Outgoing: outgoing})
}

func (h *FriendHandler) Search(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len([]rune(query)) < 2 {
		writeJSON(w, http.StatusOK, UserSearchResponse{Users: []models.UserSearchResult{}})
		return
	}

	users, err := h.friendService.SearchUsers(r.Context(), user.ID, query)
	if err != nil {
		writeServiceError(w, r, "search users", err)
		return
	}

	writeJSON(w, http.StatusOK, UserSearchResponse{Users: users})
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SendRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	addresseeID, _ := uuid.Parse(req.UserID)

	request, err := h.friendService.SendRequest(r.Context(), user.ID, addresseeID)
	if err != nil {
		writeServiceError(w, r, "send friend request", err)
		return
	}

	writeJSON(w, http.StatusCreated, FriendRequestResponse{Request: request, Message: "Friend request sent"})
}

func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "accept friend request", "Friend request accepted", h.friendService.AcceptRequest)
}

func (h *FriendHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reject friend request", "Friend request rejected", h.friendService.RejectRequest)
}

func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel friend request", "Friend request cancelled", h.friendService.CancelRequest)
}

// Remove ends an accepted friendship. The path id is the friendship's
// request id.
func (h *FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "remove friend", "Friend removed", h.friendService.RemoveFriend)
}

type transitionFunc func(ctx context.Context, requestID, actingUserID uuid.UUID) (*models.FriendRequest, error)

func (h *FriendHandler) transition(w http.ResponseWriter, r *http.Request, op, message string, fn transitionFunc) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requestID, ok := pathUUID(w, r, "id", "friend request ID")
	if !ok {
		return
	}

	request, err := fn(r.Context(), requestID, user.ID)
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}

	writeJSON(w, http.StatusOK, FriendRequestResponse{Request: request, Message: message})
}

func (h *FriendHandler) History(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requests, err := h.friendService.ListHistory(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "list friend request history", err)
		return
	}

	writeJSON(w, http.StatusOK, FriendHistoryResponse{Requests: requests})
}
