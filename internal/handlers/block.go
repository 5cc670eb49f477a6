package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/services"
)

type BlockHandler struct {
	blockService services.BlockServiceInterface
}

func NewBlockHandler(blockService services.BlockServiceInterface) *BlockHandler {
	return &BlockHandler{blockService: blockService}
}

type BlockRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

type BlockListResponse struct {
	Blocked []models.BlockedUser `json:"blocked"`
}

func (h *BlockHandler) Block(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req BlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	blockedID, _ := uuid.Parse(req.UserID)

	if err := h.blockService.Block(r.Context(), user.ID, blockedID); err != nil {
		writeServiceError(w, r, "block user", err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "User blocked"})
}

func (h *BlockHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	blockedID, ok := pathUUID(w, r, "id", "user ID")
	if !ok {
		return
	}

	if err := h.blockService.Unblock(r.Context(), user.ID, blockedID); err != nil {
		writeServiceError(w, r, "unblock user", err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "User unblocked"})
}

func (h *BlockHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	blocked, err := h.blockService.ListBlocked(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "list blocked users", err)
		return
	}
	if blocked == nil {
		blocked = []models.BlockedUser{}
	}

	writeJSON(w, http.StatusOK, BlockListResponse{Blocked: blocked})
}
