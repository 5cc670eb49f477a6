package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/services"
)

type NotificationHandler struct {
	notificationService services.NotificationServiceInterface
}

func NewNotificationHandler(notificationService services.NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

type NotificationListResponse struct {
	Notifications []models.Notification `json:"notifications"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}

type DeviceResponse struct {
	Device  *models.DeviceToken `json:"device,omitempty"`
	Message string              `json:"message,omitempty"`
}

// List accepts ?limit=, ?before= (RFC 3339) and ?unread=true.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	q := r.URL.Query()
	var params services.NotificationListParams
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		params.Limit = limit
	}
	if raw := q.Get("before"); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid before timestamp")
			return
		}
		params.Before = &before
	}
	if raw := q.Get("unread"); raw != "" {
		unread, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unread flag")
			return
		}
		params.UnreadOnly = unread
	}

	notifications, err := h.notificationService.List(r.Context(), user.ID, params)
	if err != nil {
		writeServiceError(w, r, "list notifications", err)
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	writeJSON(w, http.StatusOK, NotificationListResponse{Notifications: notifications})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, ok := pathUUID(w, r, "id", "notification ID")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(r.Context(), user.ID, id); err != nil {
		writeServiceError(w, r, "mark notification read", err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Notification marked as read"})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.notificationService.MarkAllRead(r.Context(), user.ID); err != nil {
		writeServiceError(w, r, "mark all notifications read", err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Notifications marked as read"})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	count, err := h.notificationService.UnreadCount(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "count unread notifications", err)
		return
	}

	writeJSON(w, http.StatusOK, UnreadCountResponse{Count: count})
}

func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req RegisterDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	device, err := h.notificationService.RegisterDevice(r.Context(), user.ID, req.Token, req.Platform)
	if err != nil {
		writeServiceError(w, r, "register device", err)
		return
	}

	writeJSON(w, http.StatusCreated, DeviceResponse{Device: device})
}

func (h *NotificationHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	token := r.PathValue("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "Device token is required")
		return
	}

	if err := h.notificationService.UnregisterDevice(r.Context(), user.ID, token); err != nil {
		writeServiceError(w, r, "unregister device", err)
		return
	}

	writeJSON(w, http.StatusOK, DeviceResponse{Message: "Device unregistered"})
}
