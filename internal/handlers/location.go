package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/services"
)

// LocationStreamer upgrades a request into a realtime location stream.
type LocationStreamer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, viewerID uuid.UUID)
}

type LocationHandler struct {
	locationService services.LocationServiceInterface
	stream          LocationStreamer
}

func NewLocationHandler(locationService services.LocationServiceInterface, stream LocationStreamer) *LocationHandler {
	return &LocationHandler{locationService: locationService, stream: stream}
}

type SetSharingRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type PublishLocationRequest struct {
	Latitude  *float64   `json:"latitude" validate:"required,latitude"`
	Longitude *float64   `json:"longitude" validate:"required,longitude"`
	Timestamp *time.Time `json:"timestamp"`
}

type LocationResponse struct {
	Location *models.FriendLocation `json:"location"`
}

type LocationViewResponse struct {
	Location *models.LocationView `json:"location"`
}

type FriendLocationsResponse struct {
	Locations []models.LocationView `json:"locations"`
}

func (h *LocationHandler) SetSharing(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SetSharingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	loc, err := h.locationService.SetSharing(r.Context(), user.ID, *req.Enabled)
	if err != nil {
		writeServiceError(w, r, "set location sharing", err)
		return
	}

	writeJSON(w, http.StatusOK, LocationResponse{Location: loc})
}

func (h *LocationHandler) Publish(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req PublishLocationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var ts time.Time
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	loc, err := h.locationService.PublishLocation(r.Context(), user.ID, *req.Latitude, *req.Longitude, ts)
	if err != nil {
		writeServiceError(w, r, "publish location", err)
		return
	}

	writeJSON(w, http.StatusOK, LocationResponse{Location: loc})
}

func (h *LocationHandler) Friends(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	views, err := h.locationService.ListFriendLocations(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "list friend locations", err)
		return
	}
	if views == nil {
		views = []models.LocationView{}
	}

	writeJSON(w, http.StatusOK, FriendLocationsResponse{Locations: views})
}

func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	ownerID, ok := pathUUID(w, r, "userID", "user ID")
	if !ok {
		return
	}

	view, err := h.locationService.GetVisibleLocation(r.Context(), user.ID, ownerID)
	if err != nil {
		writeServiceError(w, r, "get location", err)
		return
	}

	writeJSON(w, http.StatusOK, LocationViewResponse{Location: view})
}

func (h *LocationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if h.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "Realtime updates are unavailable")
		return
	}

	h.stream.ServeWS(w, r, user.ID)
}
