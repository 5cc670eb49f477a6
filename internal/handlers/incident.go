package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/services"
	"github.com/HammerMeetNail/campussafe/internal/storage"
)

const defaultNearbyRadiusKm = 1.0

type IncidentHandler struct {
	incidentService services.IncidentServiceInterface
}

func NewIncidentHandler(incidentService services.IncidentServiceInterface) *IncidentHandler {
	return &IncidentHandler{incidentService: incidentService}
}

type ReportIncidentRequest struct {
	Category     string   `json:"category" validate:"required,oneof=theft harassment suspicious_activity medical fire vandalism other"`
	Description  string   `json:"description" validate:"required,max=2000"`
	Latitude     *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude    *float64 `json:"longitude" validate:"omitempty,longitude"`
	LocationText *string  `json:"location_text" validate:"omitempty,max=200"`
}

type IncidentResponse struct {
	Incident *models.Incident `json:"incident"`
	Message  string           `json:"message,omitempty"`
}

type IncidentListResponse struct {
	Incidents []models.Incident `json:"incidents"`
}

type NearbyIncidentsResponse struct {
	Incidents []models.NearbyIncident `json:"incidents"`
	RadiusKm  float64                 `json:"radius_km"`
}

func (h *IncidentHandler) Report(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ReportIncidentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	incident, err := h.incidentService.Report(r.Context(), models.ReportIncidentParams{
		ReporterID:   user.ID,
		Category:     models.IncidentCategory(req.Category),
		Description:  req.Description,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		LocationText: req.LocationText,
	})
	if err != nil {
		writeServiceError(w, r, "report incident", err)
		return
	}

	writeJSON(w, http.StatusCreated, IncidentResponse{Incident: incident, Message: "Incident reported"})
}

// List returns recent incidents, optionally filtered by ?category= and
// capped by ?limit=.
func (h *IncidentHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var category *models.IncidentCategory
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		c := models.IncidentCategory(strings.ToLower(raw))
		if !c.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid incident category")
			return
		}
		category = &c
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	incidents, err := h.incidentService.ListRecent(r.Context(), category, limit)
	if err != nil {
		writeServiceError(w, r, "list incidents", err)
		return
	}
	if incidents == nil {
		incidents = []models.Incident{}
	}

	writeJSON(w, http.StatusOK, IncidentListResponse{Incidents: incidents})
}

func (h *IncidentHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	q := r.URL.Query()
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		writeError(w, http.StatusBadRequest, "lat and lng query parameters are required")
		return
	}
	radius := defaultNearbyRadiusKm
	if raw := q.Get("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "radius_km must be a number")
			return
		}
		radius = parsed
	}

	incidents, err := h.incidentService.ListNearby(r.Context(), lat, lng, radius)
	if err != nil {
		writeServiceError(w, r, "list nearby incidents", err)
		return
	}
	if incidents == nil {
		incidents = []models.NearbyIncident{}
	}

	writeJSON(w, http.StatusOK, NearbyIncidentsResponse{Incidents: incidents, RadiusKm: radius})
}

func (h *IncidentHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, ok := pathUUID(w, r, "id", "incident ID")
	if !ok {
		return
	}

	incident, err := h.incidentService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, "get incident", err)
		return
	}

	writeJSON(w, http.StatusOK, IncidentResponse{Incident: incident})
}

// UploadPhoto accepts a multipart form with a single "photo" file.
func (h *IncidentHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, ok := pathUUID(w, r, "id", "incident ID")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxPhotoBytes+(1<<20))
	file, _, err := r.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Photo is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxPhotoBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read photo")
		return
	}
	if len(data) > storage.MaxPhotoBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "Photo is too large")
		return
	}

	incident, err := h.incidentService.AttachPhoto(r.Context(), id, user.ID, data)
	if err != nil {
		writeServiceError(w, r, "attach incident photo", err)
		return
	}

	writeJSON(w, http.StatusOK, IncidentResponse{Incident: incident, Message: "Photo uploaded"})
}
