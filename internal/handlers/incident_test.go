package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/services"
	"github.com/HammerMeetNail/campussafe/internal/storage"
)

func TestIncidentHandler_Report_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"unknown category", `{"category":"ufo","description":"lights"}`, "category must be one of: theft harassment suspicious_activity medical fire vandalism other"},
		{"missing description", `{"category":"theft"}`, "description is required"},
		{"bad latitude", `{"category":"theft","description":"bike","latitude":120,"longitude":0}`, "latitude must be between -90 and 90"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewIncidentHandler(&mockIncidentService{ReportFunc: func(ctx context.Context, params models.ReportIncidentParams) (*models.Incident, error) {
				t.Fatal("Report should not be called")
				return nil, nil
			}})

			req, _ := newAuthedRequest(http.MethodPost, "/api/incidents", tt.body)
			rr := httptest.NewRecorder()
			handler.Report(rr, req)
			assertErrorResponse(t, rr, http.StatusBadRequest, tt.message)
		})
	}
}

func TestIncidentHandler_Report_Success(t *testing.T) {
	var got models.ReportIncidentParams
	handler := NewIncidentHandler(&mockIncidentService{ReportFunc: func(ctx context.Context, params models.ReportIncidentParams) (*models.Incident, error) {
		got = params
		return &models.Incident{ID: uuid.New(), ReporterID: params.ReporterID, Category: params.Category}, nil
	}})

	req, user := newAuthedRequest(http.MethodPost, "/api/incidents", `{"category":"theft","description":"bike stolen","latitude":51.5,"longitude":-0.12,"location_text":"Library racks"}`)
	rr := httptest.NewRecorder()
	handler.Report(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.ReporterID != user.ID || got.Category != models.IncidentTheft {
		t.Fatalf("unexpected params: %+v", got)
	}
	if got.Latitude == nil || *got.Latitude != 51.5 || got.LocationText == nil || *got.LocationText != "Library racks" {
		t.Fatalf("expected location fields to be forwarded, got %+v", got)
	}
}

func TestIncidentHandler_Report_ServiceValidation(t *testing.T) {
	handler := NewIncidentHandler(&mockIncidentService{ReportFunc: func(ctx context.Context, params models.ReportIncidentParams) (*models.Incident, error) {
		return nil, services.ErrIncompleteCoordinate
	}})

	req, _ := newAuthedRequest(http.MethodPost, "/api/incidents", `{"category":"theft","description":"bike","latitude":1}`)
	rr := httptest.NewRecorder()
	handler.Report(rr, req)
	assertErrorResponse(t, rr, http.StatusBadRequest, "latitude and longitude must be provided together")
}

func TestIncidentHandler_List_Filters(t *testing.T) {
	var gotCategory *models.IncidentCategory
	var gotLimit int
	handler := NewIncidentHandler(&mockIncidentService{ListRecentFunc: func(ctx context.Context, category *models.IncidentCategory, limit int) ([]models.Incident, error) {
		gotCategory, gotLimit = category, limit
		return []models.Incident{{ID: uuid.New()}}, nil
	}})

	req, _ := newAuthedRequest(http.MethodGet, "/api/incidents?category=Fire&limit=10", "")
	rr := httptest.NewRecorder()
	handler.List(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotCategory == nil || *gotCategory != models.IncidentFire || gotLimit != 10 {
		t.Fatalf("unexpected filters category=%v limit=%d", gotCategory, gotLimit)
	}
}

func TestIncidentHandler_List_BadParams(t *testing.T) {
	handler := NewIncidentHandler(&mockIncidentService{})

	tests := map[string]string{
		"/api/incidents?category=aliens": "Invalid incident category",
		"/api/incidents?limit=abc":       "limit must be a positive integer",
	}
	for target, message := range tests {
		req, _ := newAuthedRequest(http.MethodGet, target, "")
		rr := httptest.NewRecorder()
		handler.List(rr, req)
		assertErrorResponse(t, rr, http.StatusBadRequest, message)
	}
}

func TestIncidentHandler_Nearby(t *testing.T) {
	var gotLat, gotLng, gotRadius float64
	handler := NewIncidentHandler(&mockIncidentService{ListNearbyFunc: func(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyIncident, error) {
		gotLat, gotLng, gotRadius = lat, lng, radiusKm
		return []models.NearbyIncident{{DistanceKm: 0.4}}, nil
	}})

	req, _ := newAuthedRequest(http.MethodGet, "/api/incidents/nearby?lat=51.5&lng=-0.12&radius_km=2.5", "")
	rr := httptest.NewRecorder()
	handler.Nearby(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotLat != 51.5 || gotLng != -0.12 || gotRadius != 2.5 {
		t.Fatalf("unexpected args %v %v %v", gotLat, gotLng, gotRadius)
	}
	var resp NearbyIncidentsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Incidents) != 1 || resp.RadiusKm != 2.5 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestIncidentHandler_Nearby_DefaultRadius(t *testing.T) {
	var gotRadius float64
	handler := NewIncidentHandler(&mockIncidentService{ListNearbyFunc: func(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyIncident, error) {
		gotRadius = radiusKm
		return nil, nil
	}})

	req, _ := newAuthedRequest(http.MethodGet, "/api/incidents/nearby?lat=0&lng=0", "")
	rr := httptest.NewRecorder()
	handler.Nearby(rr, req)

	if gotRadius != defaultNearbyRadiusKm {
		t.Fatalf("expected default radius, got %v", gotRadius)
	}
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if string(resp["incidents"]) != "[]" {
		t.Fatalf("expected empty array, got %s", resp["incidents"])
	}
}

func TestIncidentHandler_Nearby_BadParams(t *testing.T) {
	handler := NewIncidentHandler(&mockIncidentService{})

	req, _ := newAuthedRequest(http.MethodGet, "/api/incidents/nearby?lat=abc&lng=0", "")
	rr := httptest.NewRecorder()
	handler.Nearby(rr, req)
	assertErrorResponse(t, rr, http.StatusBadRequest, "lat and lng query parameters are required")

	req, _ = newAuthedRequest(http.MethodGet, "/api/incidents/nearby?lat=0&lng=0&radius_km=far", "")
	rr = httptest.NewRecorder()
	handler.Nearby(rr, req)
	assertErrorResponse(t, rr, http.StatusBadRequest, "radius_km must be a number")
}

func TestIncidentHandler_Nearby_InvalidRadius(t *testing.T) {
	handler := NewIncidentHandler(&mockIncidentService{ListNearbyFunc: func(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyIncident, error) {
		return nil, services.ErrInvalidRadius
	}})

	req, _ := newAuthedRequest(http.MethodGet, "/api/incidents/nearby?lat=0&lng=0&radius_km=500", "")
	rr := httptest.NewRecorder()
	handler.Nearby(rr, req)
	assertErrorResponse(t, rr, http.StatusBadRequest, "radius must be between 0 and 100 km")
}

func TestIncidentHandler_Get_NotFound(t *testing.T) {
	handler := NewIncidentHandler(&mockIncidentService{})

	id := uuid.New()
	req, _ := newAuthedRequest(http.MethodGet, "/api/incidents/"+id.String(), "")
	req.SetPathValue("id", id.String())
	rr := httptest.NewRecorder()
	handler.Get(rr, req)
	assertErrorResponse(t, rr, http.StatusNotFound, "incident not found")
}

func multipartPhoto(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile(field, "photo.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, mw.FormDataContentType()
}

var testPNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func TestIncidentHandler_UploadPhoto(t *testing.T) {
	incidentID := uuid.New()
	var gotData []byte
	var gotReporter uuid.UUID
	handler := NewIncidentHandler(&mockIncidentService{AttachPhotoFunc: func(ctx context.Context, id, reporterID uuid.UUID, data []byte) (*models.Incident, error) {
		gotData, gotReporter = data, reporterID
		url := fmt.Sprintf("https://cdn.test/incidents/%s/photo.png", id)
		return &models.Incident{ID: id, ReporterID: reporterID, PhotoURL: &url}, nil
	}})

	body, contentType := multipartPhoto(t, "photo", testPNG)
	req := httptest.NewRequest(http.MethodPost, "/api/incidents/"+incidentID.String()+"/photo", body)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("id", incidentID.String())
	user := &models.User{ID: uuid.New()}
	req = withUser(req, user)

	rr := httptest.NewRecorder()
	handler.UploadPhoto(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !bytes.Equal(gotData, testPNG) || gotReporter != user.ID {
		t.Fatalf("unexpected upload forwarded: %d bytes by %s", len(gotData), gotReporter)
	}
}

func TestIncidentHandler_UploadPhoto_MissingFile(t *testing.T) {
	handler := NewIncidentHandler(&mockIncidentService{})

	body, contentType := multipartPhoto(t, "image", testPNG)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("id", uuid.NewString())
	req = withUser(req, &models.User{ID: uuid.New()})

	rr := httptest.NewRecorder()
	handler.UploadPhoto(rr, req)
	assertErrorResponse(t, rr, http.StatusBadRequest, "photo file is required")
}

func TestIncidentHandler_UploadPhoto_TooLarge(t *testing.T) {
	handler := NewIncidentHandler(&mockIncidentService{AttachPhotoFunc: func(ctx context.Context, id, reporterID uuid.UUID, data []byte) (*models.Incident, error) {
		t.Fatal("AttachPhoto should not be called")
		return nil, nil
	}})

	big := make([]byte, storage.MaxPhotoBytes+1)
	copy(big, testPNG)
	body, contentType := multipartPhoto(t, "photo", big)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("id", uuid.NewString())
	req = withUser(req, &models.User{ID: uuid.New()})

	rr := httptest.NewRecorder()
	handler.UploadPhoto(rr, req)
	assertErrorResponse(t, rr, http.StatusRequestEntityTooLarge, "Photo is too large")
}

func TestIncidentHandler_UploadPhoto_NotReporter(t *testing.T) {
	handler := NewIncidentHandler(&mockIncidentService{AttachPhotoFunc: func(ctx context.Context, id, reporterID uuid.UUID, data []byte) (*models.Incident, error) {
		return nil, services.ErrNotReporter
	}})

	body, contentType := multipartPhoto(t, "photo", testPNG)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("id", uuid.NewString())
	req = withUser(req, &models.User{ID: uuid.New()})

	rr := httptest.NewRecorder()
	handler.UploadPhoto(rr, req)
	assertErrorResponse(t, rr, http.StatusForbidden, "only the reporter can attach a photo")
}

func TestIncidentHandler_UploadPhoto_WrappedInvalidPhoto(t *testing.T) {
	handler := NewIncidentHandler(&mockIncidentService{AttachPhotoFunc: func(ctx context.Context, id, reporterID uuid.UUID, data []byte) (*models.Incident, error) {
		return nil, fmt.Errorf("%w: %v", services.ErrInvalidPhoto, "text/plain")
	}})

	body, contentType := multipartPhoto(t, "photo", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("id", uuid.NewString())
	req = withUser(req, &models.User{ID: uuid.New()})

	rr := httptest.NewRecorder()
	handler.UploadPhoto(rr, req)
	assertErrorResponse(t, rr, http.StatusBadRequest, "photo must be a JPEG, PNG, WebP or HEIC image up to 10 MiB")
}
