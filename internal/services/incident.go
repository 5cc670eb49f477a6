package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campussafe/internal/apperr"
	"github.com/HammerMeetNail/campussafe/internal/geo"
	"github.com/HammerMeetNail/campussafe/internal/metrics"
	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/storage"
)

var (
	ErrIncidentNotFound     = apperr.New(apperr.KindNotFound, "incident not found")
	ErrInvalidCategory      = apperr.New(apperr.KindInvalidInput, "unknown incident category")
	ErrDescriptionRequired  = apperr.New(apperr.KindInvalidInput, "description is required")
	ErrIncompleteCoordinate = apperr.New(apperr.KindInvalidInput, "latitude and longitude must be provided together")
	ErrInvalidRadius        = apperr.New(apperr.KindInvalidInput, "radius must be between 0 and 100 km")
	ErrNotReporter          = apperr.New(apperr.KindAuthorization, "only the reporter can attach a photo")
	ErrInvalidPhoto         = apperr.New(apperr.KindInvalidInput, "photo must be a JPEG, PNG, WebP or HEIC image up to 10 MiB")
)

const (
	defaultIncidentLimit = 50
	maxIncidentLimit     = 200
	maxNearbyRadiusKm    = 100.0
)

type IncidentService struct {
	db     DB
	photos storage.ObjectStore
}

func NewIncidentService(db DB, photos storage.ObjectStore) *IncidentService {
	return &IncidentService{db: db, photos: photos}
}

const incidentColumns = "id, reporter_id, category, description, latitude, longitude, location_text, photo_url, reported_at"

func scanIncident(row Row) (*models.Incident, error) {
	i := &models.Incident{}
	err := row.Scan(&i.ID, &i.ReporterID, &i.Category, &i.Description, &i.Latitude, &i.Longitude, &i.LocationText, &i.PhotoURL, &i.ReportedAt)
	return i, err
}

func (s *IncidentService) Report(ctx context.Context, params models.ReportIncidentParams) (*models.Incident, error) {
	if !params.Category.Valid() {
		return nil, ErrInvalidCategory
	}
	params.Description = strings.TrimSpace(params.Description)
	if params.Description == "" {
		return nil, ErrDescriptionRequired
	}
	if (params.Latitude == nil) != (params.Longitude == nil) {
		return nil, ErrIncompleteCoordinate
	}
	if params.Latitude != nil && !(geo.Point{Lat: *params.Latitude, Lng: *params.Longitude}).Valid() {
		return nil, ErrInvalidCoordinates
	}

	incident, err := scanIncident(s.db.QueryRow(ctx,
		`INSERT INTO incidents (reporter_id, category, description, latitude, longitude, location_text)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+incidentColumns,
		params.ReporterID, params.Category, params.Description, params.Latitude, params.Longitude, params.LocationText,
	))
	if err != nil {
		return nil, apperr.Transient("creating incident", err)
	}

	metrics.IncidentReports.WithLabelValues(string(incident.Category)).Inc()
	return incident, nil
}

func (s *IncidentService) Get(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	incident, err := scanIncident(s.db.QueryRow(ctx, "SELECT "+incidentColumns+" FROM incidents WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrIncidentNotFound
	}
	if err != nil {
		return nil, apperr.Transient("getting incident", err)
	}
	return incident, nil
}

// ListRecent returns the newest incidents, optionally filtered by category.
func (s *IncidentService) ListRecent(ctx context.Context, category *models.IncidentCategory, limit int) ([]models.Incident, error) {
	if limit <= 0 || limit > maxIncidentLimit {
		limit = defaultIncidentLimit
	}
	if category != nil && !category.Valid() {
		return nil, ErrInvalidCategory
	}

	query := "SELECT " + incidentColumns + " FROM incidents"
	args := []any{}
	if category != nil {
		query += " WHERE category = $1"
		args = append(args, *category)
	}
	query += fmt.Sprintf(" ORDER BY reported_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	return s.queryIncidents(ctx, "listing incidents", query, args...)
}

// ListNearby returns incidents within radiusKm of (lat, lng), closest first.
// The bounding box narrows the query; the haversine filter decides.
func (s *IncidentService) ListNearby(ctx context.Context, lat, lng, radiusKm float64) ([]models.NearbyIncident, error) {
	center := geo.Point{Lat: lat, Lng: lng}
	if !center.Valid() {
		return nil, ErrInvalidCoordinates
	}
	if radiusKm < 0 || radiusKm > maxNearbyRadiusKm {
		return nil, ErrInvalidRadius
	}

	minLat, maxLat, minLng, maxLng := geo.BoundingBox(center, radiusKm)
	candidates, err := s.queryIncidents(ctx, "listing nearby incidents",
		`SELECT `+incidentColumns+` FROM incidents
		 WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		   AND latitude BETWEEN $1 AND $2
		   AND longitude BETWEEN $3 AND $4
		 ORDER BY reported_at DESC
		 LIMIT $5`,
		minLat, maxLat, minLng, maxLng, maxIncidentLimit,
	)
	if err != nil {
		return nil, err
	}

	within := geo.WithinRadius(center, candidates, radiusKm)
	sort.SliceStable(within, func(i, j int) bool {
		return within[i].DistanceKm < within[j].DistanceKm
	})

	nearby := make([]models.NearbyIncident, 0, len(within))
	for _, n := range within {
		nearby = append(nearby, models.NearbyIncident{Incident: n.Item, DistanceKm: n.DistanceKm})
	}
	return nearby, nil
}

// AttachPhoto uploads data as the incident's photo. Only the reporter may
// attach one.
func (s *IncidentService) AttachPhoto(ctx context.Context, incidentID, reporterID uuid.UUID, data []byte) (*models.Incident, error) {
	incident, err := s.Get(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if incident.ReporterID != reporterID {
		return nil, ErrNotReporter
	}

	contentType, ext, err := storage.DetectImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPhoto, err)
	}

	key := fmt.Sprintf("incidents/%s/%s%s", incidentID, uuid.New(), ext)
	url, err := s.photos.Put(ctx, key, contentType, data)
	if err != nil {
		return nil, apperr.Transient("uploading incident photo", err)
	}

	updated, err := scanIncident(s.db.QueryRow(ctx,
		`UPDATE incidents SET photo_url = $1 WHERE id = $2 RETURNING `+incidentColumns,
		url, incidentID,
	))
	if err != nil {
		return nil, apperr.Transient("saving incident photo", err)
	}
	return updated, nil
}

func (s *IncidentService) queryIncidents(ctx context.Context, op, query string, args ...any) ([]models.Incident, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Transient(op, err)
	}
	defer rows.Close()

	incidents := []models.Incident{}
	for rows.Next() {
		i, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning incident: %w", err)
		}
		incidents = append(incidents, *i)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient(op, err)
	}
	return incidents, nil
}
