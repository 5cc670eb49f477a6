package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campussafe/internal/apperr"
	"github.com/HammerMeetNail/campussafe/internal/geo"
	"github.com/HammerMeetNail/campussafe/internal/logging"
	"github.com/HammerMeetNail/campussafe/internal/metrics"
	"github.com/HammerMeetNail/campussafe/internal/models"
)

var (
	ErrNotSharing         = apperr.New(apperr.KindInvalidState, "location sharing is disabled")
	ErrInvalidCoordinates = apperr.New(apperr.KindInvalidInput, "latitude must be within [-90, 90] and longitude within [-180, 180]")
)

// LocationChannelPrefix prefixes the Redis channel each owner's fixes are
// published on.
const LocationChannelPrefix = "location:"

func LocationChannel(ownerID uuid.UUID) string {
	return LocationChannelPrefix + ownerID.String()
}

// FriendshipChecker answers the symmetric friendship question.
type FriendshipChecker interface {
	FriendshipExists(ctx context.Context, a, b uuid.UUID) (bool, error)
}

type LocationService struct {
	db        DB
	friends   FriendshipChecker
	publisher Publisher
	now       func() time.Time
}

func NewLocationService(db DB, friends FriendshipChecker, publisher Publisher) *LocationService {
	return &LocationService{
		db:        db,
		friends:   friends,
		publisher: publisher,
		now:       time.Now,
	}
}

const locationColumns = "user_id, is_sharing, latitude, longitude, location_timestamp, updated_at"

func scanLocation(row Row) (*models.FriendLocation, error) {
	loc := &models.FriendLocation{}
	err := row.Scan(&loc.UserID, &loc.IsSharing, &loc.Latitude, &loc.Longitude, &loc.LocationTimestamp, &loc.UpdatedAt)
	return loc, err
}

// SetSharing toggles the owner's sharing flag. Stored coordinates are kept
// so re-enabling restores the last known position.
func (s *LocationService) SetSharing(ctx context.Context, userID uuid.UUID, enabled bool) (*models.FriendLocation, error) {
	loc, err := scanLocation(s.db.QueryRow(ctx,
		`INSERT INTO friend_locations (user_id, is_sharing)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET is_sharing = EXCLUDED.is_sharing, updated_at = NOW()
		 RETURNING `+locationColumns,
		userID, enabled,
	))
	if err != nil {
		return nil, apperr.Transient("setting location sharing", err)
	}
	return loc, nil
}

// PublishLocation stores a new fix for a sharing owner. Owners who are not
// sharing get ErrNotSharing and nothing is stored.
func (s *LocationService) PublishLocation(ctx context.Context, userID uuid.UUID, lat, lng float64, timestamp time.Time) (*models.FriendLocation, error) {
	if !(geo.Point{Lat: lat, Lng: lng}).Valid() {
		metrics.LocationPublishes.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidCoordinates
	}
	if timestamp.IsZero() {
		timestamp = s.now()
	}
	timestamp = timestamp.UTC()

	loc, err := scanLocation(s.db.QueryRow(ctx,
		`UPDATE friend_locations
		 SET latitude = $2, longitude = $3, location_timestamp = $4, updated_at = NOW()
		 WHERE user_id = $1 AND is_sharing = true
		 RETURNING `+locationColumns,
		userID, lat, lng, timestamp,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.LocationPublishes.WithLabelValues("not_sharing").Inc()
		return nil, ErrNotSharing
	}
	if err != nil {
		return nil, apperr.Transient("publishing location", err)
	}
	metrics.LocationPublishes.WithLabelValues("stored").Inc()

	s.broadcast(ctx, models.LocationUpdate{UserID: userID, Latitude: lat, Longitude: lng, Timestamp: timestamp})
	return loc, nil
}

func (s *LocationService) broadcast(ctx context.Context, update models.LocationUpdate) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(update)
	if err != nil {
		logging.Error("Failed to encode location update", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.publisher.Publish(ctx, LocationChannel(update.UserID), payload); err != nil {
		logging.Warn("Failed to publish location update", map[string]interface{}{
			"error":   err.Error(),
			"user_id": update.UserID.String(),
		})
	}
}

// GetOwnLocation returns the caller's own record, or nil when none exists.
func (s *LocationService) GetOwnLocation(ctx context.Context, userID uuid.UUID) (*models.FriendLocation, error) {
	loc, err := scanLocation(s.db.QueryRow(ctx,
		"SELECT "+locationColumns+" FROM friend_locations WHERE user_id = $1",
		userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Transient("getting location", err)
	}
	return loc, nil
}

// GetVisibleLocation applies the visibility rule: coordinates are returned
// only when viewer and owner are friends, the owner is sharing and a fix
// exists. A viewer always sees their own record.
func (s *LocationService) GetVisibleLocation(ctx context.Context, viewerID, ownerID uuid.UUID) (*models.LocationView, error) {
	if viewerID != ownerID {
		friends, err := s.friends.FriendshipExists(ctx, viewerID, ownerID)
		if err != nil {
			return nil, err
		}
		if !friends {
			return &models.LocationView{UserID: ownerID, Visibility: models.LocationNotVisible}, nil
		}
	}

	loc, err := s.GetOwnLocation(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		if viewerID == ownerID {
			return &models.LocationView{UserID: ownerID, Visibility: models.LocationNoData}, nil
		}
		return &models.LocationView{UserID: ownerID, Visibility: models.LocationNotVisible}, nil
	}

	sharing := loc.IsSharing || viewerID == ownerID
	view := buildLocationView(ownerID, "", sharing, loc.Latitude, loc.Longitude, loc.LocationTimestamp, s.now())
	return &view, nil
}

// ListFriendLocations returns one view per friend of viewerID.
func (s *LocationService) ListFriendLocations(ctx context.Context, viewerID uuid.UUID) ([]models.LocationView, error) {
	rows, err := s.db.Query(ctx,
		`SELECT u.id, u.username, COALESCE(fl.is_sharing, false), fl.latitude, fl.longitude, fl.location_timestamp
		 FROM friend_requests fr
		 JOIN users u ON u.id = CASE WHEN fr.requester_id = $1 THEN fr.addressee_id ELSE fr.requester_id END
		 LEFT JOIN friend_locations fl ON fl.user_id = u.id
		 WHERE (fr.requester_id = $1 OR fr.addressee_id = $1)
		   AND fr.status = 'accepted'
		 ORDER BY u.username`,
		viewerID,
	)
	if err != nil {
		return nil, apperr.Transient("listing friend locations", err)
	}
	defer rows.Close()

	now := s.now()
	views := []models.LocationView{}
	for rows.Next() {
		var (
			ownerID  uuid.UUID
			username string
			sharing  bool
			lat, lng *float64
			ts       *time.Time
		)
		if err := rows.Scan(&ownerID, &username, &sharing, &lat, &lng, &ts); err != nil {
			return nil, fmt.Errorf("scanning friend location: %w", err)
		}
		views = append(views, buildLocationView(ownerID, username, sharing, lat, lng, ts, now))
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Transient("listing friend locations", err)
	}
	return views, nil
}

func buildLocationView(ownerID uuid.UUID, username string, sharing bool, lat, lng *float64, ts *time.Time, now time.Time) models.LocationView {
	view := models.LocationView{UserID: ownerID, Username: username}
	switch {
	case !sharing:
		view.Visibility = models.LocationNotVisible
	case lat == nil || lng == nil:
		view.Visibility = models.LocationNoData
	default:
		view.Visibility = models.LocationVisible
		view.Latitude = lat
		view.Longitude = lng
		view.Timestamp = ts
		if ts != nil {
			view.LastSeen = models.Staleness(now, *ts)
		}
	}
	return view
}
