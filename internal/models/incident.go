package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campussafe/internal/geo"
)

type IncidentCategory string

const (
	IncidentTheft              IncidentCategory = "theft"
	IncidentHarassment         IncidentCategory = "harassment"
	IncidentSuspiciousActivity IncidentCategory = "suspicious_activity"
	IncidentMedical            IncidentCategory = "medical"
	IncidentFire               IncidentCategory = "fire"
	IncidentVandalism          IncidentCategory = "vandalism"
	IncidentOther              IncidentCategory = "other"
)

var IncidentCategories = []IncidentCategory{
	IncidentTheft,
	IncidentHarassment,
	IncidentSuspiciousActivity,
	IncidentMedical,
	IncidentFire,
	IncidentVandalism,
	IncidentOther,
}

func (c IncidentCategory) Valid() bool {
	for _, known := range IncidentCategories {
		if c == known {
			return true
		}
	}
	return false
}

type Incident struct {
	ID           uuid.UUID        `json:"id"`
	ReporterID   uuid.UUID        `json:"reporter_id"`
	Category     IncidentCategory `json:"category"`
	Description  string           `json:"description"`
	Latitude     *float64         `json:"latitude,omitempty"`
	Longitude    *float64         `json:"longitude,omitempty"`
	LocationText *string          `json:"location_text,omitempty"`
	PhotoURL     *string          `json:"photo_url,omitempty"`
	ReportedAt   time.Time        `json:"reported_at"`
}

// Position implements geo.Locatable.
func (i Incident) Position() (geo.Point, bool) {
	if i.Latitude == nil || i.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *i.Latitude, Lng: *i.Longitude}, true
}

type ReportIncidentParams struct {
	ReporterID   uuid.UUID
	Category     IncidentCategory
	Description  string
	Latitude     *float64
	Longitude    *float64
	LocationText *string
}

// NearbyIncident is an incident annotated with its distance from the viewer.
type NearbyIncident struct {
	Incident
	DistanceKm float64 `json:"distance_km"`
}
