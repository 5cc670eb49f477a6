// Package geo holds the great-circle math used by the incident map.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Valid reports whether the point is inside the WGS84 coordinate ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lng)
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Locatable is anything with an optional position.
type Locatable interface {
	Position() (Point, bool)
}

// Nearby is an item with its distance from the search center.
type Nearby[T Locatable] struct {
	Item       T
	DistanceKm float64
}

// WithinRadius keeps the items whose distance from center is at most
// radiusKm, preserving input order. Items without a position are dropped.
func WithinRadius[T Locatable](center Point, items []T, radiusKm float64) []Nearby[T] {
	out := make([]Nearby[T], 0, len(items))
	if radiusKm < 0 {
		return out
	}
	for _, item := range items {
		p, ok := item.Position()
		if !ok {
			continue
		}
		d := Haversine(center, p)
		if d <= radiusKm {
			out = append(out, Nearby[T]{Item: item, DistanceKm: d})
		}
	}
	return out
}

// BoundingBox returns the lat/lng box enclosing the circle, used to narrow
// the SQL query before the exact haversine check.
func BoundingBox(center Point, radiusKm float64) (minLat, maxLat, minLng, maxLng float64) {
	dLat := radiusKm / EarthRadiusKm * 180 / math.Pi
	minLat = math.Max(center.Lat-dLat, -90)
	maxLat = math.Min(center.Lat+dLat, 90)

	cosLat := math.Cos(toRadians(center.Lat))
	if cosLat < 1e-9 || minLat == -90 || maxLat == 90 {
		return minLat, maxLat, -180, 180
	}
	dLng := radiusKm / (EarthRadiusKm * cosLat) * 180 / math.Pi
	if dLng >= 180 {
		return minLat, maxLat, -180, 180
	}
	minLng = center.Lng - dLng
	maxLng = center.Lng + dLng
	if minLng < -180 || maxLng > 180 {
		// crosses the antimeridian
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, minLng, maxLng
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
