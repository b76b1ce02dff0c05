package service

import (
	"math"

	"github.com/fogsched/fogsched/internal/core/domain"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Distance returns the great circle distance between two points in
// kilometers. It is symmetric and returns 0 for identical coordinates.
func Distance(a, b domain.Location) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Asin(math.Sqrt(h))
}

// sanitizeLocation returns loc when it is usable and the configured default
// otherwise. Bad geography degrades placement quality, never correctness.
func sanitizeLocation(loc *domain.Location, fallback domain.Location) domain.Location {
	if loc == nil || !loc.Valid() {
		return fallback
	}
	return *loc
}
