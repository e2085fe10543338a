package usecases

import (
	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/pkg/geospatial"
)

// DistanceKm returns the great-circle distance between two points in kilometers.
// Malformed input yields domain.ErrInvalidCoordinate instead of NaN.
func DistanceKm(a, b domain.GeoPoint) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	return geospatial.HaversineKm(a.Lat, a.Lon, b.Lat, b.Lon), nil
}
