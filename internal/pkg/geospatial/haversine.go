package geospatial

import "math"

const (
	earthRadiusKm = 6371.0
	// metres per degree of latitude, also per degree of longitude at the equator
	metersPerDegree = 111320.0
)

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return HaversineKm(lat1, lon1, lat2, lon2) * 1000
}

// HaversineKm is Haversine in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// rounding can push a marginally past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BoundingBox returns a box around a point with the given radius in meters.
// Near the poles the longitude span is the whole circle.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / metersPerDegree
	cos := math.Cos(toRad(lat))
	if cos < 1e-9 {
		return lat - latDelta, -180, lat + latDelta, 180
	}
	lonDelta := math.Min(180, radiusMeters/(metersPerDegree*cos))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// Interpolate returns the point a fraction t of the way from the first point
// to the second, linear in degrees. Good enough over a city.
func Interpolate(lat1, lon1, lat2, lon2, t float64) (lat, lon float64) {
	return lat1 + (lat2-lat1)*t, lon1 + (lon2-lon1)*t
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
