package domain

import (
	"fmt"
	"math"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate reports ErrInvalidCoordinate for NaN, infinite or out-of-range values.
func (p GeoPoint) Validate() error {
	switch {
	case math.IsNaN(p.Lat) || math.IsNaN(p.Lon):
		return fmt.Errorf("%w: NaN in (%v, %v)", ErrInvalidCoordinate, p.Lat, p.Lon)
	case math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0):
		return fmt.Errorf("%w: infinite value in (%v, %v)", ErrInvalidCoordinate, p.Lat, p.Lon)
	case p.Lat < -90 || p.Lat > 90:
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, p.Lat)
	case p.Lon < -180 || p.Lon > 180:
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, p.Lon)
	}
	return nil
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// RequesterTarget is the fixed position of the person who asked for help.
type RequesterTarget struct {
	Point GeoPoint `json:"point"`
	Label string   `json:"label"`
}

// Marker is a labelled pin on the map surface.
type Marker struct {
	Label   string   `json:"label"`
	Snippet string   `json:"snippet,omitempty"`
	Point   GeoPoint `json:"point"`
}
