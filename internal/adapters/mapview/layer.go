// Package mapview keeps the marker overlays of a tracking screen's map.
package mapview

import (
	"math"
	"sync"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
	"github.com/samirrijal/neighborhelper/internal/pkg/geospatial"
)

// DefaultRadiusMeters is the minimum half-width of the viewport around the
// requester, roughly a zoom-15 street view.
const DefaultRadiusMeters = 1000.0

// viewport padding as a fraction of the span covering all markers
const padding = 0.1

// Layer is an ordered overlay list. Markers are drawn in insertion order;
// Upsert replaces a marker by moving it to the top.
type Layer struct {
	anchor    domain.GeoPoint
	requester string
	radius    float64

	mu       sync.RWMutex
	overlays []domain.Marker
}

var _ ports.MarkerSurface = (*Layer)(nil)

// NewLayer creates an empty layer centred on target.
func NewLayer(target domain.RequesterTarget) *Layer {
	return &Layer{anchor: target.Point, requester: target.Label, radius: DefaultRadiusMeters}
}

// NewSurface adapts NewLayer to the session factory signature.
func NewSurface(target domain.RequesterTarget) ports.MarkerSurface {
	return NewLayer(target)
}

// Upsert replaces every marker labelled label with one at p.
func (l *Layer) Upsert(label string, p domain.GeoPoint) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.overlays[:0]
	for _, m := range l.overlays {
		if m.Label != label {
			kept = append(kept, m)
		}
	}
	l.overlays = append(kept, domain.Marker{Label: label, Snippet: l.snippet(label), Point: p})
}

func (l *Layer) snippet(label string) string {
	switch label {
	case l.requester:
		return domain.RequesterSnippet
	case domain.UserMarkerLabel:
		return domain.UserSnippet
	}
	return ""
}

// RemoveAllExcept drops every marker whose label is not listed.
func (l *Layer) RemoveAllExcept(labels ...string) {
	keep := make(map[string]struct{}, len(labels))
	for _, s := range labels {
		keep[s] = struct{}{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.overlays[:0]
	for _, m := range l.overlays {
		if _, ok := keep[m.Label]; ok {
			kept = append(kept, m)
		}
	}
	l.overlays = kept
}

// Markers returns a copy of the overlays in draw order.
func (l *Layer) Markers() []domain.Marker {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Marker, len(l.overlays))
	copy(out, l.overlays)
	return out
}

// Viewport returns a box around the requester that contains every marker.
func (l *Layer) Viewport() domain.Bounds {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(l.anchor.Lat, l.anchor.Lon, l.radius)

	l.mu.RLock()
	for _, m := range l.overlays {
		if m.Point.Validate() != nil {
			continue
		}
		minLat = math.Min(minLat, m.Point.Lat)
		maxLat = math.Max(maxLat, m.Point.Lat)
		minLon = math.Min(minLon, m.Point.Lon)
		maxLon = math.Max(maxLon, m.Point.Lon)
	}
	l.mu.RUnlock()

	padLat := (maxLat - minLat) * padding / 2
	padLon := (maxLon - minLon) * padding / 2
	return domain.Bounds{
		MinLat: math.Max(-90, minLat-padLat),
		MinLon: math.Max(-180, minLon-padLon),
		MaxLat: math.Min(90, maxLat+padLat),
		MaxLon: math.Min(180, maxLon+padLon),
	}
}
