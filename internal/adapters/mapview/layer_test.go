package mapview

import (
	"testing"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
)

var (
	requester = domain.RequesterTarget{Point: domain.GeoPoint{Lat: 23.8380, Lon: 90.3753}, Label: "Maishan Nadis"}
	far       = domain.GeoPoint{Lat: 23.7104, Lon: 90.4074}
)

func labels(ms []domain.Marker) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Label
	}
	return out
}

func TestLayer_UpsertReplacesSameLabel(t *testing.T) {
	l := NewLayer(requester)
	l.Upsert(requester.Label, requester.Point)
	l.Upsert(domain.UserMarkerLabel, far)
	l.Upsert(domain.UserMarkerLabel, requester.Point)

	ms := l.Markers()
	if len(ms) != 2 {
		t.Fatalf("expected 2 markers, got %v", labels(ms))
	}
	if ms[1].Label != domain.UserMarkerLabel || ms[1].Point != requester.Point {
		t.Errorf("user marker not replaced: %+v", ms[1])
	}
}

func TestLayer_RemoveAllExcept(t *testing.T) {
	l := NewLayer(requester)
	l.Upsert("stale overlay", far)
	l.Upsert(requester.Label, requester.Point)
	l.Upsert(domain.UserMarkerLabel, far)

	l.RemoveAllExcept(requester.Label, domain.UserMarkerLabel)

	got := labels(l.Markers())
	if len(got) != 2 || got[0] != requester.Label || got[1] != domain.UserMarkerLabel {
		t.Errorf("unexpected overlays after prune: %v", got)
	}
}

func TestLayer_MarkersIsACopy(t *testing.T) {
	l := NewLayer(requester)
	l.Upsert(requester.Label, requester.Point)

	ms := l.Markers()
	ms[0].Label = "mutated"
	if l.Markers()[0].Label != requester.Label {
		t.Error("Markers leaked internal slice")
	}
}

func TestLayer_ViewportContainsAllMarkers(t *testing.T) {
	l := NewLayer(requester)
	l.Upsert(requester.Label, requester.Point)

	v := l.Viewport()
	if v.MinLat >= requester.Point.Lat || v.MaxLat <= requester.Point.Lat {
		t.Errorf("viewport %+v does not surround requester", v)
	}

	l.Upsert(domain.UserMarkerLabel, far)
	v = l.Viewport()
	for _, m := range l.Markers() {
		if m.Point.Lat < v.MinLat || m.Point.Lat > v.MaxLat || m.Point.Lon < v.MinLon || m.Point.Lon > v.MaxLon {
			t.Errorf("marker %s at %+v outside viewport %+v", m.Label, m.Point, v)
		}
	}
}

func TestLayer_Snippets(t *testing.T) {
	l := NewLayer(requester)
	l.Upsert(requester.Label, requester.Point)
	l.Upsert(domain.UserMarkerLabel, far)
	l.Upsert("other", far)

	want := map[string]string{
		requester.Label:        "Requester Location",
		domain.UserMarkerLabel: "Current Position",
		"other":                "",
	}
	for _, m := range l.Markers() {
		if m.Snippet != want[m.Label] {
			t.Errorf("marker %q snippet = %q, want %q", m.Label, m.Snippet, want[m.Label])
		}
	}
}
