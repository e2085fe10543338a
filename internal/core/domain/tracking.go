package domain

import (
	"fmt"
	"time"
)

// UserMarkerLabel is the label of the live "current position" marker.
const UserMarkerLabel = "Your Location"

// Marker snippets shown under the requester and user pins.
const (
	RequesterSnippet = "Requester Location"
	UserSnippet      = "Current Position"
)

// PermissionStatus is the location-access permission as seen by the app.
type PermissionStatus int

const (
	PermissionUnknown PermissionStatus = iota
	PermissionDenied
	PermissionGranted
)

func (s PermissionStatus) String() string {
	switch s {
	case PermissionDenied:
		return "denied"
	case PermissionGranted:
		return "granted"
	default:
		return "unknown"
	}
}

// MarshalText lets the status appear as a string in JSON payloads.
func (s PermissionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PermissionStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "denied":
		*s = PermissionDenied
	case "granted":
		*s = PermissionGranted
	case "unknown", "":
		*s = PermissionUnknown
	default:
		return fmt.Errorf("unknown permission status %q", b)
	}
	return nil
}

// TrackingPhase is the state of a tracking controller.
type TrackingPhase int

const (
	PhaseAwaitingPermission TrackingPhase = iota
	PhaseDenied
	PhaseTracking
	PhaseDisposed
)

func (p TrackingPhase) String() string {
	switch p {
	case PhaseDenied:
		return "denied"
	case PhaseTracking:
		return "tracking"
	case PhaseDisposed:
		return "disposed"
	default:
		return "awaiting_permission"
	}
}

func (p TrackingPhase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *TrackingPhase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "awaiting_permission":
		*p = PhaseAwaitingPermission
	case "denied":
		*p = PhaseDenied
	case "tracking":
		*p = PhaseTracking
	case "disposed":
		*p = PhaseDisposed
	default:
		return fmt.Errorf("unknown tracking phase %q", b)
	}
	return nil
}

// DeliveryPolicy carries the interval and displacement hints for position updates.
type DeliveryPolicy struct {
	Interval              time.Duration `json:"interval"`
	MinDisplacementMeters float64       `json:"min_displacement_m"`
}

// SubscriptionHandle identifies one live registration for position updates.
// The zero value is not a valid handle.
type SubscriptionHandle struct {
	id uint64
}

// NewSubscriptionHandle wraps a registration id.
func NewSubscriptionHandle(id uint64) SubscriptionHandle {
	return SubscriptionHandle{id: id}
}

// ID returns the registration id, 0 for the zero handle.
func (h SubscriptionHandle) ID() uint64 { return h.id }

// Valid reports whether the handle refers to a registration.
func (h SubscriptionHandle) Valid() bool { return h.id != 0 }

// TrackingState is the snapshot the UI observes. Only the controller builds it.
type TrackingState struct {
	Phase            TrackingPhase    `json:"phase"`
	Permission       PermissionStatus `json:"permission"`
	LastUserPosition *GeoPoint        `json:"last_user_position,omitempty"`
	DistanceKm       *float64         `json:"distance_km,omitempty"`
	Stale            bool             `json:"stale"`
	Unavailable      bool             `json:"unavailable"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// DistanceText is the headline shown in the distance card.
func (s TrackingState) DistanceText() string {
	switch {
	case s.Permission != PermissionGranted:
		return "Permission Required"
	case s.Unavailable:
		return "Location Unavailable"
	case s.DistanceKm != nil:
		return fmt.Sprintf("%.1f km", *s.DistanceKm)
	default:
		return "Calculating..."
	}
}

// Subtitle is the secondary line of the distance card.
func (s TrackingState) Subtitle() string {
	if s.Permission != PermissionGranted {
		return "Tap to enable location"
	}
	return "Distance to location"
}

// Live reports whether the live indicator should be lit.
func (s TrackingState) Live() bool {
	return s.Permission == PermissionGranted && s.Phase == PhaseTracking && !s.Unavailable
}

// Indicator is the text of the live/offline badge.
func (s TrackingState) Indicator() string {
	if s.Live() {
		return "Live"
	}
	return "Offline"
}
