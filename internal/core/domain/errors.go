package domain

import "errors"

var (
	// ErrPermissionDenied is returned when location access has not been granted.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrInvalidCoordinate is returned for malformed coordinates.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrProviderUnavailable is returned when no position source can be used.
	ErrProviderUnavailable = errors.New("position provider unavailable")
	// ErrSubscriptionActive is returned when a second subscription is started
	// while one is still live.
	ErrSubscriptionActive = errors.New("location subscription already active")
	ErrNotFound           = errors.New("not found")
	ErrSessionClosed      = errors.New("tracking session closed")
	// ErrNoPendingRequest is returned when a consent decision arrives with
	// no permission request waiting for it.
	ErrNoPendingRequest = errors.New("no permission request pending")
	// ErrMatchInProgress is returned when a post already has a running match.
	ErrMatchInProgress = errors.New("post is already being matched")
)
