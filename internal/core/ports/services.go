package ports

import (
	"context"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
)

// Dispatcher runs tasks on a serialized execution context.
type Dispatcher interface {
	// Post enqueues fn. It returns false if the context no longer accepts work.
	Post(fn func()) bool
}

// PermissionGate tracks whether location access is granted.
type PermissionGate interface {
	CurrentStatus() domain.PermissionStatus
	// RequestPermission prompts for consent. onResult is called exactly once,
	// on the gate's dispatcher, and never before RequestPermission returns.
	RequestPermission(onResult func(granted bool))
	// Watch registers fn for status changes, including external revocation.
	Watch(fn func(domain.PermissionStatus)) (cancel func())
}

// ConsentPrompter shows the platform consent prompt to the user.
type ConsentPrompter interface {
	Prompt(ctx context.Context) error
}

// PositionProvider is a push-based source of device position fixes.
type PositionProvider interface {
	// LastKnown returns a cached fix if one exists.
	LastKnown(ctx context.Context) (domain.GeoPoint, bool, error)
	// Subscribe starts delivering fixes to onFix until cancel is called.
	// Implementations must not invoke onFix before Subscribe returns.
	Subscribe(ctx context.Context, policy domain.DeliveryPolicy, onFix func(domain.GeoPoint)) (cancel func(), err error)
}

// MarkerPresenter is the map rendering surface.
type MarkerPresenter interface {
	Upsert(label string, point domain.GeoPoint)
	RemoveAllExcept(labels ...string)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishTrackingState(ctx context.Context, sessionID string, state domain.TrackingState) error
	PublishMatch(ctx context.Context, match *domain.Match) error
	PublishPermissionPrompt(ctx context.Context, sessionID string) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// MarkerSurface is a MarkerPresenter whose contents can be read back.
type MarkerSurface interface {
	MarkerPresenter
	Markers() []domain.Marker
	Viewport() domain.Bounds
}
