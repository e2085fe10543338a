package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/usecases"
)

// Matcher pairs a helper with a post. Implemented by usecases.MatchService
// and workflows.TemporalMatcher.
type Matcher interface {
	Match(ctx context.Context, postID, helperID string) (*domain.Match, error)
}

// FixSink accepts device fixes pushed over HTTP (memory provider only).
type FixSink interface {
	Emit(fix domain.GeoPoint)
}

// Pinger is a dependency that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Feed     *usecases.FeedService
	Sessions *usecases.SessionService
	Matches  Matcher
	Device   FixSink
	NATS     *nats.Conn
	Cache    Pinger
}
