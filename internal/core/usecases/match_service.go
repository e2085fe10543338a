package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
	"github.com/samirrijal/neighborhelper/internal/pkg/metrics"
	"github.com/samirrijal/neighborhelper/internal/pkg/telemetry"
)

// MatchService pairs a helper with a help request and opens the live
// tracking session towards the requester.
type MatchService struct {
	feed      *FeedService
	sessions  *SessionService
	publisher ports.EventPublisher
}

// NewMatchService creates a new MatchService. publisher may be nil.
func NewMatchService(feed *FeedService, sessions *SessionService, publisher ports.EventPublisher) *MatchService {
	return &MatchService{feed: feed, sessions: sessions, publisher: publisher}
}

// Target resolves the requester behind a post.
func (s *MatchService) Target(ctx context.Context, postID string) (*domain.Post, domain.RequesterTarget, error) {
	post, err := s.feed.Get(ctx, postID)
	if err != nil {
		return nil, domain.RequesterTarget{}, err
	}
	if post.Location == nil {
		return nil, domain.RequesterTarget{}, fmt.Errorf("post %s has no location: %w", postID, domain.ErrInvalidCoordinate)
	}
	return post, domain.RequesterTarget{Point: *post.Location, Label: post.Username}, nil
}

// Match accepts the post, opens a tracking session and announces the match.
// The accept is rolled back if the session cannot be opened.
func (s *MatchService) Match(ctx context.Context, postID, helperID string) (*domain.Match, error) {
	ctx, span := tracer.Start(ctx, "MatchService.Match")
	defer span.End()
	span.SetAttributes(telemetry.AttrPostID.String(postID), telemetry.AttrHelperID.String(helperID))

	helperID = strings.TrimSpace(helperID)
	if helperID == "" {
		return nil, fmt.Errorf("helper id must not be empty")
	}

	post, target, err := s.Target(ctx, postID)
	if err != nil {
		return nil, err
	}
	if _, err := s.feed.Accept(ctx, postID); err != nil {
		return nil, err
	}

	sess, err := s.sessions.Open(ctx, target)
	if err != nil {
		if _, werr := s.feed.Withdraw(ctx, postID); werr != nil {
			slog.Error("withdraw after failed match", "post", postID, "error", werr)
		}
		metrics.MatchesTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("open session: %w", err)
	}

	m := &domain.Match{
		ID:        uuid.NewString(),
		PostID:    postID,
		HelperID:  helperID,
		SessionID: sess.ID,
		Requester: target,
		Address:   post.Address,
		MatchedAt: time.Now().UTC(),
	}
	s.announce(ctx, m)
	metrics.MatchesTotal.WithLabelValues("matched").Inc()
	return m, nil
}

// announce publishes the match event. Failures are logged, not returned.
func (s *MatchService) announce(ctx context.Context, m *domain.Match) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishMatch(ctx, m); err != nil {
		slog.Warn("publish match failed", "match", m.ID, "error", err)
	}
}
