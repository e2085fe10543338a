package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
	"github.com/samirrijal/neighborhelper/internal/core/usecases"
)

// Application error types carried across the Temporal boundary.
const (
	errTypeNotFound          = "not_found"
	errTypeInvalidCoordinate = "invalid_coordinate"
)

// MatchTarget is what the workflow needs to know about the post being matched.
type MatchTarget struct {
	Requester domain.RequesterTarget
	Address   string
}

// AcceptInput identifies the post a workflow run accepts.
type AcceptInput struct {
	PostID string
	RunID  string
}

// OpenSessionInput carries the requester a workflow run tracks towards.
type OpenSessionInput struct {
	RunID     string
	Requester domain.RequesterTarget
}

// MatchActivities holds the activity implementations for the match workflow.
// The session service is in-process, so the worker runs inside the API server.
// Side effects are recorded per workflow run so a retried attempt does not
// repeat them.
type MatchActivities struct {
	Matches   *usecases.MatchService
	Feed      *usecases.FeedService
	Sessions  *usecases.SessionService
	Publisher ports.EventPublisher

	mu       sync.Mutex
	accepted map[string]bool   // run id
	opened   map[string]string // run id -> session id
}

// ResolveTarget looks up the post and the requester location it carries.
func (a *MatchActivities) ResolveTarget(ctx context.Context, postID string) (MatchTarget, error) {
	post, target, err := a.Matches.Target(ctx, postID)
	if err != nil {
		return MatchTarget{}, nonRetryable(err)
	}
	return MatchTarget{Requester: target, Address: post.Address}, nil
}

// AcceptPost marks the post accepted, once per workflow run.
func (a *MatchActivities) AcceptPost(ctx context.Context, in AcceptInput) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accepted[in.RunID] {
		return nil
	}
	if _, err := a.Feed.Accept(ctx, in.PostID); err != nil {
		return nonRetryable(fmt.Errorf("accept post: %w", err))
	}
	if a.accepted == nil {
		a.accepted = make(map[string]bool)
	}
	a.accepted[in.RunID] = true
	return nil
}

// WithdrawPost undoes AcceptPost (saga compensation).
func (a *MatchActivities) WithdrawPost(ctx context.Context, in AcceptInput) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.Feed.Withdraw(ctx, in.PostID); err != nil {
		return fmt.Errorf("withdraw post %s: %w", in.PostID, err)
	}
	delete(a.accepted, in.RunID)
	slog.Info("post acceptance withdrawn (saga compensation)", "post", in.PostID)
	return nil
}

// OpenSession starts tracking towards the requester and returns the session
// ID. A retry of the same run gets the session the earlier attempt opened
// while it is still live.
func (a *MatchActivities) OpenSession(ctx context.Context, in OpenSessionInput) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.opened[in.RunID]; ok {
		if _, err := a.Sessions.Get(id); err == nil {
			return id, nil
		}
	}
	sess, err := a.Sessions.Open(ctx, in.Requester)
	if err != nil {
		return "", nonRetryable(fmt.Errorf("open session: %w", err))
	}
	if a.opened == nil {
		a.opened = make(map[string]string)
	}
	a.opened[in.RunID] = sess.ID
	return sess.ID, nil
}

// PublishMatch announces the match on the event bus. The match ID is the
// run ID, so the run's bookkeeping is dropped here.
func (a *MatchActivities) PublishMatch(ctx context.Context, m domain.Match) error {
	a.mu.Lock()
	delete(a.accepted, m.ID)
	delete(a.opened, m.ID)
	a.mu.Unlock()

	if a.Publisher == nil {
		slog.Info("match (no publisher)", "match", m.ID, "post", m.PostID, "helper", m.HelperID)
		return nil
	}
	return a.Publisher.PublishMatch(ctx, &m)
}

// nonRetryable stops Temporal from retrying domain failures that cannot
// succeed on a later attempt. Other errors are returned unchanged.
func nonRetryable(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return temporal.NewNonRetryableApplicationError(err.Error(), errTypeNotFound, err)
	case errors.Is(err, domain.ErrInvalidCoordinate):
		return temporal.NewNonRetryableApplicationError(err.Error(), errTypeInvalidCoordinate, err)
	}
	return err
}

// domainError maps an application error back to the domain sentinel it carried.
func domainError(err error) error {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return err
	}
	switch appErr.Type() {
	case errTypeNotFound:
		return fmt.Errorf("%s: %w", appErr.Error(), domain.ErrNotFound)
	case errTypeInvalidCoordinate:
		return fmt.Errorf("%s: %w", appErr.Error(), domain.ErrInvalidCoordinate)
	}
	return err
}
