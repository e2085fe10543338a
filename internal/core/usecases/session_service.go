package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
	"github.com/samirrijal/neighborhelper/internal/pkg/dispatch"
	"github.com/samirrijal/neighborhelper/internal/pkg/metrics"
	"github.com/samirrijal/neighborhelper/internal/pkg/telemetry"
)

var tracer = otel.Tracer("github.com/samirrijal/neighborhelper/internal/core/usecases")

// SessionOptions configures every tracking session opened by a SessionService.
type SessionOptions struct {
	Policy    domain.DeliveryPolicy
	AutoGrant bool
	Strict    bool
}

// Session is one live-location screen: its controller, gate and map surface.
type Session struct {
	ID         string
	Target     domain.RequesterTarget
	CreatedAt  time.Time
	Controller *TrackingController
	Gate       *ConsentGate
	Surface    ports.MarkerSurface

	unobserve func()
	closed    atomic.Bool
}

func (sess *Session) live() error {
	if sess.closed.Load() {
		return fmt.Errorf("session %s: %w", sess.ID, domain.ErrSessionClosed)
	}
	return nil
}

// RequestPermission asks for location access again: a fresh prompt while
// awaiting, a retry after denial or provider failure.
func (sess *Session) RequestPermission() error {
	if err := sess.live(); err != nil {
		return err
	}
	switch {
	case sess.Controller.State().Phase != domain.PhaseAwaitingPermission:
		sess.Controller.Retry()
	case !sess.Gate.Pending():
		sess.Controller.Start()
	}
	return sess.live()
}

// Decide delivers the user's answer to the consent prompt. A decision with
// no prompt showing is rejected; denied access only comes back through a
// new request.
func (sess *Session) Decide(granted bool) error {
	if err := sess.live(); err != nil {
		return err
	}
	if !sess.Gate.Resolve(granted) {
		return fmt.Errorf("session %s: %w", sess.ID, domain.ErrNoPendingRequest)
	}
	return nil
}

// Revoke withdraws a granted permission, as the platform settings would.
func (sess *Session) Revoke() error {
	if err := sess.live(); err != nil {
		return err
	}
	sess.Gate.Revoke()
	return nil
}

// SessionService opens and disposes tracking sessions.
type SessionService struct {
	provider   ports.PositionProvider
	publisher  ports.EventPublisher
	newSurface func(domain.RequesterTarget) ports.MarkerSurface
	opts       SessionOptions

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionService creates a new SessionService. publisher may be nil.
func NewSessionService(
	provider ports.PositionProvider,
	publisher ports.EventPublisher,
	newSurface func(domain.RequesterTarget) ports.MarkerSurface,
	opts SessionOptions,
) *SessionService {
	return &SessionService{
		provider:   provider,
		publisher:  publisher,
		newSurface: newSurface,
		opts:       opts,
		sessions:   make(map[string]*Session),
	}
}

// Open creates a session for target and starts it.
func (s *SessionService) Open(ctx context.Context, target domain.RequesterTarget) (*Session, error) {
	_, span := tracer.Start(ctx, "SessionService.Open")
	defer span.End()

	if err := target.Point.Validate(); err != nil {
		return nil, fmt.Errorf("requester location: %w", err)
	}
	target.Label = strings.TrimSpace(target.Label)
	if target.Label == "" {
		target.Label = "Requester"
	}

	id := uuid.NewString()
	span.SetAttributes(telemetry.AttrSessionID.String(id))

	loop := dispatch.NewLoop()
	gateOpts := []ConsentGateOption{WithAutoGrant(s.opts.AutoGrant)}
	if s.publisher != nil {
		gateOpts = append(gateOpts, WithPrompter(&publishingPrompter{publisher: s.publisher, sessionID: id}))
	}
	gate := NewConsentGate(loop, gateOpts...)
	surface := s.newSurface(target)
	ctrl := NewTrackingController(
		loop,
		gate,
		NewLocationSubscription(s.provider, gate),
		surface,
		target,
		TrackingOptions{Policy: s.opts.Policy, Strict: s.opts.Strict},
	)

	sess := &Session{
		ID:         id,
		Target:     target,
		CreatedAt:  time.Now(),
		Controller: ctrl,
		Gate:       gate,
		Surface:    surface,
	}
	if s.publisher != nil {
		sess.unobserve = ctrl.Observe(func(st domain.TrackingState) {
			if err := s.publisher.PublishTrackingState(context.Background(), id, st); err != nil {
				slog.Debug("publish tracking state failed", "session", id, "error", err)
			}
		})
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	metrics.ActiveSessions.Inc()

	ctrl.Start()
	slog.Info("tracking session opened", "session", id, "requester", target.Label)
	return sess, nil
}

// Get returns a live session by ID.
func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return sess, nil
}

// List returns live sessions, oldest first.
func (s *SessionService) List() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// RequestPermission asks for location access again on session id.
func (s *SessionService) RequestPermission(id string) (*Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return sess, sess.RequestPermission()
}

// Decide delivers the user's answer for session id.
func (s *SessionService) Decide(id string, granted bool) (*Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return sess, sess.Decide(granted)
}

// Revoke withdraws location access for session id.
func (s *SessionService) Revoke(id string) (*Session, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return sess, sess.Revoke()
}

// Close disposes the session and forgets it.
func (s *SessionService) Close(ctx context.Context, id string) error {
	_, span := tracer.Start(ctx, "SessionService.Close")
	defer span.End()
	span.SetAttributes(telemetry.AttrSessionID.String(id))

	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}

	s.dispose(sess)
	return nil
}

// CloseAll disposes every session; used on shutdown.
func (s *SessionService) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		s.dispose(sess)
	}
}

func (s *SessionService) dispose(sess *Session) {
	sess.closed.Store(true)
	sess.Controller.Dispose()
	if sess.unobserve != nil {
		sess.unobserve()
	}
	metrics.ActiveSessions.Dec()
	slog.Info("tracking session closed", "session", sess.ID)
}

// publishingPrompter announces consent prompts on the event bus so the
// screen can show the platform dialog.
type publishingPrompter struct {
	publisher ports.EventPublisher
	sessionID string
}

func (p *publishingPrompter) Prompt(ctx context.Context) error {
	return p.publisher.PublishPermissionPrompt(ctx, p.sessionID)
}
