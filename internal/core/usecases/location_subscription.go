package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/ports"
	"github.com/samirrijal/neighborhelper/internal/pkg/geospatial"
	"github.com/samirrijal/neighborhelper/internal/pkg/metrics"
)

// LocationSubscription bridges a PositionProvider to discrete onPosition
// events. An instance holds at most one live registration.
type LocationSubscription struct {
	provider ports.PositionProvider
	gate     ports.PermissionGate
	now      func() time.Time

	mu     sync.Mutex
	nextID uint64
	active *registration
}

// registration is one live subscription. mu is held for the whole of a
// delivery so that Stop cannot return while onPosition is running.
type registration struct {
	id         uint64
	onPosition func(domain.GeoPoint)
	policy     domain.DeliveryPolicy
	now        func() time.Time

	mu          sync.Mutex
	stopped     bool
	cancel      func()
	hasLast     bool
	lastPoint   domain.GeoPoint
	lastDeliver time.Time
}

// NewLocationSubscription creates a subscription bound to provider and gate.
func NewLocationSubscription(provider ports.PositionProvider, gate ports.PermissionGate) *LocationSubscription {
	return &LocationSubscription{provider: provider, gate: gate, now: time.Now}
}

// WithClock overrides the clock used for interval throttling.
func (s *LocationSubscription) WithClock(now func() time.Time) *LocationSubscription {
	s.now = now
	return s
}

// Start registers onPosition for position updates. If the provider has a
// cached fix it is delivered synchronously before Start returns and before
// any live fix. onPosition must not call Stop.
func (s *LocationSubscription) Start(ctx context.Context, onPosition func(domain.GeoPoint), policy domain.DeliveryPolicy) (domain.SubscriptionHandle, error) {
	if st := s.gate.CurrentStatus(); st != domain.PermissionGranted {
		return domain.SubscriptionHandle{}, fmt.Errorf("start location subscription (status %s): %w", st, domain.ErrPermissionDenied)
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return domain.SubscriptionHandle{}, domain.ErrSubscriptionActive
	}
	s.nextID++
	reg := &registration{
		id:         s.nextID,
		onPosition: onPosition,
		policy:     policy,
		now:        s.now,
	}
	s.active = reg
	s.mu.Unlock()

	// Live fixes block on reg.mu until the seed has been delivered.
	reg.mu.Lock()
	cancel, err := s.provider.Subscribe(ctx, policy, reg.deliver)
	if err != nil {
		reg.stopped = true
		reg.mu.Unlock()
		s.release(reg)
		return domain.SubscriptionHandle{}, fmt.Errorf("subscribe: %w", err)
	}
	reg.cancel = cancel

	seed, ok, err := s.provider.LastKnown(ctx)
	switch {
	case err != nil:
		slog.Debug("last known position lookup failed", "error", err)
	case ok:
		reg.deliverLocked(seed, true)
	}
	metrics.ActiveSubscriptions.Inc()
	reg.mu.Unlock()

	return domain.NewSubscriptionHandle(reg.id), nil
}

// Stop releases the registration behind h. Unknown, zero and already
// stopped handles are ignored.
func (s *LocationSubscription) Stop(h domain.SubscriptionHandle) {
	if !h.Valid() {
		return
	}

	s.mu.Lock()
	reg := s.active
	if reg == nil || reg.id != h.ID() {
		s.mu.Unlock()
		return
	}
	s.active = nil
	s.mu.Unlock()

	reg.mu.Lock()
	already := reg.stopped
	reg.stopped = true
	cancel := reg.cancel
	reg.mu.Unlock()

	if already {
		return
	}
	if cancel != nil {
		cancel()
	}
	metrics.ActiveSubscriptions.Dec()
}

// Active reports whether a registration is live.
func (s *LocationSubscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

func (s *LocationSubscription) release(reg *registration) {
	s.mu.Lock()
	if s.active == reg {
		s.active = nil
	}
	s.mu.Unlock()
}

func (r *registration) deliver(p domain.GeoPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliverLocked(p, false)
}

func (r *registration) deliverLocked(p domain.GeoPoint, seed bool) {
	if r.stopped {
		return
	}
	now := r.now()
	if !seed && r.hasLast && !r.due(p, now) {
		metrics.PositionFixes.WithLabelValues("throttled").Inc()
		return
	}
	// malformed fixes still reach the owner, which reports them as stale
	if p.Validate() == nil {
		r.hasLast = true
		r.lastPoint = p
		r.lastDeliver = now
	}
	if seed {
		metrics.PositionFixes.WithLabelValues("seed").Inc()
	} else {
		metrics.PositionFixes.WithLabelValues("live").Inc()
	}
	r.onPosition(p)
}

// due applies the interval and displacement hints against the last delivery.
func (r *registration) due(p domain.GeoPoint, now time.Time) bool {
	if r.policy.Interval > 0 && now.Sub(r.lastDeliver) < r.policy.Interval {
		return false
	}
	if r.policy.MinDisplacementMeters > 0 && p.Validate() == nil {
		moved := geospatial.Haversine(r.lastPoint.Lat, r.lastPoint.Lon, p.Lat, p.Lon)
		if moved < r.policy.MinDisplacementMeters {
			return false
		}
	}
	return true
}
